package gateway

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"go.uber.org/zap"
)

const (
	maxChatRunes = 500
	queueTimeout = 5 * time.Second
)

func (s *Server) dispatch(sess *Session, env xiangqidto.Envelope) error {
	switch env.Type {
	case xiangqidto.TypeJoinRoom:
		return s.joinRoom(sess, env.RoomID)
	case xiangqidto.TypeWatchRoom:
		return s.watchRoom(sess, env.RoomID)
	case xiangqidto.TypeLeaveRoom:
		return s.leaveRoom(sess, env.RoomID)
	case xiangqidto.TypeAbandon:
		return s.onBoundRoom(sess, env.RoomID, func(r *room.Room) error {
			_, err := r.Abandon(sess.player.ID)
			return err
		})
	case xiangqidto.TypeSendMove:
		var mv xiangqidto.MovePayload
		if err := env.Decode(&mv); err != nil {
			return errBadRequest("move payload")
		}
		return s.onBoundRoom(sess, env.RoomID, func(r *room.Room) error {
			_, err := r.ApplyMove(sess.player.ID, xiangqi.Pos(mv.FromRow, mv.FromCol), xiangqi.Pos(mv.ToRow, mv.ToCol))
			return err
		})
	case xiangqidto.TypeResign:
		return s.onBoundRoom(sess, env.RoomID, func(r *room.Room) error {
			_, err := r.Resign(sess.player.ID)
			return err
		})
	case xiangqidto.TypeOfferDraw:
		return s.onBoundRoom(sess, env.RoomID, func(r *room.Room) error {
			_, err := r.OfferDraw(sess.player.ID)
			return err
		})
	case xiangqidto.TypeRespondDraw:
		var p xiangqidto.RespondDrawPayload
		if err := env.Decode(&p); err != nil {
			return errBadRequest("respond_draw payload")
		}
		return s.onBoundRoom(sess, env.RoomID, func(r *room.Room) error {
			_, err := r.RespondDraw(sess.player.ID, p.Accept)
			return err
		})
	case xiangqidto.TypeSendChat:
		return s.chat(sess, env)
	case xiangqidto.TypeJoinMatchmaking:
		return s.joinQueue(sess, env)
	case xiangqidto.TypeLeaveMatchmaking:
		removed := s.cfg.Queue.Leave(sess.player.ID)
		s.hub.unsubscribe(sess, topicQueue)
		s.reply(sess, xiangqidto.TypeMatchmakingLeft, "", xiangqidto.MatchmakingLeftPayload{Removed: removed})
		return nil
	case xiangqidto.TypeRejoin:
		s.sendRejoin(sess)
		return nil
	case "":
		return errBadRequest("missing type")
	}
	return errBadRequest("unknown type " + env.Type)
}

func (s *Server) joinRoom(sess *Session, roomID string) error {
	if roomID == "" {
		return errBadRequest("missing roomId")
	}
	r, err := s.cfg.Rooms.Get(roomID)
	if err != nil {
		return err
	}
	snap, err := r.Join(sess.player)
	if err != nil {
		return err
	}
	s.attach(sess, roomID, false)
	s.reply(sess, xiangqidto.TypeRoomState, roomID, snap)
	return nil
}

func (s *Server) watchRoom(sess *Session, roomID string) error {
	if roomID == "" {
		return errBadRequest("missing roomId")
	}
	r, err := s.cfg.Rooms.Get(roomID)
	if err != nil {
		return err
	}
	snap := r.Watch()
	// a seated player watching its own game is just a second view of the seat
	s.attach(sess, roomID, !snap.Seated(sess.player.ID))
	s.reply(sess, xiangqidto.TypeRoomState, roomID, snap)
	return nil
}

// attach binds sess to roomID and moves its room subscription over.
func (s *Server) attach(sess *Session, roomID string, spectator bool) {
	if prev := sess.bind(roomID, spectator); prev != "" && prev != roomID {
		s.hub.unsubscribe(sess, roomTopic(prev))
	}
	s.hub.subscribe(sess, roomTopic(roomID))
}

func (s *Server) leaveRoom(sess *Session, roomID string) error {
	return s.onBoundRoom(sess, roomID, func(r *room.Room) error {
		id := r.ID()
		_, spectating := sess.binding()
		if !spectating && !s.hub.boundElsewhere(sess.player.ID, id, sess) {
			if _, err := r.Leave(sess.player.ID); err != nil {
				return err
			}
		}
		sess.unbind(id)
		s.hub.unsubscribe(sess, roomTopic(id))
		return nil
	})
}

// onBoundRoom runs fn against the room this session is bound to. A message
// naming a different room, or arriving unbound, is stale.
func (s *Server) onBoundRoom(sess *Session, roomID string, fn func(*room.Room) error) error {
	bound, _ := sess.binding()
	if bound == "" || (roomID != "" && roomID != bound) {
		return errStale
	}
	r, err := s.cfg.Rooms.Get(bound)
	if err != nil {
		sess.unbind(bound)
		s.hub.unsubscribe(sess, roomTopic(bound))
		return err
	}
	return fn(r)
}

func (s *Server) chat(sess *Session, env xiangqidto.Envelope) error {
	var p xiangqidto.ChatPayload
	if err := env.Decode(&p); err != nil {
		return errBadRequest("chat payload")
	}
	text := strings.TrimSpace(p.Text)
	if text == "" {
		return errBadRequest("empty chat message")
	}
	if utf8.RuneCountInString(text) > maxChatRunes {
		text = string([]rune(text)[:maxChatRunes])
	}
	msg := xiangqidto.ChatMessage{
		RoomID:   env.RoomID,
		FromID:   sess.player.ID,
		FromName: sess.player.DisplayName,
		Text:     text,
		At:       time.Now().UTC(),
	}
	topic := topicChat
	if env.RoomID != "" {
		if bound, _ := sess.binding(); bound != env.RoomID {
			return errStale
		}
		topic = roomTopic(env.RoomID)
	}
	s.hub.publishPayload(topic, xiangqidto.TypeChat, env.RoomID, msg)
	return nil
}

func (s *Server) joinQueue(sess *Session, env xiangqidto.Envelope) error {
	p := xiangqidto.JoinMatchmakingPayload{TimeControlSeconds: s.cfg.DefaultTimeControl}
	if err := env.Decode(&p); err != nil {
		return errBadRequest("join_matchmaking payload")
	}
	if p.TimeControlSeconds < 0 {
		return errBadRequest("negative time control")
	}
	s.hub.subscribe(sess, topicQueue)
	ctx, cancel := context.WithTimeout(sess.ctx, queueTimeout)
	defer cancel()
	pairing, err := s.cfg.Queue.Join(ctx, sess.player, sess.id, p.TimeControlSeconds)
	if err != nil {
		s.hub.unsubscribe(sess, topicQueue)
		return err
	}
	if pairing != nil {
		sess.logger.Info("session_paired", zap.String("room_id", pairing.RoomID))
	}
	return nil
}
