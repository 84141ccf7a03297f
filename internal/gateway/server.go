package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/matchmaking"
	"github.com/park285/cheese-xiangqi/internal/msgcat"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	defaultSendQueue    = 64
	defaultPingInterval = 15 * time.Second
	defaultWriteTimeout = 10 * time.Second
	readLimit           = 64 << 10
)

// Rooms is the part of the room registry the gateway drives.
type Rooms interface {
	Get(id string) (*room.Room, error)
	RoomsFor(playerID string) []room.Snapshot
}

// Queue is the matchmaking queue as seen by sessions.
type Queue interface {
	Join(ctx context.Context, player domain.Player, sessionID string, timeControlSeconds int) (*matchmaking.Pairing, error)
	Leave(playerID string) bool
	LeaveSession(playerID, sessionID string) bool
}

// RatingSource looks up the rating shown for a connecting player.
type RatingSource interface {
	Rating(ctx context.Context, playerID string) (int, error)
}

type Config struct {
	Hub     *Hub
	Rooms   Rooms
	Queue   Queue
	Auth    identity.Authenticator
	Ratings RatingSource
	Catalog *msgcat.Catalog

	// OriginPatterns are host patterns accepted in the Origin header.
	OriginPatterns     []string
	DefaultTimeControl int
	DefaultRating      int
	SendQueue          int
	PingInterval       time.Duration
	WriteTimeout       time.Duration
	Logger             *zap.Logger
}

// Server upgrades HTTP requests to sessions and dispatches their messages.
type Server struct {
	cfg    Config
	hub    *Hub
	logger *zap.Logger

	// base outlives individual requests; Shutdown cancels it.
	base   context.Context
	cancel context.CancelFunc
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Catalog, cfg.Logger)
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = defaultSendQueue
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.DefaultRating <= 0 {
		cfg.DefaultRating = 1200
	}
	base, cancel := context.WithCancel(context.Background())
	return &Server{cfg: cfg, hub: cfg.Hub, logger: cfg.Logger, base: base, cancel: cancel}
}

func (s *Server) Hub() *Hub { return s.hub }

// Shutdown closes every live session. Rooms and the queue are left alone.
func (s *Server) Shutdown() { s.cancel() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = identity.BearerToken(r.Header.Get("Authorization"))
	}
	ident, err := s.cfg.Auth.Resolve(r.Context(), token)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, identity.ErrUnauthorized) {
			status = http.StatusServiceUnavailable
			s.logger.Warn("ws_identity_failed", zap.Error(err))
		}
		de, _ := MapError(s.cfg.Catalog, identity.ErrUnauthorized, "")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(xiangqidto.ErrorResponse{Code: de.Code, Message: de.Message})
		return
	}

	player := ident.Player(s.rating(r.Context(), ident))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.cfg.OriginPatterns,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Debug("ws_accept_failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(readLimit)

	sess := newSession(s.base, uuid.NewString(), player, conn, s.cfg.SendQueue, s.logger)
	s.hub.register(sess)
	s.hub.subscribe(sess, topicChat)
	s.hub.subscribe(sess, rejoinTopic(player.ID))
	sess.logger.Info("session_open", zap.String("display_name", player.DisplayName))

	go sess.writeLoop(s.cfg.PingInterval, s.cfg.WriteTimeout)
	s.sendRejoin(sess)
	s.readLoop(sess)
	s.cleanup(sess)
}

func (s *Server) rating(ctx context.Context, ident domain.Identity) int {
	if ident.IsGuest || s.cfg.Ratings == nil {
		return s.cfg.DefaultRating
	}
	n, err := s.cfg.Ratings.Rating(ctx, ident.UserID)
	if err != nil {
		s.logger.Warn("ws_rating_lookup_failed", zap.String("user_id", ident.UserID), zap.Error(err))
		return s.cfg.DefaultRating
	}
	return n
}

func (s *Server) readLoop(sess *Session) {
	for {
		var env xiangqidto.Envelope
		if err := wsjson.Read(sess.ctx, sess.conn, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && sess.ctx.Err() == nil {
				sess.logger.Debug("session_read_failed", zap.Error(err))
			}
			return
		}
		if err := s.dispatch(sess, env); err != nil {
			s.sendError(sess, err, env.RoomID)
		}
	}
}

// cleanup runs once the reader is done. Rooms see a disconnect only when
// no other session of the same user is still bound to them.
func (s *Server) cleanup(sess *Session) {
	s.hub.unregister(sess)
	sess.close(websocket.StatusNormalClosure, "")
	uid := sess.player.ID
	if s.cfg.Queue != nil {
		s.cfg.Queue.LeaveSession(uid, sess.id)
	}
	for _, snap := range s.cfg.Rooms.RoomsFor(uid) {
		if snap.Status != room.StatusPlaying && snap.Status != room.StatusWaiting {
			continue
		}
		if s.hub.boundElsewhere(uid, snap.ID, sess) {
			continue
		}
		r, err := s.cfg.Rooms.Get(snap.ID)
		if err != nil {
			continue
		}
		if _, err := r.Disconnect(uid); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			sess.logger.Warn("session_disconnect_failed", zap.String("room_id", snap.ID), zap.Error(err))
		}
	}
	sess.logger.Info("session_close")
}

func (s *Server) sendRejoin(sess *Session) {
	var live []room.Snapshot
	for _, snap := range s.cfg.Rooms.RoomsFor(sess.player.ID) {
		if snap.Status == room.StatusPlaying {
			live = append(live, snap)
		}
	}
	if len(live) == 0 {
		return
	}
	s.reply(sess, xiangqidto.TypeRejoinAvailable, "", s.hub.rejoinPayload(sess.player.ID, live))
}

func (s *Server) reply(sess *Session, typ, roomID string, payload any) {
	env, err := xiangqidto.NewEnvelope(typ, roomID, payload)
	if err != nil {
		sess.logger.Error("session_encode_failed", zap.String("type", typ), zap.Error(err))
		return
	}
	sess.send(env)
}

func (s *Server) sendError(sess *Session, err error, roomID string) {
	de, known := MapError(s.cfg.Catalog, err, roomID)
	if !known {
		sess.logger.Error("session_dispatch_failed", zap.String("room_id", roomID), zap.Error(err))
	} else {
		sess.logger.Debug("session_rejected", zap.String("code", de.Code), zap.Error(err))
	}
	s.reply(sess, xiangqidto.TypeError, roomID, de)
}
