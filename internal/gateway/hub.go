package gateway

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/park285/cheese-xiangqi/internal/matchmaking"
	"github.com/park285/cheese-xiangqi/internal/msgcat"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"go.uber.org/zap"
)

const (
	topicQueue        = "queue"
	topicChat         = "chat"
	topicRoomPrefix   = "room:"
	topicRejoinPrefix = "rejoin:"
)

func roomTopic(id string) string     { return topicRoomPrefix + id }
func rejoinTopic(uid string) string { return topicRejoinPrefix + uid }

// Hub tracks live sessions by topic and by user and fans frames out to them.
// It is the room Broadcaster and the queue Notifier of the server.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*Session]struct{}
	users    map[string]map[*Session]struct{}
	sessions map[string]*Session

	catalog *msgcat.Catalog
	logger  *zap.Logger
}

func NewHub(catalog *msgcat.Catalog, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		topics:   make(map[string]map[*Session]struct{}),
		users:    make(map[string]map[*Session]struct{}),
		sessions: make(map[string]*Session),
		catalog:  catalog,
		logger:   logger,
	}
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
	set := h.users[s.player.ID]
	if set == nil {
		set = make(map[*Session]struct{})
		h.users[s.player.ID] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.id)
	if set := h.users[s.player.ID]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.users, s.player.ID)
		}
	}
	for topic, set := range h.topics {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) subscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, live := h.sessions[s.id]; !live {
		return
	}
	set := h.topics[topic]
	if set == nil {
		set = make(map[*Session]struct{})
		h.topics[topic] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unsubscribe(s *Session, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.topics[topic]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Subscribers returns how many sessions listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// boundElsewhere reports whether another live session of userID is bound to roomID.
func (h *Hub) boundElsewhere(userID, roomID string, except *Session) bool {
	h.mu.RLock()
	set := make([]*Session, 0, len(h.users[userID]))
	for s := range h.users[userID] {
		if s != except {
			set = append(set, s)
		}
	}
	h.mu.RUnlock()
	for _, s := range set {
		if id, _ := s.binding(); id == roomID {
			return true
		}
	}
	return false
}

// Publish sends env to every subscriber of topic. It never blocks; sessions
// that cannot keep up are dropped.
func (h *Hub) Publish(topic string, env xiangqidto.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("hub_encode_failed", zap.String("type", env.Type), zap.Error(err))
		return
	}
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.enqueue(b)
	}
}

func (h *Hub) sendSession(id string, env xiangqidto.Envelope) bool {
	h.mu.RLock()
	s := h.sessions[id]
	h.mu.RUnlock()
	if s == nil {
		return false
	}
	return s.send(env)
}

func (h *Hub) sendUser(userID string, env xiangqidto.Envelope) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.users[userID]))
	for s := range h.users[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.send(env)
	}
}

func (h *Hub) publishPayload(topic, typ, roomID string, payload any) {
	env, err := xiangqidto.NewEnvelope(typ, roomID, payload)
	if err != nil {
		h.logger.Error("hub_encode_failed", zap.String("type", typ), zap.Error(err))
		return
	}
	h.Publish(topic, env)
}

// Broadcast maps a room event to its wire frame on the room topic.
func (h *Hub) Broadcast(ev room.Event) {
	topic := roomTopic(ev.RoomID)
	snap := ev.Snapshot
	switch ev.Kind {
	case room.EventRoomState:
		h.publishPayload(topic, xiangqidto.TypeRoomState, ev.RoomID, snap)
	case room.EventMoveApplied:
		h.publishPayload(topic, xiangqidto.TypeMoveApplied, ev.RoomID, xiangqidto.MoveAppliedPayload{Move: ev.Move, State: snap})
	case room.EventDrawOffered:
		h.publishPayload(topic, xiangqidto.TypeDrawOffered, ev.RoomID, xiangqidto.DrawPayload{
			PlayerID: ev.PlayerID,
			Color:    ev.Color,
			Message:  h.catalog.Text("game.draw_offered", map[string]any{"Name": seatName(snap, ev.Color)}, "draw offered"),
		})
	case room.EventDrawDeclined:
		h.publishPayload(topic, xiangqidto.TypeDrawDeclined, ev.RoomID, xiangqidto.DrawPayload{
			PlayerID: ev.PlayerID,
			Color:    ev.Color,
			Message:  h.catalog.Text("game.draw_declined", map[string]any{"Name": seatName(snap, ev.Color)}, "draw declined"),
		})
	case room.EventConnectionState:
		state := string(ev.Connection)
		h.publishPayload(topic, xiangqidto.TypeConnectionState, ev.RoomID, xiangqidto.ConnectionStatePayload{
			PlayerID: ev.PlayerID,
			Color:    ev.Color,
			State:    state,
			Message: h.catalog.Text("game.opponent_state",
				map[string]any{"Name": seatName(snap, ev.Color), "State": strings.ToLower(state)}, ""),
		})
		if ev.Connection == room.ConnReconnecting && snap.Status == room.StatusPlaying {
			h.publishPayload(rejoinTopic(ev.PlayerID), xiangqidto.TypeRejoinAvailable, "", h.rejoinPayload(ev.PlayerID, []room.Snapshot{snap}))
		}
	case room.EventGameOver:
		h.publishPayload(topic, xiangqidto.TypeGameOver, ev.RoomID, h.gameOver(snap))
	default:
		h.logger.Warn("hub_unknown_event", zap.String("kind", string(ev.Kind)))
	}
}

func (h *Hub) gameOver(snap room.Snapshot) xiangqidto.GameOverPayload {
	out := xiangqidto.GameOverPayload{RoomID: snap.ID, State: snap}
	if snap.Outcome == nil {
		return out
	}
	o := snap.Outcome
	out.Result = string(o.Result)
	out.Reason = string(o.Reason)
	out.Winner = o.Winner
	if o.Winner == "" {
		out.Message = h.catalog.Text("game.draw", map[string]any{"Reason": o.Reason}, "draw")
	} else {
		out.Message = h.catalog.Text("game.over", map[string]any{"Winner": seatName(snap, o.Winner), "Reason": o.Reason}, "game over")
	}
	return out
}

func (h *Hub) rejoinPayload(userID string, snaps []room.Snapshot) xiangqidto.RejoinPayload {
	out := xiangqidto.RejoinPayload{Rooms: make([]xiangqidto.RejoinRoom, 0, len(snaps))}
	for _, s := range snaps {
		color := "black"
		if s.Red != nil && s.Red.Player.ID == userID {
			color = "red"
		}
		out.Rooms = append(out.Rooms, xiangqidto.RejoinRoom{RoomID: s.ID, Name: s.Name, Color: color, Status: string(s.Status)})
	}
	if len(out.Rooms) > 0 {
		out.Message = h.catalog.Text("rejoin.available", map[string]any{"RoomID": out.Rooms[0].RoomID}, "")
	}
	return out
}

// Queued confirms a wait to the joining session.
func (h *Hub) Queued(e matchmaking.Entry) {
	env, err := xiangqidto.NewEnvelope(xiangqidto.TypeMatchmakingQueued, "", xiangqidto.QueuedPayload{
		TimeControlSeconds: e.TimeControlSeconds,
		Message:            h.catalog.Text("queue.queued", map[string]any{"TimeControl": e.TimeControlSeconds}, ""),
	})
	if err != nil {
		return
	}
	if !h.sendSession(e.SessionID, env) {
		h.sendUser(e.Player.ID, env)
	}
}

// Paired tells both sides which room they were seated in.
func (h *Hub) Paired(p matchmaking.Pairing) {
	h.notifyPaired(p.RoomID, p.Red, p.Black, "red")
	h.notifyPaired(p.RoomID, p.Black, p.Red, "black")
}

func (h *Hub) notifyPaired(roomID string, self, opp matchmaking.Entry, color string) {
	env, err := xiangqidto.NewEnvelope(xiangqidto.TypeMatchmakingPaired, roomID, xiangqidto.PairedPayload{
		RoomID:             roomID,
		Color:              color,
		OpponentID:         opp.Player.ID,
		OpponentName:       opp.Player.DisplayName,
		OpponentRating:     opp.Player.Rating,
		TimeControlSeconds: self.TimeControlSeconds,
		Message:            h.catalog.Text("queue.paired", map[string]any{"Opponent": opp.Player.DisplayName}, ""),
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	s := h.sessions[self.SessionID]
	h.mu.RUnlock()
	if s == nil {
		h.sendUser(self.Player.ID, env)
		return
	}
	h.unsubscribe(s, topicQueue)
	s.send(env)
}

func seatName(s room.Snapshot, color string) string {
	switch {
	case color == "red" && s.Red != nil:
		return s.Red.Player.DisplayName
	case color == "black" && s.Black != nil:
		return s.Black.Player.DisplayName
	}
	return color
}
