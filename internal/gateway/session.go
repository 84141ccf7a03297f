package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Session is one authenticated websocket connection.
type Session struct {
	id     string
	player domain.Player
	conn   *websocket.Conn
	out    chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	roomID    string
	spectator bool

	closeOnce sync.Once
	logger    *zap.Logger
}

func newSession(parent context.Context, id string, player domain.Player, conn *websocket.Conn, queueSize int, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:     id,
		player: player,
		conn:   conn,
		out:    make(chan []byte, queueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("session_id", id), zap.String("user_id", player.ID)),
	}
}

func (s *Session) ID() string { return s.id }

// binding returns the room this session acts on and whether it only watches.
func (s *Session) binding() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.spectator
}

// bind switches the session to roomID and returns the previous room.
func (s *Session) bind(roomID string, spectator bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.roomID
	s.roomID = roomID
	s.spectator = spectator
	return prev
}

func (s *Session) unbind(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roomID != roomID {
		return false
	}
	s.roomID = ""
	s.spectator = false
	return true
}

func (s *Session) send(env xiangqidto.Envelope) bool {
	b, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("session_encode_failed", zap.String("type", env.Type), zap.Error(err))
		return false
	}
	return s.enqueue(b)
}

// enqueue hands a frame to the writer without blocking. A full queue means
// the client is not reading; the session is closed instead of stalling rooms.
func (s *Session) enqueue(b []byte) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.out <- b:
		return true
	default:
		s.logger.Warn("session_slow_consumer", zap.Int("queued", len(s.out)))
		s.close(websocket.StatusPolicyViolation, "send queue overflow")
		return false
	}
}

func (s *Session) writeLoop(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case b := <-s.out:
			ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := s.conn.Write(ctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				s.logger.Debug("session_write_failed", zap.Error(err))
				s.close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				s.logger.Debug("session_ping_failed", zap.Error(err))
				s.close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		// the close handshake can take seconds; callers may be room goroutines
		go func() { _ = s.conn.Close(code, reason) }()
	})
}
