package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/matchmaking"
	"github.com/park285/cheese-xiangqi/internal/msgcat"
	"github.com/park285/cheese-xiangqi/internal/render"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/internal/store"
	"go.uber.org/zap"
)

// Rooms is the registry surface the API needs.
type Rooms interface {
	Create(host domain.Player, opts room.CreateOptions) (*room.Room, error)
	Get(id string) (*room.Room, error)
	Join(id string, player domain.Player) (room.Snapshot, error)
	List() []room.Summary
	Len() int
}

type QueueStats interface {
	Snapshot() []matchmaking.BucketSize
}

// Profiles serves ratings for players, with defaults for unknown ids.
type Profiles interface {
	Rating(ctx context.Context, playerID string) (int, error)
	Profile(ctx context.Context, playerID string) (*domain.PlayerRating, error)
}

type Deps struct {
	Rooms    Rooms
	Queue    QueueStats
	Archive  store.Archive
	Profiles Profiles
	Renderer render.BoardRenderer
	Auth     identity.Authenticator
	Catalog  *msgcat.Catalog
	// WS serves GET /ws; nil leaves the route out.
	WS http.Handler

	DefaultTimeControl int
	DefaultRating      int
	Logger             *zap.Logger
}

type api struct {
	Deps
	logger *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Renderer == nil {
		d.Renderer = render.NewBoardRenderer()
	}
	if d.DefaultRating <= 0 {
		d.DefaultRating = 1200
	}
	a := &api{Deps: d, logger: d.Logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))

	r.GET("/healthz", a.health)
	if d.WS != nil {
		r.GET("/ws", gin.WrapH(d.WS))
	}

	pub := r.Group("/api")
	pub.GET("/rooms", a.listRooms)
	pub.GET("/rooms/:id", a.getRoom)
	pub.GET("/rooms/:id/board.png", a.boardPNG)
	pub.GET("/queue", a.queueSizes)
	pub.GET("/players/:id/rating", a.rating)

	authed := r.Group("/api", a.authenticate)
	authed.POST("/rooms", a.createRoom)
	authed.POST("/rooms/:id/join", a.joinRoom)

	return r
}

func requestLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("http_request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
