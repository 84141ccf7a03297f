package xqbuilder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	httpapi "github.com/park285/cheese-xiangqi/internal/api/http"
	"github.com/park285/cheese-xiangqi/internal/config"
	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/park285/cheese-xiangqi/internal/engine"
	"github.com/park285/cheese-xiangqi/internal/gateway"
	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/matchmaking"
	"github.com/park285/cheese-xiangqi/internal/msgcat"
	"github.com/park285/cheese-xiangqi/internal/obslog"
	"github.com/park285/cheese-xiangqi/internal/results"
	"github.com/park285/cheese-xiangqi/internal/room"
	"github.com/park285/cheese-xiangqi/internal/store"
	"github.com/park285/cheese-xiangqi/internal/xiangqi"
	"go.uber.org/zap"
)

// Deps is the fully wired server.
type Deps struct {
	Router   *gin.Engine
	Rooms    *room.Manager
	Queue    *matchmaking.Queue
	Gateway  *gateway.Server
	Archive  store.Archive
	Results  results.Repository
	Recorder *results.Recorder
	Engine   *engine.Engine

	logger *zap.Logger
}

// New wires every component from cfg. Redis and Postgres are used when their
// URLs are set; otherwise in-memory stand-ins keep the server usable.
func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger = obslog.OrNop(logger)
	d := &Deps{logger: logger}

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var presets map[engine.Difficulty]engine.DifficultyPreset
	if strings.TrimSpace(cfg.EnginePresetsFile) != "" {
		if presets, err = engine.LoadPresetFile(cfg.EnginePresetsFile); err != nil {
			return nil, fmt.Errorf("load engine presets: %w", err)
		}
	}
	rules := xiangqi.DefaultRules()
	if d.Engine, err = engine.New(rules, presets, logger.Named("engine")); err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		if d.Archive, err = store.NewRedisArchive(ctx, cfg.RedisURL, cfg.SnapshotTTL, logger.Named("store")); err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
	} else {
		logger.Warn("archive_in_memory", zap.String("reason", "REDIS_URL not set"))
		d.Archive = store.NewMemoryArchive(cfg.SnapshotTTL)
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, err := results.NewPostgresRepository(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = d.Archive.Close()
			return nil, fmt.Errorf("init results: %w", err)
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			_ = d.Archive.Close()
			return nil, fmt.Errorf("results schema: %w", err)
		}
		d.Results = repo
	} else {
		logger.Warn("results_in_memory", zap.String("reason", "DATABASE_URL not set"))
		d.Results = results.NewMemoryRepository()
	}
	d.Recorder = results.NewRecorder(d.Results, cfg.DefaultRating, logger.Named("results"))

	hub := gateway.NewHub(catalog, logger.Named("hub"))

	d.Rooms = room.NewManager(room.ManagerConfig{
		Rules:          rules,
		Bot:            d.Engine,
		Broadcaster:    hub,
		AbandonTimeout: cfg.AbandonTimeout,
		TickInterval:   cfg.TickInterval,
		Linger:         cfg.RoomLinger,
		MaxRooms:       cfg.MaxRooms,
		OnFinish:       d.persistFinished,
		Logger:         logger.Named("room"),
	})

	d.Queue = matchmaking.New(pairingOpener(d.Rooms), hub,
		matchmaking.WithTimeControls(cfg.QueueTimeControls),
		matchmaking.WithLogger(logger.Named("queue")),
	)

	auth := authenticator(cfg, logger)
	d.Gateway = gateway.NewServer(gateway.Config{
		Hub:                hub,
		Rooms:              d.Rooms,
		Queue:              d.Queue,
		Auth:               auth,
		Ratings:            d.Recorder,
		Catalog:            catalog,
		OriginPatterns:     cfg.AllowedOrigins,
		DefaultTimeControl: cfg.DefaultTimeControlSec,
		DefaultRating:      cfg.DefaultRating,
		Logger:             logger.Named("gateway"),
	})

	d.Router = httpapi.NewRouter(httpapi.Deps{
		Rooms:              d.Rooms,
		Queue:              d.Queue,
		Archive:            d.Archive,
		Profiles:           d.Recorder,
		Auth:               auth,
		Catalog:            catalog,
		WS:                 d.Gateway,
		DefaultTimeControl: cfg.DefaultTimeControlSec,
		DefaultRating:      cfg.DefaultRating,
		Logger:             logger.Named("http"),
	})
	return d, nil
}

func authenticator(cfg *config.AppConfig, logger *zap.Logger) identity.Authenticator {
	logger = obslog.OrNop(logger)
	var chain identity.Chain
	if cfg.AllowGuests {
		chain = append(chain, identity.GuestAuthenticator{})
	}
	if strings.TrimSpace(cfg.IdentityBaseURL) != "" {
		chain = append(chain, identity.NewRemoteAuthenticator(cfg.IdentityBaseURL, identity.WithLogger(logger.Named("identity"))))
	}
	return chain
}

// pairingOpener opens a room for each matchmaking pair, first joiner as red.
func pairingOpener(rooms *room.Manager) matchmaking.RoomOpener {
	return func(_ context.Context, red, black matchmaking.Entry) (string, error) {
		r, err := rooms.OpenPairing(red.Player, black.Player, red.TimeControlSeconds)
		if err != nil {
			return "", err
		}
		return r.ID(), nil
	}
}

// persistFinished archives the final snapshot and records the result. It
// runs on its own goroutine per finished game; Rooms.Close waits for it.
func (d *Deps) persistFinished(rep domain.GameReport, snap room.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Archive.Save(ctx, snap); err != nil {
		d.logger.Error("archive_save_failed", zap.String("room_id", rep.RoomID), zap.Error(err))
	}
	if _, err := d.Recorder.Record(ctx, rep); err != nil {
		d.logger.Error("result_record_failed", zap.String("room_id", rep.RoomID), zap.Error(err))
	}
}

// Handler is the root HTTP handler.
func (d *Deps) Handler() http.Handler { return d.Router }

// Close stops rooms and sessions, waits for pending result writes and
// releases the stores.
func (d *Deps) Close() error {
	d.Gateway.Shutdown()
	d.Rooms.Close()
	var errs []string
	if err := d.Archive.Close(); err != nil {
		errs = append(errs, "archive: "+err.Error())
	}
	if err := d.Results.Close(); err != nil {
		errs = append(errs, "results: "+err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}
