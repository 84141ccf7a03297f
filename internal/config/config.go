package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	HTTPAddr string

	RedisURL    string
	DatabaseURL string

	IdentityBaseURL string
	AllowGuests     bool
	AllowedOrigins  []string

	AbandonTimeout  time.Duration
	TickInterval    time.Duration
	RoomLinger      time.Duration
	SnapshotTTL     time.Duration
	ShutdownTimeout time.Duration
	MaxRooms        int

	DefaultTimeControlSec int
	QueueTimeControls     []int
	DefaultRating         int

	MessagesDir       string
	EnginePresetsFile string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:              ":8080",
		AbandonTimeout:        60 * time.Second,
		TickInterval:          time.Second,
		RoomLinger:            5 * time.Minute,
		SnapshotTTL:           24 * time.Hour,
		ShutdownTimeout:       10 * time.Second,
		MaxRooms:              1000,
		DefaultTimeControlSec: 600,
		QueueTimeControls:     []int{180, 300, 600},
		DefaultRating:         1200,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.IdentityBaseURL = strings.TrimSpace(os.Getenv("IDENTITY_BASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	cfg.EnginePresetsFile = strings.TrimSpace(os.Getenv("ENGINE_PRESETS_FILE"))
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	if v := strings.TrimSpace(os.Getenv("ALLOW_GUESTS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("ALLOW_GUESTS: %w", err)
		}
		cfg.AllowGuests = b
	}

	durations := []struct {
		env  string
		unit time.Duration
		dst  *time.Duration
	}{
		{"ABANDON_TIMEOUT_SEC", time.Second, &cfg.AbandonTimeout},
		{"TICK_INTERVAL_MS", time.Millisecond, &cfg.TickInterval},
		{"ROOM_LINGER_SEC", time.Second, &cfg.RoomLinger},
		{"SNAPSHOT_TTL_SEC", time.Second, &cfg.SnapshotTTL},
		{"SHUTDOWN_TIMEOUT_SEC", time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if v := strings.TrimSpace(os.Getenv(d.env)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%s must be a positive integer: %q", d.env, v)
			}
			*d.dst = time.Duration(n) * d.unit
		}
	}

	if v := strings.TrimSpace(os.Getenv("MAX_ROOMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxRooms = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_TIME_CONTROL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.DefaultTimeControlSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_RATING")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultRating = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("QUEUE_TIME_CONTROLS")); v != "" {
		var tcs []int
		for _, p := range splitList(v) {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("QUEUE_TIME_CONTROLS: bad entry %q", p)
			}
			tcs = append(tcs, n)
		}
		if len(tcs) > 0 {
			cfg.QueueTimeControls = tcs
		}
	}

	if cfg.IdentityBaseURL == "" && !cfg.AllowGuests {
		return nil, errors.New("IDENTITY_BASE_URL is required unless ALLOW_GUESTS=true")
	}

	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
