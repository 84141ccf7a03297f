package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsWithGuests(t *testing.T) {
	t.Setenv("ALLOW_GUESTS", "true")
	t.Setenv("IDENTITY_BASE_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.AbandonTimeout != time.Minute || cfg.TickInterval != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.QueueTimeControls) != 3 || cfg.DefaultRating != 1200 {
		t.Fatalf("unexpected queue defaults: %+v", cfg)
	}
}

func TestLoadRequiresIdentity(t *testing.T) {
	t.Setenv("ALLOW_GUESTS", "false")
	t.Setenv("IDENTITY_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without identity service or guests")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDENTITY_BASE_URL", "http://identity.local")
	t.Setenv("ALLOW_GUESTS", "")
	t.Setenv("ABANDON_TIMEOUT_SEC", "15")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("QUEUE_TIME_CONTROLS", "60, 600")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org")
	t.Setenv("MAX_ROOMS", "12")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AbandonTimeout != 15*time.Second || cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("durations not applied: %+v", cfg)
	}
	if len(cfg.QueueTimeControls) != 2 || cfg.QueueTimeControls[1] != 600 {
		t.Fatalf("time controls = %v", cfg.QueueTimeControls)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.MaxRooms != 12 {
		t.Fatalf("max rooms = %d", cfg.MaxRooms)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("ALLOW_GUESTS", "true")
	t.Setenv("ABANDON_TIMEOUT_SEC", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad ABANDON_TIMEOUT_SEC")
	}
}
