package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("error.room_full", map[string]any{"RoomID": "r1"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Room r1 already has two players." {
		t.Fatalf("unexpected text %q", got)
	}
	if _, err := c.Render("error.room_full", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if _, err := c.Render("nope.nothing", nil); err == nil {
		t.Fatalf("expected template not found")
	}
}

func TestTextFallback(t *testing.T) {
	var nilCat *Catalog
	if got := nilCat.Text("error.internal", nil, "fallback"); got != "fallback" {
		t.Fatalf("nil catalog text = %q", got)
	}
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("missing.key", nil, "fb"); got != "fb" {
		t.Fatalf("fallback not used: %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("error:\n  not_your_turn: \"Wait for your opponent.\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, _ := c.Render("error.not_your_turn", nil)
	if got != "Wait for your opponent." {
		t.Fatalf("override not applied: %q", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "b.yml"), []byte("error:\n  not_your_turn: \"dup\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}
