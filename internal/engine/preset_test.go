package engine

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPresetsOrdered(t *testing.T) {
	ps, err := LoadPresets(defaultPresetsYAML)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	tiers := Difficulties()
	for i := 1; i < len(tiers); i++ {
		prev, cur := ps[tiers[i-1]], ps[tiers[i]]
		if cur.Depth < prev.Depth {
			t.Fatalf("%s depth %d < %s depth %d", cur.Name, cur.Depth, prev.Name, prev.Depth)
		}
		if cur.DelayMaxMillis-cur.DelayMinMillis >= prev.DelayMaxMillis-prev.DelayMinMillis {
			t.Fatalf("%s delay window not narrower than %s", cur.Name, prev.Name)
		}
	}
	if ps[Expert].Depth <= ps[Easy].Depth {
		t.Fatalf("expert must search deeper than easy")
	}
}

func TestParseDifficulty(t *testing.T) {
	cases := map[string]Difficulty{
		"easy":     Easy,
		" Medium ": Medium,
		"HARD":     Hard,
		"master":   Expert,
		"beginner": Easy,
	}
	for in, want := range cases {
		got, err := ParseDifficulty(in)
		if err != nil || got != want {
			t.Fatalf("ParseDifficulty(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDifficulty("grandmaster"); !errors.Is(err, ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
	if Easy.Rank() >= Expert.Rank() {
		t.Fatalf("rank order broken")
	}
}

func TestLoadPresetsRejectsBadInput(t *testing.T) {
	missing := []byte("presets:\n  EASY: {depth: 1, delay_min_ms: 1, delay_max_ms: 2}\n")
	if _, err := LoadPresets(missing); err == nil {
		t.Fatalf("expected missing tier error")
	}
	bad := []byte(`presets:
  EASY: {depth: 0}
  MEDIUM: {depth: 1}
  HARD: {depth: 1}
  EXPERT: {depth: 1}
`)
	if _, err := LoadPresets(bad); err == nil {
		t.Fatalf("expected depth validation error")
	}
	inverted := []byte(`presets:
  EASY: {depth: 3}
  MEDIUM: {depth: 2}
  HARD: {depth: 3}
  EXPERT: {depth: 4}
`)
	if _, err := LoadPresets(inverted); err == nil {
		t.Fatalf("expected ordering error")
	}
}

func TestLoadPresetFileOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	doc := `presets:
  EASY: {depth: 1, delay_min_ms: 0, delay_max_ms: 40}
  MEDIUM: {depth: 1, delay_min_ms: 0, delay_max_ms: 30}
  HARD: {depth: 2, delay_min_ms: 0, delay_max_ms: 20}
  EXPERT: {depth: 2, delay_min_ms: 0, delay_max_ms: 10}
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ps, err := LoadPresetFile(path)
	if err != nil {
		t.Fatalf("LoadPresetFile: %v", err)
	}
	if ps[Hard].Depth != 2 || ps[Hard].Name != Hard {
		t.Fatalf("unexpected HARD preset: %+v", ps[Hard])
	}
	if _, err := LoadPresetFile(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestBuildLimits(t *testing.T) {
	l, err := BuildLimits(DifficultyPreset{Name: Hard, Depth: 3, NodeCap: 100, MoveTimeMillis: 250})
	if err != nil {
		t.Fatalf("BuildLimits: %v", err)
	}
	if l.Depth != 3 || l.NodeCap != 100 || l.MoveTime != 250*time.Millisecond {
		t.Fatalf("unexpected limits: %s", l)
	}
	if _, err := BuildLimits(DifficultyPreset{Name: Hard}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResponseDelayWithinWindow(t *testing.T) {
	p := DifficultyPreset{DelayMinMillis: 200, DelayMaxMillis: 500}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		d := ResponseDelay(p, r)
		if d < 200*time.Millisecond || d > 500*time.Millisecond {
			t.Fatalf("delay %s outside window", d)
		}
	}
	fixed := DifficultyPreset{DelayMinMillis: 300, DelayMaxMillis: 300}
	if got := ResponseDelay(fixed, r); got != 300*time.Millisecond {
		t.Fatalf("fixed delay = %s", got)
	}
	if got := Remaining(time.Second, 1500*time.Millisecond); got != 0 {
		t.Fatalf("Remaining should clamp at zero, got %s", got)
	}
	if got := Remaining(time.Second, 400*time.Millisecond); got != 600*time.Millisecond {
		t.Fatalf("Remaining = %s", got)
	}
}
