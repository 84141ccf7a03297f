package engine

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Difficulty is an ordered tier; see Rank.
type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
	Expert Difficulty = "EXPERT"
)

var difficultyOrder = []Difficulty{Easy, Medium, Hard, Expert}

// Difficulties lists all tiers from weakest to strongest.
func Difficulties() []Difficulty { return append([]Difficulty(nil), difficultyOrder...) }

// Rank is 0 for EASY and grows with strength; -1 for unknown values.
func (d Difficulty) Rank() int {
	for i, v := range difficultyOrder {
		if v == d {
			return i
		}
	}
	return -1
}

// ParseDifficulty accepts tier names and a few friendly aliases.
func ParseDifficulty(s string) (Difficulty, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "BEGINNER":
		v = string(Easy)
	case "INTERMEDIATE", "NORMAL":
		v = string(Medium)
	case "ADVANCED":
		v = string(Hard)
	case "MASTER":
		v = string(Expert)
	}
	d := Difficulty(v)
	if d.Rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
	}
	return d, nil
}

type DifficultyPreset struct {
	Name           Difficulty `yaml:"-"`
	Depth          int        `yaml:"depth"`
	NodeCap        int        `yaml:"node_cap"`
	MoveTimeMillis int        `yaml:"move_time_ms"`
	DelayMinMillis int        `yaml:"delay_min_ms"`
	DelayMaxMillis int        `yaml:"delay_max_ms"`
	// ApproxRating is the strength used when rating a human against this tier.
	ApproxRating int `yaml:"approx_rating"`
}

//go:embed presets.yaml
var defaultPresetsYAML []byte

type presetFile struct {
	Presets map[string]DifficultyPreset `yaml:"presets"`
}

// LoadPresets parses a presets document and validates every tier. All four
// tiers must be present.
func LoadPresets(raw []byte) (map[Difficulty]DifficultyPreset, error) {
	var f presetFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	out := make(map[Difficulty]DifficultyPreset, len(f.Presets))
	for name, p := range f.Presets {
		d, err := ParseDifficulty(name)
		if err != nil {
			return nil, err
		}
		p.Name = d
		if err := ValidatePreset(p); err != nil {
			return nil, fmt.Errorf("preset %s: %w", d, err)
		}
		out[d] = p
	}
	for _, d := range difficultyOrder {
		if _, ok := out[d]; !ok {
			return nil, fmt.Errorf("preset %s missing", d)
		}
	}
	if err := validateOrdering(out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadPresetFile reads presets from path, or the embedded defaults when path
// is empty.
func LoadPresetFile(path string) (map[Difficulty]DifficultyPreset, error) {
	if strings.TrimSpace(path) == "" {
		return LoadPresets(defaultPresetsYAML)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return LoadPresets(raw)
}

func ValidatePreset(p DifficultyPreset) error {
	switch {
	case p.Depth <= 0 || p.Depth > 8:
		return fmt.Errorf("depth %d out of range 1-8", p.Depth)
	case p.NodeCap < 0:
		return fmt.Errorf("node cap must be >= 0: %d", p.NodeCap)
	case p.MoveTimeMillis < 0:
		return fmt.Errorf("move time must be >= 0: %d", p.MoveTimeMillis)
	case p.DelayMinMillis < 0:
		return fmt.Errorf("delay min must be >= 0: %d", p.DelayMinMillis)
	case p.DelayMaxMillis < p.DelayMinMillis:
		return fmt.Errorf("delay max (%d) must not be below delay min (%d)", p.DelayMaxMillis, p.DelayMinMillis)
	case p.ApproxRating < 0:
		return fmt.Errorf("approx rating must be >= 0: %d", p.ApproxRating)
	}
	return nil
}

// validateOrdering enforces that stronger tiers search at least as deep and
// wait within a window no wider than weaker ones.
func validateOrdering(ps map[Difficulty]DifficultyPreset) error {
	tiers := Difficulties()
	for i := 1; i < len(tiers); i++ {
		prev, cur := ps[tiers[i-1]], ps[tiers[i]]
		if cur.Depth < prev.Depth {
			return fmt.Errorf("preset %s searches shallower than %s", cur.Name, prev.Name)
		}
		if cur.DelayMaxMillis-cur.DelayMinMillis > prev.DelayMaxMillis-prev.DelayMinMillis {
			return fmt.Errorf("preset %s delay window wider than %s", cur.Name, prev.Name)
		}
	}
	return nil
}
