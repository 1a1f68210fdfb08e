// Package config loads CopperHead's server configuration: spec.md §6
// defaults, an optional JSON spec_file overlay, and CLI flag overrides
// applied on top, following the layering pattern of
// rswebdev-schlangen/server/main.go (defaults -> file -> flags).
//
// Config file hot-reload and the startup banner are out of scope
// (spec.md §1) and are not implemented here: LoadFile is read once.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// FruitSpec is one fruit type's spawn weight and lifetime, as loaded from
// a spec_file's "fruits" object.
type FruitSpec struct {
	Propensity float64 `json:"propensity"`
	Lifetime   int     `json:"lifetime"` // 0 means infinite, per spec.md §6
}

// Config is the full set of knobs spec.md §6 documents.
type Config struct {
	Arenas      int     `json:"arenas"`
	PointsToWin int     `json:"points_to_win"`
	ResetDelay  float64 `json:"reset_delay"`
	GridWidth   int     `json:"grid_width"`
	GridHeight  int     `json:"grid_height"`
	Speed       float64 `json:"speed"` // seconds per tick
	Bots        int     `json:"bots"`
	Host        string  `json:"host"`
	Port        int     `json:"port"`

	FruitWarning  int                  `json:"fruit_warning"`
	MaxFruits     int                  `json:"max_fruits"`
	FruitInterval int                  `json:"fruit_interval"`
	Fruits        map[string]FruitSpec `json:"fruits"`
}

// DefaultServerSettingsFile is auto-loaded when present and no positional
// spec_file argument was given.
const DefaultServerSettingsFile = "server-settings.json"

// Default returns the spec.md §6 default configuration.
func Default() Config {
	return Config{
		Arenas:      1,
		PointsToWin: 5,
		ResetDelay:  10,
		GridWidth:   30,
		GridHeight:  20,
		Speed:       0.15,
		Bots:        0,
		Host:        "",
		Port:        8765,

		FruitWarning:  20,
		MaxFruits:     1,
		FruitInterval: 1,
		Fruits: map[string]FruitSpec{
			"apple":  {Propensity: 1.0, Lifetime: 0},
			"grapes": {Propensity: 0.25, Lifetime: 150},
		},
	}
}

// LoadFile overlays fields present in the JSON file at path onto cfg.
// Fields the file omits keep cfg's existing value. Per spec.md §7, a
// missing or malformed file is a logged, non-fatal condition; the caller
// decides whether that's fatal for a CLI-supplied path.
func LoadFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, validate(cfg)
}

// validate rejects out-of-range values per spec.md §6's flag constraints.
func validate(cfg Config) error {
	switch {
	case cfg.Arenas < 1:
		return fmt.Errorf("config: arenas must be >= 1, got %d", cfg.Arenas)
	case cfg.PointsToWin < 1:
		return fmt.Errorf("config: points-to-win must be >= 1, got %d", cfg.PointsToWin)
	case cfg.ResetDelay < 0:
		return fmt.Errorf("config: reset-delay must be >= 0, got %f", cfg.ResetDelay)
	case cfg.GridWidth < 5 || cfg.GridHeight < 5:
		return fmt.Errorf("config: grid dimensions must each be >= 5, got %dx%d", cfg.GridWidth, cfg.GridHeight)
	case cfg.Speed <= 0:
		return fmt.Errorf("config: speed must be > 0, got %f", cfg.Speed)
	case cfg.Bots < 0:
		return fmt.Errorf("config: bots must be >= 0, got %d", cfg.Bots)
	}
	return nil
}

// Validate exposes validate for callers assembling a Config from flags.
func Validate(cfg Config) error {
	return validate(cfg)
}
