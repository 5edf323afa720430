// Package config loads non-CLI runtime settings for a collocation job
// or action batch from a TOML file.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/stcorp/harp-go/collocate"
	"github.com/stcorp/harp-go/derive"
)

// Config is a TOML-encoded bundle of options for a host program
// embedding this module. It is a library entry point, not a CLI
// surface.
type Config struct {
	// DefaultUnits maps variable names to unit strings. It is parsed
	// from the file only: no apply method wires it, and neither the
	// collocation criteria nor the action executor read it.
	DefaultUnits map[string]string `toml:"default_units"`

	// Derivation bounds the derivation engine's rule search. Applied to
	// an *derive.Engine via ApplyDerivationLimits.
	Derivation struct {
		// MaxSearchDepth caps how many rules deep the engine chains
		// before giving up (0 means unlimited).
		MaxSearchDepth int `toml:"max_search_depth"`
	} `toml:"derivation"`

	// Geometry holds tolerances for the geo package's predicates.
	// Applied via AreaIntersectsCriterion.
	Geometry struct {
		// ToleranceMeters is the distance below which two points are
		// treated as coincident when testing ring intersection.
		ToleranceMeters float64 `toml:"tolerance_meters"`
	} `toml:"geometry"`

	// Collocation holds the two-stage nearest-neighbour directive pair,
	// in declared order: the first runs online during the sweep, the
	// second as a post-filter after it.
	Collocation struct {
		NearestNeighbour []NearestNeighbourConfig `toml:"nearest_neighbour"`
	} `toml:"collocation"`
}

// NearestNeighbourConfig is the TOML form of a collocate.NearestNeighbour
// directive.
type NearestNeighbourConfig struct {
	Criterion string `toml:"criterion"`
	Side      string `toml:"side"` // "a" or "b"
}

// Directives converts the configured nearest-neighbour entries into
// collocate.NearestNeighbour values, in declared order.
func (c *Config) Directives() ([]collocate.NearestNeighbour, error) {
	out := make([]collocate.NearestNeighbour, len(c.Collocation.NearestNeighbour))
	for i, nc := range c.Collocation.NearestNeighbour {
		var side collocate.NNSide
		switch nc.Side {
		case "a":
			side = collocate.ReduceA
		case "b":
			side = collocate.ReduceB
		default:
			return nil, fmt.Errorf("config: nearest_neighbour[%d]: side must be \"a\" or \"b\", got %q", i, nc.Side)
		}
		out[i] = collocate.NearestNeighbour{Criterion: nc.Criterion, Side: side}
	}
	return out, nil
}

// ApplyDerivationLimits configures e's rule-search depth cap from c. A
// zero MaxSearchDepth leaves e's existing (unbounded) setting alone.
func (c *Config) ApplyDerivationLimits(e *derive.Engine) {
	if c.Derivation.MaxSearchDepth > 0 {
		e.SetMaxDepth(c.Derivation.MaxSearchDepth)
	}
}

// AreaIntersectsCriterion builds a collocate.AreaIntersectsCriterion
// using the configured geometry tolerance.
func (c *Config) AreaIntersectsCriterion() collocate.AreaIntersectsCriterion {
	return collocate.AreaIntersectsCriterion{ToleranceMeters: c.Geometry.ToleranceMeters}
}

// Load reads and parses a TOML configuration file.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses a TOML configuration document from r.
func Decode(r io.Reader) (*Config, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := new(Config)
	if _, err := toml.Decode(string(body), cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if len(cfg.Collocation.NearestNeighbour) > 2 {
		return nil, fmt.Errorf("config: at most two nearest_neighbour directives are allowed, got %d", len(cfg.Collocation.NearestNeighbour))
	}
	return cfg, nil
}
