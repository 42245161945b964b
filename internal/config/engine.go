package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig tunes the scoring and scheduling behavior. All fields are
// optional; zero values fall back to the built-in defaults.
type EngineConfig struct {
	// Weights for the seven scoring factors. When set, they must be
	// non-negative and sum to 1.0 (within a small tolerance).
	Weights *Weights `yaml:"weights,omitempty"`

	// Multipliers overrides the per-priority-level score multipliers.
	Multipliers map[string]float64 `yaml:"multipliers,omitempty"`

	// Rules are JavaScript expressions applied to the composite score after
	// the weighted sum, before the priority multiplier. Each expression is
	// evaluated with `task`, `factors`, and `score` bound and must yield the
	// adjusted score (a number).
	Rules []string `yaml:"rules,omitempty"`

	// HorizonDays bounds how far ahead schedules are projected (default 7).
	HorizonDays int `yaml:"horizon_days,omitempty"`
}

// Weights holds the scoring factor weights.
type Weights struct {
	Urgency       float64 `yaml:"urgency"`
	Importance    float64 `yaml:"importance"`
	Effort        float64 `yaml:"effort"`
	Dependency    float64 `yaml:"dependency"`
	BusinessValue float64 `yaml:"business_value"`
	Risk          float64 `yaml:"risk"`
	Availability  float64 `yaml:"availability"`
}

// Sum returns the total of all factor weights.
func (w Weights) Sum() float64 {
	return w.Urgency + w.Importance + w.Effort + w.Dependency +
		w.BusinessValue + w.Risk + w.Availability
}

// LoadEngineConfig reads and validates a YAML engine config file.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine config %s: %w", path, err)
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse engine config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate engine config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks weight and multiplier constraints.
func (c *EngineConfig) Validate() error {
	if c.Weights != nil {
		w := *c.Weights
		for name, v := range map[string]float64{
			"urgency":        w.Urgency,
			"importance":     w.Importance,
			"effort":         w.Effort,
			"dependency":     w.Dependency,
			"business_value": w.BusinessValue,
			"risk":           w.Risk,
			"availability":   w.Availability,
		} {
			if v < 0 {
				return fmt.Errorf("weight %s must be non-negative, got %v", name, v)
			}
		}
		if sum := w.Sum(); math.Abs(sum-1.0) > 0.001 {
			return fmt.Errorf("weights must sum to 1.0, got %v", sum)
		}
	}
	for level, m := range c.Multipliers {
		if m <= 0 {
			return fmt.Errorf("multiplier for %q must be positive, got %v", level, m)
		}
	}
	if c.HorizonDays < 0 {
		return fmt.Errorf("horizon_days must be non-negative, got %d", c.HorizonDays)
	}
	return nil
}
