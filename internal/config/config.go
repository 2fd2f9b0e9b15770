package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	DatabaseDialect string `yaml:"database_dialect"` // sqlite3 or postgres
	DatabaseURL     string `yaml:"database_url"`
	JWTSecret       string `yaml:"jwt_secret"`
	LogLevel        string `yaml:"log_level"`

	MetricsConfig struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Scheduling Scheduling `yaml:"scheduling"`
}

// Scheduling holds the tuning constants of the estimation and planning core.
type Scheduling struct {
	// MaxSpeedEfficiencyFactor discounts peak machine speed to the rate
	// sustained over a full run.
	MaxSpeedEfficiencyFactor float64 `yaml:"max_speed_efficiency_factor"`

	// BufferFraction pads every breakdown for unforeseen interruptions.
	BufferFraction float64 `yaml:"buffer_fraction"`

	// LearningFactor is applied to history-derived estimates.
	LearningFactor float64 `yaml:"learning_factor"`

	// StitchRangeFraction is the ± band around a requested stitch count
	// when retrieving comparable runs.
	StitchRangeFraction float64 `yaml:"stitch_range_fraction"`

	// HistorySampleCap bounds every history query.
	HistorySampleCap int `yaml:"history_sample_cap"`

	ConfidenceHigh   int `yaml:"confidence_high"`
	ConfidenceMedium int `yaml:"confidence_medium"`

	// SearchHorizonDays bounds find_free_slot before NoFreeSlot.
	SearchHorizonDays int `yaml:"search_horizon_days"`
}

// DefaultScheduling returns the scheduling constants the workshop runs with
// unless overridden in the config file.
func DefaultScheduling() Scheduling {
	return Scheduling{
		MaxSpeedEfficiencyFactor: 0.70,
		BufferFraction:           0.10,
		LearningFactor:           0.95,
		StitchRangeFraction:      0.20,
		HistorySampleCap:         50,
		ConfidenceHigh:           20,
		ConfidenceMedium:         10,
		SearchHorizonDays:        30,
	}
}

// PriorityRank maps order priorities to their numeric rank; lower runs first.
// The planning view and the scheduler share this single mapping.
var PriorityRank = map[string]int{
	"urgent": 1,
	"high":   2,
	"normal": 3,
	"low":    4,
}

// RankOf returns the numeric rank of a priority label, treating unknown
// labels as normal.
func RankOf(priority string) int {
	if r, ok := PriorityRank[priority]; ok {
		return r
	}
	return PriorityRank["normal"]
}

// Load reads the configuration from a YAML file and fills in defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DatabaseDialect: "sqlite3",
		DatabaseURL:     "stitchadmin.db",
		LogLevel:        "info",
		Scheduling:      DefaultScheduling(),
	}
	cfg.MetricsConfig.Enabled = true
	cfg.MetricsConfig.Port = 9090
	cfg.MetricsConfig.Path = "/metrics"

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the core cannot run with.
func (c *Config) Validate() error {
	s := c.Scheduling
	if s.MaxSpeedEfficiencyFactor <= 0 || s.MaxSpeedEfficiencyFactor > 1 {
		return fmt.Errorf("max_speed_efficiency_factor must be in (0, 1]")
	}
	if s.BufferFraction < 0 {
		return fmt.Errorf("buffer_fraction must not be negative")
	}
	if s.HistorySampleCap <= 0 {
		return fmt.Errorf("history_sample_cap must be positive")
	}
	if s.ConfidenceMedium > s.ConfidenceHigh {
		return fmt.Errorf("confidence_medium must not exceed confidence_high")
	}
	if c.DatabaseDialect != "sqlite3" && c.DatabaseDialect != "postgres" {
		return fmt.Errorf("unsupported database dialect: %s", c.DatabaseDialect)
	}
	return nil
}
