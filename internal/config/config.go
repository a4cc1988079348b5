// Package config provides run-level tunables, loaded from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Config holds every run-level tunable. YAML supplies the base values;
// DOMACITY_* environment variables override them.
type Config struct {
	DesignPath string `yaml:"design" env:"DOMACITY_DESIGN"`
	Steps      int    `yaml:"steps" env:"DOMACITY_STEPS"`
	Seed       int64  `yaml:"seed" env:"DOMACITY_SEED"`
	BurnIn     int    `yaml:"burnIn" env:"DOMACITY_BURN_IN"`

	// Agent decision tunables.
	SampleSize       int     `yaml:"sampleSize"`       // landlord market sample per neighborhood
	TenantSampleSize int     `yaml:"tenantSampleSize"` // vacancies a searching tenant inspects
	TrendMonths      int     `yaml:"trendMonths"`      // regression window length
	MovingPenalty    float64 `yaml:"movingPenalty"`
	RentIncreaseRate float64 `yaml:"rentIncreaseRate"`

	// Cooperative fund.
	FundStartingFunds   float64 `yaml:"fundStartingFunds"`
	FundRentShare       float64 `yaml:"fundRentShare"` // fraction of rent converted to shares
	FundReserves        float64 `yaml:"fundReserves"`
	FundExpenses        float64 `yaml:"fundExpenses"`
	FundRentIncomeLimit float64 `yaml:"fundRentIncomeLimit"` // 0 disables the cap

	// City dynamics.
	DesirabilityStretch float64 `yaml:"desirabilityStretch"`
	BaseAppreciation    float64 `yaml:"baseAppreciation"`

	// Social contagion.
	FriendLimit       int     `yaml:"friendLimit"`
	EncounterRate     float64 `yaml:"encounterRate"`
	TransmissionRate  float64 `yaml:"transmissionRate"`
	MaxContagionDepth int     `yaml:"maxContagionDepth"`
	ContributeProb    float64 `yaml:"contributeProb"`
	ContributePercent float64 `yaml:"contributePercent"`

	// Host concerns.
	ListenAddr   string `yaml:"listenAddr" env:"DOMACITY_LISTEN_ADDR"`
	DatabasePath string `yaml:"databasePath" env:"DOMACITY_DB"`
	LogLevel     string `yaml:"logLevel" env:"DOMACITY_LOG_LEVEL"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		DesignPath: "designs/city.yaml",
		Steps:      100,
		Seed:       0,
		BurnIn:     0,

		SampleSize:       10,
		TenantSampleSize: 30,
		TrendMonths:      12,
		MovingPenalty:    10,
		RentIncreaseRate: 1.05,

		FundStartingFunds:   0,
		FundRentShare:       0.1,
		FundReserves:        0.05,
		FundExpenses:        0.05,
		FundRentIncomeLimit: 0,

		DesirabilityStretch: 48,
		BaseAppreciation:    1.02,

		FriendLimit:       10,
		EncounterRate:     0.3,
		TransmissionRate:  0.3,
		MaxContagionDepth: 3,
		ContributeProb:    0.1,
		ContributePercent: 0.05,

		ListenAddr:   ":8080",
		DatabasePath: "data/domacity.db",
		LogLevel:     "info",
	}
}

// Load reads a YAML config over the defaults, then applies environment
// overrides. A missing file is fine; a malformed one is fatal.
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would degenerate into divide-by-zero or
// runaway math mid-run.
func (c *Config) Validate() error {
	if c.Steps < 1 {
		return fmt.Errorf("steps must be at least 1, got %d", c.Steps)
	}
	if c.TrendMonths < 2 {
		return fmt.Errorf("trendMonths must be at least 2, got %d", c.TrendMonths)
	}
	if c.SampleSize < 1 || c.TenantSampleSize < 1 {
		return fmt.Errorf("sample sizes must be at least 1")
	}
	if c.DesirabilityStretch <= 0 {
		return fmt.Errorf("desirabilityStretch must be positive, got %v", c.DesirabilityStretch)
	}
	if c.FundReserves+c.FundExpenses >= 1 {
		return fmt.Errorf("fund reserves (%v) + expenses (%v) must leave room for dividends",
			c.FundReserves, c.FundExpenses)
	}
	if c.EncounterRate < 0 || c.EncounterRate > 1 || c.TransmissionRate < 0 || c.TransmissionRate > 1 {
		return fmt.Errorf("contagion rates must be in [0, 1]")
	}
	return nil
}
