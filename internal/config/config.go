// Package config loads the server configuration from an HCL file and
// FAIRTABLE_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/fairtable/internal/shuffle"
	"github.com/lox/fairtable/internal/table"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FAIRTABLE_"

// Default buy-in bounds in big blinds.
const (
	defaultBuyInMinBlinds = 50
	defaultBuyInMaxBlinds = 500
)

// maxBigBlind keeps the default buy-in bounds representable.
const maxBigBlind = math.MaxInt64 / defaultBuyInMaxBlinds

// Config represents the complete server configuration.
type Config struct {
	Server  *Server  `hcl:"server,block"`
	Entropy *Entropy `hcl:"entropy,block"`
	Dealer  *Dealer  `hcl:"dealer,block"`
	Tables  []Table  `hcl:"table,block"`
}

// Server contains process-level settings.
type Server struct {
	Address        string `hcl:"address,optional"`
	LogLevel       string `hcl:"log_level,optional"`
	LogFormat      string `hcl:"log_format,optional"`
	Database       string `hcl:"database,optional"`
	HandHistoryDir string `hcl:"hand_history_dir,optional"`
	FlushInterval  string `hcl:"flush_interval,optional"`
	OTelEndpoint   string `hcl:"otel_endpoint,optional"`
}

// Entropy configures the sources mixed into every deck seed. The system
// source is always used and required.
type Entropy struct {
	Jitter         bool   `hcl:"jitter,optional"`
	JitterSamples  int    `hcl:"jitter_samples,optional"`
	BeaconURL      string `hcl:"beacon_url,optional"`
	BeaconTimeout  string `hcl:"beacon_timeout,optional"`
	BeaconRequired bool   `hcl:"beacon_required,optional"`
	MaxAttempts    int    `hcl:"max_attempts,optional"`
}

// Dealer configures deck commitments.
type Dealer struct {
	CommitmentScheme string `hcl:"commitment_scheme,optional"`
	SignCommitments  bool   `hcl:"sign_commitments,optional"`
	// SigningKey is a hex Ed25519 scalar; empty generates one per process.
	SigningKey string `hcl:"signing_key,optional"`
}

// Table defines one table started with the server.
type Table struct {
	ID            string `hcl:"id,label"`
	SmallBlind    int64  `hcl:"small_blind"`
	BigBlind      int64  `hcl:"big_blind"`
	Ante          int64  `hcl:"ante,optional"`
	MaxSeats      int    `hcl:"max_seats,optional"`
	BuyInMin      int64  `hcl:"buy_in_min,optional"`
	BuyInMax      int64  `hcl:"buy_in_max,optional"`
	TimeBank      string `hcl:"time_bank,optional"`
	AutoStart     bool   `hcl:"auto_start,optional"`
	NextHandDelay string `hcl:"next_hand_delay,optional"`
	Betting       string `hcl:"betting,optional"`
}

// overrides are the settings environment variables may replace.
type overrides struct {
	Address        string `env:"ADDRESS"`
	LogLevel       string `env:"LOG_LEVEL"`
	LogFormat      string `env:"LOG_FORMAT"`
	Database       string `env:"DATABASE"`
	HandHistoryDir string `env:"HAND_HISTORY_DIR"`
	OTelEndpoint   string `env:"OTEL_ENDPOINT"`
	BeaconURL      string `env:"BEACON_URL"`
	Scheme         string `env:"COMMITMENT_SCHEME"`
	SigningKey     string `env:"SIGNING_KEY"`
}

// Default returns the configuration used when no file exists: a single
// six-seat table with 1/2 blinds.
func Default() *Config {
	cfg := &Config{
		Tables: []Table{{ID: "main", SmallBlind: 1, BigBlind: 2}},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename, falling back to Default when it does not exist,
// then applies environment overrides.
func Load(filename string) (*Config, error) {
	var cfg *Config
	src, err := os.ReadFile(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if cfg, err = Parse(src, filename); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes HCL source and applies defaults.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ApplyEnv overrides settings from FAIRTABLE_ variables. A nil environ
// reads the process environment.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var ov overrides
	opts := env.Options{Prefix: EnvPrefix, Environment: environ}
	if err := env.ParseWithOptions(&ov, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Server.Address, ov.Address)
	set(&c.Server.LogLevel, ov.LogLevel)
	set(&c.Server.LogFormat, ov.LogFormat)
	set(&c.Server.Database, ov.Database)
	set(&c.Server.HandHistoryDir, ov.HandHistoryDir)
	set(&c.Server.OTelEndpoint, ov.OTelEndpoint)
	set(&c.Entropy.BeaconURL, ov.BeaconURL)
	set(&c.Dealer.CommitmentScheme, ov.Scheme)
	set(&c.Dealer.SigningKey, ov.SigningKey)
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &Server{}
	}
	if c.Entropy == nil {
		c.Entropy = &Entropy{}
	}
	if c.Dealer == nil {
		c.Dealer = &Dealer{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "console"
	}
	if c.Server.FlushInterval == "" {
		c.Server.FlushInterval = "10s"
	}
	if c.Entropy.JitterSamples == 0 {
		c.Entropy.JitterSamples = 2048
	}
	if c.Entropy.BeaconTimeout == "" {
		c.Entropy.BeaconTimeout = "2s"
	}
	if c.Entropy.MaxAttempts == 0 {
		c.Entropy.MaxAttempts = 3
	}
	if c.Dealer.CommitmentScheme == "" {
		c.Dealer.CommitmentScheme = shuffle.HashScheme{}.Name()
	}
	for i := range c.Tables {
		t := &c.Tables[i]
		if t.MaxSeats == 0 {
			t.MaxSeats = 6
		}
		// Oversized blinds keep zero bounds and fail validation.
		if t.BuyInMin == 0 && t.BigBlind <= maxBigBlind {
			t.BuyInMin = t.BigBlind * defaultBuyInMinBlinds
		}
		if t.BuyInMax == 0 && t.BigBlind <= maxBigBlind {
			t.BuyInMax = t.BigBlind * defaultBuyInMaxBlinds
		}
		if t.TimeBank == "" {
			t.TimeBank = "30s"
		}
		if t.NextHandDelay == "" {
			t.NextHandDelay = "3s"
		}
		if t.Betting == "" {
			t.Betting = "no-limit"
		}
	}
}

// Validate checks every setting the server depends on.
func (c *Config) Validate() error {
	switch c.Server.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("server: log_format must be console or json, got %q", c.Server.LogFormat)
	}
	if _, err := duration("server.flush_interval", c.Server.FlushInterval); err != nil {
		return err
	}
	if _, err := duration("entropy.beacon_timeout", c.Entropy.BeaconTimeout); err != nil {
		return err
	}
	if c.Entropy.MaxAttempts < 1 {
		return fmt.Errorf("entropy: max_attempts must be positive")
	}
	if _, err := shuffle.LookupScheme(c.Dealer.CommitmentScheme); err != nil {
		return fmt.Errorf("dealer: %w", err)
	}
	if len(c.Tables) == 0 {
		return fmt.Errorf("at least one table must be configured")
	}
	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if seen[t.ID] {
			return fmt.Errorf("table %s: defined twice", t.ID)
		}
		seen[t.ID] = true
		if _, err := t.TableConfig(); err != nil {
			return err
		}
	}
	return nil
}

// FlushInterval is the hand history flush interval.
func (c *Config) FlushInterval() time.Duration {
	d, _ := duration("server.flush_interval", c.Server.FlushInterval)
	return d
}

// BeaconTimeout bounds each beacon request.
func (c *Config) BeaconTimeout() time.Duration {
	d, _ := duration("entropy.beacon_timeout", c.Entropy.BeaconTimeout)
	return d
}

// TableConfig converts the block to a validated table configuration.
func (t Table) TableConfig() (table.Config, error) {
	if t.Betting != "no-limit" {
		return table.Config{}, fmt.Errorf("table %s: betting %q is not supported", t.ID, t.Betting)
	}
	if t.BigBlind > maxBigBlind {
		return table.Config{}, fmt.Errorf("table %s: big_blind %d exceeds %d", t.ID, t.BigBlind, int64(maxBigBlind))
	}
	timeBank, err := duration("table "+t.ID+" time_bank", t.TimeBank)
	if err != nil {
		return table.Config{}, err
	}
	delay, err := duration("table "+t.ID+" next_hand_delay", t.NextHandDelay)
	if err != nil {
		return table.Config{}, err
	}
	cfg := table.Config{
		ID:            t.ID,
		SmallBlind:    t.SmallBlind,
		BigBlind:      t.BigBlind,
		Ante:          t.Ante,
		MaxSeats:      t.MaxSeats,
		BuyInMin:      t.BuyInMin,
		BuyInMax:      t.BuyInMax,
		TimeBank:      timeBank,
		AutoStart:     t.AutoStart,
		NextHandDelay: delay,
	}
	if err := cfg.Validate(); err != nil {
		return table.Config{}, fmt.Errorf("table %s: %w", t.ID, err)
	}
	return cfg, nil
}

func duration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", name, s)
	}
	return d, nil
}
