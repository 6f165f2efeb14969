package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// overrides holds raw env values. Nil means unset.
type overrides struct {
	DB                   *string `env:"DB"`
	LedgerAddress        *string `env:"LEDGER_ADDRESS"`
	LogLevel             *string `env:"LOG_LEVEL"`
	SweepDust            *bool   `env:"SWEEP_DUST"`
	ResumePolicy         *string `env:"RESUME_POLICY"`
	RecipientResumeDelay *int64  `env:"RECIPIENT_RESUME_DELAY"`
}

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "STREAMCTL_"

func applyEnv(cfg *Config, environ map[string]string) error {
	var o overrides
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.DB != nil {
		cfg.DB = *o.DB
	}
	if o.LedgerAddress != nil {
		cfg.LedgerAddress = *o.LedgerAddress
	}
	if o.LogLevel != nil {
		cfg.LogLevel = *o.LogLevel
	}
	if o.SweepDust != nil {
		cfg.Policy.SweepDust = *o.SweepDust
	}
	if o.ResumePolicy != nil {
		cfg.Policy.Resume = *o.ResumePolicy
	}
	if o.RecipientResumeDelay != nil {
		cfg.Policy.RecipientResumeDelay = *o.RecipientResumeDelay
	}
	return nil
}
