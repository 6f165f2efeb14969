// Package config loads streamctl configuration.
//
// Values come from three layers, later ones winning:
//
//   - defaults in the embedded CUE schema (#Config)
//   - an optional CUE file unified with that schema
//   - STREAMCTL_* environment variables
//
// The merged result is checked against the schema again, so a bad env value
// fails the same way a bad file value does.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded #Config.
type Config struct {
	DB            string `json:"db"`
	LedgerAddress string `json:"ledger_address"`
	LogLevel      string `json:"log_level"`
	Policy        Policy `json:"policy"`
}

// Policy is the decoded #Policy.
type Policy struct {
	SweepDust            bool   `json:"sweep_dust"`
	Resume               string `json:"resume"`
	RecipientResumeDelay int64  `json:"recipient_resume_delay"`
}

// Load reads path (may be empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil map reads the
// process environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		return Config{}, err
	}

	v := schema
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		file := ctx.CompileBytes(data, cue.Filename(path))
		if err := file.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		v = schema.Unify(file)
	}

	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg, environ); err != nil {
		return Config{}, err
	}

	// Round-trip through the schema so env values meet the same constraints.
	merged := schema.Unify(ctx.Encode(cfg))
	if _, err := decode(merged); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the schema defaults.
func Default() Config {
	ctx := cuecontext.New()
	schema, err := compileSchema(ctx)
	if err != nil {
		panic(err)
	}
	cfg, err := decode(schema)
	if err != nil {
		panic(err)
	}
	return cfg
}

// EnginePolicy converts the policy block for engine.WithPolicy.
func (c Config) EnginePolicy() (engine.Policy, error) {
	resume, err := engine.ParseResumePolicy(c.Policy.Resume)
	if err != nil {
		return engine.Policy{}, err
	}
	return engine.Policy{
		SweepDust:            c.Policy.SweepDust,
		Resume:               resume,
		RecipientResumeDelay: c.Policy.RecipientResumeDelay,
	}, nil
}

// Ledger returns the configured ledger account.
func (c Config) Ledger() ir.Address {
	return ir.Address(c.LedgerAddress)
}

func compileSchema(ctx *cue.Context) (cue.Value, error) {
	root := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return root.LookupPath(cue.ParsePath("#Config")), nil
}

func decode(v cue.Value) (Config, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}
