package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/roach88/tokenstream/internal/config"
	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/logging"
	"github.com/roach88/tokenstream/internal/store"
)

// session is one command's view of the ledger: config, logger, store,
// vault and an engine restored from the store.
type session struct {
	cfg    config.Config
	log    *zap.Logger
	store  *store.Store
	vault  *store.Vault
	engine *engine.Engine
}

// openSession resolves config (file, then env, then flags) and restores
// the engine from the database.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}

	var log *zap.Logger
	if opts.Verbose {
		log, err = logging.NewDevelopment()
	} else {
		log, err = logging.New(cfg.LogLevel)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	policy, err := cfg.EnginePolicy()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid policy", err)
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	vault := st.Vault(cfg.Ledger())
	engOpts := []engine.Option{
		engine.WithJournal(st),
		engine.WithLogger(log),
		engine.WithPolicy(policy),
		engine.WithLedgerAddress(cfg.Ledger()),
	}
	if opts.Now != 0 {
		engOpts = append(engOpts, engine.WithClock(engine.FixedClock(time.Unix(opts.Now, 0))))
	}
	eng, err := engine.New(vault, engOpts...)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to build engine", err)
	}

	snap, err := st.Load(ctx)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load ledger", err)
	}
	if err := eng.Restore(snap); err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore ledger", err)
	}
	log.Debug("session opened",
		zap.String("db", cfg.DB),
		zap.String("ledger", cfg.LedgerAddress),
		zap.Int("streams", len(snap.Streams)))

	return &session{cfg: cfg, log: log, store: st, vault: vault, engine: eng}, nil
}

func (s *session) Close() error {
	_ = s.log.Sync()
	return s.store.Close()
}

// withSession opens a session, runs fn and closes it.
func withSession(opts *RootOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := context.Background()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

var validate = validator.New()

// checkRequest validates a request struct's tags and reports the first
// failing field by name.
func checkRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("invalid %s: failed %q", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("invalid %s: failed %q (%s)", fe.Field(), fe.Tag(), fe.Param())
		}
		return NewExitError(ExitCommandError, msg)
	}
	return WrapExitError(ExitCommandError, "invalid request", err)
}

// ledgerError maps an engine rejection to a failure exit and everything
// else to a command error.
func ledgerError(out *OutputFormatter, err error) error {
	if code := ir.CodeOf(err); code != "" {
		var ie *ir.Error
		details := map[string]any{}
		if errors.As(err, &ie) && ie.StreamID != 0 {
			details["stream_id"] = ie.StreamID
		}
		if out.Format == "json" {
			if err := out.Error(string(code), err.Error(), details); err != nil {
				return err
			}
			return NewExitError(ExitFailure, string(code))
		}
		return WrapExitError(ExitFailure, string(code), err)
	}
	return WrapExitError(ExitCommandError, "operation failed", err)
}

// parseStreamID parses a stream id argument.
func parseStreamID(arg string) (ir.StreamID, error) {
	id, err := ir.ParseStreamID(arg)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "invalid stream id", err)
	}
	return id, nil
}
