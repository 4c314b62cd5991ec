package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/posync/internal/connectivity"
	"github.com/roach88/posync/internal/engine"
	"github.com/roach88/posync/internal/gateway"
	"github.com/roach88/posync/internal/logging"
	"github.com/roach88/posync/internal/pos"
	"github.com/roach88/posync/internal/store"
)

// probeTimeout bounds the one-off connectivity check before a write.
const probeTimeout = 2 * time.Second

// app wires the store, gateway, oracle, and engine for one command.
type app struct {
	opts   *RootOptions
	out    *OutputFormatter
	logger *zap.Logger
	store  *store.Store
	oracle *connectivity.Oracle
	prober connectivity.Prober
	engine *engine.Engine
}

// newFormatter builds the formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger returns the test logger if set, otherwise builds one from config.
func newLogger(opts *RootOptions) (*zap.Logger, error) {
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	return logging.New(opts.Config.LogLevel, opts.Format == "text")
}

// openApp opens the database and builds the engine. The oracle starts
// offline; call probe to learn the real state.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)

	logger, err := newLogger(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	out.VerboseLog("Opening database %s", opts.Config.DBPath)
	var storeOpts []store.Option
	if opts.Now != nil {
		storeOpts = append(storeOpts, store.WithClock(opts.Now))
	}
	st, err := store.Open(opts.Config.DBPath, storeOpts...)
	if err != nil {
		_ = logger.Sync()
		return nil, out.Fail("failed to open database", err)
	}

	cfg := opts.Config
	oracle := connectivity.NewOracle(false, logger)
	gw := gateway.New(cfg.RemoteURL, cfg.RequestTimeout, logger)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithRetryInterval(cfg.RetryInterval),
		engine.WithMaxBackoff(cfg.MaxBackoff),
	}
	if opts.Now != nil {
		engineOpts = append(engineOpts, engine.WithClock(clockFunc(opts.Now)))
	}
	if opts.Refs != nil {
		engineOpts = append(engineOpts, engine.WithRefGenerator(opts.Refs))
	}

	return &app{
		opts:   opts,
		out:    out,
		logger: logger,
		store:  st,
		oracle: oracle,
		prober: &connectivity.HTTPProber{BaseURL: cfg.RemoteURL, Client: gw.Client},
		engine: engine.New(st, gw, oracle, engineOpts...),
	}, nil
}

// Close releases the database and flushes logs.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// probe checks connectivity once and records it on the oracle.
func (a *app) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	online := connectivity.Check(ctx, a.oracle, a.prober)
	a.out.VerboseLog("Remote %s is %s", a.opts.Config.RemoteURL, onlineWord(online))
	return online
}

// now returns the current time from the test hook or the system clock.
func (a *app) now() time.Time {
	if a.opts.Now != nil {
		return a.opts.Now()
	}
	return time.Now()
}

// dateOrToday parses s, defaulting to today's date.
func (a *app) dateOrToday(s string) (pos.CalendarDate, error) {
	if s == "" {
		return pos.DateOf(a.now()), nil
	}
	return pos.ParseDate(s)
}

// clockFunc adapts a function to engine.Clock.
type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

func onlineWord(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

// describeOutcome renders an engine outcome for text output.
func describeOutcome(out engine.Outcome) string {
	switch out.Status {
	case engine.StatusDelivered:
		return "synced"
	case engine.StatusQueued:
		if out.Err != nil {
			return "queued, will sync later (" + out.Err.Error() + ")"
		}
		return "queued, will sync later"
	case engine.StatusUnsynced:
		return "saved locally but NOT queued for sync (" + out.Err.Error() + ")"
	case engine.StatusHeld:
		return "saved locally, not synced (" + out.Err.Error() + ")"
	}
	return out.Status.String()
}

// outcomeJSON is the JSON form of an engine outcome.
type outcomeJSON struct {
	Status  string `json:"status"`
	EntryID int64  `json:"entry_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func toOutcomeJSON(out engine.Outcome) outcomeJSON {
	o := outcomeJSON{Status: out.Status.String(), EntryID: out.EntryID}
	if out.Err != nil {
		o.Error = out.Err.Error()
	}
	return o
}
