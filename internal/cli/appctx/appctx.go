// Package appctx provides a shared bootstrap helper for CLI commands.
// It centralizes config loading, logger construction and journal opening
// to reduce boilerplate across commands.
package appctx

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lherron/relink/internal/config"
	"github.com/lherron/relink/internal/journal"
	"github.com/lherron/relink/internal/logging"
)

// App holds the shared application context for commands.
type App struct {
	// Config is the loaded configuration with flag overrides applied
	Config *config.Config

	// Logger writes to the command's stderr
	Logger *zap.Logger

	// DB and Journal are nil unless NeedsJournal is set
	DB      *journal.DB
	Journal *journal.Journal
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.DB != nil {
		a.DB.Close()
		a.DB = nil
		a.Journal = nil
	}
}

// Options configures the bootstrap behavior.
type Options struct {
	// NeedsJournal opens and migrates the run journal
	NeedsJournal bool

	// Sections are the config sections the command talks to; they are
	// validated before the command runs
	Sections []config.Section
}

// RunFunc is the signature for command run functions.
type RunFunc func(app *App, cmd *cobra.Command, args []string) error

// WithApp wraps a command's run function with shared bootstrap logic.
// The journal is closed automatically when the wrapped function returns.
func WithApp(opts Options, fn RunFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := Bootstrap(cmd, opts)
		if err != nil {
			return err
		}
		defer app.Close()

		return fn(app, cmd, args)
	}
}

// Bootstrap initializes the App according to the given options.
// Callers are responsible for calling App.Close() when done.
func Bootstrap(cmd *cobra.Command, opts Options) (*App, error) {
	cfg, err := config.Load(flagValue(cmd, "config"))
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(opts.Sections...); err != nil {
		return nil, err
	}

	debug, _ := strconv.ParseBool(flagValue(cmd, "debug"))
	logger, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		Debug: debug,
		Color: logging.IsTerminal(cmd.ErrOrStderr()),
		Out:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, &config.ConfigurationError{Err: err}
	}

	app := &App{Config: cfg, Logger: logger}

	if opts.NeedsJournal {
		database, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		applied, err := database.Migrate()
		if err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate journal: %w", err)
		}
		if len(applied) > 0 {
			logger.Debug("migrated journal", zap.String("path", cfg.JournalPath), zap.Strings("applied", applied))
		}
		app.DB = database
		app.Journal = journal.New(database)
	}

	return app, nil
}

// applyFlags gives explicitly set flags the last word over every other
// configuration layer
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	strs := map[string]*string{
		"log-level":  &cfg.LogLevel,
		"output":     &cfg.Output,
		"journal":    &cfg.JournalPath,
		"notebook":   &cfg.Source.Notebook,
		"source-csv": &cfg.Source.CSV,
		"scheme":     &cfg.Source.Scheme,
	}
	for name, dst := range strs {
		if changed(cmd, name) {
			*dst = flagValue(cmd, name)
		}
	}

	ints := map[string]*int{
		"jobs":      &cfg.Jobs,
		"page-size": &cfg.Source.PageSize,
	}
	for name, dst := range ints {
		if !changed(cmd, name) {
			continue
		}
		n, err := strconv.Atoi(flagValue(cmd, name))
		if err != nil {
			return &config.ConfigurationError{Err: fmt.Errorf("--%s: %w", name, err)}
		}
		*dst = n
	}
	return nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

func flagValue(cmd *cobra.Command, name string) string {
	if f := cmd.Flag(name); f != nil {
		return f.Value.String()
	}
	return ""
}
