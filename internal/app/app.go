package app

import (
	"io"
	"log/slog"

	"github.com/ocommowi/regeval/internal/invoke"
	"github.com/ocommowi/regeval/internal/toolconfig"
)

// LogConfig selects the log output.
type LogConfig struct {
	Level  string
	Format string
}

// App encapsulates the application's dependencies and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	tools   *toolconfig.Config
	invoker invoke.Invoker
}

// Option customises an App.
type Option func(*App)

// WithInvoker replaces the process-spawning invoker, mostly for tests.
func WithInvoker(inv invoke.Invoker) Option {
	return func(a *App) { a.invoker = inv }
}

// NewApp builds an App around an already loaded tool configuration. Logs go
// to outW; so does the standard error of external tools.
func NewApp(outW io.Writer, logCfg LogConfig, tools *toolconfig.Config, opts ...Option) *App {
	logger := newLogger(logCfg.Level, logCfg.Format, outW)
	logger.Debug("Logger configured successfully.")

	a := &App{
		outW:   outW,
		logger: logger,
		tools:  tools,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.invoker == nil {
		a.invoker = invoke.New(outW)
	}
	logger.Debug("Application ready.", "anima", tools.AnimaDir, "scripts", tools.ScriptsDir)
	return a
}
