package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ocommowi/regeval/internal/app"
	"github.com/ocommowi/regeval/internal/toolconfig"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// globalFlags are shared by every command.
type globalFlags struct {
	dataRoot   string
	configPath string
	logLevel   string
	logFormat  string
}

// runner carries what the commands need beyond their own flags.
type runner struct {
	outW    io.Writer
	opts    []app.Option
	global  globalFlags
	started bool
}

// Execute parses args, runs the selected command and maps every failure to
// an *ExitError: 2 for usage errors, 1 for everything else.
func Execute(ctx context.Context, args []string, outW io.Writer, opts ...app.Option) error {
	r := &runner{outW: outW, opts: opts}
	root := r.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if !r.started {
		return usageError("%v", err)
	}
	return &ExitError{Code: 1, Message: err.Error()}
}

func (r *runner) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "regeval",
		Short: "Evaluate diffusion registration pipelines on HCP subject pairs",
		Long: `regeval registers a moving subject onto a reference subject with a set of
registration strategies built from Anima tools, then scores each result by
warping held-out parcellations and fiber bundles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(r.outW)
	root.SetErr(r.outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&r.global.dataRoot, "data-folder", "d", ".", "Data main folder")
	pf.StringVar(&r.global.configPath, "config", "", "Anima configuration file (default ~/.anima/config.txt)")
	pf.StringVar(&r.global.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&r.global.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")

	root.AddCommand(r.evaluateCommand(), r.prepareCommand())
	return root
}

// newApp validates the shared flags and loads the tool configuration. The
// configuration is checked before any data is touched.
func (r *runner) newApp() (*app.App, error) {
	r.started = true

	logFormat := strings.ToLower(r.global.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, usageError("invalid log-format: must be 'text' or 'json'")
	}
	logLevel := strings.ToLower(r.global.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	path := r.global.configPath
	if path == "" {
		var err error
		if path, err = toolconfig.DefaultPath(); err != nil {
			return nil, err
		}
	}
	tools, err := toolconfig.Load(path)
	if err != nil {
		return nil, err
	}

	return app.NewApp(r.outW, app.LogConfig{Level: logLevel, Format: logFormat}, tools, r.opts...), nil
}

// requireFlags reports unset required flags as a usage error.
func requireFlags(cmd *cobra.Command, names ...string) error {
	var missing []string
	for _, n := range names {
		if !cmd.Flags().Changed(n) {
			missing = append(missing, "--"+n)
		}
	}
	if len(missing) > 0 {
		return usageError("required flag(s) %s not set", strings.Join(missing, ", "))
	}
	return nil
}
