// Package cli implements the smartinfo command line: one-shot ask, history
// and clear, document ingestion and the interactive chat REPL.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tanishra/smartinfo"
	"github.com/tanishra/smartinfo/config"
	"github.com/tanishra/smartinfo/core"
	"github.com/tanishra/smartinfo/session"
)

// Exit codes.
const (
	ExitSuccess          = 0
	ExitGenericError     = 1
	ExitConfigInvalid    = 2
	ExitUnsupportedInput = 3
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath string
	Session    string
	JSON       bool
	Verbose    bool
}

// AppFactory builds the application from a loaded configuration.
type AppFactory func(ctx context.Context, cfg config.Config) (*smartinfo.App, error)

// Options configure the root command.
type Options struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
	// NewApp replaces smartinfo.New, mainly for tests.
	NewApp AppFactory
}

type cli struct {
	flags  GlobalFlags
	opts   Options
	styles styles
	errSt  styles
}

// NewRootCommand assembles the command tree.
func NewRootCommand(optFns ...func(o *Options)) *cobra.Command {
	opts := Options{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.NewApp == nil {
		opts.NewApp = func(ctx context.Context, cfg config.Config) (*smartinfo.App, error) {
			return smartinfo.New(ctx, cfg)
		}
	}

	c := &cli{opts: opts}

	root := &cobra.Command{
		Use:           "smartinfo",
		Short:         "Conversational assistant for live data and your documents",
		Long:          "smartinfo answers questions with live weather, crypto, phone and flight data, and with passages from documents you ingest.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			c.styles = newStyles(c.opts.Out, c.flags.JSON)
			c.errSt = newStyles(c.opts.ErrOut, c.flags.JSON)
		},
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.ErrOut)

	root.PersistentFlags().StringVar(&c.flags.ConfigPath, "config", "", "config file path (default <state dir>/config.toml)")
	root.PersistentFlags().StringVar(&c.flags.Session, "session", session.DefaultSessionID, "conversation session id")
	root.PersistentFlags().BoolVar(&c.flags.JSON, "json", false, "emit JSON instead of formatted text")
	root.PersistentFlags().BoolVarP(&c.flags.Verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		c.askCmd(),
		c.historyCmd(),
		c.clearCmd(),
		c.ingestCmd(),
		c.chatCmd(),
		c.configCmd(),
	)

	return root
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, optFns ...func(o *Options)) int {
	root := NewRootCommand(optFns...)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	st := newStyles(root.ErrOrStderr(), false)
	fmt.Fprintln(root.ErrOrStderr(), st.errPrefix(), err)
	return ExitCode(err)
}

// ExitCode classifies err into a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrInvalid):
		return ExitConfigInvalid
	case errors.Is(err, core.ErrUnsupportedFormat):
		return ExitUnsupportedInput
	default:
		return ExitGenericError
	}
}

func (c *cli) configPath() (string, error) {
	if c.flags.ConfigPath != "" {
		return c.flags.ConfigPath, nil
	}
	return config.DefaultPath()
}

// loadApp reads the configuration and builds the application. Callers must
// Close the returned App.
func (c *cli) loadApp(ctx context.Context) (*smartinfo.App, error) {
	cfg, err := config.Load(c.flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.flags.Verbose {
		cfg.Log.Level = "debug"
	}
	return c.opts.NewApp(ctx, cfg)
}
