// Command pulsived is the process entrypoint: it loads configuration,
// scripts, and persistent storage, then runs a Hub to completion,
// optionally accepting netcode connections over a websocket listener
// (§6, §A.4).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/weng-chenghui/pulsive/internal/config"
)

// Exit codes per the command-line contract (§6): 0 on clean shutdown,
// non-zero on config parse error or listen failure.
const (
	exitOK          = 0
	exitConfigError = 1
	exitListenError = 2
)

var verbose bool

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pulsived [config-file]",
		Short: "Run the pulsive simulation daemon",
		Long: `pulsived loads a HubConfig and process configuration, optional
scripts and persistent storage, then drives a Hub one tick at a time
until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.Load(path)
			if err != nil {
				return &exitError{code: exitConfigError, err: fmt.Errorf("config: %w", err)}
			}

			log := newLogger(os.Stderr, verbose)

			if err := serve(cmd.Context(), cfg, log); err != nil {
				return &exitError{code: exitListenError, err: err}
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "console-formatted (instead of JSON) logging")
	return cmd
}

// exitError carries the process exit code a RunE failure should map
// to, alongside the human-readable cause cobra prints.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// newLogger wires zerolog.ConsoleWriter for local/interactive runs and
// plain JSON otherwise (§A.2).
func newLogger(w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		code := exitListenError
		if e, ok := err.(*exitError); ok {
			code = e.code
		}
		fmt.Fprintln(os.Stderr, "pulsived:", err)
		os.Exit(code)
	}
}
