// Package main provides the stackgen binary entry point.
// Stackgen scaffolds full-stack projects from a selection of options,
// keeping client and server contracts in sync.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/stackgen"
	"github.com/syssam/stackgen/config"
	"github.com/syssam/stackgen/schema"
)

const appName = "stackgen"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by all commands.
type app struct {
	configPath string
	logLevel   string
	logOut     io.Writer
	logger     *slog.Logger
}

func rootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut}
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Full-stack project scaffolding",
		Long: `Stackgen generates a runnable full-stack project from a selection of
options: backend and frontend frameworks, API style, database, data access
layer, authentication and deployment target.

Incompatible selections are rejected before anything is written, request
and response contracts are rendered for both the server and the client,
and every generated file is checked to parse.

Settings are read from ~/.config/stackgen/config.yaml and from the
project's stackgen.yaml, which generation writes itself.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.logger = newLogger(a.logOut, a.logLevel)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Project config file (default: stackgen.yaml in the current or a parent directory)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		a.generateCmd(),
		a.resolveCmd(),
		a.optionsCmd(),
		a.contractsCmd(),
		a.authCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, stackgen.Version)
			},
		},
	)
	return cmd
}

func newLogger(w io.Writer, level string) *slog.Logger {
	l := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// load loads the layered configuration.
func (a *app) load() (*config.Config, error) {
	return config.NewLoader(a.logger).Load(a.configPath)
}

// selection returns the configured selection overridden by --set pairs.
func selection(cfg *config.Config, sets []string) (schema.Selection, error) {
	override, err := schema.ParseSelection(sets)
	if err != nil {
		return nil, err
	}
	sel := cfg.Selection.Clone()
	if sel == nil {
		sel = schema.Selection{}
	}
	for k, v := range override {
		sel[k] = v
	}
	return sel, nil
}
