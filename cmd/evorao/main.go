// Package main provides the evorao binary entry point.
// evorao resolves virus names in EVORAO JSON-LD graphs against the ICTV
// taxonomy and enriches each record with a canonical taxon node.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/c360studio/evorao/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "evorao"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "EVORAO taxonomy enrichment",
		Long: `evorao resolves the virus names found in EVORAO JSON-LD graphs against
the ICTV taxonomy and attaches a canonical taxon node to every record.

It provides:
- enrich: resolve, cache and enrich one graph document
- merge: combine partner graph documents into one
- cache: inspect the resolution cache`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(enrichCmd(flags))
	cmd.AddCommand(mergeCmd(flags))
	cmd.AddCommand(cacheCmd(flags))

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// newLogger builds the text logger for a command run.
func newLogger(w io.Writer, logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup configures logging, tags the run with an id and loads configuration.
// The returned context carries the run logger.
func setup(cmd *cobra.Command, flags *globalFlags) (context.Context, *slog.Logger, *config.Config, error) {
	logger := newLogger(cmd.ErrOrStderr(), flags.logLevel).
		With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)

	ctx := slogcontext.NewCtx(cmd.Context(), logger)

	cfg, err := config.NewLoader(logger).Load(flags.configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	return ctx, logger, cfg, nil
}
