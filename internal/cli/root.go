// Package cli wires configuration, storage and the core services into the
// cadence command tree.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "cadence",
		Short: "Activity-based music recommendations",
		Long:  "cadence picks music for what you are doing, from a manual choice or your heart rate, and saves it as a playlist.",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	pf.String("backend-url", "", "recommendation backend base URL")
	pf.String("storage", "", "storage driver: sqlite, redis or memory")
	pf.String("sqlite-path", "", "sqlite database file")
	pf.String("redis-addr", "", "redis address")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-file", "", "also write logs to this file, rotated")
	pf.String("session", "", "session id used to keep the login between runs")

	root.AddCommand(
		newServeCommand(opts),
		newLoginCommand(opts),
		newCallbackCommand(opts),
		newLogoutCommand(opts),
		newRecommendCommand(opts),
		newPulseCommand(opts),
		newHistoryCommand(opts),
	)
	return root
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
