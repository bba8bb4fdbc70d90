// Package main is the entry point for the nova relay.
package main

import (
	"fmt"
	"os"

	"github.com/kataras/golog"
	"github.com/spf13/cobra"

	"github.com/ent0n29/nova-relay/internal/config"
	"github.com/ent0n29/nova-relay/internal/logging"
)

var version = "0.1.0"

// Global flags.
var logLevel string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nova",
		Short: "Chat relay with short-term per-user conversation memory",
		Long: `nova relays direct chat messages to a reply backend, keeping a short,
age-limited window of each user's recent conversation as context.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newChatCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nova version %s\n", version)
		},
	}
}

// loadRuntime reads config from the environment and opens the logger.
func loadRuntime() (config.Config, *golog.Logger, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("config error: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, closeLog, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
