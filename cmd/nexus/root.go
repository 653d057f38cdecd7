package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/nexus"
	"github.com/siherrmann/nexus/config"
	"github.com/spf13/cobra"
)

var (
	// configPath is the --config flag value
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus - hybrid retrieval over documents, code and a knowledge graph",
	Long: `Nexus ingests documents and code files into a vector store, a full text
index and a knowledge graph, and answers queries by fusing the results of
all three channels.

Configuration is read from nexus.yaml (or --config) and NEXUS_ prefixed
environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: ./nexus.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

// loadConfig reads the configuration and creates the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, nexus.NewLogger(level), nil
}

// open loads the configuration and connects all stores.
func open() (*nexus.Nexus, *config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	n, err := nexus.NewNexusFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return n, cfg, logger, nil
}

// signalContext is cancelled on SIGINT and SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
