package main

import (
	"context"
	"log/slog"

	"github.com/siherrmann/nexus/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long: `Serve search, rag, ingestion and graph endpoints over HTTP.

The knowledge graph is saved to the database on shutdown.

Examples:
  nexus serve
  nexus serve --addr=:9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	n, cfg, logger, err := open()
	if err != nil {
		return err
	}
	defer n.Close()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(n, server.Config{
		Addr:            cfg.Server.Addr,
		Mode:            cfg.Server.Mode,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)
	runErr := srv.Run(ctx)

	// The serve context is done at this point.
	saveCtx, saveCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer saveCancel()
	if err := n.SaveGraph(saveCtx); err != nil {
		logger.Error("Failed to save graph", slog.String("error", err.Error()))
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}
