package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arclight-labs/spgate/internal/config"
	"github.com/arclight-labs/spgate/internal/graph"
	"github.com/arclight-labs/spgate/internal/history"
	"github.com/arclight-labs/spgate/internal/server"
	"github.com/arclight-labs/spgate/internal/sharepoint"
)

// shutdownGrace is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	// The transfer log is best effort: a broken database disables history
	// but never keeps the gateway from serving.
	var transfers server.TransferLog
	store, err := history.New(cfg.History.Path)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.History.Path).Msg("transfer log disabled")
	} else {
		defer store.Close()
		transfers = store
	}

	tokens := graph.NewClientCredentials(cfg.Graph.TenantID, cfg.Graph.ClientID, cfg.Graph.ClientSecret)
	drive := sharepoint.New(sharepoint.Config{
		SiteID:  cfg.Graph.SiteID,
		Timeout: cfg.Graph.Timeout,
	}, tokens, logger)

	gateway := server.New(drive, transfers, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Str("version", version).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildLogger derives the process logger from config, with the verbose flag
// forcing debug level.
func buildLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = os.Stderr
	if cfg.Log.Console {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
