package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fjperezpujalte/storiesviewer/config"
	"github.com/fjperezpujalte/storiesviewer/handler"
	"github.com/fjperezpujalte/storiesviewer/logging"
	"github.com/fjperezpujalte/storiesviewer/metrics"
	"github.com/fjperezpujalte/storiesviewer/store"
)

func main() {
	// Flags read their environment variables while parsing, so .env must
	// be loaded first.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the CLI. Flags live on the app only, so they are given
// before the command name and shared by every command.
func newApp() *cli.App {
	return &cli.App{
		Name:   "storiesviewer",
		Usage:  "Serve maps, keypoints and stories over HTTP",
		Flags:  config.Flags(),
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "export",
				Usage:  "Write every stored map to stdout as JSON",
				Action: export,
			},
		},
	}
}

// setup builds the configuration, logger and store shared by all commands.
// The caller owns the returned store and logger.
func setup(ctx context.Context, c *cli.Context, collector *metrics.Collector) (*config.Config, *zap.Logger, store.Store, error) {
	cfg, err := config.FromContext(c)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	s, err := store.New(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, fmt.Errorf("create store (backend=%s): %w", cfg.StorageType, err)
	}
	if collector != nil {
		s = store.Instrument(s, collector)
	}
	return cfg, logger, s, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector("storiesviewer")
	cfg, logger, s, err := setup(ctx, c, collector)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handler.New(s, handler.Options{
			Logger:         logger,
			Metrics:        collector,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Maps API starting",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.StorageType),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func export(c *cli.Context) error {
	_, logger, s, err := setup(c.Context, c, nil)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer s.Close()

	maps, err := s.GetAllMaps(c.Context)
	if err != nil {
		return fmt.Errorf("load maps: %w", err)
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(maps)
}
