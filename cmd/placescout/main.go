package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rsavell/place_scout/internal/config"
	"github.com/rsavell/place_scout/internal/engine/aggregate"
	"github.com/rsavell/place_scout/internal/engine/geo"
	"github.com/rsavell/place_scout/internal/engine/places"
	"github.com/rsavell/place_scout/internal/jobs"
	logpkg "github.com/rsavell/place_scout/internal/logger"
	"github.com/rsavell/place_scout/internal/server"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return err
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting placescout",
		zap.String("version", version),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	registry, err := geo.NewRegistry()
	if err != nil {
		return fmt.Errorf("loading bounds registry: %w", err)
	}
	logger.Info("bounds registry loaded",
		zap.Int("codes", len(registry.Codes())),
		zap.Int("us_states", len(registry.StateCodes())),
	)

	for _, dir := range []string{cfg.Jobs.Dir, filepath.Dir(cfg.Jobs.DBPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	store, err := jobs.NewStore(cfg.Jobs.DBPath)
	if err != nil {
		return fmt.Errorf("opening job store: %w", err)
	}
	defer store.Close()

	client := places.NewClient(places.Config{
		APIKey:   cfg.Places.APIKey,
		BaseURL:  cfg.Places.BaseURL,
		PageSize: cfg.Places.PageSize,
		Timeout:  time.Duration(cfg.Places.TimeoutSec) * time.Second,
	}, logger)

	agg := aggregate.New(client, registry, cfg.Search.Divisions, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := jobs.NewManager(ctx, store, agg, cfg.Jobs.Dir,
		time.Duration(cfg.Jobs.ResultTTLMin)*time.Minute, logger)

	srv, err := server.New(manager, registry, cfg.Jobs.Dir, logger)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      srv.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		manager.RunSweeper(gctx, time.Duration(cfg.Jobs.SweepIntervalSec)*time.Second)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	manager.Wait()
	logger.Info("stopped")
	return nil
}
