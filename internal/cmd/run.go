package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grouprank/strava-ranking/internal/auth"
	"github.com/grouprank/strava-ranking/internal/config"
	"github.com/grouprank/strava-ranking/internal/importer"
	"github.com/grouprank/strava-ranking/internal/logging"
	"github.com/grouprank/strava-ranking/internal/ranking"
	"github.com/grouprank/strava-ranking/internal/server"
	"github.com/grouprank/strava-ranking/internal/store"
	"github.com/grouprank/strava-ranking/internal/strava"
)

const shutdownTimeout = 30 * time.Second

// Run wires the services and serves HTTP until a shutdown signal.
func Run(dbPathOverride string, portOverride int) error {
	log := logging.Logger

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dbPathOverride != "" {
		cfg.DBPath = dbPathOverride
	}
	if portOverride != 0 {
		cfg.Port = portOverride
	}

	log.Info().
		Str("db_path", cfg.DBPath).
		Int("port", cfg.Port).
		Msg("starting strava-ranking")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	client := strava.New(cfg.StravaClientID, cfg.StravaClientSecret, cfg.RedirectURI)
	tokens := auth.NewService(st, client)
	imports := importer.NewService(st, client, tokens)
	ranker := ranking.NewService(st)

	srv := server.New(server.Config{
		Port:        cfg.Port,
		FrontendURL: cfg.FrontendURL,
	}, tokens, imports, ranker, st)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}
