// Package main starts the unipay backend: users, sessions, wallets,
// transactions and the realtime change feed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-petr/unipay/cmd/httpserver"
	"github.com/go-petr/unipay/internal/middleware"
	"github.com/go-petr/unipay/pkg/configpkg"
	"github.com/go-petr/unipay/pkg/dbpkg"

	_ "github.com/lib/pq"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config.Environement)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}
	defer db.Close()

	server, err := httpserver.New(ctx, db, logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}
	defer server.Close()

	srv := &http.Server{
		Addr:              config.ServerAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.RunFeed(gctx)
	})

	g.Go(func() error {
		logger.Info().
			Str("address", config.ServerAddress).
			Str("changefeed", config.ChangeFeedDriver).
			Msg("UNIPAY API SERVER HAS STARTED")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
}
