// Command pagekit-server serves the paged image list and the vehicle listing
// of a backend over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/pagekit/pkg/client"
	"github.com/Sternrassler/pagekit/pkg/config"
	"github.com/Sternrassler/pagekit/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logging.Setup(cfg.LoggingConfig())
	logger := logging.NewLogger("server")

	clientCfg := cfg.ClientConfig()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return multierr.Combine(fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err), rdb.Close())
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
		clientCfg.Redis = rdb
	}

	api, err := client.New(clientCfg)
	if err != nil {
		if clientCfg.Redis != nil {
			clientCfg.Redis.Close()
		}
		return fmt.Errorf("create client: %w", err)
	}

	srv := newServer(api, cfg)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("backend", cfg.Backend.BaseURL).
			Bool("cache", clientCfg.Redis != nil).
			Msg("Starting server")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = multierr.Combine(g.Wait(), srv.Close())
	if err != nil {
		logger.Error().Err(err).Msg("Shutdown finished with errors")
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}
