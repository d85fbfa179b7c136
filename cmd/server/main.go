package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/erauner12/shiftsync/internal/auth"
	"github.com/erauner12/shiftsync/internal/config"
	"github.com/erauner12/shiftsync/internal/httpapi"
	"github.com/erauner12/shiftsync/internal/kvstore"
	"github.com/erauner12/shiftsync/internal/logging"
	"github.com/erauner12/shiftsync/internal/notify"
	"github.com/erauner12/shiftsync/internal/service/rosterservice"
	"github.com/erauner12/shiftsync/internal/syncx"
	"github.com/erauner12/shiftsync/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "path to config file (yaml, json or toml)")
	addr := flag.String("addr", "", "listen address (overrides http.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	logFile, err := logging.Setup("shiftsync", cfg.IsDev(), cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		logFile.Close()
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := kvstore.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return err
	}
	defer store.Close()
	log.Info().Str("driver", cfg.Storage.Driver).Msg("keyed store opened")

	var records syncx.RecordStore = syncx.NewMemoryRecords()
	if cfg.Sync.Records == config.RecordsStore {
		records = syncx.NewKVRecords(store)
	} else {
		log.Warn().Msg("sync records are held in memory and will be lost on restart")
	}

	hub := notify.NewHub(cfg.CORS.AllowedOrigins)
	registry := syncx.NewRegistry(records)

	srv := &httpapi.Server{
		Roster:   rosterservice.New(store, hub, registry),
		Registry: registry,
		Events:   hub,
		RateLimitConfig: httpapi.RateLimitInfo{
			WindowSeconds: cfg.RateLimit.WindowSeconds,
			MaxRequests:   cfg.RateLimit.MaxRequests,
			Burst:         cfg.RateLimit.Burst,
		},
		PollInterval:   cfg.Sync.PollInterval,
		StorageDriver:  cfg.Storage.Driver,
		RecordBackend:  cfg.Sync.Records,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.Auth.HS256Secret,
		Required:    cfg.Auth.Required,
		DevMode:     cfg.Auth.DevMode,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Routes(jwtCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return hub.Run(ctx) })

	if cfg.Storage.Watch {
		w, err := watch.New(cfg.Storage.Dir, hub)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
