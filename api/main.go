package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/fire-radar/internal/config"
	"github.com/DeafMist/fire-radar/internal/elasticsearch"
	"github.com/DeafMist/fire-radar/internal/httpclient"
	"github.com/DeafMist/fire-radar/internal/logger"
	"github.com/DeafMist/fire-radar/internal/notify"
	"github.com/DeafMist/fire-radar/internal/refresh"
	"github.com/DeafMist/fire-radar/internal/sources"
	"github.com/DeafMist/fire-radar/internal/store"
	"github.com/DeafMist/fire-radar/internal/subscription"
)

func main() {
	log := logger.New("api")
	if err := config.LoadDotEnv(); err != nil {
		log.Warn("load .env", slog.Any("err", err))
	}
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	entries := sources.DefaultEntries()
	if cfg.SourcesFile != "" {
		entries, err = sources.LoadEntries(cfg.SourcesFile)
		if err != nil {
			log.Error("load sources", slog.String("file", cfg.SourcesFile), slog.Any("err", err))
			os.Exit(1)
		}
	}
	srcs, err := sources.Build(entries, httpclient.NewRestyClient(cfg.SourceTimeout, cfg.UserAgent))
	if err != nil {
		log.Error("build sources", slog.Any("err", err))
		os.Exit(1)
	}

	subs, err := openSubscribers(cfg)
	if err != nil {
		log.Error("open subscribers", slog.Any("err", err))
		os.Exit(1)
	}
	defer subs.Close()

	hub := notify.NewHub(log, notify.WithOriginCheck(originChecker(cfg.CORSAllowedOrigins)))
	defer hub.Close()
	sinks := notify.Multi{hub}

	if cfg.AlertsStreamEnabled() {
		pub := notify.NewKafkaPublisher(cfg.AlertsKafkaBrokers, cfg.AlertsKafkaTopic, log)
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("close alert publisher", slog.Any("err", err))
			}
		}()
		sinks = append(sinks, pub)
		log.Info("alert stream enabled", slog.String("topic", cfg.AlertsKafkaTopic))
	}

	cache := store.New(cfg.CacheTTL)
	loop := refresh.New(srcs, cache, sinks, log, refresh.Config{
		Interval:      cfg.RefreshInterval,
		SourceTimeout: cfg.SourceTimeout,
	})

	srv := &server{log: log, cfg: cfg, cache: cache, loop: loop, subs: subs, ws: hub.ServeWS}
	if cfg.ArchiveEnabled {
		esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		srv.archive = esClient
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go loop.Run(ctx)

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr), slog.Int("sources", len(srcs)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func openSubscribers(cfg *config.API) (subscription.Store, error) {
	if cfg.SubscribersDBPath == "" {
		return subscription.NewMemoryStore(), nil
	}
	return subscription.OpenBolt(cfg.SubscribersDBPath)
}
