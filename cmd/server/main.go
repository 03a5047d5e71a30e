package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/guts/internal/auth"
	"github.com/jason-s-yu/guts/internal/cache"
	"github.com/jason-s-yu/guts/internal/config"
	"github.com/jason-s-yu/guts/internal/database"
	"github.com/jason-s-yu/guts/internal/game"
	"github.com/jason-s-yu/guts/internal/httpapi"
	"github.com/jason-s-yu/guts/internal/ws"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL != "" {
		if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
			log.WithError(err).Warn("database unavailable, results will not be persisted")
		} else {
			defer database.Close()
			log.Info("connected to postgres")
		}
	}

	var history *cache.Publisher
	if cfg.RedisAddr != "" {
		history, err = cache.NewPublisher(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, action history disabled")
		} else {
			defer history.Close()
			log.Info("connected to redis")
		}
	}

	issuer := auth.NewIssuer([]byte(cfg.TokenSecret))
	hub := ws.NewHub(issuer, []string{cfg.FrontendOrigin}, log)
	registry := game.NewRegistry(hub, history, log)
	hub.SetRegistry(registry)

	go registry.Run(ctx)

	mux := http.NewServeMux()
	httpapi.NewServer(registry, issuer, log).Routes(mux)
	mux.Handle("GET /ws", hub)

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
	}()

	log.WithField("addr", cfg.Addr).Info("guts server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server error")
	}
	log.Info("server stopped")
}
