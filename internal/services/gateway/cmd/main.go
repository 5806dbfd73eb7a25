package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/thoufik1111/AgroNITY/internal/logging"
	"github.com/thoufik1111/AgroNITY/internal/services/gateway/app"
)

func main() {
	cfg := loadConfig()

	logger := logging.New("gateway", cfg.Debug)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw := app.New(app.Config{
		AdvisoryURL:     cfg.AdvisoryURL,
		PersistenceURL:  cfg.PersistenceURL,
		EventsURL:       cfg.EventURL,
		MarketURL:       cfg.MarketURL,
		HTTPTimeout:     cfg.HTTPTimeout,
		BreakerFails:    cfg.BreakerFails,
		BreakerOpenFor:  cfg.BreakerOpenFor,
		BreakerInterval: cfg.BreakerInterval,
		DashboardCrop:   cfg.DashboardCrop,
		StaticDir:       cfg.StaticDir,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.WithCORS(gw.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infow("http listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("http server error", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("gateway stopped")
}
