package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/thoufik1111/AgroNITY/internal/catalog"
	"github.com/thoufik1111/AgroNITY/internal/i18n"
	"github.com/thoufik1111/AgroNITY/internal/logging"
	"github.com/thoufik1111/AgroNITY/internal/services/advisory"
	"github.com/thoufik1111/AgroNITY/internal/weather"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
)

func main() {
	cfg := loadConfig()

	logger := logging.New("advisory", cfg.Debug)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open("sqlite3", cfg.CatalogDSN)
	if err != nil {
		logger.Fatalw("catalog open failed", "dsn", cfg.CatalogDSN, "error", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	store := catalog.NewStore(db, logger)
	if err := store.Init(ctx); err != nil {
		logger.Fatalw("catalog init failed", "error", err)
	}
	if err := catalog.LoadEmbedded(ctx, store); err != nil {
		logger.Fatalw("catalog seed failed", "error", err)
	}
	if cfg.CatalogDir != "" {
		if err := catalog.LoadDir(ctx, store, cfg.CatalogDir); err != nil {
			logger.Warnw("catalog overlay load failed", "dir", cfg.CatalogDir, "error", err)
		}
		watcher, err := catalog.NewWatcher(store, cfg.CatalogDir, logger)
		if err != nil {
			logger.Warnw("catalog watcher unavailable", "dir", cfg.CatalogDir, "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warnw("catalog watcher failed to start", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	tr, err := i18n.New()
	if err != nil {
		logger.Fatalw("locale load failed", "error", err)
	}
	if cfg.LocaleDir != "" {
		if err := tr.LoadDir(cfg.LocaleDir); err != nil {
			logger.Warnw("locale overlay load failed", "dir", cfg.LocaleDir, "error", err)
		}
	}

	var wsrc advisory.ForecastSource
	if cfg.OWMKey != "" {
		wsrc = weather.NewCache(weather.NewOWMClient(cfg.OWMKey), cfg.WeatherTTL, logger)
	} else {
		logger.Warn("OWM_API_KEY not set, irrigation planning falls back to default weather")
	}

	var msrc advisory.MarketSource
	if cfg.MarketURL != "" {
		msrc = advisory.NewMarketClient(cfg.MarketURL, cfg.MarketTimeout)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warnw("unknown timezone, using local", "tz", cfg.Timezone, "error", err)
		loc = nil
	}

	client, err := broker.NewConn(ctx, &broker.Config{
		Host:     cfg.BrokerHost,
		Port:     cfg.BrokerPort,
		Username: cfg.BrokerUser,
		Password: cfg.BrokerPassword,
		ClientID: cfg.ClientID,
	}, logger)
	if err != nil {
		logger.Fatalw("broker connection failed", "error", err)
	}

	consumer := broker.NewConsumer(client, cfg.ConsumeTopic, nil, logger)
	publisher := broker.NewPublisher(client, "event/advisory", logger)
	defer publisher.Close()

	adv := advisory.NewAdvisor(store, tr, wsrc, msrc, advisory.PlanConfig{
		GuardLevels:  cfg.GuardLevels,
		BaseMM:       cfg.BaseMM,
		ETOCoeff:     cfg.ETOCoeff,
		RainHoldMM:   cfg.RainHoldMM,
		RainHoldDays: cfg.RainHoldDays,
		Timezone:     loc,
	}, logger)

	svc := advisory.NewService(adv, consumer, publisher, cfg.Interval, logger)
	go svc.Start(ctx)
	go svc.Run(ctx)

	mux := advisory.NewHTTPMux(svc)
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if !client.IsConnected() {
			http.Error(w, "broker disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
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
	logger.Info("advisory service stopped")
}
