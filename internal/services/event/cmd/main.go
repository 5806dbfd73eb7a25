package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thoufik1111/AgroNITY/internal/logging"
	"github.com/thoufik1111/AgroNITY/internal/services/event"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
	"github.com/thoufik1111/AgroNITY/pkg/dedup"
)

func main() {
	cfg := loadConfig()

	logger := logging.New("event", cfg.Debug)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Batched async writes; the Writer watches the error channel.
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.BatchSize)).
		SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
	defer influx.Close()

	writer := event.NewWriter(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket), logger)

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

	handler := event.NewMQTTHandler(writer.Write)

	// The event/# families ride QoS 1; drop redeliveries by payload hash.
	// Price ticks are QoS 0 and pass straight through.
	d := dedup.New(10*time.Minute, 20000)
	consumer := broker.NewMultiConsumer(client, cfg.ConsumeTopics, func(topic string, m mqtt.Message) error {
		if strings.HasPrefix(topic, "event/") {
			sum := sha256.Sum256(m.Payload())
			if !d.ShouldProcess(hex.EncodeToString(sum[:])) {
				return nil
			}
		}
		return handler.Handle(topic, m)
	}, logger)
	go consumer.ConsumeMessage(ctx)

	mux := http.NewServeMux()
	mux.Handle("/healthz", event.NewHealthHandler(client, influx, writer))
	mux.Handle("/readyz", event.NewReadyHandler(client, influx, writer, 2*time.Second))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/events/advisories/recent", event.NewRecentAdvisoriesHandler(influx, cfg.InfluxOrg, cfg.InfluxBucket))
	mux.Handle("/events/alerts/recent", event.NewRecentAlertsHandler(influx, cfg.InfluxOrg, cfg.InfluxBucket))

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

	writer.Flush()
	logger.Info("event service stopped")
}
