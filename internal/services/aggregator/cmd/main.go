package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/thoufik1111/AgroNITY/internal/logging"
	"github.com/thoufik1111/AgroNITY/internal/services/aggregator"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
)

func main() {
	cfg := loadConfig()

	logger := logging.New("aggregator", cfg.Debug)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := broker.NewConn(ctx, &broker.Config{
		Host:     cfg.BrokerHost,
		Port:     cfg.BrokerPort,
		Username: cfg.BrokerUser,
		Password: cfg.BrokerPassword,
		ClientID: cfg.ClientID,
	}, logger)
	if err != nil {
		logger.Fatalw("connect to broker", "error", err)
	}

	consumer := broker.NewConsumer(client, cfg.ConsumeTopic, nil, logger)
	publisher := broker.NewPublisher(client, "sensor/aggregated", logger)

	svc := aggregator.NewService(consumer, publisher, cfg.Interval, cfg.StaleAfter, logger)

	logger.Infow("aggregator running",
		"consume_topic", cfg.ConsumeTopic, "interval", cfg.Interval, "stale_after", cfg.StaleAfter)
	svc.Start(ctx)
}
