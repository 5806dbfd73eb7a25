package main

import (
	"context"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/thoufik1111/AgroNITY/internal/fieldsim"
	"github.com/thoufik1111/AgroNITY/internal/logging"
	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
)

func main() {
	cfg := loadConfig()

	logger := logging.New("fieldsim", cfg.Debug)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "error", err)
	}
	sensors, err := cfg.Sensors()
	if err != nil {
		logger.Fatalw("invalid sensor layout", "error", err)
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

	consumer := broker.NewConsumer(client, "event/advisory/#", nil, logger)
	publisher := broker.NewPublisher(client, "sensor/data", logger)

	var soil *fieldsim.SoilGrids
	if cfg.SoilGridsSeed {
		soil = fieldsim.NewSoilGrids(logger)
	}

	field := entities.Field{
		ID:       cfg.FieldID,
		District: cfg.District,
		SoilType: cfg.SoilType,
		Crop:     cfg.Crop,
		Sensors:  sensors,
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sim := fieldsim.New(field, consumer, publisher, soil, fieldsim.Config{
		ReadInterval:   cfg.ReadInterval,
		PriceInterval:  cfg.PriceInterval,
		DecayPerMin:    cfg.DecayPerMin,
		BasePriceRsQtl: cfg.BasePriceRsQtl,
		PriceSpreadPct: cfg.PriceSpreadPct,
	}, rng, logger)

	logger.Infow("fieldsim running", "field", cfg.FieldID, "crop", cfg.Crop,
		"sensors", len(sensors), "read_interval", cfg.ReadInterval, "price_interval", cfg.PriceInterval)
	sim.Start(ctx)
}
