package main

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	BrokerHost     string
	BrokerPort     int
	BrokerUser     string
	BrokerPassword string
	ClientID       string

	ConsumeTopic string
	Interval     time.Duration
	StaleAfter   time.Duration
	Debug        bool
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvDur(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		BrokerHost:     getenv("BROKER_HOST", "localhost"),
		BrokerPort:     getenvInt("BROKER_PORT", 1883),
		BrokerUser:     getenv("BROKER_USER", "guest"),
		BrokerPassword: getenv("BROKER_PASSWORD", "guest"),
		ClientID:       getenv("CLIENT_ID", "aggregator-1"),

		ConsumeTopic: getenv("CONSUME_TOPIC", "sensor/data/#"),
		Interval:     getenvDur("AGGREGATION_INTERVAL", time.Minute),
		StaleAfter:   getenvDur("STALE_AFTER", 10*time.Minute),
		Debug:        getenvBool("DEBUG", false),
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BrokerHost, validation.Required),
		validation.Field(&c.BrokerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ConsumeTopic, validation.Required),
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Second)),
	)
}
