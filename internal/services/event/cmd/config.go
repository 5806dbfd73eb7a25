package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port string

	BrokerHost     string
	BrokerPort     int
	BrokerUser     string
	BrokerPassword string
	ClientID       string
	ConsumeTopics  []string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	BatchSize     int
	FlushInterval time.Duration

	Debug bool
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

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func getenvList(k string, d []string) []string {
	if v := os.Getenv(k); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		Port: getenv("PORT", "8082"),

		BrokerHost:     getenv("BROKER_HOST", "localhost"),
		BrokerPort:     getenvInt("BROKER_PORT", 1883),
		BrokerUser:     getenv("BROKER_USER", "guest"),
		BrokerPassword: getenv("BROKER_PASSWORD", "guest"),
		ClientID:       getenv("CLIENT_ID", "event-1"),
		ConsumeTopics:  getenvList("CONSUME_TOPICS", []string{"event/advisory/#", "event/alert/#", "market/price/#"}),

		InfluxURL:    getenv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getenv("INFLUX_TOKEN", ""),
		InfluxOrg:    getenv("INFLUX_ORG", "agronity"),
		InfluxBucket: getenv("INFLUX_BUCKET", "farm-data"),

		BatchSize:     getenvInt("WRITE_BATCH_SIZE", 10),
		FlushInterval: time.Duration(getenvInt("WRITE_FLUSH_INTERVAL_MS", 200)) * time.Millisecond,

		Debug: getenvBool("DEBUG", false),
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.BrokerHost, validation.Required),
		validation.Field(&c.BrokerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ConsumeTopics, validation.Required),
		validation.Field(&c.InfluxURL, validation.Required),
		validation.Field(&c.InfluxToken, validation.Required),
		validation.Field(&c.InfluxOrg, validation.Required),
		validation.Field(&c.InfluxBucket, validation.Required),
		validation.Field(&c.BatchSize, validation.Min(1)),
	)
}
