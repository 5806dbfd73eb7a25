package main

import (
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Config struct {
	Port string

	AdvisoryURL    string
	PersistenceURL string
	EventURL       string
	MarketURL      string

	HTTPTimeout     time.Duration
	BreakerFails    int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	DashboardCrop string
	StaticDir     string

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

func getenvDur(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}

func loadConfig() Config {
	return Config{
		Port: getenv("PORT", "8080"),

		AdvisoryURL:    getenv("ADVISORY_URL", "http://localhost:8084"),
		PersistenceURL: getenv("PERSISTENCE_URL", "http://localhost:8081"),
		EventURL:       getenv("EVENT_URL", "http://localhost:8082"),
		MarketURL:      getenv("MARKET_URL", "http://localhost:8083"),

		HTTPTimeout:     getenvDur("HTTP_TIMEOUT", 5*time.Second),
		BreakerFails:    getenvInt("CB_FAILS", 3),
		BreakerOpenFor:  getenvDur("CB_OPEN_FOR", 30*time.Second),
		BreakerInterval: getenvDur("CB_INTERVAL", time.Minute),

		DashboardCrop: getenv("DASHBOARD_CROP", "Paddy"),
		StaticDir:     getenv("STATIC_DIR", ""),

		Debug: getenvBool("DEBUG", false),
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.AdvisoryURL, validation.Required),
		validation.Field(&c.PersistenceURL, validation.Required),
		validation.Field(&c.EventURL, validation.Required),
		validation.Field(&c.MarketURL, validation.Required),
		validation.Field(&c.HTTPTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.BreakerFails, validation.Required, validation.Min(1)),
	)
}
