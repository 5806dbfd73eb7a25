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
	ConsumeTopic   string

	CatalogDSN string
	CatalogDir string
	LocaleDir  string

	OWMKey     string
	WeatherTTL time.Duration

	MarketURL     string
	MarketTimeout time.Duration

	Interval time.Duration

	GuardLevels  []float64
	BaseMM       float64
	ETOCoeff     float64
	RainHoldMM   float64
	RainHoldDays int
	Timezone     string

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

func getenvFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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

// getenvFloats parses a comma separated list, e.g. "35,25".
func getenvFloats(k string, d []float64) []float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []float64
	for _, part := range strings.Split(v, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return d
		}
		out = append(out, f)
	}
	return out
}

func loadConfig() Config {
	return Config{
		Port: getenv("PORT", "8084"),

		BrokerHost:     getenv("BROKER_HOST", "localhost"),
		BrokerPort:     getenvInt("BROKER_PORT", 1883),
		BrokerUser:     getenv("BROKER_USER", "guest"),
		BrokerPassword: getenv("BROKER_PASSWORD", "guest"),
		ClientID:       getenv("CLIENT_ID", "advisory-1"),
		ConsumeTopic:   getenv("CONSUME_TOPIC", "sensor/aggregated/#"),

		CatalogDSN: getenv("CATALOG_DSN", "file:agronity-catalog.db?cache=shared"),
		CatalogDir: getenv("CATALOG_DIR", ""),
		LocaleDir:  getenv("LOCALE_DIR", ""),

		OWMKey:     getenv("OWM_API_KEY", ""),
		WeatherTTL: getenvDur("WEATHER_TTL", 30*time.Minute),

		MarketURL:     getenv("MARKET_URL", "http://localhost:8083"),
		MarketTimeout: getenvDur("MARKET_TIMEOUT", 5*time.Second),

		Interval: getenvDur("ADVISORY_INTERVAL", time.Hour),

		GuardLevels:  getenvFloats("GUARD_LEVELS", []float64{35, 25}),
		BaseMM:       getenvFloat("BASE_MM", 5.0),
		ETOCoeff:     getenvFloat("ETO_COEFF", 0.5),
		RainHoldMM:   getenvFloat("RAIN_HOLD_MM", 10),
		RainHoldDays: getenvInt("RAIN_HOLD_DAYS", 2),
		Timezone:     getenv("TZ_NAME", "Asia/Kolkata"),

		Debug: getenvBool("DEBUG", false),
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.BrokerHost, validation.Required),
		validation.Field(&c.BrokerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.ConsumeTopic, validation.Required),
		validation.Field(&c.CatalogDSN, validation.Required),
		validation.Field(&c.Interval, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.BaseMM, validation.Min(0.0)),
		validation.Field(&c.ETOCoeff, validation.Min(0.0)),
	)
}
