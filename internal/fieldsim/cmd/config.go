package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

type Config struct {
	BrokerHost     string
	BrokerPort     int
	BrokerUser     string
	BrokerPassword string
	ClientID       string

	FieldID     string
	District    string
	Crop        string
	SoilType    string
	SensorsJSON string

	ReadInterval   time.Duration
	PriceInterval  time.Duration
	DecayPerMin    float64
	BasePriceRsQtl float64
	PriceSpreadPct float64
	SoilGridsSeed  bool
	Debug          bool
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
		ClientID:       getenv("CLIENT_ID", "fieldsim-1"),

		FieldID:     getenv("FIELD_ID", "f-1"),
		District:    getenv("DISTRICT", "Thanjavur"),
		Crop:        getenv("CROP", "Paddy"),
		SoilType:    getenv("SOIL_TYPE", "Alluvial"),
		SensorsJSON: getenv("SENSORS", ""),

		ReadInterval:   getenvDur("READ_INTERVAL", 15*time.Second),
		PriceInterval:  getenvDur("PRICE_INTERVAL", time.Minute),
		DecayPerMin:    getenvFloat("DECAY_PER_MIN", 0.0005),
		BasePriceRsQtl: getenvFloat("BASE_PRICE_RS_QTL", 2205),
		PriceSpreadPct: getenvFloat("PRICE_SPREAD_PCT", 10),
		SoilGridsSeed:  getenvBool("SOILGRIDS_SEED", true),
		Debug:          getenvBool("DEBUG", false),
	}
}

// Sensors parses the SENSORS env var, a JSON array of probes. Empty means
// the default two-probe layout in the Thanjavur delta.
func (c Config) Sensors() ([]entities.Sensor, error) {
	if c.SensorsJSON == "" {
		return defaultSensors(c.FieldID), nil
	}
	var sensors []entities.Sensor
	if err := json.Unmarshal([]byte(c.SensorsJSON), &sensors); err != nil {
		return nil, fmt.Errorf("parse SENSORS: %w", err)
	}
	if len(sensors) == 0 {
		return nil, fmt.Errorf("SENSORS holds no probes")
	}
	for i := range sensors {
		if sensors[i].FieldID == "" {
			sensors[i].FieldID = c.FieldID
		}
	}
	return sensors, nil
}

func defaultSensors(fieldID string) []entities.Sensor {
	return []entities.Sensor{
		{FieldID: fieldID, ID: "s-1", Latitude: 10.7870, Longitude: 79.1378, DepthCM: 30, FlowLpm: 10, AreaM2: 2},
		{FieldID: fieldID, ID: "s-2", Latitude: 10.7905, Longitude: 79.1402, DepthCM: 30, FlowLpm: 10, AreaM2: 2},
	}
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BrokerHost, validation.Required),
		validation.Field(&c.BrokerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ClientID, validation.Required),
		validation.Field(&c.FieldID, validation.Required),
		validation.Field(&c.District, validation.Required),
		validation.Field(&c.Crop, validation.Required),
		validation.Field(&c.ReadInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.PriceInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.BasePriceRsQtl, validation.Required, validation.Min(1.0)),
	)
}
