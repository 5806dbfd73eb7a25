package messages

import "time"

// SensorReading is the telemetry sample published by field probes on
// sensor/data/{field}/{sensor}. The aggregator republishes the same shape
// on sensor/aggregated/{field}/{sensor} with Aggregated set.
type SensorReading struct {
	FieldID      string    `json:"field_id"`
	SensorID     string    `json:"sensor_id"`
	MoisturePct  int       `json:"moisture_pct"`
	TemperatureC float64   `json:"temperature_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	Aggregated   bool      `json:"aggregated,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewSensorReading(fieldID, sensorID string, moisturePct int, tempC, humidityPct float64) *SensorReading {
	return &SensorReading{
		FieldID:      fieldID,
		SensorID:     sensorID,
		MoisturePct:  moisturePct,
		TemperatureC: tempC,
		HumidityPct:  humidityPct,
		Timestamp:    time.Now().UTC(),
	}
}
