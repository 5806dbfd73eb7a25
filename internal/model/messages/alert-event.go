package messages

import "time"

// Alert kinds.
const (
	AlertMoistureLow  = "moisture_low"
	AlertMoistureHigh = "moisture_high"
	AlertSensorStale  = "sensor_stale"
	AlertPestWeather  = "pest_weather"
)

// AlertEvent is published on event/alert/{field}/{sensor} when telemetry
// crosses a guard threshold or a sensor goes quiet.
type AlertEvent struct {
	FieldID   string    `json:"field_id"`
	SensorID  string    `json:"sensor_id,omitempty"`
	Kind      string    `json:"kind"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	Value     float64   `json:"value,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAlertEvent(fieldID, sensorID, kind, severity, message string) *AlertEvent {
	return &AlertEvent{
		FieldID:   fieldID,
		SensorID:  sensorID,
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}
