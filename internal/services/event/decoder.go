package event

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	msg "github.com/thoufik1111/AgroNITY/internal/model/messages"
)

// CommonEvent is the normalized shape every bus event is reduced to before
// it lands in storage.
type CommonEvent struct {
	EventType     string // advisory.issued | alert.moisture_low | alert.sensor_stale | ...
	SourceService string // advisory-service | aggregator
	FieldID       string
	SensorID      string
	Crop          string
	District      string
	Severity      string // info|warn|urgent
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// MQTTHandler turns raw MQTT messages into CommonEvents and hands them to sink.
type MQTTHandler struct{ sink func(CommonEvent) }

func NewMQTTHandler(sink func(CommonEvent)) *MQTTHandler { return &MQTTHandler{sink: sink} }

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()
	payload := m.Payload()

	var (
		evt CommonEvent
		err error
	)
	switch {
	case strings.HasPrefix(topic, "event/advisory/"):
		evt, err = decodeAdvisory(topic, payload)
	case strings.HasPrefix(topic, "event/alert/"):
		evt, err = decodeAlert(topic, payload)
	case strings.HasPrefix(topic, "market/price/"):
		evt, err = decodeMarket(payload)
	default:
		return nil // other topics are not ours
	}
	if err != nil {
		decodeFailures.Inc()
		return err
	}
	if h.sink != nil {
		h.sink(evt)
	}
	return nil
}

func decodeAdvisory(topic string, payload []byte) (CommonEvent, error) {
	var a msg.AdvisoryIssuedEvent
	if err := json.Unmarshal(payload, &a); err != nil {
		return CommonEvent{}, err
	}
	fieldID := strings.TrimSpace(a.FieldID)
	if fieldID == "" {
		fieldID = firstSegment(topic, "event/advisory/")
	}
	if fieldID == "" {
		return CommonEvent{}, errors.New("advisory: missing field")
	}
	sev := "info"
	if !a.Feasible {
		sev = "warn"
	}
	return CommonEvent{
		EventType:     "advisory.issued",
		SourceService: "advisory-service",
		FieldID:       fieldID,
		Crop:          a.Crop,
		District:      a.District,
		Severity:      sev,
		Fields: map[string]interface{}{
			"report_id":   a.ReportID,
			"probability": a.Probability,
			"dose_mm":     a.DoseMM,
			"steps":       int64(a.Steps),
			"feasible":    a.Feasible,
		},
		Timestamp: a.Timestamp,
	}, nil
}

func decodeAlert(topic string, payload []byte) (CommonEvent, error) {
	var al msg.AlertEvent
	if err := json.Unmarshal(payload, &al); err != nil {
		return CommonEvent{}, err
	}
	fieldID, sensorID := pickIDs(topic, al.FieldID, al.SensorID, "event/alert/")
	if fieldID == "" {
		return CommonEvent{}, errors.New("alert: missing field")
	}
	kind := strings.TrimSpace(al.Kind)
	if kind == "" {
		kind = "unknown"
	}
	sev := strings.TrimSpace(al.Severity)
	if sev == "" {
		sev = "info"
	}
	return CommonEvent{
		EventType:     "alert." + kind,
		SourceService: alertSource(kind),
		FieldID:       fieldID,
		SensorID:      sensorID,
		Severity:      sev,
		Fields: map[string]interface{}{
			"message":   al.Message,
			"value":     al.Value,
			"threshold": al.Threshold,
		},
		Timestamp: al.Timestamp,
	}, nil
}

func decodeMarket(payload []byte) (CommonEvent, error) {
	var tick msg.PriceTickEvent
	if err := json.Unmarshal(payload, &tick); err != nil {
		return CommonEvent{}, err
	}
	if strings.TrimSpace(tick.Crop) == "" {
		return CommonEvent{}, errors.New("price tick: missing crop")
	}
	return CommonEvent{
		EventType:     "market.tick",
		SourceService: "market",
		Crop:          tick.Crop,
		District:      tick.District,
		Severity:      "info",
		Fields: map[string]interface{}{
			"price_rs_qtl": tick.PriceRsQtl,
			"market":       tick.Market,
		},
		Timestamp: tick.Timestamp,
	}, nil
}

// alertSource maps the alert kind back to the service that raises it:
// the aggregator flags silent sensors, the advisory service owns the
// guard and pest alerts.
func alertSource(kind string) string {
	if kind == msg.AlertSensorStale {
		return "aggregator"
	}
	return "advisory-service"
}

// pickIDs prefers the payload ids, falling back to topic "prefix/{field}/{sensor}".
func pickIDs(topic, fieldID, sensorID, prefix string) (string, string) {
	if strings.TrimSpace(fieldID) != "" && strings.TrimSpace(sensorID) != "" {
		return fieldID, sensorID
	}
	suffix := strings.TrimPrefix(topic, prefix)
	parts := strings.Split(suffix, "/")
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}
	if len(parts) == 1 && strings.TrimSpace(fieldID) == "" {
		return parts[0], sensorID
	}
	return fieldID, sensorID
}

func firstSegment(topic, prefix string) string {
	suffix := strings.TrimPrefix(topic, prefix)
	if i := strings.IndexByte(suffix, '/'); i >= 0 {
		suffix = suffix[:i]
	}
	return strings.TrimSpace(suffix)
}
