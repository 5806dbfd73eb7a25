// Package aggregator buffers raw probe readings and periodically
// republishes per-sensor averages on sensor/aggregated/{field}/{sensor}.
// Sensors that go quiet past the stale window raise an alert event.
package aggregator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/messages"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
)

const (
	aggregatedTopicTemplate = "sensor/aggregated/{field}/{sensor}"
	alertTopicTemplate      = "event/alert/{field}/{sensor}"
)

type Service struct {
	consumer   broker.IConsumer[messages.SensorReading]
	publisher  broker.IPublisher
	interval   time.Duration
	staleAfter time.Duration
	log        *zap.SugaredLogger

	mu       sync.Mutex
	buffer   map[string][]messages.SensorReading // key field/sensor
	lastSeen map[string]time.Time
	alerted  map[string]bool

	now func() time.Time
}

func NewService(consumer broker.IConsumer[messages.SensorReading], publisher broker.IPublisher,
	interval, staleAfter time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{
		consumer:   consumer,
		publisher:  publisher,
		interval:   interval,
		staleAfter: staleAfter,
		log:        log,
		buffer:     make(map[string][]messages.SensorReading),
		lastSeen:   make(map[string]time.Time),
		alerted:    make(map[string]bool),
		now:        time.Now,
	}
}

func (s *Service) messageHandler(_ string, message mqtt.Message) error {
	var reading messages.SensorReading
	if err := json.Unmarshal(message.Payload(), &reading); err != nil {
		s.log.Warnw("dropping malformed sensor payload", "topic", message.Topic(), "error", err)
		return err
	}
	if reading.Aggregated {
		// never re-buffer our own output
		return nil
	}
	key := reading.FieldID + "/" + reading.SensorID

	s.mu.Lock()
	s.buffer[key] = append(s.buffer[key], reading)
	s.lastSeen[key] = s.now()
	s.alerted[key] = false
	s.mu.Unlock()

	s.log.Debugw("buffered reading", "sensor", key, "moisture", reading.MoisturePct)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(s.messageHandler)
	go s.consumer.ConsumeMessage(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-ticker.C:
			s.aggregateAndPublish()
			s.flagStaleSensors()
		}
	}
}

func (s *Service) aggregateAndPublish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, readings := range s.buffer {
		if len(readings) == 0 {
			continue
		}
		var moisture int
		var temp, humidity float64
		for _, r := range readings {
			moisture += r.MoisturePct
			temp += r.TemperatureC
			humidity += r.HumidityPct
		}
		n := len(readings)
		out := messages.SensorReading{
			FieldID:      readings[0].FieldID,
			SensorID:     readings[0].SensorID,
			MoisturePct:  moisture / n,
			TemperatureC: temp / float64(n),
			HumidityPct:  humidity / float64(n),
			Aggregated:   true,
			Timestamp:    s.now().UTC(),
		}

		b, err := json.Marshal(out)
		if err != nil {
			s.log.Errorw("marshal aggregated reading", "sensor", key, "error", err)
			continue
		}
		topic := strings.NewReplacer("{field}", out.FieldID, "{sensor}", out.SensorID).
			Replace(aggregatedTopicTemplate)
		if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
			s.log.Errorw("publish aggregated reading", "topic", topic, "error", err)
		} else {
			s.log.Infow("published aggregate", "topic", topic, "samples", n, "moisture", out.MoisturePct)
		}

		s.buffer[key] = readings[:0]
	}
}

// flagStaleSensors alerts once per outage for sensors past the stale
// window. The flag resets when data resumes.
func (s *Service) flagStaleSensors() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, seen := range s.lastSeen {
		if now.Sub(seen) < s.staleAfter || s.alerted[key] {
			continue
		}
		fieldID, sensorID, _ := strings.Cut(key, "/")
		alert := messages.NewAlertEvent(fieldID, sensorID, messages.AlertSensorStale,
			"warn", "no telemetry received past the stale window")
		alert.Threshold = s.staleAfter.Seconds()
		alert.Value = now.Sub(seen).Seconds()

		b, err := json.Marshal(alert)
		if err != nil {
			s.log.Errorw("marshal stale alert", "sensor", key, "error", err)
			continue
		}
		topic := strings.NewReplacer("{field}", fieldID, "{sensor}", sensorID).
			Replace(alertTopicTemplate)
		if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
			s.log.Errorw("publish stale alert", "topic", topic, "error", err)
			continue
		}
		s.alerted[key] = true
		s.log.Warnw("sensor stale", "sensor", key, "silent_for", now.Sub(seen))
	}
}
