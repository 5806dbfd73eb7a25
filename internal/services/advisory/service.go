package advisory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
	"github.com/thoufik1111/AgroNITY/pkg/dedup"
)

// Outbound topic templates.
const (
	advisoryTopicTemplate = "event/advisory/{field}"
	alertTopicTemplate    = "event/alert/{field}/{sensor}"
)

// Pest alerts are field-scoped; they ride under this pseudo sensor.
const weatherSensorSlot = "weather"

const moistureHighPct = 90.0

// sensorState is the advisory-side view of one probe.
type sensorState struct {
	reading     messages.SensorReading
	lastSeen    time.Time
	lowAlerted  bool // moisture_low raised for the current dry spell
	highAlerted bool
	pestAlerted bool // pest_weather raised for the current favourable spell
}

// Service keeps the field registry and live telemetry, raises alerts on
// guard crossings, and issues a fresh advisory for every registered
// field each interval.
type Service struct {
	advisor   *Advisor
	consumer  broker.IConsumer[messages.SensorReading]
	publisher broker.IPublisher
	log       *zap.SugaredLogger
	dedup     *dedup.Deduper

	interval time.Duration

	mu     sync.RWMutex
	fields map[string]*entities.Field
	state  map[string]*sensorState // key field|sensor

	now func() time.Time
}

func NewService(advisor *Advisor, consumer broker.IConsumer[messages.SensorReading], publisher broker.IPublisher, interval time.Duration, log *zap.SugaredLogger) *Service {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		advisor:   advisor,
		consumer:  consumer,
		publisher: publisher,
		log:       log,
		dedup:     dedup.New(10*time.Minute, 10000),
		interval:  interval,
		fields:    make(map[string]*entities.Field),
		state:     make(map[string]*sensorState),
		now:       time.Now,
	}
}

// Advisor exposes the planner for the HTTP layer.
func (s *Service) Advisor() *Advisor { return s.advisor }

// ===================== field registry =====================

// UpsertField registers or replaces a field.
func (s *Service) UpsertField(f entities.Field) error {
	if f.ID == "" {
		return fmt.Errorf("advisory: field id is required")
	}
	for i := range f.Sensors {
		f.Sensors[i].FieldID = f.ID
	}
	s.mu.Lock()
	s.fields[f.ID] = &f
	s.mu.Unlock()
	s.log.Infow("field registered", "field", f.ID, "crop", f.Crop, "district", f.District, "sensors", len(f.Sensors))
	return nil
}

// Field returns a copy of the registered field.
func (s *Service) Field(id string) (entities.Field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[id]
	if !ok {
		return entities.Field{}, false
	}
	return *f, true
}

// Fields lists the registered fields ordered by ID.
func (s *Service) Fields() []entities.Field {
	s.mu.RLock()
	out := make([]entities.Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, *f)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteField removes a field and its telemetry state.
func (s *Service) DeleteField(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[id]; !ok {
		return false
	}
	delete(s.fields, id)
	for k := range s.state {
		if strings.HasPrefix(k, id+"|") {
			delete(s.state, k)
		}
	}
	return true
}

// ===================== telemetry =====================

// Start consumes aggregated telemetry until the context closes. The
// topic rides QoS 1, so redeliveries are dropped by payload hash.
func (s *Service) Start(ctx context.Context) {
	s.consumer.SetHandler(func(topic string, msg mqtt.Message) error {
		sum := sha256.Sum256(msg.Payload())
		if !s.dedup.ShouldProcess(hex.EncodeToString(sum[:])) {
			s.log.Debugw("dropping duplicate delivery", "topic", topic)
			return nil
		}
		if !strings.HasPrefix(topic, "sensor/") {
			s.log.Warnw("unexpected topic", "topic", topic)
			return nil
		}
		return s.handleTelemetry(topic, msg.Payload())
	})
	s.consumer.ConsumeMessage(ctx)
}

func (s *Service) handleTelemetry(topic string, payload []byte) error {
	var m messages.SensorReading
	if err := json.Unmarshal(payload, &m); err != nil {
		s.log.Warnw("invalid telemetry json", "topic", topic, "error", err)
		return nil // never block the stream on a bad payload
	}
	if m.FieldID == "" || m.SensorID == "" {
		s.log.Warnw("telemetry without ids", "topic", topic)
		return nil
	}

	key := m.FieldID + "|" + m.SensorID
	now := s.now()

	s.mu.Lock()
	st, ok := s.state[key]
	if !ok {
		st = &sensorState{}
		s.state[key] = st
	}
	st.reading = m
	st.lastSeen = now
	s.mu.Unlock()

	s.checkMoisture(m, st)
	s.checkPestWeather(m, st)
	return nil
}

// checkMoisture raises one alert per guard crossing. The flags flip back
// once the reading returns inside the band, so a field that stays dry
// does not spam the alert stream.
func (s *Service) checkMoisture(m messages.SensorReading, st *sensorState) {
	low := s.lowestGuard()
	moist := float64(m.MoisturePct)

	s.mu.Lock()
	raiseLow := moist < low && !st.lowAlerted
	raiseHigh := moist > moistureHighPct && !st.highAlerted
	if moist >= low {
		st.lowAlerted = false
	}
	if moist <= moistureHighPct {
		st.highAlerted = false
	}
	if raiseLow {
		st.lowAlerted = true
	}
	if raiseHigh {
		st.highAlerted = true
	}
	s.mu.Unlock()

	if raiseLow {
		severity := entities.SeverityWarn
		if moist < low-10 {
			severity = entities.SeverityUrgent
		}
		alert := messages.NewAlertEvent(m.FieldID, m.SensorID, messages.AlertMoistureLow, severity,
			fmt.Sprintf("soil moisture %d%% is below the %.0f%% guard", m.MoisturePct, low))
		alert.Value = moist
		alert.Threshold = low
		s.publishAlert(alert)
	}
	if raiseHigh {
		alert := messages.NewAlertEvent(m.FieldID, m.SensorID, messages.AlertMoistureHigh, entities.SeverityWarn,
			fmt.Sprintf("soil moisture %d%% is above %.0f%%, check drainage", m.MoisturePct, moistureHighPct))
		alert.Value = moist
		alert.Threshold = moistureHighPct
		s.publishAlert(alert)
	}
}

// checkPestWeather matches the live canopy microclimate against the
// crop's pest envelopes. One alert per favourable spell, reset once the
// conditions break.
func (s *Service) checkPestWeather(m messages.SensorReading, st *sensorState) {
	s.mu.RLock()
	f, ok := s.fields[m.FieldID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	crop, err := s.advisor.store.Crop(f.Crop)
	if err != nil {
		return
	}
	risks := likelyPests(crop, m.TemperatureC, m.HumidityPct)

	s.mu.Lock()
	raise := len(risks) > 0 && !st.pestAlerted
	st.pestAlerted = len(risks) > 0
	s.mu.Unlock()
	if !raise {
		return
	}

	names := make([]string, len(risks))
	for i, r := range risks {
		names[i] = r.Name
	}
	alert := messages.NewAlertEvent(m.FieldID, m.SensorID, messages.AlertPestWeather, entities.SeverityWarn,
		fmt.Sprintf("canopy at %.0f°C and %.0f%% humidity favours %s, scout the field", m.TemperatureC, m.HumidityPct, strings.Join(names, ", ")))
	s.publishAlert(alert)
}

func (s *Service) lowestGuard() float64 {
	guards := s.advisor.cfg.GuardLevels
	if len(guards) == 0 {
		return 25
	}
	low := guards[0]
	for _, g := range guards[1:] {
		if g < low {
			low = g
		}
	}
	return low
}

// ===================== advisory loop =====================

// Run issues advisories for every registered field once per interval.
// It blocks until the context closes.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, f := range s.Fields() {
				if _, err := s.IssueAdvisory(ctx, f.ID); err != nil {
					s.log.Errorw("advisory failed", "field", f.ID, "error", err)
				}
			}
		}
	}
}

// IssueAdvisory builds and publishes a report for one registered field.
func (s *Service) IssueAdvisory(ctx context.Context, fieldID string) (*entities.AdvisoryReport, error) {
	f, ok := s.Field(fieldID)
	if !ok {
		return nil, fmt.Errorf("advisory: field %s is not registered", fieldID)
	}

	pc := s.planContext(&f)
	req := AnalyzeRequest{
		Crop:      f.Crop,
		District:  f.District,
		SoilType:  f.SoilType,
		AreaAcres: f.AreaHa / haPerAcre,
		Lang:      f.Lang,
	}
	report, err := s.advisor.BuildAdvisory(ctx, req, pc)
	if err != nil {
		return nil, err
	}

	evt := messages.AdvisoryIssuedEvent{
		ReportID:    report.ID,
		FieldID:     f.ID,
		Crop:        report.Crop,
		District:    report.District,
		Feasible:    report.Feasibility.Feasible,
		Probability: report.Feasibility.Probability,
		Steps:       len(report.Steps),
		Lang:        report.Lang,
		Timestamp:   s.now().UTC(),
	}
	if report.Irrigation != nil {
		evt.DoseMM = report.Irrigation.DoseMM
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	topic := strings.NewReplacer("{field}", f.ID).Replace(advisoryTopicTemplate)
	if err := s.publisher.PublishToQos(topic, 1, false, string(payload)); err != nil {
		return nil, fmt.Errorf("advisory: publish report: %w", err)
	}
	s.log.Infow("advisory issued", "field", f.ID, "report", report.ID,
		"feasible", evt.Feasible, "dose_mm", evt.DoseMM, "steps", evt.Steps)

	for _, step := range report.Steps {
		if step.Category != entities.StepPest {
			continue
		}
		alert := messages.NewAlertEvent(f.ID, "", messages.AlertPestWeather, step.Severity, step.Title)
		s.publishAlertTo(f.ID, weatherSensorSlot, alert)
	}
	return report, nil
}

// planContext folds the freshest sensor reading into the plan. With no
// telemetry yet the plan runs unbound on survey data alone.
func (s *Service) planContext(f *entities.Field) PlanContext {
	pc := UnboundPlan()
	pc.FieldID = f.ID
	pc.AreaHa = f.AreaHa
	if !f.SowingDate.IsZero() {
		pc.DaysAfterSowing = f.DaysAfterSowing(s.now())
	}

	s.mu.RLock()
	var freshest *sensorState
	for key, st := range s.state {
		if !strings.HasPrefix(key, f.ID+"|") {
			continue
		}
		if freshest == nil || st.lastSeen.After(freshest.lastSeen) {
			freshest = st
		}
	}
	if freshest != nil {
		pc.SensorID = freshest.reading.SensorID
		pc.MoisturePct = float64(freshest.reading.MoisturePct)
	}
	s.mu.RUnlock()

	if sensor := f.GetSensor(pc.SensorID); sensor != nil {
		pc.MMPerMinute = sensor.MMPerMinute()
		pc.Lat, pc.Lon = sensor.Latitude, sensor.Longitude
	}
	return pc
}

// ===================== publishing =====================

func (s *Service) publishAlert(alert *messages.AlertEvent) {
	s.publishAlertTo(alert.FieldID, alert.SensorID, alert)
}

func (s *Service) publishAlertTo(fieldID, sensorSlot string, alert *messages.AlertEvent) {
	payload, err := json.Marshal(alert)
	if err != nil {
		s.log.Errorw("alert marshal failed", "kind", alert.Kind, "error", err)
		return
	}
	topic := strings.NewReplacer("{field}", fieldID, "{sensor}", sensorSlot).Replace(alertTopicTemplate)
	if err := s.publisher.PublishToQos(topic, 1, false, string(payload)); err != nil {
		s.log.Errorw("alert publish failed", "topic", topic, "error", err)
		return
	}
	s.log.Infow("alert published", "topic", topic, "kind", alert.Kind, "severity", alert.Severity)
}
