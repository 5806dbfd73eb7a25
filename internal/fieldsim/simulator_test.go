package fieldsim

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (f *fakeMessage) Duplicate() bool   { return false }
func (f *fakeMessage) Qos() byte         { return 1 }
func (f *fakeMessage) Retained() bool    { return false }
func (f *fakeMessage) Topic() string     { return f.topic }
func (f *fakeMessage) MessageID() uint16 { return 0 }
func (f *fakeMessage) Payload() []byte   { return f.payload }
func (f *fakeMessage) Ack()              {}

type fakeConsumer struct {
	handler func(topic string, message mqtt.Message) error
}

func (f *fakeConsumer) ConsumeMessage(ctx context.Context) {}
func (f *fakeConsumer) SetHandler(h func(topic string, message mqtt.Message) error) {
	f.handler = h
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (c *capturePublisher) PublishMessage(payload string) error {
	return c.PublishToQos("", 0, false, payload)
}

func (c *capturePublisher) PublishToQos(topic string, qos byte, retained bool, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload})
	return nil
}

func (c *capturePublisher) Close() {}

func (c *capturePublisher) all() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.msgs...)
}

func testField() entities.Field {
	return entities.Field{
		ID: "f-1", District: "Thanjavur", SoilType: "Alluvial", Crop: "Paddy",
		Sensors: []entities.Sensor{
			{FieldID: "f-1", ID: "s-1", DepthCM: 30, FlowLpm: 10, AreaM2: 2},
			{FieldID: "f-1", ID: "s-2", DepthCM: 30, FlowLpm: 10, AreaM2: 2},
		},
	}
}

func newTestSimulator() (*Simulator, *capturePublisher) {
	pub := &capturePublisher{}
	sim := New(testField(), &fakeConsumer{}, pub, nil, Config{
		ReadInterval:   15 * time.Second,
		PriceInterval:  time.Minute,
		DecayPerMin:    0.0005,
		BasePriceRsQtl: 2205,
		PriceSpreadPct: 10,
	}, rand.New(rand.NewSource(1)), zap.NewNop().Sugar())
	return sim, pub
}

func deliverAdvisory(t *testing.T, sim *Simulator, evt messages.AdvisoryIssuedEvent) error {
	t.Helper()
	b, err := json.Marshal(evt)
	require.NoError(t, err)
	topic := "event/advisory/" + evt.FieldID
	return sim.handleAdvisory(topic, &fakeMessage{topic: topic, payload: b})
}

func TestPublishReadingsCoversEveryProbe(t *testing.T) {
	sim, pub := newTestSimulator()

	sim.publishReadings()

	msgs := pub.all()
	require.Len(t, msgs, 2)

	topics := map[string]bool{}
	for _, m := range msgs {
		assert.Equal(t, byte(0), m.qos)
		topics[m.topic] = true

		var r messages.SensorReading
		require.NoError(t, json.Unmarshal([]byte(m.payload), &r))
		assert.Equal(t, "f-1", r.FieldID)
		assert.InDelta(t, 30, r.MoisturePct, 1)
		assert.False(t, r.Aggregated)
		assert.False(t, r.Timestamp.IsZero())
	}
	assert.True(t, topics["sensor/data/f-1/s-1"])
	assert.True(t, topics["sensor/data/f-1/s-2"])
}

func TestAdvisoryDoseWetsEveryProbe(t *testing.T) {
	sim, _ := newTestSimulator()
	for _, g := range sim.gens {
		g.Seed(0.3)
	}

	err := deliverAdvisory(t, sim, messages.AdvisoryIssuedEvent{
		ReportID: "r-1", FieldID: "f-1", Crop: "Paddy", Feasible: true, DoseMM: 30,
	})
	require.NoError(t, err)

	for _, g := range sim.gens {
		assert.InDelta(t, 0.4, g.Moisture(), 1e-9)
	}
}

func TestDuplicateAdvisoryAppliedOnce(t *testing.T) {
	sim, _ := newTestSimulator()
	for _, g := range sim.gens {
		g.Seed(0.3)
	}

	evt := messages.AdvisoryIssuedEvent{ReportID: "r-1", FieldID: "f-1", DoseMM: 30}
	require.NoError(t, deliverAdvisory(t, sim, evt))
	require.NoError(t, deliverAdvisory(t, sim, evt))
	assert.InDelta(t, 0.4, sim.gens[0].Moisture(), 1e-9)

	// a fresh report is not a redelivery
	evt.ReportID = "r-2"
	require.NoError(t, deliverAdvisory(t, sim, evt))
	assert.InDelta(t, 0.5, sim.gens[0].Moisture(), 1e-9)
}

func TestAdvisoryForOtherFieldIgnored(t *testing.T) {
	sim, _ := newTestSimulator()
	sim.gens[0].Seed(0.3)

	require.NoError(t, deliverAdvisory(t, sim, messages.AdvisoryIssuedEvent{
		ReportID: "r-9", FieldID: "f-9", DoseMM: 30,
	}))
	assert.InDelta(t, 0.3, sim.gens[0].Moisture(), 1e-9)
}

func TestAdvisoryWithoutDoseIgnored(t *testing.T) {
	sim, _ := newTestSimulator()
	sim.gens[0].Seed(0.3)

	require.NoError(t, deliverAdvisory(t, sim, messages.AdvisoryIssuedEvent{
		ReportID: "r-3", FieldID: "f-1", Feasible: false, DoseMM: 0,
	}))
	assert.InDelta(t, 0.3, sim.gens[0].Moisture(), 1e-9)
}

func TestMalformedAdvisoryRejected(t *testing.T) {
	sim, _ := newTestSimulator()
	err := sim.handleAdvisory("event/advisory/f-1",
		&fakeMessage{topic: "event/advisory/f-1", payload: []byte("{not json")})
	require.Error(t, err)
}

func TestPriceTickTopicAndBand(t *testing.T) {
	sim, pub := newTestSimulator()

	sim.publishPrice()

	msgs := pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "market/price/Paddy/Thanjavur", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)

	var tick messages.PriceTickEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].payload), &tick))
	assert.Equal(t, "Paddy", tick.Crop)
	assert.Equal(t, "Thanjavur", tick.District)
	assert.Equal(t, "Thanjavur Regulated Market", tick.Market)
	assert.GreaterOrEqual(t, tick.PriceRsQtl, 2205*0.9)
	assert.LessOrEqual(t, tick.PriceRsQtl, 2205*1.1)
}
