package advisory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
)

func newTestService(t *testing.T) (*Service, *fakePublisher, *fakeConsumer) {
	t.Helper()
	adv, _ := newTestAdvisor(t, nil, nil)
	pub := &fakePublisher{}
	cons := &fakeConsumer{}
	svc := NewService(adv, cons, pub, time.Hour, zap.NewNop().Sugar())
	svc.Start(context.Background()) // fake consumer returns at once, handler is now installed
	return svc, pub, cons
}

func paddyField() entities.Field {
	return entities.Field{
		ID: "f-1", District: "Thanjavur", SoilType: "Alluvial", Crop: "Paddy", AreaHa: 1.2,
		Sensors: []entities.Sensor{{
			ID: "s-1", Latitude: 10.79, Longitude: 79.14, FlowLpm: 10, AreaM2: 2,
		}},
	}
}

func deliver(t *testing.T, cons *fakeConsumer, topic string, reading messages.SensorReading) {
	t.Helper()
	payload, err := json.Marshal(reading)
	require.NoError(t, err)
	require.NoError(t, cons.handler(topic, &fakeMessage{topic: topic, payload: payload}))
}

func reading(moisture int, tempC, humidity float64, at time.Time) messages.SensorReading {
	return messages.SensorReading{
		FieldID: "f-1", SensorID: "s-1",
		MoisturePct: moisture, TemperatureC: tempC, HumidityPct: humidity,
		Aggregated: true, Timestamp: at,
	}
}

func decodeAlert(t *testing.T, p published) messages.AlertEvent {
	t.Helper()
	var a messages.AlertEvent
	require.NoError(t, json.Unmarshal([]byte(p.payload), &a))
	return a
}

func TestFieldRegistry(t *testing.T) {
	svc, _, _ := newTestService(t)

	require.Error(t, svc.UpsertField(entities.Field{District: "Thanjavur"}))

	require.NoError(t, svc.UpsertField(paddyField()))
	f, ok := svc.Field("f-1")
	require.True(t, ok)
	assert.Equal(t, "f-1", f.Sensors[0].FieldID)

	other := paddyField()
	other.ID = "f-0"
	require.NoError(t, svc.UpsertField(other))

	fields := svc.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "f-0", fields[0].ID)
	assert.Equal(t, "f-1", fields[1].ID)

	assert.True(t, svc.DeleteField("f-0"))
	assert.False(t, svc.DeleteField("f-0"))
	_, ok = svc.Field("f-0")
	assert.False(t, ok)
}

func TestMoistureAlerts(t *testing.T) {
	svc, pub, cons := newTestService(t)
	require.NoError(t, svc.UpsertField(paddyField()))

	topic := "sensor/aggregated/f-1/s-1"
	base := time.Now().UTC()

	// 10% against the 25% floor guard, deep enough to be urgent
	deliver(t, cons, topic, reading(10, 22, 40, base))
	msgs := pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "event/alert/f-1/s-1", msgs[0].topic)
	alert := decodeAlert(t, msgs[0])
	assert.Equal(t, messages.AlertMoistureLow, alert.Kind)
	assert.Equal(t, entities.SeverityUrgent, alert.Severity)
	assert.InDelta(t, 10, alert.Value, 0.001)
	assert.InDelta(t, 25, alert.Threshold, 0.001)

	// still dry: the spell has already been alerted
	deliver(t, cons, topic, reading(12, 22, 40, base.Add(time.Minute)))
	assert.Len(t, pub.all(), 1)

	// recovery clears the latch
	deliver(t, cons, topic, reading(50, 22, 40, base.Add(2*time.Minute)))
	assert.Len(t, pub.all(), 1)

	// a fresh dry spell alerts again, shallower this time
	deliver(t, cons, topic, reading(20, 22, 40, base.Add(3*time.Minute)))
	msgs = pub.all()
	require.Len(t, msgs, 2)
	alert = decodeAlert(t, msgs[1])
	assert.Equal(t, messages.AlertMoistureLow, alert.Kind)
	assert.Equal(t, entities.SeverityWarn, alert.Severity)

	// waterlogging trips the high guard
	deliver(t, cons, topic, reading(95, 22, 40, base.Add(4*time.Minute)))
	msgs = pub.all()
	require.Len(t, msgs, 3)
	alert = decodeAlert(t, msgs[2])
	assert.Equal(t, messages.AlertMoistureHigh, alert.Kind)
}

func TestPestWeatherAlert(t *testing.T) {
	svc, pub, cons := newTestService(t)
	require.NoError(t, svc.UpsertField(paddyField()))

	topic := "sensor/aggregated/f-1/s-1"
	base := time.Now().UTC()

	// 28°C at 88% humidity suits both paddy pests
	deliver(t, cons, topic, reading(50, 28, 88, base))
	msgs := pub.all()
	require.Len(t, msgs, 1)
	alert := decodeAlert(t, msgs[0])
	assert.Equal(t, messages.AlertPestWeather, alert.Kind)
	assert.Contains(t, alert.Message, "Brown planthopper")

	// conditions stay favourable: same spell, no repeat
	deliver(t, cons, topic, reading(50, 28.5, 87, base.Add(time.Minute)))
	assert.Len(t, pub.all(), 1)

	// a cool dry spell resets the latch
	deliver(t, cons, topic, reading(50, 20, 40, base.Add(2*time.Minute)))
	assert.Len(t, pub.all(), 1)

	deliver(t, cons, topic, reading(50, 28, 86, base.Add(3*time.Minute)))
	assert.Len(t, pub.all(), 2)
}

func TestDuplicateDeliveryDropped(t *testing.T) {
	svc, pub, cons := newTestService(t)
	require.NoError(t, svc.UpsertField(paddyField()))

	topic := "sensor/aggregated/f-1/s-1"
	at := time.Now().UTC()
	favourable, err := json.Marshal(reading(50, 28, 88, at))
	require.NoError(t, err)
	cool, err := json.Marshal(reading(50, 20, 40, at.Add(time.Minute)))
	require.NoError(t, err)

	require.NoError(t, cons.handler(topic, &fakeMessage{topic: topic, payload: favourable}))
	require.Len(t, pub.all(), 1)
	require.NoError(t, cons.handler(topic, &fakeMessage{topic: topic, payload: cool}))

	// a QoS 1 redelivery of the first payload is byte identical and must
	// not raise the pest alert a second time
	require.NoError(t, cons.handler(topic, &fakeMessage{topic: topic, payload: favourable}))
	assert.Len(t, pub.all(), 1)
}

func TestBadTelemetryNeverBlocks(t *testing.T) {
	svc, pub, cons := newTestService(t)
	require.NoError(t, svc.UpsertField(paddyField()))

	require.NoError(t, cons.handler("sensor/aggregated/f-1/s-1", &fakeMessage{
		topic: "sensor/aggregated/f-1/s-1", payload: []byte("{not json"),
	}))
	require.NoError(t, cons.handler("market/price/x", &fakeMessage{
		topic: "market/price/x", payload: []byte(`{"field_id":"f-1"}`),
	}))
	assert.Empty(t, pub.all())
}

func TestIssueAdvisoryPublishes(t *testing.T) {
	svc, pub, cons := newTestService(t)
	require.NoError(t, svc.UpsertField(paddyField()))

	// one clean reading so the plan runs against live moisture
	deliver(t, cons, "sensor/aggregated/f-1/s-1", reading(20, 22, 40, time.Now().UTC()))
	before := len(pub.all()) // the 20% reading already raised a dry alert

	report, err := svc.IssueAdvisory(context.Background(), "f-1")
	require.NoError(t, err)
	assert.Equal(t, "f-1", report.FieldID)
	require.NotNil(t, report.Irrigation)
	// capped by the 7 mm daily budget, urgent at 20% moisture
	assert.InDelta(t, 7.0, report.Irrigation.DoseMM, 0.001)
	assert.InDelta(t, 1, report.Irrigation.RuntimeMin, 0.001)

	msgs := pub.all()
	require.Len(t, msgs, before+1)
	evt := msgs[before]
	assert.Equal(t, "event/advisory/f-1", evt.topic)

	var issued messages.AdvisoryIssuedEvent
	require.NoError(t, json.Unmarshal([]byte(evt.payload), &issued))
	assert.Equal(t, report.ID, issued.ReportID)
	assert.Equal(t, "f-1", issued.FieldID)
	assert.True(t, issued.Feasible)
	assert.InDelta(t, 7.0, issued.DoseMM, 0.001)
	assert.Equal(t, len(report.Steps), issued.Steps)
}

func TestIssueAdvisoryUnknownField(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.IssueAdvisory(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
