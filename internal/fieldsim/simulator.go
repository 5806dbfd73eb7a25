// Package fieldsim stands in for everything outside the platform: the
// soil probes of one field publishing telemetry and the mandi price feed
// for its crop. Probes are seeded once from SoilGrids so the opening
// moisture matches the real soil at the configured coordinates, then dry
// out until an irrigation advisory wets them again.
package fieldsim

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
	"github.com/thoufik1111/AgroNITY/pkg/broker"
	"github.com/thoufik1111/AgroNITY/pkg/dedup"
)

const (
	rawTopicTemplate   = "sensor/data/{field}/{sensor}"
	priceTopicTemplate = "market/price/{crop}/{district}"
)

// Config are the knobs of one simulated field.
type Config struct {
	ReadInterval   time.Duration
	PriceInterval  time.Duration
	DecayPerMin    float64
	BasePriceRsQtl float64
	PriceSpreadPct float64
}

type Simulator struct {
	field     entities.Field
	gens      []*Generator
	consumer  broker.IConsumer[messages.AdvisoryIssuedEvent]
	publisher broker.IPublisher
	soil      *SoilGrids
	feed      *PriceFeed
	cfg       Config
	deduper   *dedup.Deduper
	log       *zap.SugaredLogger

	now func() time.Time
}

// New builds a simulator for field with one generator per sensor. soil may
// be nil, in which case every probe opens from the default seed.
func New(field entities.Field, consumer broker.IConsumer[messages.AdvisoryIssuedEvent],
	publisher broker.IPublisher, soil *SoilGrids, cfg Config, rng *rand.Rand,
	log *zap.SugaredLogger) *Simulator {

	if cfg.ReadInterval <= 0 {
		cfg.ReadInterval = 15 * time.Second
	}
	if cfg.PriceInterval <= 0 {
		cfg.PriceInterval = time.Minute
	}
	if cfg.BasePriceRsQtl <= 0 {
		cfg.BasePriceRsQtl = 2000
	}

	gens := make([]*Generator, 0, len(field.Sensors))
	for i := range field.Sensors {
		gens = append(gens, NewGenerator(&field.Sensors[i], cfg.DecayPerMin, rng))
	}
	return &Simulator{
		field:     field,
		gens:      gens,
		consumer:  consumer,
		publisher: publisher,
		soil:      soil,
		feed:      NewPriceFeed(field.Crop, field.District, cfg.BasePriceRsQtl, cfg.PriceSpreadPct, rng),
		cfg:       cfg,
		deduper:   dedup.New(2*time.Minute, 10000),
		log:       log,
		now:       time.Now,
	}
}

// Start seeds every probe, then publishes telemetry and price ticks on
// their intervals until ctx closes.
func (s *Simulator) Start(ctx context.Context) {
	s.seedProbes(ctx)

	s.consumer.SetHandler(s.handleAdvisory)
	go s.consumer.ConsumeMessage(ctx)

	readTick := time.NewTicker(s.cfg.ReadInterval)
	priceTick := time.NewTicker(s.cfg.PriceInterval)
	defer readTick.Stop()
	defer priceTick.Stop()

	// first quote up front, the market should not wait a full interval
	s.publishPrice()

	for {
		select {
		case <-ctx.Done():
			s.publisher.Close()
			return
		case <-readTick.C:
			s.publishReadings()
		case <-priceTick.C:
			s.publishPrice()
		}
	}
}

func (s *Simulator) seedProbes(ctx context.Context) {
	for _, g := range s.gens {
		sn := g.sensor
		if s.soil == nil || (sn.Latitude == 0 && sn.Longitude == 0) {
			continue
		}
		m, err := s.soil.SurfaceMoisture(ctx, sn.Latitude, sn.Longitude)
		if err != nil {
			s.log.Warnw("soilgrids seed failed, probe opens from default",
				"sensor", sn.ID, "error", err)
			continue
		}
		g.Seed(m)
		s.log.Infow("probe seeded from soilgrids", "sensor", sn.ID, "moisture", m)
	}
}

// handleAdvisory wets the soil when an irrigation advisory lands on this
// field. QoS1 redeliveries carry the same payload, so a payload hash is
// enough to drop them.
func (s *Simulator) handleAdvisory(_ string, msg mqtt.Message) error {
	h := sha256.Sum256(msg.Payload())
	if !s.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		return nil
	}

	var evt messages.AdvisoryIssuedEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		return fmt.Errorf("malformed advisory event: %w", err)
	}
	if evt.FieldID != s.field.ID || evt.DoseMM <= 0 {
		return nil
	}

	for _, g := range s.gens {
		g.Irrigate(evt.DoseMM)
	}
	s.log.Infow("irrigation dose applied", "report", evt.ReportID, "dose_mm", evt.DoseMM)
	return nil
}

func (s *Simulator) publishReadings() {
	now := s.now().UTC()
	for _, g := range s.gens {
		r := g.Next(now)
		b, err := json.Marshal(r)
		if err != nil {
			s.log.Errorw("marshal reading", "sensor", r.SensorID, "error", err)
			continue
		}
		topic := strings.NewReplacer("{field}", r.FieldID, "{sensor}", r.SensorID).
			Replace(rawTopicTemplate)
		if err := s.publisher.PublishToQos(topic, 0, false, string(b)); err != nil {
			s.log.Errorw("publish reading", "topic", topic, "error", err)
			continue
		}
		s.log.Debugw("published reading", "topic", topic, "moisture_pct", r.MoisturePct)
	}
}

func (s *Simulator) publishPrice() {
	tick := s.feed.Next(s.now().UTC())
	b, err := json.Marshal(tick)
	if err != nil {
		s.log.Errorw("marshal price tick", "error", err)
		return
	}
	topic := strings.NewReplacer("{crop}", tick.Crop, "{district}", tick.District).
		Replace(priceTopicTemplate)
	if err := s.publisher.PublishToQos(topic, 1, false, string(b)); err != nil {
		s.log.Errorw("publish price tick", "topic", topic, "error", err)
		return
	}
	s.log.Debugw("published price", "topic", topic, "price", tick.PriceRsQtl)
}
