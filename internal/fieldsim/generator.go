package fieldsim

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
	"github.com/thoufik1111/AgroNITY/internal/model/messages"
)

const (
	// defaultSeed applies when SoilGrids has no answer for the probe's
	// coordinates.
	defaultSeed = 0.30

	// fallbackDepthMM stands in for probes that report no depth.
	fallbackDepthMM = 300.0
)

// Generator holds the simulated soil state under one probe. Moisture is
// volumetric in [0..1]; it dries at a configured rate and jumps when an
// irrigation dose lands. Temperature and humidity follow a diurnal curve
// with a little noise.
type Generator struct {
	mu       sync.Mutex
	sensor   *entities.Sensor
	moisture float64
	decayMin float64 // moisture lost per minute while drying
	seeded   bool
	last     time.Time
	rng      *rand.Rand
}

func NewGenerator(sensor *entities.Sensor, decayPerMin float64, rng *rand.Rand) *Generator {
	return &Generator{
		sensor:   sensor,
		decayMin: math.Max(0, decayPerMin),
		rng:      rng,
	}
}

// Seed fixes the opening moisture, normally from SoilGrids. Only the first
// call counts; Next seeds the default if nobody called Seed before it.
func (g *Generator) Seed(moisture01 float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seeded {
		return
	}
	g.moisture = clamp01(moisture01)
	g.seeded = true
}

// Moisture reports the current volumetric content.
func (g *Generator) Moisture() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.moisture
}

// Irrigate spreads the advised dose over the probe's root zone. One
// millimetre of water per millimetre of soil column is one unit of
// volumetric content. A dose landing before the first sample seeds the
// default first so the boost survives.
func (g *Generator) Irrigate(doseMM float64) {
	if doseMM <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seeded {
		g.moisture = defaultSeed
		g.seeded = true
	}
	depthMM := float64(g.sensor.DepthCM) * 10
	if depthMM <= 0 {
		depthMM = fallbackDepthMM
	}
	g.moisture = clamp01(g.moisture + doseMM/depthMM)
}

// Next advances the walk to now and returns one telemetry sample.
func (g *Generator) Next(now time.Time) messages.SensorReading {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.seeded {
		g.moisture = defaultSeed
		g.seeded = true
	}
	if !g.last.IsZero() {
		if dtMin := now.Sub(g.last).Minutes(); dtMin > 0 {
			g.moisture = clamp01(g.moisture - g.decayMin*dtMin)
		}
	}
	g.last = now
	g.moisture = clamp01(g.moisture + (g.rng.Float64()-0.5)*0.004)

	temp, humidity := diurnal(now)
	temp += (g.rng.Float64() - 0.5) * 1.5
	humidity += (g.rng.Float64() - 0.5) * 5

	return messages.SensorReading{
		FieldID:      g.sensor.FieldID,
		SensorID:     g.sensor.ID,
		MoisturePct:  int(math.Round(g.moisture * 100)),
		TemperatureC: round1(temp),
		HumidityPct:  round1(clampF(humidity, 20, 100)),
		Timestamp:    now,
	}
}

// diurnal puts the daily temperature peak mid-afternoon and the humidity
// trough opposite it.
func diurnal(now time.Time) (tempC, humidityPct float64) {
	h := float64(now.Hour()) + float64(now.Minute())/60
	phase := math.Sin(2 * math.Pi * (h - 9) / 24)
	return 27 + 6*phase, 65 - 18*phase
}

func round1(x float64) float64 { return math.Round(x*10) / 10 }

func clamp01(x float64) float64 { return clampF(x, 0, 1) }

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
