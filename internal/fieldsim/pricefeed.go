package fieldsim

import (
	"math"
	"math/rand"
	"time"

	"github.com/thoufik1111/AgroNITY/internal/model/messages"
)

// PriceFeed emits mandi quotes for one crop and district as a bounded
// random walk around the catalog base price.
type PriceFeed struct {
	crop     string
	district string
	market   string
	base     float64
	price    float64
	spread   float64 // max fraction above or below base
	rng      *rand.Rand
}

func NewPriceFeed(crop, district string, baseRsQtl, spreadPct float64, rng *rand.Rand) *PriceFeed {
	if spreadPct <= 0 {
		spreadPct = 10
	}
	return &PriceFeed{
		crop:     crop,
		district: district,
		market:   district + " Regulated Market",
		base:     baseRsQtl,
		price:    baseRsQtl,
		spread:   spreadPct / 100,
		rng:      rng,
	}
}

// Next moves the walk one step and returns the quote. A step is at most
// one percent of base, and the walk never leaves the spread band.
func (p *PriceFeed) Next(now time.Time) messages.PriceTickEvent {
	step := (p.rng.Float64()*2 - 1) * 0.01 * p.base
	p.price = clampF(p.price+step, p.base*(1-p.spread), p.base*(1+p.spread))
	return messages.PriceTickEvent{
		Crop:       p.crop,
		District:   p.district,
		Market:     p.market,
		PriceRsQtl: math.Round(p.price*100) / 100,
		Timestamp:  now,
	}
}
