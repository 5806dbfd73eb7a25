package advisory

import (
	"math"
	"sync"
	"time"
)

// WaterBudget caps how many millimetres of irrigation the advisories may
// hand one sensor in one local day. The day's total is computed once
// from that day's weather and drawn down by every dose issued, so a
// burst of repeated advisories cannot recommend flooding the field.
type WaterBudget struct {
	baseMM   float64
	etoCoeff float64

	mu    sync.Mutex
	day   map[string]time.Time
	total map[string]float64
	left  map[string]float64
}

func NewWaterBudget(baseMM, etoCoeff float64) *WaterBudget {
	return &WaterBudget{
		baseMM:   baseMM,
		etoCoeff: etoCoeff,
		day:      make(map[string]time.Time),
		total:    make(map[string]float64),
		left:     make(map[string]float64),
	}
}

// Remaining returns the unspent budget for the key on the given day,
// computing the day's total from weather on first call. A new day
// resets the ledger for the key.
func (b *WaterBudget) Remaining(key string, day time.Time, et0, rain float64) (left, total float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.day[key]; ok && cur.Equal(day) {
		return b.left[key], b.total[key]
	}
	t := b.baseMM + b.etoCoeff*math.Max(0, et0-rain)
	b.day[key] = day
	b.total[key] = t
	b.left[key] = t
	return t, t
}

// Deduct subtracts an issued dose and returns what is left. Doses for a
// day the ledger no longer tracks are ignored.
func (b *WaterBudget) Deduct(key string, day time.Time, mm float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.day[key]; !ok || !cur.Equal(day) {
		return 0
	}
	left := b.left[key] - mm
	if left < 0 {
		left = 0
	}
	b.left[key] = left
	return left
}

// midnightLocal truncates t to the start of its day in loc.
func midnightLocal(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}
