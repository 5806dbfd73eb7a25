package entities

import "time"

// PriceQuote is a mandi (wholesale market) modal price for one crop in
// one district. Stale marks quotes served from cache past their refresh
// window.
type PriceQuote struct {
	Crop       string    `json:"crop"`
	District   string    `json:"district"`
	Market     string    `json:"market,omitempty"`
	PriceRsQtl float64   `json:"price_rs_per_quintal"`
	At         time.Time `json:"at"`
	Stale      bool      `json:"stale,omitempty"`
}
