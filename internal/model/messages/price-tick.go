package messages

import "time"

// PriceTickEvent carries one refreshed mandi quote. The field simulator
// publishes it on market/price/{crop}/{district}; the market service lands
// every tick in InfluxDB.
type PriceTickEvent struct {
	Crop       string    `json:"crop"`
	District   string    `json:"district"`
	Market     string    `json:"market,omitempty"`
	PriceRsQtl float64   `json:"price_rs_per_quintal"`
	Timestamp  time.Time `json:"timestamp"`
}
