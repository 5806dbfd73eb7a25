package entities

import "time"

// Field represents a registered tract of land growing a particular crop,
// and contains one or more sensors.
type Field struct {
	ID         string    `json:"id"`
	FarmerName string    `json:"farmer_name,omitempty"`
	District   string    `json:"district"`
	SoilType   string    `json:"soil_type"`
	Crop       string    `json:"crop"`
	AreaHa     float64   `json:"area_ha"`
	SowingDate time.Time `json:"sowing_date"`
	Lang       string    `json:"lang,omitempty"` // preferred advisory language, e.g. "ta"
	Sensors    []Sensor  `json:"sensors"`
}

func (f *Field) GetSensor(sensorID string) *Sensor {
	for i := range f.Sensors {
		if f.Sensors[i].ID == sensorID {
			return &f.Sensors[i]
		}
	}
	return nil
}

// DaysAfterSowing reports the age of the standing crop at t, floored at zero
// for fields registered ahead of sowing.
func (f *Field) DaysAfterSowing(t time.Time) int {
	d := int(t.Sub(f.SowingDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
