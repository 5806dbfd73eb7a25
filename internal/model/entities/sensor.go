package entities

// Sensor represents a single probe in the field. Flow rate and wetted area
// describe the drip segment the probe sits on, so advisory doses in mm can
// be turned into pump runtime.
type Sensor struct {
	FieldID   string  `json:"field_id"`
	ID        string  `json:"id"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	DepthCM   int     `json:"depth_cm"`            // probe depth
	FlowLpm   float64 `json:"flow_rate,omitempty"` // drip line flow [l/min]
	AreaM2    float64 `json:"area_m2,omitempty"`   // wetted area [m^2]
}

// MMPerMinute converts the segment flow rate to an irrigation depth rate.
// One litre over one square metre is one millimetre of water.
func (s *Sensor) MMPerMinute() float64 {
	if s.AreaM2 <= 0 {
		return 0
	}
	return s.FlowLpm / s.AreaM2
}
