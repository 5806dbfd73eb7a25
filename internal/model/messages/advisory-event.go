package messages

import "time"

// AdvisoryIssuedEvent is published on event/advisory/{field} whenever the
// advisory service issues a report for a registered field.
type AdvisoryIssuedEvent struct {
	ReportID    string    `json:"report_id"`
	FieldID     string    `json:"field_id"`
	Crop        string    `json:"crop"`
	District    string    `json:"district"`
	Feasible    bool      `json:"feasible"`
	Probability float64   `json:"probability"`
	DoseMM      float64   `json:"dose_mm"`
	Steps       int       `json:"steps"`
	Lang        string    `json:"lang,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
