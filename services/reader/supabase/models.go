// Package supabase provides the meter reader's database models and
// operations against the hosted store.
package supabase

import "time"

// Table and view names.
const (
	TableReadings = "meter_readings"
	ViewStats     = "meter_statistics"
)

// List pagination bounds. Caller-supplied limits are clamped server-side.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ReadingRow is one persisted meter reading: the denormalized union of the
// extracted reading and its processing metrics, scoped to a user. Created
// exactly once per accepted upload and never updated by this service.
type ReadingRow struct {
	ID               string    `json:"id,omitempty"`
	UserID           string    `json:"user_id"`
	MeterID          string    `json:"meter_id"`
	MeterType        string    `json:"meter_type"`
	ReadingValue     float64   `json:"reading_value"`
	Unit             string    `json:"unit"`
	Confidence       string    `json:"confidence"`
	ConfidenceScore  float64   `json:"confidence_score"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	ImageSizeBytes   int       `json:"image_size_bytes"`
	CreatedAt        time.Time `json:"created_at"`
}

// Filter restricts and paginates a readings list.
type Filter struct {
	MeterID string
	Limit   int
	Offset  int
}

// Normalize applies pagination defaults and the server-side cap.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
