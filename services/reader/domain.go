// Package reader implements the meter reading service: it accepts meter
// photographs, extracts the displayed reading through a vision model, and
// persists the structured result per user.
package reader

// MeterType is the utility category of a physical meter.
type MeterType string

const (
	MeterTypeElectricity MeterType = "electricity"
	MeterTypeWater       MeterType = "water"
	MeterTypeGas         MeterType = "gas"
	MeterTypeUnknown     MeterType = "unknown"
)

// ConfidenceLevel is the model's categorical self-estimate of reliability.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Defaults substituted for missing or uncoercible fields. Every field of a
// MeterReading is always populated; absence upstream never propagates.
const (
	DefaultMeterID = "UNKNOWN"
	DefaultUnit    = "unknown"
)

// MeterReading is one extracted meter reading.
type MeterReading struct {
	MeterID      string          `json:"meter_id"`
	MeterType    MeterType       `json:"meter_type"`
	ReadingValue float64         `json:"reading_value"`
	Unit         string          `json:"unit"`
	Confidence   ConfidenceLevel `json:"confidence"`
	RawResponse  string          `json:"raw_response"`
}

// ProcessingMetrics captures per-request extraction metrics.
type ProcessingMetrics struct {
	ProcessingTimeMS int64   `json:"processing_time_ms"`
	ImageSizeBytes   int     `json:"image_size_bytes"`
	ConfidenceScore  float64 `json:"confidence_score"`
}
