package reader

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"

	svcerrors "github.com/metervision/meter-reader/internal/errors"
)

// defaultConfidenceScore is substituted when the model omits the score or
// returns a non-numeric value. The score is deliberately not clamped to
// [0,1]: a numeric value passes through verbatim.
const defaultConfidenceScore = 0.5

var validMeterTypes = map[MeterType]struct{}{
	MeterTypeElectricity: {},
	MeterTypeWater:       {},
	MeterTypeGas:         {},
	MeterTypeUnknown:     {},
}

var validConfidenceLevels = map[ConfidenceLevel]struct{}{
	ConfidenceHigh:   {},
	ConfidenceMedium: {},
	ConfidenceLow:    {},
}

// ParseReading normalizes the model's raw reply into a MeterReading and
// ProcessingMetrics pair. The reply must be valid JSON once code-fence
// markers are stripped; each field is coerced with a fixed default when
// missing, null, or uncoercible. elapsed covers the full extraction call
// including encoding, and imageSize is the uploaded byte length.
func ParseReading(raw string, imageSize int, elapsed time.Duration) (MeterReading, ProcessingMetrics, error) {
	stripped := stripCodeFences(raw)

	if !gjson.Valid(stripped) {
		return MeterReading{}, ProcessingMetrics{}, svcerrors.Parse("invalid JSON response from vision model", raw)
	}
	parsed := gjson.Parse(stripped)

	reading := MeterReading{
		MeterID:      coerceString(parsed.Get("meter_id"), DefaultMeterID),
		MeterType:    coerceMeterType(parsed.Get("meter_type")),
		ReadingValue: coerceNumber(parsed.Get("reading_value"), 0),
		Unit:         coerceString(parsed.Get("unit"), DefaultUnit),
		Confidence:   coerceConfidence(parsed.Get("confidence")),
		RawResponse:  raw,
	}

	metrics := ProcessingMetrics{
		ProcessingTimeMS: elapsed.Milliseconds(),
		ImageSizeBytes:   imageSize,
		ConfidenceScore:  coerceNumber(parsed.Get("confidence_score"), defaultConfidenceScore),
	}

	return reading, metrics, nil
}

// stripCodeFences removes leading/trailing Markdown code-fence markers so a
// fenced reply parses identically to its unwrapped equivalent.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func coerceString(r gjson.Result, fallback string) string {
	switch r.Type {
	case gjson.String:
		if r.Str == "" {
			return fallback
		}
		return r.Str
	case gjson.Number:
		// Numeric identifiers are stringified, not rejected.
		return r.String()
	default:
		return fallback
	}
}

func coerceNumber(r gjson.Result, fallback float64) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Num
	case gjson.String:
		if f := r.Float(); f != 0 || isZeroNumeric(r.Str) {
			return f
		}
		return fallback
	default:
		return fallback
	}
}

// isZeroNumeric distinguishes a string that genuinely parses to zero from a
// non-numeric string, which Float() also reports as zero.
func isZeroNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	seenDigit := false
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			if c != '0' {
				return false
			}
			seenDigit = true
		case c == '-' || c == '+':
			if i != 0 {
				return false
			}
		case c == '.':
			// allowed
		default:
			return false
		}
	}
	return seenDigit
}

func coerceMeterType(r gjson.Result) MeterType {
	if r.Type == gjson.String {
		if t := MeterType(r.Str); isValidMeterType(t) {
			return t
		}
	}
	return MeterTypeUnknown
}

func isValidMeterType(t MeterType) bool {
	_, ok := validMeterTypes[t]
	return ok
}

func coerceConfidence(r gjson.Result) ConfidenceLevel {
	if r.Type == gjson.String {
		if c := ConfidenceLevel(r.Str); isValidConfidence(c) {
			return c
		}
	}
	return ConfidenceLow
}

func isValidConfidence(c ConfidenceLevel) bool {
	_, ok := validConfidenceLevels[c]
	return ok
}
