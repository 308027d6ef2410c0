package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Layouts tried in order for string timestamps. Offset-less layouts are
// interpreted as UTC so the same input always produces the same instant.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerceTimestamp converts a raw timestamp value into an absolute point in
// time. Accepted shapes: an already-structured time value, an epoch-seconds
// number (fractional seconds preserved), or an ISO-8601-like string with or
// without a trailing UTC marker. Anything else is a hard validation failure.
func coerceTimestamp(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case float64:
		return epochToTime(v), nil
	case int:
		return epochToTime(float64(v)), nil
	case int64:
		return epochToTime(float64(v)), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", v.String())
		}
		return epochToTime(f), nil
	case string:
		return parseTimestampString(v)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %v (%T)", value, value)
	}
}

func parseTimestampString(s string) (time.Time, error) {
	// Numeric strings are epoch seconds too.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(f), nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}

func epochToTime(seconds float64) time.Time {
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
