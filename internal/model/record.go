package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// dateLayouts are tried in order when parsing snapshot dates. Drive records
// carry RFC 3339 timestamps; supervisor records sometimes omit the timezone.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", value)
}

// asInt64 coerces the loosely typed size values found in raw records.
// Drive reports size as a decimal string, the supervisor as a JSON number
// that may carry a fractional MiB count. Fractions are truncated.
func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return int64(f), true
		}
		return 0, false
	}
	return 0, false
}

func asBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// boolProp reports whether a string property spells boolean true. Only the
// exact spellings "true" and "True" are accepted.
func boolProp(value string) bool {
	return value == "true" || value == "True"
}
