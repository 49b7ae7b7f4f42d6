// Package timestamp parses the loosely typed timestamps found in stats payloads.
// Producers send ISO 8601 strings in several precisions, and some send unix
// numbers in seconds or milliseconds.
package timestamp

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// layouts are tried in order for string input.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parser converts timestamp values to time.Time. The zero Parser is ready to use.
type Parser struct {
	// Location applies to strings without an explicit offset. Defaults to UTC.
	Location *time.Location
}

// NewParser returns a Parser that assumes UTC for zone-less input.
func NewParser() *Parser {
	return &Parser{Location: time.UTC}
}

// ParseTimestamp accepts a string, a JSON number, or a Go numeric type.
// ok is false for empty, unparseable or unsupported input.
func (p *Parser) ParseTimestamp(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false
	case string:
		return p.parseString(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return p.parseString(val.String())
		}
		return parseUnix(f)
	case float64:
		return parseUnix(val)
	case float32:
		return parseUnix(float64(val))
	case int64:
		return parseUnix(float64(val))
	case int:
		return parseUnix(float64(val))
	case time.Time:
		return val, !val.IsZero()
	default:
		return time.Time{}, false
	}
}

func (p *Parser) parseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseUnix picks the unit from the magnitude: seconds up to 1e11 (year 5138),
// then milliseconds, microseconds and nanoseconds. Values past the int64
// nanosecond range are rejected.
func parseUnix(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return time.Time{}, false
	}
	switch {
	case f < 1e11:
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	case f < 1e14:
		return time.UnixMilli(int64(f)).UTC(), true
	case f < 1e17:
		return time.UnixMicro(int64(f)).UTC(), true
	default:
		return time.Unix(0, int64(f)).UTC(), true
	}
}

// IsUnset reports whether t carries no information: the zero time or the unix epoch.
func IsUnset(t time.Time) bool {
	return t.IsZero() || t.Unix() == 0
}

var defaultParser = NewParser()

// Parse is ParseTimestamp on a UTC parser.
func Parse(v any) (time.Time, bool) {
	return defaultParser.ParseTimestamp(v)
}

// Format normalises v to an RFC 3339 UTC string.
func Format(v any) (string, bool) {
	ts, ok := Parse(v)
	if !ok {
		return "", false
	}
	return ts.UTC().Format(time.RFC3339Nano), true
}
