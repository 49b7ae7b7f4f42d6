package timestamp

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_ISO8601(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name  string
		input string
	}{
		{"RFC3339", "2024-01-15T10:30:45Z"},
		{"RFC3339Nano", "2024-01-15T10:30:45.123456789Z"},
		{"RFC3339 offset", "2024-01-15T10:30:45+05:00"},
		{"millis", "2024-01-15T10:30:45.123Z"},
		{"no zone", "2024-01-15T10:30:45"},
		{"space separated", "2024-01-15 10:30:45"},
		{"date only", "2024-01-15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, ok := p.ParseTimestamp(tt.input)
			require.True(t, ok, "ParseTimestamp(%q)", tt.input)
			assert.Equal(t, 2024, ts.Year())
			assert.Equal(t, time.January, ts.Month())
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	p := NewParser()

	for _, in := range []any{"", "   ", "yesterday", nil, struct{}{}, -5.0} {
		_, ok := p.ParseTimestamp(in)
		assert.False(t, ok, "input %#v", in)
	}
}

func TestParseTimestamp_OutOfRangeNanos(t *testing.T) {
	p := NewParser()

	for _, in := range []any{1e19, float64(math.MaxInt64), json.Number("1e30"), math.MaxFloat64} {
		_, ok := p.ParseTimestamp(in)
		assert.False(t, ok, "input %#v", in)
	}

	ts, ok := p.ParseTimestamp(1.7e18)
	require.True(t, ok)
	assert.Equal(t, time.Unix(0, 1.7e18).UTC(), ts)
}

func TestParseTimestamp_UnixSeconds(t *testing.T) {
	ts, ok := Parse(float64(946684800))
	require.True(t, ok)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), ts)
}

func TestParseTimestamp_UnixMillis(t *testing.T) {
	ts, ok := Parse(int64(1705312245000))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 50, 45, 0, time.UTC), ts)
}

func TestParseTimestamp_JSONNumber(t *testing.T) {
	ts, ok := Parse(json.Number("946684800"))
	require.True(t, ok)
	assert.Equal(t, 2000, ts.Year())
}

func TestFormat(t *testing.T) {
	s, ok := Format("2024-01-15T10:30:45+01:00")
	require.True(t, ok)
	assert.Equal(t, "2024-01-15T09:30:45Z", s)

	_, ok = Format("not a time")
	assert.False(t, ok)
}

func TestIsUnset(t *testing.T) {
	assert.True(t, IsUnset(time.Time{}))
	assert.True(t, IsUnset(time.Unix(0, 0)))
	assert.False(t, IsUnset(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}
