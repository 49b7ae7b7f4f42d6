package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatePatch_AbsentFieldsMeanNoChange(t *testing.T) {
	var p AggregatePatch
	require.NoError(t, json.Unmarshal([]byte(`{"today":5,"total":0}`), &p))

	prev := AggregateStats{LastUpdate: "2025-01-15 09:30", Today: 3, ThisWeek: 20, Total: 900}
	next := p.Apply(prev, nil)

	assert.Equal(t, int64(5), next.Today)
	assert.Equal(t, int64(0), next.Total, "an explicit zero is a value")
	assert.Equal(t, int64(20), next.ThisWeek)
	assert.Equal(t, "2025-01-15 09:30", next.LastUpdate)
}

func TestAggregatePatch_Empty(t *testing.T) {
	var nilPatch *AggregatePatch
	assert.True(t, nilPatch.Empty())
	assert.True(t, (&AggregatePatch{}).Empty())
	assert.Equal(t, AggregateStats{Today: 1}, nilPatch.Apply(AggregateStats{Today: 1}, nil))

	var p AggregatePatch
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":1736933400000}`), &p))
	assert.False(t, p.Empty())
}

func TestPatchOf_RoundTripsAllFields(t *testing.T) {
	a := AggregateStats{LastUpdate: "x", Today: 1, ThisWeek: 2, ThisMonth: 3, ThisYear: 4, Total: 5, Timestamp: "t"}
	got := PatchOf(a).Apply(AggregateStats{}, func(v any) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
	assert.Equal(t, a, got)
}

func TestConsistent(t *testing.T) {
	tests := []struct {
		name string
		agg  AggregateStats
		want bool
	}{
		{"zero", AggregateStats{}, true},
		{"nested", AggregateStats{Today: 1, ThisWeek: 2, ThisMonth: 3, ThisYear: 4, Total: 5}, true},
		{"week below today", AggregateStats{Today: 3, ThisWeek: 2, ThisMonth: 3, ThisYear: 4, Total: 5}, false},
		{"negative", AggregateStats{Today: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.agg.Consistent())
		})
	}
}

func TestSnapshot_Update(t *testing.T) {
	now := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	var withRepos Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"today":2,"repos":{"expl-one-pump":{"commits":10}}}`), &withRepos))
	u := withRepos.Update(now)
	assert.True(t, u.Full)
	assert.True(t, u.HasRepo("expl-one-pump"))
	require.NotNil(t, u.Stats)
	assert.Equal(t, int64(2), *u.Stats.Today)
	assert.Equal(t, now, u.ReceivedAt)

	var aggOnly Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"total":9}`), &aggOnly))
	u = aggOnly.Update(now)
	assert.False(t, u.Full, "a snapshot without repos must not wipe the entity map")
	assert.False(t, u.HasRepo("expl-one-pump"))
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}
