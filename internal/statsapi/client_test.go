package statsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotBody = `{
  "lastUpdate": "2024-01-02",
  "today": 5, "thisWeek": 20, "thisMonth": 80, "thisYear": 300, "total": 1200,
  "timestamp": 1704153600000,
  "repos": {
    "expl-one-pump": {"name": "expl-one-pump", "commits": 10, "daysSinceCreation": 40,
      "lastCommitDate": "2024-01-01T00:00:00Z", "createdAt": "2023-11-01T00:00:00Z"}
  }
}`

func TestFetchSnapshot(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/stats", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(snapshotBody))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL, c.BaseURL())

	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	require.NotNil(t, snap.Today)
	assert.Equal(t, int64(5), *snap.Today)
	require.NotNil(t, snap.Total)
	assert.Equal(t, int64(1200), *snap.Total)
	assert.NotNil(t, snap.Timestamp)

	pump, ok := snap.Repos["expl-one-pump"]
	require.True(t, ok)
	assert.Equal(t, int64(10), pump.Commits)
	assert.Equal(t, int64(40), pump.DaysSinceCreation)
}

func TestFetchSnapshot_WithoutRepos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"today": 1}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	snap, err := c.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Repos)
	assert.Nil(t, snap.Total)
}

func TestFetchSnapshot_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetchSnapshot_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"today": `))
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.FetchSnapshot(context.Background())
	assert.ErrorContains(t, err, "decode snapshot")
}

func TestFetchSnapshot_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.FetchSnapshot(context.Background())
	assert.ErrorContains(t, err, "statsapi: fetch")
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	assert.Error(t, err)

	_, err = New("://nope")
	assert.Error(t, err)
}
