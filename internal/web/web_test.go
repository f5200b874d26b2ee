package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medusa-kv/medusa/internal/logger"
	"github.com/medusa-kv/medusa/internal/stats"
	"github.com/medusa-kv/medusa/internal/store"
)

func newTestMetrics(t *testing.T) (*Metrics, *store.Store, *stats.Stats) {
	t.Helper()
	st := store.New()
	t.Cleanup(st.Close)
	counters := stats.New()
	m := New(":0", st, counters, logger.NewWithOutput("error", testLogWriter{t}))
	return m, st, counters
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func TestStatsEndpoint(t *testing.T) {
	m, st, counters := newTestMetrics(t)
	st.Set("a", "1")
	st.Set("b", "2")
	counters.RecordCommand()
	counters.RecordLookup(true)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc struct {
		Version  string           `json:"version"`
		Counters map[string]int64 `json:"counters"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.NotEmpty(t, doc.Version)
	assert.EqualValues(t, 2, doc.Counters["total_keys"])
	assert.EqualValues(t, 1, doc.Counters["total_commands"])
	assert.EqualValues(t, 1, doc.Counters["hits"])
}

func TestStatsEndpointMethodNotAllowed(t *testing.T) {
	m, _, _ := newTestMetrics(t)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/stats", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocketPush(t *testing.T) {
	m, st, _ := newTestMetrics(t)
	st.Set("k", "v")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The first snapshot is pushed immediately on connect.
	var snap map[string]int64
	require.NoError(t, conn.ReadJSON(&snap))
	assert.EqualValues(t, 1, snap["total_keys"])
}
