// Package web serves the optional metrics endpoint: a JSON snapshot at
// /stats and a websocket at /ws that pushes the same snapshot once per
// second. It observes the store and stats shared with the TCP server and
// never mutates them.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/medusa-kv/medusa/internal/stats"
	"github.com/medusa-kv/medusa/internal/store"
	"github.com/medusa-kv/medusa/internal/version"
)

const pushInterval = time.Second

// Metrics serves runtime counters over HTTP and websocket.
type Metrics struct {
	store    *store.Store
	stats    *stats.Stats
	log      *slog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

// New creates a Metrics server bound to addr.
func New(addr string, st *store.Store, s *stats.Stats, log *slog.Logger) *Metrics {
	m := &Metrics{
		store: st,
		stats: s,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stats", m.handleStats)
	mux.HandleFunc("/ws", m.handleWS)
	m.srv = &http.Server{Addr: addr, Handler: mux}
	return m
}

// Handler returns the HTTP handler, exposed for tests.
func (m *Metrics) Handler() http.Handler {
	return m.srv.Handler
}

// Start serves until the context is cancelled. It blocks.
func (m *Metrics) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.srv.Shutdown(shutdownCtx)
	}()

	m.log.Info("metrics listening", "addr", m.srv.Addr)
	if err := m.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// snapshot builds the metrics document served on both endpoints.
func (m *Metrics) snapshot() map[string]int64 {
	snap := m.stats.Snapshot()
	snap["total_keys"] = int64(m.store.Count())
	snap["expired_keys"] = m.store.ExpiredCount()
	return snap
}

func (m *Metrics) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Version  string           `json:"version"`
		Counters map[string]int64 `json:"counters"`
	}{
		Version:  version.Version,
		Counters: m.snapshot(),
	})
}

// handleWS upgrades to a websocket and pushes a snapshot every second
// until the client goes away.
func (m *Metrics) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Drain control frames so close handshakes are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(m.snapshot()); err != nil {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
