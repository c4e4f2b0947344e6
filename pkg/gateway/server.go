// Package gateway serves the dashboard state over a local HTTP API and a
// websocket feed. It is read-only: every endpoint reflects the latest poll
// snapshot, and the websocket pushes each new snapshot as it lands.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/townworks/towncrier/pkg/beads"
	"github.com/townworks/towncrier/pkg/dashboard"
	"github.com/townworks/towncrier/pkg/logger"
	"github.com/townworks/towncrier/pkg/poll"
	"github.com/townworks/towncrier/pkg/town"
)

// SnapshotSource yields the latest dashboard state. *poll.Poller[dashboard.Snapshot]
// satisfies it.
type SnapshotSource interface {
	Snapshot() poll.State[dashboard.Snapshot]
}

// Server is the local HTTP/websocket gateway.
type Server struct {
	addr   string
	source SnapshotSource

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]bool

	done   chan struct{}
	closed atomic.Bool

	// watchEvery is how often the hub checks for a fresh snapshot.
	watchEvery time.Duration
}

// New creates a Server bound to addr, reading state from source.
func New(addr string, source SnapshotSource) *Server {
	return &Server{
		addr:   addr,
		source: source,
		upgrader: websocket.Upgrader{
			// Local dashboard; browsers on the same host are fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:      make(map[*websocket.Conn]bool),
		done:       make(chan struct{}),
		watchEvery: time.Second,
	}
}

type statusResponse struct {
	Sources     []town.Source `json:"sources"`
	BDVersion   string        `json:"bd_version,omitempty"`
	Partial     bool          `json:"partial"`
	Loading     bool          `json:"loading"`
	LastUpdated time.Time     `json:"last_updated"`
	Error       string        `json:"error,omitempty"`
}

type listResponse struct {
	Beads       []beads.Bead `json:"beads"`
	Partial     bool         `json:"partial"`
	LastUpdated time.Time    `json:"last_updated"`
	Error       string       `json:"error,omitempty"`
}

// Handler builds the route table. Exposed separately from Run so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/mail", s.handleList(func(snap dashboard.Snapshot) []beads.Bead { return snap.Mail }))
	mux.HandleFunc("/api/convoys", s.handleList(func(snap dashboard.Snapshot) []beads.Bead { return snap.Convoys }))
	mux.HandleFunc("/api/crew", s.handleList(func(snap dashboard.Snapshot) []beads.Bead { return snap.Crew }))
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run serves until ctx is cancelled, then shuts down and drops every
// websocket client.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.watch()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.InfoCF("gateway", "listening", map[string]interface{}{"addr": s.addr})

	select {
	case <-ctx.Done():
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		s.Close()
		return err
	}
}

// Close stops the hub and disconnects every client. Safe to call twice.
func (s *Server) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.done)

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]bool)
	s.mu.Unlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.source.Snapshot()
	resp := statusResponse{
		Sources:     state.Data.Sources,
		BDVersion:   state.Data.BDVersion,
		Partial:     state.Data.Partial,
		Loading:     state.Loading,
		LastUpdated: state.LastUpdated,
	}
	if state.Err != nil {
		resp.Error = state.Err.Error()
	}
	writeJSON(w, resp)
}

func (s *Server) handleList(pick func(dashboard.Snapshot) []beads.Bead) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := s.source.Snapshot()
		resp := listResponse{
			Beads:       pick(state.Data),
			Partial:     state.Data.Partial,
			LastUpdated: state.LastUpdated,
		}
		if resp.Beads == nil {
			resp.Beads = []beads.Bead{}
		}
		if state.Err != nil {
			resp.Error = state.Err.Error()
		}
		writeJSON(w, resp)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("gateway", "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if s.closed.Load() {
		conn.Close()
		return
	}

	// Push the current state before the hub can see the connection, so a
	// fresh client is never blank and this write cannot overlap a broadcast:
	// gorilla conns allow only one writer at a time.
	if err := writeFrame(conn, s.source.Snapshot()); err != nil {
		conn.Close()
		return
	}

	// Registration rechecks closed under the same lock Close uses to swap
	// the map, so a conn can never land in the post-shutdown map.
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = true
	s.mu.Unlock()

	// The feed is one-way; the read loop only notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// watch polls the source for a fresh snapshot and broadcasts it. Once a
// connection is registered this loop is its only writer, so no
// per-connection write lock is needed.
func (s *Server) watch() {
	ticker := time.NewTicker(s.watchEvery)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			state := s.source.Snapshot()
			if !state.LastUpdated.After(lastSent) {
				continue
			}
			lastSent = state.LastUpdated
			s.broadcast(state)
		}
	}
}

func (s *Server) broadcast(state poll.State[dashboard.Snapshot]) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		s.send(conn, state)
	}
}

type wsFrame struct {
	Snapshot    dashboard.Snapshot `json:"snapshot"`
	LastUpdated time.Time          `json:"last_updated"`
	Error       string             `json:"error,omitempty"`
}

func writeFrame(conn *websocket.Conn, state poll.State[dashboard.Snapshot]) error {
	frame := wsFrame{Snapshot: state.Data, LastUpdated: state.LastUpdated}
	if state.Err != nil {
		frame.Error = state.Err.Error()
	}
	return conn.WriteJSON(frame)
}

func (s *Server) send(conn *websocket.Conn, state poll.State[dashboard.Snapshot]) {
	if err := writeFrame(conn, state); err != nil {
		s.drop(conn)
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnCF("gateway", "response encode failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
