// Package web serves the inspector's HTTP surface: an SSE feed of
// summarized BridgeEvents, a raw WebSocket tap of the bytes crossing the
// wire, and a liveness endpoint — the daemon-side half of SPEC_FULL.md
// §4.7, grounded on the teacher's web/web.go.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mickamy/oophm-bridge/broker"
	"github.com/mickamy/oophm-bridge/event"
)

//go:embed static
var staticFS embed.FS

// Server serves the inspector web UI and API endpoints.
type Server struct {
	httpServer *http.Server
	broker     *broker.Broker
	upgrader   websocket.Upgrader
}

// New creates a Server backed by b. A nil b is tolerated; every endpoint
// simply carries no events.
func New(b *broker.Broker) *Server {
	s := &Server{
		broker: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()

	sub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /", http.FileServer(http.FS(sub)))
	mux.HandleFunc("GET /api/events", s.handleSSE)
	mux.HandleFunc("GET /api/tap", s.handleTap)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve starts the HTTP server on lis.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: serve: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	flusher.Flush() // send headers immediately

	if s.broker == nil {
		return
	}
	ch, unsub := s.broker.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleTap upgrades to a WebSocket and mirrors raw bytes crossing the
// wire as binary frames, one frame per Read/Write call on the tapped
// connection, for tools that want to decode §3's wire format directly.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.broker == nil {
		return
	}
	ch, unsub := s.broker.SubscribeRaw()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, raw); err != nil {
				return
			}
		}
	}
}

type eventJSON struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Direction string `json:"direction"`
	Type      byte   `json:"type"`
	TypeName  string `json:"type_name"`
	Summary   string `json:"summary"`
	At        string `json:"at"`
}

func eventToJSON(ev event.BridgeEvent) eventJSON {
	return eventJSON{
		ID:        ev.ID,
		SessionID: ev.SessionID,
		Direction: ev.Direction,
		Type:      ev.Type,
		TypeName:  ev.TypeName,
		Summary:   ev.Summary,
		At:        ev.At.Format(time.RFC3339Nano),
	}
}
