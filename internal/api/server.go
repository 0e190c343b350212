// Package api serves the optional monitor: pipeline status, configuration, a
// websocket feed of world-space frames and the skeleton preview.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/golang/geo/r3"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/BodyStreamer/internal/config"
	"github.com/bryanchriswhite/BodyStreamer/internal/logger"
	"github.com/bryanchriswhite/BodyStreamer/internal/pipeline"
	"github.com/bryanchriswhite/BodyStreamer/internal/preview"
	"github.com/bryanchriswhite/BodyStreamer/internal/transmit"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Pipeline is the controller state the monitor reports.
type Pipeline interface {
	SessionID() string
	State() pipeline.State
	Stats() pipeline.Stats
	Offset() (r3.Vector, bool)
}

// Link is the transmitter state the monitor reports.
type Link interface {
	Destination() string
	Stats() transmit.Stats
}

// Offset is the JSON form of the current device offset.
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Status is the body of GET /api/status.
type Status struct {
	Session     string          `json:"session"`
	State       pipeline.State  `json:"state"`
	Stats       pipeline.Stats  `json:"stats"`
	Destination string          `json:"destination,omitempty"`
	Transmit    *transmit.Stats `json:"transmit,omitempty"`
	Offset      *Offset         `json:"offset"`
}

// Server represents the monitor HTTP server
type Server struct {
	router    *mux.Router
	pipeline  Pipeline
	link      Link
	configMgr *config.Manager
	hub       *Hub
	preview   *preview.MJPEG
	upgrader  websocket.Upgrader
	log       *zerolog.Logger
}

// NewServer creates a monitor server. link, configMgr and mjpeg may be nil;
// the matching routes then report nothing or are not registered.
func NewServer(p Pipeline, link Link, configMgr *config.Manager, hub *Hub, mjpeg *preview.MJPEG) *Server {
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		router:    mux.NewRouter(),
		pipeline:  p,
		link:      link,
		configMgr: configMgr,
		hub:       hub,
		preview:   mjpeg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/bodies/stream", s.handleBodyStream)

	if s.preview != nil {
		s.router.HandleFunc("/preview", s.preview.ViewerHandler("/preview/stream")).Methods("GET")
		s.router.HandleFunc("/preview/stream", s.preview.StreamHandler()).Methods("GET")
	}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the routed handler with CORS headers applied.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Run listens on port and serves until ctx is done.
func (s *Server) Run(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then disconnects stream clients and
// shuts the server down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Starting monitor server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Streaming handlers never go idle on their own
	s.hub.Close()
	if s.preview != nil {
		s.preview.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("monitor shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("Monitor server stopped")
	return nil
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Session: s.pipeline.SessionID(),
		State:   s.pipeline.State(),
		Stats:   s.pipeline.Stats(),
	}
	if off, ok := s.pipeline.Offset(); ok {
		status.Offset = &Offset{X: off.X, Y: off.Y, Z: off.Z}
	}
	if s.link != nil {
		tx := s.link.Stats()
		status.Destination = s.link.Destination()
		status.Transmit = &tx
	}
	writeJSON(w, status)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.configMgr == nil {
		http.Error(w, "configuration not available", http.StatusNotFound)
		return
	}
	writeJSON(w, s.configMgr.Get())
}

func (s *Server) handleBodyStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, ok := s.hub.Subscribe()
	if !ok {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(writeWait))
		return
	}
	defer s.hub.Unsubscribe(updates)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Body stream client connected")

	// Reads only to notice the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			s.log.Debug().Str("remote", r.RemoteAddr).Msg("Body stream client disconnected")
			return
		case frame, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	previewLink := ""
	if s.preview != nil {
		previewLink = `<li><a href="/preview">Skeleton preview</a></li>`
	}
	html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>BodyStreamer</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        pre { background: #f5f5f5; padding: 12px; }
    </style>
</head>
<body>
    <h1>BodyStreamer</h1>
    <ul>
        <li><a href="/api/health">/api/health</a></li>
        <li><a href="/api/status">/api/status</a></li>
        <li><a href="/api/config">/api/config</a></li>
        <li>ws: /api/bodies/stream</li>
        ` + previewLink + `
    </ul>
    <pre id="status"></pre>
    <script>
        async function refresh() {
            const res = await fetch('/api/status');
            document.getElementById('status').textContent = JSON.stringify(await res.json(), null, 2);
        }
        refresh();
        setInterval(refresh, 1000);
    </script>
</body>
</html>`

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
