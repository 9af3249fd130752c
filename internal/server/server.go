// Package server provides the HTTP control surface of leanplay: status,
// calibration control, session history and a live event stream.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/msardana/leanplay/internal/calib"
	"github.com/msardana/leanplay/internal/capture"
	"github.com/msardana/leanplay/internal/event"
	"github.com/msardana/leanplay/internal/playback"
	"github.com/msardana/leanplay/internal/server/api"
	"github.com/msardana/leanplay/internal/store"
)

// Chain exposes the calibration operations the API drives.
type Chain interface {
	Snapshot() calib.Snapshot
	StartCalibration()
	StartCurrentPhase()
}

// Player exposes the playback state the API reports.
type Player interface {
	Mode() playback.Mode
}

// Gazer exposes the smoothed gaze state.
type Gazer interface {
	Looking() bool
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Bus       *event.Bus
	Steering  Chain
	Volume    Chain
	Player    Player
	Gaze      Gazer
	Camera    capture.Camera

	// SessionID reports the id of the current session, "" when none is open.
	SessionID func() string

	// Enabled and SetEnabled expose the playback-control toggle. The control
	// endpoint is registered only when SetEnabled is present.
	Enabled    func() bool
	SetEnabled func(bool)
}

// Server represents the leanplay HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/calibration/", s.handleCalibration)

	if s.config.SetEnabled != nil {
		s.mux.HandleFunc("/api/control", s.handleControl)
	}

	// Register session history endpoints if Store is configured
	if s.config.Store != nil {
		sessionHandler := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessionHandler)
		s.mux.Handle("/api/sessions/", sessionHandler)
	}

	// Register live event stream if Bus is configured
	if s.config.Bus != nil {
		s.mux.Handle("/api/events", NewEventsHandler(s.config.Bus))
	}

	// Register the camera preview if the gaze camera is configured
	if s.config.Camera != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Camera))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleStatus handles GET requests to /api/status with the live state of
// both chains and the playback mode.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chains := map[string]calib.Snapshot{}
	if s.config.Steering != nil {
		chains["steering"] = s.config.Steering.Snapshot()
	}
	if s.config.Volume != nil {
		chains["volume"] = s.config.Volume.Snapshot()
	}

	response := map[string]interface{}{
		"chains": chains,
	}
	if s.config.Player != nil {
		response["mode"] = s.config.Player.Mode().String()
	}
	if s.config.Gaze != nil {
		response["looking"] = s.config.Gaze.Looking()
	}
	if s.config.SessionID != nil {
		response["session_id"] = s.config.SessionID()
	}
	if s.config.Enabled != nil {
		response["enabled"] = s.config.Enabled()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleControl reads or updates the playback-control toggle.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		s.config.SetEnabled(*req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{}
	if s.config.Enabled != nil {
		response["enabled"] = s.config.Enabled()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCalibration routes POST /api/calibration/{chain}/start and
// POST /api/calibration/{chain}/phase.
func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/calibration/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	var chain Chain
	switch parts[0] {
	case "steering":
		chain = s.config.Steering
	case "volume":
		chain = s.config.Volume
	default:
		http.Error(w, "Unknown chain", http.StatusNotFound)
		return
	}
	if chain == nil {
		http.Error(w, "Chain not configured", http.StatusNotFound)
		return
	}

	status := http.StatusOK
	switch parts[1] {
	case "start":
		chain.StartCalibration()
	case "phase":
		// Arming a phase is asynchronous; a no-op (wrong phase, not
		// calibrating) still answers with the current snapshot.
		chain.StartCurrentPhase()
		status = http.StatusAccepted
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(chain.Snapshot())
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
