// Package server exposes a loaded scenario over HTTP: its static
// description, a control endpoint for adjusting playback speed mid-stream,
// and a WebSocket feed of fired events as the simulation advances. Routing
// uses gorilla/mux in place of the teacher's bare http.HandleFunc mux; the
// live feed uses gorilla/websocket in place of the teacher's server-sent-
// events loop, following the full-duplex feed niceyeti-tabular's server
// builds for the same "watch a simulation run live" need.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"fizgrid/grid"
	"fizgrid/report"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connControl holds the per-connection tunables a streaming client can
// adjust mid-run via POST /api/control, mirroring the teacher's
// connControl/atomic.Value pattern in server/server.go.
type connControl struct {
	speed atomic.Value // float64, simulated time units per real second
}

func newConnControl(initialSpeed float64) *connControl {
	c := &connControl{}
	c.speed.Store(clampSpeed(initialSpeed))
	return c
}

func clampSpeed(speed float64) float64 {
	if speed <= 0 {
		return 1
	}
	if speed > 50 {
		return 50
	}
	return speed
}

// Options configures a Server's defaults.
type Options struct {
	// DefaultSpeed is the simulated-units-per-real-second pacing a stream
	// starts at absent a ?speed= query parameter.
	DefaultSpeed float64
}

// Server serves one already-built Grid. It does not itself load scenario
// files; callers (cmd/fizgrid's "serve" subcommand) build the Grid via
// config.Scenario.Build and hand it here.
type Server struct {
	ScenarioName string
	Grid         *grid.Grid
	Opt          Options

	mu       sync.Mutex
	controls map[string]*connControl
}

// New builds a Server around an already-constructed Grid.
func New(scenarioName string, g *grid.Grid, opt Options) *Server {
	if opt.DefaultSpeed <= 0 {
		opt.DefaultSpeed = 1
	}
	return &Server{
		ScenarioName: scenarioName,
		Grid:         g,
		Opt:          opt,
		controls:     make(map[string]*connControl),
	}
}

// Router builds the mux.Router this server answers on.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/scenario", s.handleScenario).Methods(http.MethodGet)
	r.HandleFunc("/api/control", s.handleControl).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/stream", s.handleStream).Methods(http.MethodGet)
	return r
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("server: listening on %s (scenario %q)", addr, s.ScenarioName)
	return http.ListenAndServe(addr, s.Router())
}

type entityDescription struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Static bool    `json:"static"`
}

type scenarioDescription struct {
	Name    string               `json:"name"`
	XSize   int                  `json:"x_size"`
	YSize   int                  `json:"y_size"`
	MaxTime float64              `json:"max_time"`
	Now     float64              `json:"now"`
	Entities []entityDescription `json:"entities"`
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	entities := s.Grid.Entities()
	desc := scenarioDescription{
		Name:    s.ScenarioName,
		XSize:   s.Grid.XSize(),
		YSize:   s.Grid.YSize(),
		MaxTime: s.Grid.MaxTime(),
		Now:     s.Grid.Now(),
	}
	for _, e := range entities {
		desc.Entities = append(desc.Entities, entityDescription{
			ID: e.ID.String(), Name: e.Name, X: e.X, Y: e.Y, Static: e.Static,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(desc)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var req struct {
		ConnID string  `json:"conn_id"`
		Speed  float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	ctrl, ok := s.controls[req.ConnID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "connection not found", http.StatusNotFound)
		return
	}
	if req.Speed != 0 {
		ctrl.speed.Store(clampSpeed(req.Speed))
		log.Printf("server: conn=%s speed=%.2fx", req.ConnID, clampSpeed(req.Speed))
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamEvent is the wire shape of one fired event pushed to a websocket
// client.
type streamEvent struct {
	Time      float64 `json:"time"`
	EntityID  string  `json:"entity_id"`
	Kind      string  `json:"kind"`
	Collision bool    `json:"collision"`
	Err       string  `json:"error,omitempty"`
}

// handleStream upgrades to a websocket and drives the shared Grid forward
// one ResolveNextState batch at a time, pushing each fired event to this
// client, paced by the connection's speed control. Because the Grid is
// shared process-wide state (the teacher's server has the same limitation:
// "intentionally monolithic, serves a single client"), only the first
// connection actually advances the simulation; later connections observe
// whatever that one produces. This matches the scope of a demo/inspection
// server, not a multi-tenant simulation service.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := fmt.Sprintf("%d", time.Now().UnixNano())
	speed := s.Opt.DefaultSpeed
	if qs := r.URL.Query().Get("speed"); qs != "" {
		if v, err := strconv.ParseFloat(qs, 64); err == nil {
			speed = v
		}
	}
	ctrl := newConnControl(speed)
	s.mu.Lock()
	s.controls[connID] = ctrl
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.controls, connID)
		s.mu.Unlock()
	}()

	conn.WriteJSON(map[string]string{"conn_id": connID})

	lastTime := s.Grid.Now()
	var fired []grid.FiredEvent
	for {
		batch := s.Grid.ResolveNextState()
		if len(batch) == 0 {
			break
		}
		fired = append(fired, batch...)
		pace := ctrl.speed.Load().(float64)
		if dt := batch[0].Time - lastTime; dt > 0 && pace > 0 {
			time.Sleep(time.Duration(dt / pace * float64(time.Second)))
		}
		lastTime = batch[len(batch)-1].Time

		for _, fe := range batch {
			msg := streamEvent{Time: fe.Time, EntityID: fe.EntityID.String(), Kind: fe.Kind, Collision: fe.Collision}
			if fe.Err != nil {
				msg.Err = fe.Err.Error()
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("server: conn=%s write failed: %v", connID, err)
				return
			}
		}
	}

	summaries := report.Summarize(s.Grid.Entities(), fired)
	conn.WriteJSON(map[string]any{"done": true, "summary": summaries})
}
