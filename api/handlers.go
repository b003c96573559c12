package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fcooper94/airline-manager-live-ops/db"
)

func worldID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StartWorld brings a world's clock online, applying catch-up for real time
// elapsed since its last persisted tick.
func (s *Server) StartWorld(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	if err := s.engine.StartWorld(r.Context(), id); err != nil {
		status := http.StatusConflict
		if errors.Is(err, db.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	world, _ := s.engine.WorldSnapshot(id)
	writeJSON(w, http.StatusOK, world)
}

// StopWorld halts a world's clock and flushes its final time.
func (s *Server) StopWorld(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	if err := s.engine.StopWorld(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PauseWorld freezes a world's clock without stopping its loop.
func (s *Server) PauseWorld(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	if err := s.engine.PauseWorld(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResumeWorld unfreezes a paused world.
func (s *Server) ResumeWorld(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	if err := s.engine.ResumeWorld(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAcceleration changes a world's time multiplier.
func (s *Server) SetAcceleration(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	var req struct {
		TimeAcceleration float64 `json:"timeAcceleration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.engine.SetTimeAcceleration(r.Context(), id, req.TimeAcceleration); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WorldTime returns a running world's in-memory game time.
func (s *Server) WorldTime(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	t, running := s.engine.CurrentTime(id)
	if !running {
		http.Error(w, "World is not running", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"worldId":  id,
		"gameTime": t.UTC().Format(time.RFC3339),
	})
}

// World returns a defensive snapshot of a running world.
func (s *Server) World(w http.ResponseWriter, r *http.Request) {
	id, ok := worldID(r)
	if !ok {
		http.Error(w, "Invalid world id", http.StatusBadRequest)
		return
	}
	world, running := s.engine.WorldSnapshot(id)
	if !running {
		http.Error(w, "World is not running", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, world)
}

// EngineStats reports the engine's running counters.
func (s *Server) EngineStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}
