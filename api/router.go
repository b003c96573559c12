package api

import (
	"context"
	"time"

	"github.com/gorilla/mux"

	"github.com/fcooper94/airline-manager-live-ops/db"
	"github.com/fcooper94/airline-manager-live-ops/events"
	"github.com/fcooper94/airline-manager-live-ops/models"
	"github.com/fcooper94/airline-manager-live-ops/types"
)

// Engine is the control surface the API needs from the time engine.
type Engine interface {
	StartWorld(ctx context.Context, worldID int64) error
	StopWorld(ctx context.Context, worldID int64) error
	PauseWorld(ctx context.Context, worldID int64) error
	ResumeWorld(ctx context.Context, worldID int64) error
	SetTimeAcceleration(ctx context.Context, worldID int64, accel float64) error
	CurrentTime(worldID int64) (time.Time, bool)
	WorldSnapshot(worldID int64) (models.World, bool)
	Stats() types.EngineStats
}

// KeyStore is the API-key persistence the key endpoints and the rate
// limiter need.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key, description string) (*db.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]db.APIKey, error)
	DeactivateAPIKey(ctx context.Context, id int) error
	ValidateAPIKey(ctx context.Context, key string) bool
}

// Server holds the API's collaborators.
type Server struct {
	engine    Engine
	keys      KeyStore
	hub       *events.Hub
	masterKey string
}

// NewRouter creates and configures a router with all control endpoints.
func NewRouter(engine Engine, keys KeyStore, hub *events.Hub, masterKey string) *mux.Router {
	s := &Server{engine: engine, keys: keys, hub: hub, masterKey: masterKey}

	r := mux.NewRouter()

	// Key management is gated by the master key, not rate limited.
	r.HandleFunc("/api/keys", s.CreateAPIKey).Methods("POST")
	r.HandleFunc("/api/keys", s.ListAPIKeys).Methods("GET")
	r.HandleFunc("/api/keys", s.DeleteAPIKey).Methods("DELETE")

	// Apply rate limiting middleware to all other routes.
	api := r.PathPrefix("/api").Subrouter()
	api.Use(RateLimit(s.validateKey))

	// World clock control
	api.HandleFunc("/worlds/{id}/start", s.StartWorld).Methods("POST")
	api.HandleFunc("/worlds/{id}/stop", s.StopWorld).Methods("POST")
	api.HandleFunc("/worlds/{id}/pause", s.PauseWorld).Methods("POST")
	api.HandleFunc("/worlds/{id}/resume", s.ResumeWorld).Methods("POST")
	api.HandleFunc("/worlds/{id}/acceleration", s.SetAcceleration).Methods("PUT")
	api.HandleFunc("/worlds/{id}/time", s.WorldTime).Methods("GET")
	api.HandleFunc("/worlds/{id}", s.World).Methods("GET")

	// Engine statistics
	api.HandleFunc("/engine/stats", s.EngineStats).Methods("GET")

	// Live tick feed
	r.HandleFunc("/ws/worlds/{id}", s.TickFeed).Methods("GET")

	return r
}
