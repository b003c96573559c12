package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fcooper94/airline-manager-live-ops/api"
	"github.com/fcooper94/airline-manager-live-ops/clock"
	"github.com/fcooper94/airline-manager-live-ops/db"
	"github.com/fcooper94/airline-manager-live-ops/engine"
	"github.com/fcooper94/airline-manager-live-ops/events"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	// Initialize database connection
	store, err := db.Open(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	cfg := engine.DefaultConfig()
	if v := envSeconds("TICK_INTERVAL"); v > 0 {
		cfg.TickInterval = v
	}
	if v := envSeconds("PERSIST_INTERVAL"); v > 0 {
		cfg.PersistInterval = v
	}
	cfg.Debug = os.Getenv("DEBUG") != ""

	hub := events.NewHub()
	eng := engine.New(store, hub, clock.RealClock{}, store.ReplanAutoSchedule, cfg)

	// Resume every world that was running before the last shutdown; the
	// engine applies catch-up for the downtime.
	ctx := context.Background()
	ids, err := store.ActiveWorldIDs(ctx)
	if err != nil {
		log.Fatalf("Failed to list active worlds: %v", err)
	}
	for _, id := range ids {
		if err := eng.StartWorld(ctx, id); err != nil {
			log.Printf("Error resuming world %d: %v", id, err)
		}
	}

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	router := api.NewRouter(eng, store, hub, os.Getenv("MASTER_API_KEY"))
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Printf("Starting control API on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start API server: %v", err)
		}
	}()

	log.Printf("Time engine running (%d worlds resumed, tick interval %s)", len(ids), cfg.TickInterval)

	// Block until shutdown is requested, then flush every world's clock
	// before exiting. StopAll must complete; nothing else may cut it short.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Printf("Shutting down, flushing world clocks")
	if err := eng.StopAll(ctx); err != nil {
		log.Printf("Error during final flush: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}
}

func envSeconds(name string) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using default", name, v)
		return 0
	}
	return time.Duration(n) * time.Second
}
