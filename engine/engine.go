// Package engine drives the accelerated world clocks and the processors
// that react to them: flight lifecycle, maintenance cascade, billing and the
// weekly maintenance refresh. One tick loop runs per active world; loops
// share nothing but the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/clock"
	"github.com/fcooper94/airline-manager-live-ops/events"
	"github.com/fcooper94/airline-manager-live-ops/models"
	"github.com/fcooper94/airline-manager-live-ops/types"
)

// RefreshFunc re-plans future auto-scheduled maintenance slots for one
// aircraft. The engine calls it sequentially per aircraft with the already
// known virtual time.
type RefreshFunc func(ctx context.Context, aircraftID, worldID int64, now time.Time) error

// Config holds the engine's timing knobs. Throttle intervals are real time.
type Config struct {
	TickInterval      time.Duration // cadence of the per-world loop
	PersistInterval   time.Duration // bucket size for batched world-time writes
	FlightThrottle    time.Duration
	MaintThrottle     time.Duration
	BillingThrottle   time.Duration
	RefreshThrottle   time.Duration
	RefreshItemDelay  time.Duration // pause between sequential refresh items
	RefreshRetryDelay time.Duration // pause between attempts after a transient refresh error
	WindKts           float64       // prevailing wind for the duration calculator
	Debug             bool
}

// DefaultConfig returns the reference timing: 1 s ticks, 30 s write batching.
func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Second,
		PersistInterval:   30 * time.Second,
		FlightThrottle:    5 * time.Second,
		MaintThrottle:     30 * time.Second,
		BillingThrottle:   30 * time.Second,
		RefreshThrottle:   60 * time.Second,
		RefreshItemDelay:  250 * time.Millisecond,
		RefreshRetryDelay: 2 * time.Second,
		WindKts:           25,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = d.PersistInterval
	}
	if c.FlightThrottle <= 0 {
		c.FlightThrottle = d.FlightThrottle
	}
	if c.MaintThrottle <= 0 {
		c.MaintThrottle = d.MaintThrottle
	}
	if c.BillingThrottle <= 0 {
		c.BillingThrottle = d.BillingThrottle
	}
	if c.RefreshThrottle <= 0 {
		c.RefreshThrottle = d.RefreshThrottle
	}
	if c.RefreshItemDelay <= 0 {
		c.RefreshItemDelay = d.RefreshItemDelay
	}
	if c.RefreshRetryDelay <= 0 {
		c.RefreshRetryDelay = d.RefreshRetryDelay
	}
	return c
}

// Processor indexes into a world loop's guard array.
const (
	procFlights = iota
	procMaintenance
	procBilling
	procRefresh
	procCount
)

// Engine owns the registry of running worlds.
type Engine struct {
	store   Store
	pub     events.Publisher
	clk     clock.Clock
	refresh RefreshFunc
	cfg     Config

	mu     sync.Mutex
	worlds map[int64]*worldLoop

	statsMu sync.Mutex
	stats   types.EngineStats
}

// worldLoop is the in-memory authoritative state of one running world.
type worldLoop struct {
	mu                sync.Mutex
	world             models.World
	lastRealTick      time.Time
	lastPersistBucket int64
	lastBillingAt     time.Time // virtual time the billing pass last evaluated
	lastRefreshWeek   int64

	guards [procCount]procGuard
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an engine. pub and refresh may be nil; a nil publisher drops
// events and a nil refresh function disables the weekly re-planning pass.
func New(store Store, pub events.Publisher, clk clock.Clock, refresh RefreshFunc, cfg Config) *Engine {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Engine{
		store:   store,
		pub:     pub,
		clk:     clk,
		refresh: refresh,
		cfg:     cfg.withDefaults(),
		worlds:  make(map[int64]*worldLoop),
		stats:   types.EngineStats{StartTime: clk.Now()},
	}
}

// StartWorld loads the world, applies the catch-up advance for real time
// elapsed since its last persisted tick, persists the corrected clock and
// starts the world's tick loop.
func (e *Engine) StartWorld(ctx context.Context, worldID int64) error {
	e.mu.Lock()
	if _, running := e.worlds[worldID]; running {
		e.mu.Unlock()
		return fmt.Errorf("world %d is already running", worldID)
	}
	e.mu.Unlock()

	w, err := e.store.WorldByID(ctx, worldID)
	if err != nil {
		return fmt.Errorf("loading world %d: %w", worldID, err)
	}
	if w.Status == models.WorldCompleted {
		return fmt.Errorf("world %d is completed", worldID)
	}

	now := e.clk.Now()
	prevGame := w.CurrentTime
	if w.IsPaused {
		// A paused clock stays frozen across restarts; downtime is not
		// replayed until the world is resumed.
		w.Status = models.WorldPaused
	} else {
		if w.LastTickAt != nil && now.After(*w.LastTickAt) {
			// Apply the entire missed span at once so game time never
			// silently freezes across a restart.
			missed := now.Sub(*w.LastTickAt)
			w.CurrentTime = w.CurrentTime.Add(scale(missed, w.TimeAcceleration))
			log.Printf("world %d: catch-up of %s real time (%s game time)",
				worldID, missed.Round(time.Second), scale(missed, w.TimeAcceleration).Round(time.Second))
		}
		w.Status = models.WorldActive
	}
	lastTick := now
	w.LastTickAt = &lastTick

	if err := e.store.SaveWorldClock(ctx, w); err != nil {
		return fmt.Errorf("persisting catch-up for world %d: %w", worldID, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	lp := &worldLoop{
		world:             *w,
		lastRealTick:      now,
		lastPersistBucket: bucket(now, e.cfg.PersistInterval),
		lastBillingAt:     prevGame, // pre-catch-up, so a boundary inside the downtime still bills
		lastRefreshWeek:   -1,
		cancel:            cancel,
		done:              make(chan struct{}),
	}

	e.mu.Lock()
	if _, running := e.worlds[worldID]; running {
		e.mu.Unlock()
		cancel()
		return fmt.Errorf("world %d is already running", worldID)
	}
	e.worlds[worldID] = lp
	e.mu.Unlock()

	go e.runLoop(loopCtx, lp)
	log.Printf("world %d: started at game time %s (x%.0f)", worldID, w.CurrentTime.Format(time.RFC3339), w.TimeAcceleration)
	return nil
}

// StopWorld cancels the world's tick loop, waits for in-flight processor
// passes to finish, and flushes the final in-memory time to storage. No new
// pass starts after the loop is cancelled.
func (e *Engine) StopWorld(ctx context.Context, worldID int64) error {
	e.mu.Lock()
	lp, ok := e.worlds[worldID]
	if ok {
		delete(e.worlds, worldID)
	}
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("world %d is not running", worldID)
	}

	lp.cancel()
	<-lp.done
	lp.waitForPasses(ctx)

	snapshot := lp.snapshot()
	if err := e.store.SaveWorldClock(ctx, &snapshot); err != nil {
		return fmt.Errorf("flushing world %d: %w", worldID, err)
	}
	log.Printf("world %d: stopped at game time %s", worldID, snapshot.CurrentTime.Format(time.RFC3339))
	return nil
}

// StopAll halts every loop and flushes each world's latest time. It blocks
// until every flush has been attempted; this is the shutdown path and must
// complete before process exit.
func (e *Engine) StopAll(ctx context.Context) error {
	e.mu.Lock()
	ids := make([]int64, 0, len(e.worlds))
	for id := range e.worlds {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := e.StopWorld(ctx, id); err != nil {
			log.Printf("stopping world %d: %v", id, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PauseWorld stops the world's clock from advancing without halting its loop.
func (e *Engine) PauseWorld(ctx context.Context, worldID int64) error {
	return e.setPaused(ctx, worldID, true)
}

// ResumeWorld restarts time advancement. The last-tick reference is reset to
// now so the pause span is not replayed as a catch-up burst.
func (e *Engine) ResumeWorld(ctx context.Context, worldID int64) error {
	return e.setPaused(ctx, worldID, false)
}

func (e *Engine) setPaused(ctx context.Context, worldID int64, paused bool) error {
	lp, ok := e.loop(worldID)
	if !ok {
		return fmt.Errorf("world %d is not running", worldID)
	}
	now := e.clk.Now()

	lp.mu.Lock()
	lp.world.IsPaused = paused
	if paused {
		lp.world.Status = models.WorldPaused
	} else {
		lp.world.Status = models.WorldActive
		lp.lastRealTick = now
	}
	snapshot := cloneWorld(lp.world)
	lp.mu.Unlock()

	if err := e.store.SaveWorldClock(ctx, &snapshot); err != nil {
		return fmt.Errorf("persisting pause state for world %d: %w", worldID, err)
	}
	return nil
}

// SetTimeAcceleration changes the multiplier applied to subsequent ticks.
func (e *Engine) SetTimeAcceleration(ctx context.Context, worldID int64, accel float64) error {
	if accel <= 0 {
		return fmt.Errorf("time acceleration must be positive, got %v", accel)
	}
	lp, ok := e.loop(worldID)
	if !ok {
		return fmt.Errorf("world %d is not running", worldID)
	}

	lp.mu.Lock()
	lp.world.TimeAcceleration = accel
	snapshot := cloneWorld(lp.world)
	lp.mu.Unlock()

	if err := e.store.SaveWorldClock(ctx, &snapshot); err != nil {
		return fmt.Errorf("persisting acceleration for world %d: %w", worldID, err)
	}
	return nil
}

// CurrentTime returns the in-memory game time of a running world.
func (e *Engine) CurrentTime(worldID int64) (time.Time, bool) {
	lp, ok := e.loop(worldID)
	if !ok {
		return time.Time{}, false
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.world.CurrentTime, true
}

// WorldSnapshot returns a defensive copy of a running world's state.
func (e *Engine) WorldSnapshot(worldID int64) (models.World, bool) {
	lp, ok := e.loop(worldID)
	if !ok {
		return models.World{}, false
	}
	return lp.snapshot(), true
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() types.EngineStats {
	e.statsMu.Lock()
	s := e.stats
	e.statsMu.Unlock()

	e.mu.Lock()
	s.ActiveWorlds = len(e.worlds)
	e.mu.Unlock()
	return s
}

func (e *Engine) loop(worldID int64) (*worldLoop, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	lp, ok := e.worlds[worldID]
	return lp, ok
}

func (e *Engine) runLoop(ctx context.Context, lp *worldLoop) {
	defer close(lp.done)

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.safeTick(ctx, lp)
		}
	}
}

// safeTick isolates one world's tick: a panic is logged with the world's
// identity and never stops this loop or any other world's.
func (e *Engine) safeTick(ctx context.Context, lp *worldLoop) {
	defer func() {
		if r := recover(); r != nil {
			lp.mu.Lock()
			id := lp.world.ID
			lp.mu.Unlock()
			log.Printf("world %d: tick panicked: %v", id, r)
		}
	}()
	e.tick(ctx, lp)
}

// tick advances the world's virtual clock by elapsed real time times the
// acceleration, persists on bucket boundaries, broadcasts, and dispatches
// the processors behind their guards.
func (e *Engine) tick(ctx context.Context, lp *worldLoop) {
	now := e.clk.Now()

	lp.mu.Lock()
	if lp.world.IsPaused {
		lp.lastRealTick = now
		lp.mu.Unlock()
		return
	}
	elapsed := now.Sub(lp.lastRealTick)
	if elapsed < 0 {
		elapsed = 0
	}
	adv := scale(elapsed, lp.world.TimeAcceleration)
	prev := lp.world.CurrentTime
	lp.world.CurrentTime = prev.Add(adv)
	cur := lp.world.CurrentTime
	accel := lp.world.TimeAcceleration
	worldID := lp.world.ID
	lp.lastRealTick = now
	lastTick := now
	lp.world.LastTickAt = &lastTick

	persist := false
	if b := bucket(now, e.cfg.PersistInterval); b != lp.lastPersistBucket {
		lp.lastPersistBucket = b
		persist = true
	}
	snapshot := cloneWorld(lp.world)
	lp.mu.Unlock()

	if persist {
		if err := e.store.SaveWorldClock(ctx, &snapshot); err != nil {
			log.Printf("world %d: persisting clock: %v", worldID, err)
		}
	}

	e.pub.Publish(events.Event{
		Type:    events.EventTick,
		WorldID: worldID,
		Data: events.TickData{
			WorldID:            worldID,
			GameTime:           cur.UTC().Format(time.RFC3339),
			AdvancementSeconds: adv.Seconds(),
			TimeAcceleration:   accel,
		},
	})

	e.statsMu.Lock()
	e.stats.TotalTicks++
	e.stats.LastTick = now
	e.statsMu.Unlock()

	e.dispatch(lp, worldID, now, prev, cur)
}

type processorFn func(ctx context.Context, lp *worldLoop, prev, cur time.Time) error

// dispatch runs each processor in its own goroutine if its guard admits it;
// a pass still running from an earlier tick, or one inside its throttle
// interval, is skipped rather than queued. Passes run on a context that does
// not descend from the loop's cancel: stopping a world lets an in-flight
// pass finish its writes, and the stopped ticker plus the busy guard ensure
// no new pass starts afterwards.
func (e *Engine) dispatch(lp *worldLoop, worldID int64, now, prev, cur time.Time) {
	procs := []struct {
		name     string
		idx      int
		throttle time.Duration
		fn       processorFn
	}{
		{"flight", procFlights, e.cfg.FlightThrottle, e.processFlights},
		{"maintenance", procMaintenance, e.cfg.MaintThrottle, e.processMaintenance},
		{"billing", procBilling, e.cfg.BillingThrottle, e.processBilling},
		{"refresh", procRefresh, e.cfg.RefreshThrottle, e.processRefresh},
	}

	for _, p := range procs {
		g := &lp.guards[p.idx]
		if !g.tryAcquire(now, p.throttle) {
			continue
		}
		p := p
		go func() {
			defer g.release()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("world %d: %s pass panicked: %v", worldID, p.name, r)
				}
			}()
			if err := p.fn(context.Background(), lp, prev, cur); err != nil {
				log.Printf("world %d: %s pass: %v", worldID, p.name, err)
			}
		}()
	}
}

// waitForPasses blocks until every processor guard is free, so the final
// flush lands after in-flight passes have finished their writes. The given
// context bounds the wait.
func (lp *worldLoop) waitForPasses(ctx context.Context) {
	for i := range lp.guards {
		for lp.guards[i].busy.Load() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (lp *worldLoop) snapshot() models.World {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return cloneWorld(lp.world)
}

func (lp *worldLoop) id() int64 {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.world.ID
}

func cloneWorld(w models.World) models.World {
	if w.LastTickAt != nil {
		t := *w.LastTickAt
		w.LastTickAt = &t
	}
	return w
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

func bucket(t time.Time, size time.Duration) int64 {
	sec := int64(size.Seconds())
	if sec <= 0 {
		sec = 1
	}
	return t.Unix() / sec
}

func (e *Engine) debugf(format string, args ...interface{}) {
	if e.cfg.Debug {
		log.Printf(format, args...)
	}
}

func (e *Engine) bumpStats(fn func(s *types.EngineStats)) {
	e.statsMu.Lock()
	fn(&e.stats)
	e.statsMu.Unlock()
}
