package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcooper94/airline-manager-live-ops/clock"
	"github.com/fcooper94/airline-manager-live-ops/db"
	"github.com/fcooper94/airline-manager-live-ops/events"
	"github.com/fcooper94/airline-manager-live-ops/models"
)

// baseReal sits exactly on a 30 s persist bucket boundary so batching
// assertions are deterministic.
var baseReal = time.Unix(1_000_000_020, 0).UTC()

var baseGame = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func quietConfig() Config {
	return Config{
		TickInterval:      time.Hour, // background loop stays dormant; tests drive ticks directly
		PersistInterval:   30 * time.Second,
		FlightThrottle:    time.Millisecond,
		MaintThrottle:     time.Millisecond,
		BillingThrottle:   time.Millisecond,
		RefreshThrottle:   time.Millisecond,
		RefreshItemDelay:  time.Millisecond,
		RefreshRetryDelay: time.Millisecond,
	}
}

func newTestEngine(refresh RefreshFunc) (*Engine, *fakeStore, *capturePub, *clock.MockClock) {
	fs := newFakeStore()
	pub := &capturePub{}
	clk := clock.NewMockClock(baseReal)
	e := New(fs, pub, clk, refresh, quietConfig())
	return e, fs, pub, clk
}

func seedWorld(fs *fakeStore, id int64, accel float64, lastTick *time.Time) {
	fs.worlds[id] = &models.World{
		ID:               id,
		Name:             "test world",
		CurrentTime:      baseGame,
		StartDate:        baseGame.AddDate(0, -1, 0),
		TimeAcceleration: accel,
		Status:           models.WorldActive,
		LastTickAt:       lastTick,
	}
}

func TestStartWorldCatchUp(t *testing.T) {
	e, fs, _, _ := newTestEngine(nil)
	last := baseReal.Add(-600 * time.Second)
	seedWorld(fs, 1, 60, &last)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)

	// 600 s of real downtime at x60 is 10 virtual hours, applied at once.
	want := baseGame.Add(10 * time.Hour)
	got, ok := e.CurrentTime(1)
	require.True(t, ok)
	assert.True(t, got.Equal(want), "got %s, want %s", got, want)

	// The corrected clock is persisted immediately.
	fs.mu.Lock()
	persisted := fs.worlds[1].CurrentTime
	fs.mu.Unlock()
	assert.True(t, persisted.Equal(want))
}

func TestStartWorldNoCatchUpWhenFresh(t *testing.T) {
	e, fs, _, _ := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)

	got, ok := e.CurrentTime(1)
	require.True(t, ok)
	assert.True(t, got.Equal(baseGame))
}

func TestStartWorldPausedStaysFrozen(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	last := baseReal.Add(-600 * time.Second)
	seedWorld(fs, 1, 60, &last)
	fs.worlds[1].IsPaused = true
	fs.worlds[1].Status = models.WorldPaused

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, _ := e.loop(1)

	// No catch-up: the clock was frozen when the process went down and
	// stays frozen after the restart.
	got, ok := e.CurrentTime(1)
	require.True(t, ok)
	assert.True(t, got.Equal(baseGame), "paused world replayed downtime: %s", got)

	w, _ := e.WorldSnapshot(1)
	assert.True(t, w.IsPaused)
	assert.Equal(t, models.WorldPaused, w.Status)

	// Ticks keep it frozen until an explicit resume.
	clk.Advance(time.Minute)
	e.tick(ctx, lp)
	got, _ = e.CurrentTime(1)
	assert.True(t, got.Equal(baseGame))

	require.NoError(t, e.ResumeWorld(ctx, 1))
	clk.Advance(10 * time.Second)
	e.tick(ctx, lp)
	got, _ = e.CurrentTime(1)
	assert.True(t, got.Equal(baseGame.Add(10*time.Minute)), "resume advances from the frozen time")
}

func TestStartWorldUnknownID(t *testing.T) {
	e, _, _, _ := newTestEngine(nil)
	err := e.StartWorld(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestStartWorldTwiceFails(t *testing.T) {
	e, fs, _, _ := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	assert.Error(t, e.StartWorld(ctx, 1))
}

func TestStartWorldCompletedFails(t *testing.T) {
	e, fs, _, _ := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)
	fs.worlds[1].Status = models.WorldCompleted

	assert.Error(t, e.StartWorld(context.Background(), 1))
}

func TestTickAdvancesByAcceleratedElapsed(t *testing.T) {
	e, fs, pub, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, ok := e.loop(1)
	require.True(t, ok)

	clk.Advance(10 * time.Second)
	e.tick(ctx, lp)

	got, _ := e.CurrentTime(1)
	assert.True(t, got.Equal(baseGame.Add(10*time.Minute)), "10 s at x60 is 10 virtual minutes")

	ticks := pub.byType(events.EventTick)
	require.Len(t, ticks, 1)
	data, ok := ticks[0].Data.(events.TickData)
	require.True(t, ok)
	assert.Equal(t, int64(1), data.WorldID)
	assert.InDelta(t, 600, data.AdvancementSeconds, 0.001)
	assert.Equal(t, float64(60), data.TimeAcceleration)
}

func TestTickMonotonic(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, _ := e.loop(1)

	prev, _ := e.CurrentTime(1)
	for i := 0; i < 20; i++ {
		clk.Advance(time.Second)
		e.tick(ctx, lp)
		cur, _ := e.CurrentTime(1)
		assert.False(t, cur.Before(prev), "virtual time went backwards at tick %d", i)
		prev = cur
	}
}

func TestPauseStopsAdvancement(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, _ := e.loop(1)

	require.NoError(t, e.PauseWorld(ctx, 1))
	frozen, _ := e.CurrentTime(1)

	clk.Advance(5 * time.Minute)
	e.tick(ctx, lp)
	got, _ := e.CurrentTime(1)
	assert.True(t, got.Equal(frozen), "paused world advanced")

	w, ok := e.WorldSnapshot(1)
	require.True(t, ok)
	assert.True(t, w.IsPaused)
	assert.Equal(t, models.WorldPaused, w.Status)
}

func TestResumeDoesNotReplayPauseSpan(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, _ := e.loop(1)

	require.NoError(t, e.PauseWorld(ctx, 1))
	clk.Advance(time.Hour) // real time passing while paused
	require.NoError(t, e.ResumeWorld(ctx, 1))

	clk.Advance(5 * time.Second)
	e.tick(ctx, lp)

	got, _ := e.CurrentTime(1)
	assert.True(t, got.Equal(baseGame.Add(5*time.Minute)),
		"only the post-resume 5 s should advance, got %s", got)
}

func TestPersistBatching(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, _ := e.loop(1)

	fs.mu.Lock()
	after := fs.saveCalls // one write from StartWorld itself
	fs.mu.Unlock()

	// Two ticks inside the start bucket: no writes.
	clk.Advance(10 * time.Second)
	e.tick(ctx, lp)
	clk.Advance(10 * time.Second)
	e.tick(ctx, lp)
	fs.mu.Lock()
	assert.Equal(t, after, fs.saveCalls)
	fs.mu.Unlock()

	// Crossing into the next bucket flushes once.
	clk.Advance(15 * time.Second)
	e.tick(ctx, lp)
	fs.mu.Lock()
	assert.Equal(t, after+1, fs.saveCalls)
	fs.mu.Unlock()
}

func TestStopWorldFlushesLatestTime(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	lp, _ := e.loop(1)

	clk.Advance(3 * time.Second)
	e.tick(ctx, lp)
	want, _ := e.CurrentTime(1)

	require.NoError(t, e.StopWorld(ctx, 1))
	fs.mu.Lock()
	persisted := fs.worlds[1].CurrentTime
	fs.mu.Unlock()
	assert.True(t, persisted.Equal(want))

	_, ok := e.CurrentTime(1)
	assert.False(t, ok, "stopped world still registered")
	assert.Error(t, e.StopWorld(ctx, 1))
}

func TestMonotonicAcrossRestart(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	lp, _ := e.loop(1)
	clk.Advance(20 * time.Second)
	e.tick(ctx, lp)
	before, _ := e.CurrentTime(1)
	require.NoError(t, e.StopWorld(ctx, 1))

	clk.Advance(10 * time.Minute) // downtime
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)

	after, _ := e.CurrentTime(1)
	assert.True(t, after.After(before), "restart moved virtual time backwards")
	assert.True(t, after.Equal(before.Add(10*60*60*time.Second)),
		"10 min downtime at x60 should add 10 virtual hours")
}

func TestSetTimeAcceleration(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)
	lp, _ := e.loop(1)

	assert.Error(t, e.SetTimeAcceleration(ctx, 1, 0))
	assert.Error(t, e.SetTimeAcceleration(ctx, 1, -5))
	require.NoError(t, e.SetTimeAcceleration(ctx, 1, 120))

	clk.Advance(10 * time.Second)
	e.tick(ctx, lp)
	got, _ := e.CurrentTime(1)
	assert.True(t, got.Equal(baseGame.Add(20*time.Minute)), "10 s at x120 is 20 virtual minutes")
}

func TestWorldSnapshotIsDefensiveCopy(t *testing.T) {
	e, fs, _, _ := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer e.StopAll(ctx)

	snap, ok := e.WorldSnapshot(1)
	require.True(t, ok)
	require.NotNil(t, snap.LastTickAt)
	*snap.LastTickAt = snap.LastTickAt.Add(time.Hour)
	snap.CurrentTime = snap.CurrentTime.Add(time.Hour)

	again, _ := e.WorldSnapshot(1)
	assert.True(t, again.CurrentTime.Equal(baseGame))
	assert.True(t, again.LastTickAt.Equal(baseReal))
}

func TestStatsCountsWorldsAndTicks(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)
	seedWorld(fs, 2, 1, nil)

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	require.NoError(t, e.StartWorld(ctx, 2))
	defer e.StopAll(ctx)

	lp, _ := e.loop(1)
	clk.Advance(time.Second)
	e.tick(ctx, lp)

	s := e.Stats()
	assert.Equal(t, 2, s.ActiveWorlds)
	assert.Equal(t, int64(1), s.TotalTicks)
	assert.True(t, s.LastTick.Equal(clk.Now()))
}

func TestDispatchSkipsBusyProcessor(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)
	gate := make(chan struct{})
	fs.flightGate = gate

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	defer func() {
		fs.mu.Lock()
		fs.flightGate = nil
		fs.mu.Unlock()
		e.StopAll(ctx)
	}()
	lp, _ := e.loop(1)

	// First tick starts a flight pass that blocks on the gate; further
	// ticks must not stack a second pass behind it.
	clk.Advance(time.Second)
	e.tick(ctx, lp)
	clk.Advance(time.Second)
	e.tick(ctx, lp)
	clk.Advance(time.Second)
	e.tick(ctx, lp)

	close(gate)
	require.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return fs.dueCalls >= 1
	}, time.Second, 5*time.Millisecond)

	// Give any stacked pass a moment to show up; none should.
	time.Sleep(20 * time.Millisecond)
	fs.mu.Lock()
	calls := fs.dueCalls
	fs.mu.Unlock()
	assert.Equal(t, 1, calls, "overlapping flight passes for one world")
}

func TestStopWorldLetsPassFinish(t *testing.T) {
	e, fs, _, clk := newTestEngine(nil)
	seedWorld(fs, 1, 60, nil)
	gate := make(chan struct{})
	fs.flightGate = gate

	ctx := context.Background()
	require.NoError(t, e.StartWorld(ctx, 1))
	lp, _ := e.loop(1)

	clk.Advance(time.Second)
	e.tick(ctx, lp) // flight pass blocks on the gate

	stopped := make(chan error, 1)
	go func() { stopped <- e.StopWorld(ctx, 1) }()

	// Let the stop cancel the loop and reach the guard wait, then release
	// the pass.
	time.Sleep(30 * time.Millisecond)
	fs.mu.Lock()
	fs.flightGate = nil
	fs.mu.Unlock()
	close(gate)

	require.NoError(t, <-stopped)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.NoError(t, fs.dueCtxErr, "in-flight pass saw a cancelled context")
	// Start write, then the pass, then the final flush.
	require.GreaterOrEqual(t, len(fs.oplog), 3)
	assert.Equal(t, []string{"save", "due", "save"}, fs.oplog,
		"final flush must land after the in-flight pass finished")
}
