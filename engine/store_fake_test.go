package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fcooper94/airline-manager-live-ops/db"
	"github.com/fcooper94/airline-manager-live-ops/events"
	"github.com/fcooper94/airline-manager-live-ops/models"
)

// fakeStore is an in-memory engine.Store for tests.
type fakeStore struct {
	mu          sync.Mutex
	worlds      map[int64]*models.World
	flights     map[int64]*models.FlightOp
	aircraft    map[int64]*models.Aircraft
	patterns    map[int64]*models.MaintenancePattern
	memberships map[int64]*models.Membership

	saveCalls    int
	startedIDs   []int64
	completedIDs []int64
	dueCalls     int
	dueCtxErr    error    // context state observed by the last DueFlights call
	oplog        []string // store call ordering, for shutdown assertions

	// When set, DueFlights blocks until the channel is closed; used to
	// simulate a slow processor pass.
	flightGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		worlds:      make(map[int64]*models.World),
		flights:     make(map[int64]*models.FlightOp),
		aircraft:    make(map[int64]*models.Aircraft),
		patterns:    make(map[int64]*models.MaintenancePattern),
		memberships: make(map[int64]*models.Membership),
	}
}

func (f *fakeStore) WorldByID(_ context.Context, id int64) (*models.World, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.worlds[id]
	if !ok {
		return nil, fmt.Errorf("world %d: %w", id, db.ErrNotFound)
	}
	cp := *w
	if cp.LastTickAt != nil {
		t := *cp.LastTickAt
		cp.LastTickAt = &t
	}
	return &cp, nil
}

func (f *fakeStore) SaveWorldClock(_ context.Context, w *models.World) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *w
	if cp.LastTickAt != nil {
		t := *cp.LastTickAt
		cp.LastTickAt = &t
	}
	f.worlds[w.ID] = &cp
	f.saveCalls++
	f.oplog = append(f.oplog, "save")
	return nil
}

func (f *fakeStore) DueFlights(ctx context.Context, worldID int64, at time.Time) ([]models.FlightOp, error) {
	f.mu.Lock()
	gate := f.flightGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dueCalls++
	f.dueCtxErr = ctx.Err()
	f.oplog = append(f.oplog, "due")
	var ops []models.FlightOp
	for _, op := range f.flights {
		if op.Flight.WorldID != worldID {
			continue
		}
		if op.Flight.Status != models.FlightScheduled && op.Flight.Status != models.FlightInProgress {
			continue
		}
		if op.Flight.ScheduledDate.After(at) {
			continue
		}
		ops = append(ops, *op)
	}
	return ops, nil
}

func (f *fakeStore) StartFlight(_ context.Context, flightID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.flights[flightID]
	if !ok || op.Flight.Status != models.FlightScheduled {
		return fmt.Errorf("flight %d is not in scheduled state", flightID)
	}
	op.Flight.Status = models.FlightInProgress
	f.startedIDs = append(f.startedIDs, flightID)
	return nil
}

func (f *fakeStore) CompleteFlight(_ context.Context, flightID, aircraftID int64, at time.Time, stampTransit bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.flights[flightID]
	if !ok {
		return fmt.Errorf("flight %d not found", flightID)
	}
	if op.Flight.Status == models.FlightCompleted || op.Flight.Status == models.FlightCancelled {
		return nil
	}
	op.Flight.Status = models.FlightCompleted
	f.completedIDs = append(f.completedIDs, flightID)
	if stampTransit {
		if ac, ok := f.aircraft[aircraftID]; ok && at.After(ac.LastTransitCheck) {
			ac.LastTransitCheck = at
		}
	}
	return nil
}

func cloneAircraft(a *models.Aircraft) models.Aircraft {
	cp := *a
	if cp.GroundedFor != nil {
		ct := *cp.GroundedFor
		cp.GroundedFor = &ct
	}
	if cp.MaintenanceStartedAt != nil {
		t := *cp.MaintenanceStartedAt
		cp.MaintenanceStartedAt = &t
	}
	return cp
}

func (f *fakeStore) AircraftByWorld(_ context.Context, worldID int64) ([]models.Aircraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Aircraft
	for _, a := range f.aircraft {
		if a.WorldID == worldID && a.Status != models.AircraftSold {
			out = append(out, cloneAircraft(a))
		}
	}
	return out, nil
}

func (f *fakeStore) ActivePatterns(_ context.Context, worldID int64) ([]models.MaintenancePattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MaintenancePattern
	for _, p := range f.patterns {
		if p.WorldID == worldID && p.Status == models.PatternActive {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) StampChecks(_ context.Context, aircraftID int64, checks []models.CheckType, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.aircraft[aircraftID]
	if !ok {
		return fmt.Errorf("aircraft %d not found", aircraftID)
	}
	for _, ct := range checks {
		if at.After(a.LastCheck(ct)) {
			a.SetLastCheck(ct, at)
		}
	}
	return nil
}

func (f *fakeStore) CompletePattern(_ context.Context, patternID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.patterns[patternID]; ok && p.Status == models.PatternActive {
		p.Status = models.PatternCompleted
	}
	return nil
}

func (f *fakeStore) GroundAircraft(_ context.Context, aircraftID int64, check models.CheckType, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.aircraft[aircraftID]
	if !ok || a.Status != models.AircraftActive {
		return nil
	}
	a.Status = models.AircraftMaintenance
	ct := check
	a.GroundedFor = &ct
	t := at
	a.MaintenanceStartedAt = &t
	return nil
}

func (f *fakeStore) ReturnAircraftToService(_ context.Context, aircraftID int64, check models.CheckType, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.aircraft[aircraftID]
	if !ok || a.Status != models.AircraftMaintenance {
		return nil
	}
	a.Status = models.AircraftActive
	a.GroundedFor = nil
	a.MaintenanceStartedAt = nil
	for _, ct := range check.Cascade() {
		if at.After(a.LastCheck(ct)) {
			a.SetLastCheck(ct, at)
		}
	}
	return nil
}

func (f *fakeStore) ActiveMemberships(_ context.Context, worldID int64) ([]models.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Membership
	for _, m := range f.memberships {
		if m.WorldID != worldID || !m.IsActive {
			continue
		}
		cp := *m
		if cp.LastCreditDeduction != nil {
			t := *cp.LastCreditDeduction
			cp.LastCreditDeduction = &t
		}
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeStore) DeductCredit(_ context.Context, membershipID int64, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memberships[membershipID]
	if !ok || !m.IsActive {
		return 0, fmt.Errorf("membership %d is not active", membershipID)
	}
	m.Credits--
	t := at
	m.LastCreditDeduction = &t
	return m.Credits, nil
}

func (f *fakeStore) AutoScheduleAircraft(_ context.Context, worldID int64) ([]models.Aircraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Aircraft
	for _, a := range f.aircraft {
		if a.WorldID == worldID && a.Status != models.AircraftSold && a.HasAutoSchedule() {
			out = append(out, cloneAircraft(a))
		}
	}
	return out, nil
}

// capturePub records published events for assertions.
type capturePub struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePub) Publish(e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *capturePub) byType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
