package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/engine"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

// --- Stubs ---

type stubVenues struct {
	mu       sync.Mutex
	byCenter map[domain.Coordinate][]domain.Venue
	fallback []domain.Venue
	err      error
	gate     chan struct{}
	calls    []domain.Coordinate
}

func (s *stubVenues) FetchNear(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, at)
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.byCenter[at]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubVenues) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubVisited struct {
	mu   sync.Mutex
	ids  []string
	err  error
	gate chan struct{}
}

func (s *stubVisited) FetchVisited(ctx context.Context, userID string) ([]string, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids, s.err
}

func (s *stubVisited) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubRecorder struct {
	mu      sync.Mutex
	visits  []domain.Visit
	err     error
	entered chan struct{}
	gate    chan struct{}
}

func (s *stubRecorder) RecordVisit(ctx context.Context, visit domain.Visit) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.visits = append(s.visits, visit)
	return nil
}

func venues(ids ...string) []domain.Venue {
	out := make([]domain.Venue, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Venue{ID: id, Name: "Izakaya " + id, Lat: 35.68, Lng: 139.76})
	}
	return out
}

func newEngine(v *stubVenues, vis *stubVisited, rec *stubRecorder, userID string) *engine.Engine {
	if rec == nil {
		rec = &stubRecorder{}
	}
	return engine.New(engine.Config{
		Catalog:      usecases.NewStationCatalog(),
		Venues:       v,
		Visited:      vis,
		Recorder:     rec,
		Identity:     domain.Identity{UserID: userID},
		FetchTimeout: time.Second,
	})
}

func station(t *testing.T, name string) domain.Station {
	t.Helper()
	st, ok := usecases.NewStationCatalog().Find(name)
	if !ok {
		t.Fatalf("station %s missing from catalog", name)
	}
	return st
}

// --- Tests ---

func TestComputeCompletion(t *testing.T) {
	tests := []struct {
		name    string
		venues  []domain.Venue
		visited []string
		want    bool
	}{
		{"empty venue set", nil, []string{"1"}, false},
		{"all visited", venues("1", "2"), []string{"1", "2", "9"}, true},
		{"one missing", venues("1", "2"), []string{"1"}, false},
		{"nothing visited", venues("1"), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.ComputeCompletion(tt.venues, engine.NewIDSet(tt.visited...))
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEngine_InitialState(t *testing.T) {
	e := newEngine(&stubVenues{}, &stubVisited{}, nil, "")

	view := e.Snapshot()
	if view.Station != "Tokyo Station" {
		t.Errorf("expected Tokyo Station, got %s", view.Station)
	}
	if view.Epoch != 0 || len(view.Venues) != 0 || view.Conquered {
		t.Errorf("unexpected initial view: %+v", view)
	}
}

func TestEngine_SelectStation_UnknownIsNoop(t *testing.T) {
	e := newEngine(&stubVenues{}, &stubVisited{}, nil, "")
	before := e.Snapshot()

	err := e.SelectStation("Osaka Station")
	if !errors.Is(err, engine.ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation, got %v", err)
	}

	after := e.Snapshot()
	if after.Revision != before.Revision || after.PendingStation != "" {
		t.Errorf("state changed on rejected selection: %+v", after)
	}
}

func TestEngine_SelectStation_DoesNotMoveMap(t *testing.T) {
	e := newEngine(&stubVenues{}, &stubVisited{}, nil, "")

	if err := e.SelectStation("Shibuya Station"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view := e.Snapshot()
	if view.PendingStation != "Shibuya Station" {
		t.Errorf("expected pending Shibuya Station, got %q", view.PendingStation)
	}
	if view.Station != "Tokyo Station" || view.Epoch != 0 {
		t.Errorf("map moved before confirm: %+v", view)
	}
}

func TestEngine_ConfirmSelection_FetchesForNewCenter(t *testing.T) {
	shibuya := station(t, "Shibuya Station")
	v := &stubVenues{byCenter: map[domain.Coordinate][]domain.Venue{
		shibuya.Coordinate(): venues("S1", "S2"),
	}}
	e := newEngine(v, &stubVisited{ids: []string{"S1"}}, nil, "u1")

	_ = e.SelectStation("Shibuya Station")
	if !e.ConfirmSelection(context.Background()) {
		t.Fatal("expected fetches to be issued")
	}
	e.Wait()

	view := e.Snapshot()
	if view.Station != "Shibuya Station" || !view.Center.Equal(shibuya.Coordinate()) {
		t.Errorf("unexpected centre: %s at %s", view.Station, view.Center)
	}
	if view.PendingStation != "" {
		t.Errorf("pending station should be cleared, got %q", view.PendingStation)
	}
	if len(view.Venues) != 2 || view.Venues[0].ID != "S1" {
		t.Fatalf("unexpected venues: %+v", view.Venues)
	}
	if !view.Venues[0].Visited || view.Venues[1].Visited {
		t.Errorf("unexpected visited flags: %+v", view.Venues)
	}
	if view.LoadingVenues || view.LoadingVisited {
		t.Error("fetches should have settled")
	}
}

func TestEngine_ConfirmSelection_DeduplicatesInFlight(t *testing.T) {
	gate := make(chan struct{})
	v := &stubVenues{gate: gate}
	vis := &stubVisited{gate: gate}
	e := newEngine(v, vis, nil, "u1")

	if !e.ConfirmSelection(context.Background()) {
		t.Fatal("first confirm should issue fetches")
	}
	if e.ConfirmSelection(context.Background()) {
		t.Error("second confirm for the same coordinate should be deduplicated")
	}
	if e.Epoch().Seq != 1 {
		t.Errorf("expected epoch 1, got %d", e.Epoch().Seq)
	}

	close(gate)
	e.Wait()

	if len(v.calls) != 1 {
		t.Errorf("expected 1 venue fetch, got %d", len(v.calls))
	}

	// Settled: confirming the same coordinate again refetches
	if !e.ConfirmSelection(context.Background()) {
		t.Error("confirm after settle should refetch")
	}
	e.Wait()
}

func TestEngine_StaleVenueResultDiscarded(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, nil, "u1")
	t.Cleanup(func() {
		close(gate)
		e.Wait()
	})

	_ = e.SelectStation("Ueno Station")
	e.ConfirmSelection(context.Background())
	first := e.Epoch()

	_ = e.SelectStation("Ikebukuro Station")
	e.ConfirmSelection(context.Background())
	second := e.Epoch()

	// The newer response arrives first, then the older one
	e.VenueFetchCompleted(second, venues("IK1"), nil)
	e.VenueFetchCompleted(first, venues("UE1", "UE2"), nil)

	view := e.Snapshot()
	if len(view.Venues) != 1 || view.Venues[0].ID != "IK1" {
		t.Errorf("stale result overwrote current venues: %+v", view.Venues)
	}
	if view.Station != "Ikebukuro Station" {
		t.Errorf("expected Ikebukuro Station, got %s", view.Station)
	}
}

func TestEngine_StaleVisitedResultDiscarded(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, nil, "u1")
	t.Cleanup(func() {
		close(gate)
		e.Wait()
	})

	e.ConfirmSelection(context.Background())
	first := e.Epoch()
	_ = e.SelectStation("Shinjuku Station")
	e.ConfirmSelection(context.Background())

	e.VisitedFetchCompleted(first, []string{"X"}, nil)

	if got := e.Snapshot().VisitedIDs; len(got) != 0 {
		t.Errorf("stale visited result applied: %v", got)
	}
}

func TestEngine_VisitedSetOnlyGrows(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, nil, "u1")
	t.Cleanup(func() {
		close(gate)
		e.Wait()
	})

	e.ConfirmSelection(context.Background())
	e.VisitedFetchCompleted(e.Epoch(), []string{"1", "2"}, nil)

	_ = e.SelectStation("Shinagawa Station")
	e.ConfirmSelection(context.Background())
	e.VisitedFetchCompleted(e.Epoch(), []string{"3"}, nil)

	got := e.Snapshot().VisitedIDs
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}

func TestEngine_WorkedScenario(t *testing.T) {
	rec := &stubRecorder{}
	e := newEngine(&stubVenues{fallback: venues("1", "2")}, &stubVisited{ids: []string{"1"}}, rec, "u1")

	conquered := 0
	e.OnConquered(func(domain.View) { conquered++ })

	e.ConfirmSelection(context.Background())
	e.Wait()
	if e.Snapshot().Conquered {
		t.Fatal("area should not be conquered yet")
	}

	if err := e.SelectVenue("2"); err != nil {
		t.Fatalf("SelectVenue: %v", err)
	}
	pv := e.Snapshot().PendingVisit
	if pv == nil || pv.VenueID != "2" || pv.Rating != domain.DefaultRating {
		t.Fatalf("expected pending visit {2, 3}, got %+v", pv)
	}

	if err := e.SetRating(5); err != nil {
		t.Fatalf("SetRating: %v", err)
	}
	if err := e.SubmitVisit(context.Background()); err != nil {
		t.Fatalf("SubmitVisit: %v", err)
	}

	if len(rec.visits) != 1 {
		t.Fatalf("expected 1 recorded visit, got %d", len(rec.visits))
	}
	got := rec.visits[0]
	if got.UserID != "u1" || got.RestaurantID != "2" || got.Rating != 5 || got.VisitedAt.IsZero() {
		t.Errorf("unexpected visit: %+v", got)
	}

	view := e.Snapshot()
	if view.PendingVisit != nil {
		t.Error("pending visit should be cleared")
	}
	if len(view.VisitedIDs) != 2 {
		t.Errorf("expected visited {1,2}, got %v", view.VisitedIDs)
	}
	if !view.Conquered {
		t.Error("area should be conquered")
	}
	if conquered != 1 {
		t.Errorf("expected 1 conquered notification, got %d", conquered)
	}
}

func TestEngine_SelectVenue_NotInSet(t *testing.T) {
	e := newEngine(&stubVenues{fallback: venues("1")}, &stubVisited{}, nil, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()

	err := e.SelectVenue("99")
	if !errors.Is(err, engine.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	if e.Snapshot().PendingVisit != nil {
		t.Error("pending visit should remain unset")
	}
}

func TestEngine_SetRating_Bounds(t *testing.T) {
	e := newEngine(&stubVenues{fallback: venues("1")}, &stubVisited{}, nil, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()

	if err := e.SetRating(4); !errors.Is(err, engine.ErrNoPendingVisit) {
		t.Errorf("expected ErrNoPendingVisit, got %v", err)
	}

	_ = e.SelectVenue("1")
	for _, r := range []int{0, 6, -1} {
		if err := e.SetRating(r); !errors.Is(err, engine.ErrInvalidRating) {
			t.Errorf("rating %d: expected ErrInvalidRating, got %v", r, err)
		}
	}
	if got := e.Snapshot().PendingVisit.Rating; got != domain.DefaultRating {
		t.Errorf("rating changed by rejected input: %d", got)
	}

	for r := domain.MinRating; r <= domain.MaxRating; r++ {
		if err := e.SetRating(r); err != nil {
			t.Errorf("rating %d rejected: %v", r, err)
		}
	}
}

func TestEngine_CancelVisit(t *testing.T) {
	rec := &stubRecorder{}
	e := newEngine(&stubVenues{fallback: venues("1")}, &stubVisited{}, rec, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()

	_ = e.SelectVenue("1")
	e.CancelVisit()

	if e.Snapshot().PendingVisit != nil {
		t.Error("pending visit should be cleared")
	}
	if err := e.SubmitVisit(context.Background()); !errors.Is(err, engine.ErrNoPendingVisit) {
		t.Errorf("expected ErrNoPendingVisit, got %v", err)
	}
	if len(rec.visits) != 0 {
		t.Error("cancel must not record anything")
	}
}

func TestEngine_SubmitVisit_InFlightGuard(t *testing.T) {
	rec := &stubRecorder{entered: make(chan struct{}, 1), gate: make(chan struct{})}
	e := newEngine(&stubVenues{fallback: venues("1", "2")}, &stubVisited{}, rec, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()

	_ = e.SelectVenue("1")

	done := make(chan error, 1)
	go func() { done <- e.SubmitVisit(context.Background()) }()
	<-rec.entered

	if !e.Snapshot().Submitting {
		t.Error("expected submitting flag")
	}
	if err := e.SubmitVisit(context.Background()); !errors.Is(err, engine.ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight, got %v", err)
	}
	if err := e.SelectVenue("2"); !errors.Is(err, engine.ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight, got %v", err)
	}
	e.CancelVisit()
	if pv := e.Snapshot().PendingVisit; pv == nil || pv.VenueID != "1" {
		t.Errorf("cancel should not abort an in-flight submission, pending=%+v", pv)
	}

	close(rec.gate)
	if err := <-done; err != nil {
		t.Fatalf("SubmitVisit: %v", err)
	}
	if len(rec.visits) != 1 {
		t.Errorf("expected exactly 1 recorded visit, got %d", len(rec.visits))
	}
	if e.Snapshot().Submitting {
		t.Error("submitting flag should be cleared")
	}
}

func TestEngine_SubmitVisit_Failure(t *testing.T) {
	boom := errors.New("upstream 500")
	rec := &stubRecorder{err: boom}
	e := newEngine(&stubVenues{fallback: venues("1")}, &stubVisited{}, rec, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()

	_ = e.SelectVenue("1")
	err := e.SubmitVisit(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected recorder error, got %v", err)
	}

	view := e.Snapshot()
	if view.PendingVisit != nil {
		t.Error("pending visit should be cleared after failure")
	}
	if len(view.VisitedIDs) != 0 || view.Conquered {
		t.Errorf("failed submission changed visited state: %+v", view)
	}
}

func TestEngine_SubmitVisit_StaleSelection(t *testing.T) {
	gate := make(chan struct{})
	rec := &stubRecorder{}
	e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, rec, "u1")
	t.Cleanup(func() {
		close(gate)
		e.Wait()
	})

	e.ConfirmSelection(context.Background())
	e.VenueFetchCompleted(e.Epoch(), venues("1", "2"), nil)
	_ = e.SelectVenue("2")

	_ = e.SelectStation("Akihabara Station")
	e.ConfirmSelection(context.Background())
	e.VenueFetchCompleted(e.Epoch(), venues("A1"), nil)

	err := e.SubmitVisit(context.Background())
	if !errors.Is(err, engine.ErrStaleSelection) {
		t.Fatalf("expected ErrStaleSelection, got %v", err)
	}
	if e.Snapshot().PendingVisit != nil {
		t.Error("stale pending visit should be cleared")
	}
	if len(rec.visits) != 0 {
		t.Error("stale visit must not be recorded")
	}
}

func TestEngine_VenueFetchFailureKeepsPreviousSet(t *testing.T) {
	v := &stubVenues{fallback: venues("1")}
	e := newEngine(v, &stubVisited{ids: []string{"1"}}, nil, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()
	if !e.Snapshot().Conquered {
		t.Fatal("expected conquered after first load")
	}

	v.setErr(errors.New("timeout"))
	e.ConfirmSelection(context.Background())
	e.Wait()

	view := e.Snapshot()
	if len(view.Venues) != 1 || view.Venues[0].ID != "1" {
		t.Errorf("previous venue set should be kept, got %+v", view.Venues)
	}
	if view.Conquered {
		t.Error("venues from an older epoch must not count toward completion")
	}
	if view.LoadingVenues {
		t.Error("failed fetch should settle")
	}
}

func TestEngine_VisitedFetchFailureKeepsPreviousSet(t *testing.T) {
	vis := &stubVisited{ids: []string{"1"}}
	e := newEngine(&stubVenues{fallback: venues("1")}, vis, nil, "u1")
	e.ConfirmSelection(context.Background())
	e.Wait()

	vis.setErr(errors.New("timeout"))
	_ = e.SelectStation("Ginza Station")
	e.ConfirmSelection(context.Background())
	e.Wait()

	view := e.Snapshot()
	if len(view.VisitedIDs) != 1 || view.VisitedIDs[0] != "1" {
		t.Errorf("previous visited set should be kept, got %v", view.VisitedIDs)
	}
	if view.LoadingVisited {
		t.Error("failed fetch should settle")
	}
	if !view.Conquered {
		t.Error("flag should be recomputed against the kept visited set")
	}
}

func TestEngine_CompletionNotJudgedAcrossEpochs(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, nil, "u1")
	t.Cleanup(func() {
		close(gate)
		e.Wait()
	})

	e.ConfirmSelection(context.Background())
	e.VenueFetchCompleted(e.Epoch(), venues("1"), nil)
	if e.Snapshot().Conquered {
		t.Error("flag must wait for the visited set of the same epoch")
	}

	e.VisitedFetchCompleted(e.Epoch(), []string{"1"}, nil)
	if !e.Snapshot().Conquered {
		t.Error("expected conquered once both sets are current")
	}

	// New epoch: previous venues no longer count
	_ = e.SelectStation("Ginza Station")
	e.ConfirmSelection(context.Background())
	if e.Snapshot().Conquered {
		t.Error("flag must reset when a new epoch starts")
	}
}

func TestEngine_WaitContext(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(&stubVenues{gate: gate, fallback: venues("1")}, &stubVisited{gate: gate}, nil, "u1")

	if !e.WaitContext(context.Background()) {
		t.Fatal("an engine with no fetches is settled")
	}

	e.ConfirmSelection(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if e.WaitContext(ctx) {
		t.Fatal("expected WaitContext to give up while fetches are gated")
	}

	close(gate)
	if !e.WaitContext(context.Background()) {
		t.Fatal("expected engine to settle once fetches complete")
	}
	if len(e.Snapshot().Venues) != 1 {
		t.Error("expected venues applied after settling")
	}
}

func TestEngine_CompletionIndependentOfArrivalOrder(t *testing.T) {
	fetchErr := errors.New("upstream timeout")
	tests := []struct {
		name          string
		prior         []string // visited ids applied in the first epoch
		visited       []string
		visitedErr    error
		wantConquered bool
		wantVisited   int
	}{
		{"both succeed", nil, []string{"1"}, nil, true, 1},
		{"visited fails, prior set covers venues", []string{"1"}, nil, fetchErr, true, 1},
		{"visited fails, nothing visited yet", nil, nil, fetchErr, false, 0},
		{"visited succeeds, venue not visited", nil, []string{"9"}, nil, false, 1},
	}

	for _, tt := range tests {
		for _, venuesFirst := range []bool{true, false} {
			order := "visited first"
			if venuesFirst {
				order = "venues first"
			}
			t.Run(tt.name+"/"+order, func(t *testing.T) {
				gate := make(chan struct{})
				e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, nil, "u1")
				t.Cleanup(func() {
					close(gate)
					e.Wait()
				})

				e.ConfirmSelection(context.Background())
				e.VisitedFetchCompleted(e.Epoch(), tt.prior, nil)

				_ = e.SelectStation("Ginza Station")
				e.ConfirmSelection(context.Background())
				epoch := e.Epoch()

				if venuesFirst {
					e.VenueFetchCompleted(epoch, venues("1"), nil)
					e.VisitedFetchCompleted(epoch, tt.visited, tt.visitedErr)
				} else {
					e.VisitedFetchCompleted(epoch, tt.visited, tt.visitedErr)
					e.VenueFetchCompleted(epoch, venues("1"), nil)
				}

				view := e.Snapshot()
				if view.Conquered != tt.wantConquered {
					t.Errorf("conquered = %v, want %v", view.Conquered, tt.wantConquered)
				}
				if len(view.VisitedIDs) != tt.wantVisited {
					t.Errorf("visited = %v, want %d ids", view.VisitedIDs, tt.wantVisited)
				}
				if view.LoadingVenues || view.LoadingVisited {
					t.Error("both fetches should be resolved")
				}
			})
		}
	}
}

func TestEngine_DismissCompletion(t *testing.T) {
	gate := make(chan struct{})
	e := newEngine(&stubVenues{gate: gate}, &stubVisited{gate: gate}, nil, "u1")
	t.Cleanup(func() {
		close(gate)
		e.Wait()
	})

	conquered := 0
	e.OnConquered(func(domain.View) { conquered++ })

	e.ConfirmSelection(context.Background())
	epoch := e.Epoch()
	e.VenueFetchCompleted(epoch, venues("1"), nil)
	e.VisitedFetchCompleted(epoch, []string{"1"}, nil)

	e.DismissCompletion()
	view := e.Snapshot()
	if view.Conquered {
		t.Error("flag should be cleared")
	}
	if len(view.Venues) != 1 || len(view.VisitedIDs) != 1 {
		t.Error("dismiss must not touch the sets")
	}

	// A later mutation recomputes and fires again
	e.VenueFetchCompleted(epoch, venues("1"), nil)
	if !e.Snapshot().Conquered {
		t.Error("expected flag to be recomputed")
	}
	if conquered != 2 {
		t.Errorf("expected 2 conquered notifications, got %d", conquered)
	}
}

func TestEngine_OnChangeRevisionsIncrease(t *testing.T) {
	e := newEngine(&stubVenues{fallback: venues("1")}, &stubVisited{}, nil, "u1")

	var mu sync.Mutex
	var revisions []uint64
	e.OnChange(func(v domain.View) {
		mu.Lock()
		revisions = append(revisions, v.Revision)
		mu.Unlock()
	})

	_ = e.SelectStation("Ebisu Station")
	e.ConfirmSelection(context.Background())
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(revisions) < 4 {
		t.Fatalf("expected at least 4 notifications, got %d", len(revisions))
	}
	seen := make(map[uint64]bool)
	for _, r := range revisions {
		if seen[r] {
			t.Errorf("revision %d delivered twice", r)
		}
		seen[r] = true
	}
}

func TestEngine_DistanceFromCenter(t *testing.T) {
	tokyo := station(t, "Tokyo Station")
	near := domain.Venue{ID: "1", Lat: tokyo.Latitude, Lng: tokyo.Longitude}
	e := newEngine(&stubVenues{fallback: []domain.Venue{near}}, &stubVisited{}, nil, "")
	e.ConfirmSelection(context.Background())
	e.Wait()

	view := e.Snapshot()
	if len(view.Venues) != 1 {
		t.Fatalf("expected 1 venue, got %d", len(view.Venues))
	}
	if d := view.Venues[0].Distance; d > 1 {
		t.Errorf("expected ~0m distance, got %.1f", d)
	}
}
