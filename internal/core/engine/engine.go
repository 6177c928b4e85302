// Package engine reconciles the state of one check-in view: the selected
// station and map centre, the venues fetched for it, the user's visited set,
// and the derived conquered flag.
//
// Every transition runs under a single mutex, so transitions never
// interleave. Fetches run on their own goroutines and re-enter through
// VenueFetchCompleted and VisitedFetchCompleted, where results tagged with a
// superseded epoch are dropped.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/geospatial"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
)

const defaultFetchTimeout = 15 * time.Second

// Config wires an Engine to its collaborators.
type Config struct {
	Catalog  ports.StationCatalog
	Venues   ports.VenueFetcher
	Visited  ports.VisitedSetFetcher
	Recorder ports.VisitRecorder
	Identity domain.Identity

	// FetchTimeout bounds each venue/visited fetch. Zero means 15s.
	FetchTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Checkin
	Clock   func() time.Time
}

// Listener receives a snapshot after a state change.
type Listener func(domain.View)

// Engine owns the derived state of one view.
type Engine struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	epoch    Epoch
	station  string
	pending  *domain.Station
	revision uint64

	venues          []domain.Venue
	venuesEpoch     uint64 // epoch seq the venue set was fetched for
	venuesInFlight  bool
	visited         IDSet
	visitedInFlight bool

	visit      *domain.PendingVisit
	submitting bool
	completed  bool

	onChange    []Listener
	onConquered []Listener

	outstanding int           // fetch goroutines not yet applied
	idle        chan struct{} // closed while outstanding is zero
}

// New builds an engine centred on the catalog's default station. Nothing is
// fetched until ConfirmSelection is called.
func New(cfg Config) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Identity.Anonymous() {
		log = log.With("user_id", cfg.Identity.UserID)
	}

	home := cfg.Catalog.Default()
	e := &Engine{
		cfg:     cfg,
		log:     log,
		epoch:   Epoch{Center: home.Coordinate(), UserID: cfg.Identity.UserID},
		station: home.Name,
		visited: NewIDSet(),
		idle:    make(chan struct{}),
	}
	close(e.idle)
	return e
}

// OnChange registers fn to run after every state change.
func (e *Engine) OnChange(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// OnConquered registers fn to run when the view turns conquered.
func (e *Engine) OnConquered(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onConquered = append(e.onConquered, fn)
}

// SelectStation stages a station. The map does not move until
// ConfirmSelection. Unknown names leave the state untouched.
func (e *Engine) SelectStation(name string) error {
	st, ok := e.cfg.Catalog.Find(name)
	if !ok {
		e.cfg.Metrics.Transition("select_station", "rejected")
		return fmt.Errorf("%w: %q", ErrUnknownStation, name)
	}

	e.mu.Lock()
	e.pending = &st
	view := e.commitLocked()
	e.mu.Unlock()

	e.cfg.Metrics.Transition("select_station", "ok")
	e.emit(view, false)
	return nil
}

// ConfirmSelection commits the staged station (or the current one when
// nothing is staged) as a new epoch and starts both fetches for it. It
// returns false without fetching when the coordinate is unchanged and a
// fetch for it is still in flight.
func (e *Engine) ConfirmSelection(ctx context.Context) bool {
	e.mu.Lock()
	target := domain.Station{Name: e.station, Latitude: e.epoch.Center.Lat, Longitude: e.epoch.Center.Lng}
	if e.pending != nil {
		target = *e.pending
		e.pending = nil
	}

	if e.epoch.Seq > 0 && target.Coordinate().Equal(e.epoch.Center) &&
		(e.venuesInFlight || e.visitedInFlight) {
		view := e.commitLocked()
		e.mu.Unlock()
		e.cfg.Metrics.Transition("confirm_selection", "deduplicated")
		e.emit(view, false)
		return false
	}

	e.epoch = Epoch{
		Seq:    e.epoch.Seq + 1,
		Center: target.Coordinate(),
		UserID: e.cfg.Identity.UserID,
	}
	e.station = target.Name
	e.venuesInFlight = true
	e.visitedInFlight = true
	e.recomputeLocked()
	epoch := e.epoch
	view := e.commitLocked()
	if e.outstanding == 0 {
		e.idle = make(chan struct{})
	}
	e.outstanding += 2
	e.mu.Unlock()

	e.log.Info("selection confirmed", "station", target.Name, "epoch", epoch.Seq)
	e.cfg.Metrics.Transition("confirm_selection", "ok")
	e.emit(view, false)

	base := context.WithoutCancel(ctx)
	go e.fetchVenues(base, epoch)
	go e.fetchVisited(base, epoch)
	return true
}

func (e *Engine) fetchVenues(ctx context.Context, epoch Epoch) {
	defer e.fetchDone()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	venues, err := e.cfg.Venues.FetchNear(ctx, epoch.Center)
	e.VenueFetchCompleted(epoch, venues, err)
}

func (e *Engine) fetchVisited(ctx context.Context, epoch Epoch) {
	defer e.fetchDone()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	ids, err := e.cfg.Visited.FetchVisited(ctx, epoch.UserID)
	e.VisitedFetchCompleted(epoch, ids, err)
}

func (e *Engine) fetchDone() {
	e.mu.Lock()
	e.outstanding--
	if e.outstanding == 0 {
		close(e.idle)
	}
	e.mu.Unlock()
}

// VenueFetchCompleted applies a venue fetch result. Results for a
// superseded epoch are discarded; a failed fetch keeps the previous set.
func (e *Engine) VenueFetchCompleted(epoch Epoch, venues []domain.Venue, err error) {
	e.mu.Lock()
	if !epoch.current(e.epoch) {
		e.mu.Unlock()
		e.log.Debug("discarding stale venue result", "epoch", epoch.Seq)
		e.cfg.Metrics.Stale("venues")
		return
	}

	e.venuesInFlight = false
	if err != nil {
		e.log.Warn("venue fetch failed", "epoch", epoch.Seq, "center", epoch.Center.String(), "error", err)
		e.cfg.Metrics.FetchFailed("venues")
	} else {
		e.venues = append([]domain.Venue(nil), venues...)
		e.venuesEpoch = epoch.Seq
	}
	rising := e.recomputeLocked()
	view := e.commitLocked()
	e.mu.Unlock()

	e.emit(view, rising)
}

// VisitedFetchCompleted merges a visited-set fetch result. Results for a
// superseded epoch are discarded; a failed fetch keeps the previous set.
// The conquered flag is recomputed either way.
func (e *Engine) VisitedFetchCompleted(epoch Epoch, ids []string, err error) {
	e.mu.Lock()
	if !epoch.current(e.epoch) {
		e.mu.Unlock()
		e.log.Debug("discarding stale visited result", "epoch", epoch.Seq)
		e.cfg.Metrics.Stale("visited")
		return
	}

	e.visitedInFlight = false
	if err != nil {
		e.log.Warn("visited fetch failed", "epoch", epoch.Seq, "error", err)
		e.cfg.Metrics.FetchFailed("visited")
	} else {
		e.visited.Union(ids...)
	}
	rising := e.recomputeLocked()
	view := e.commitLocked()
	e.mu.Unlock()

	e.emit(view, rising)
}

// SelectVenue opens the rating dialog for a venue in the current set.
func (e *Engine) SelectVenue(id string) error {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		e.cfg.Metrics.Transition("select_venue", "rejected")
		return ErrSubmitInFlight
	}
	if !containsVenue(e.venues, id) {
		e.mu.Unlock()
		e.cfg.Metrics.Transition("select_venue", "rejected")
		return fmt.Errorf("%w: %q", ErrInvalidSelection, id)
	}
	e.visit = &domain.PendingVisit{VenueID: id, Rating: domain.DefaultRating}
	view := e.commitLocked()
	e.mu.Unlock()

	e.cfg.Metrics.Transition("select_venue", "ok")
	e.emit(view, false)
	return nil
}

// SetRating changes the rating of the pending visit.
func (e *Engine) SetRating(rating int) error {
	e.mu.Lock()
	var err error
	switch {
	case e.visit == nil:
		err = ErrNoPendingVisit
	case e.submitting:
		err = ErrSubmitInFlight
	case !domain.ValidRating(rating):
		err = fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	if err != nil {
		e.mu.Unlock()
		e.cfg.Metrics.Transition("set_rating", "rejected")
		return err
	}
	e.visit.Rating = rating
	view := e.commitLocked()
	e.mu.Unlock()

	e.cfg.Metrics.Transition("set_rating", "ok")
	e.emit(view, false)
	return nil
}

// SubmitVisit records the pending visit. The pending visit stays set while
// the recorder runs, and a second submit is refused until it resolves. On
// success the venue joins the visited set immediately; the pending visit
// is cleared either way.
func (e *Engine) SubmitVisit(ctx context.Context) error {
	e.mu.Lock()
	if e.visit == nil {
		e.mu.Unlock()
		e.cfg.Metrics.Transition("submit_visit", "rejected")
		return ErrNoPendingVisit
	}
	if e.submitting {
		e.mu.Unlock()
		e.cfg.Metrics.Transition("submit_visit", "rejected")
		return ErrSubmitInFlight
	}
	if !containsVenue(e.venues, e.visit.VenueID) {
		id := e.visit.VenueID
		e.visit = nil
		view := e.commitLocked()
		e.mu.Unlock()
		e.cfg.Metrics.Transition("submit_visit", "stale")
		e.emit(view, false)
		return fmt.Errorf("%w: %q", ErrStaleSelection, id)
	}

	e.submitting = true
	visit := domain.Visit{
		UserID:       e.cfg.Identity.UserID,
		RestaurantID: e.visit.VenueID,
		Rating:       e.visit.Rating,
		VisitedAt:    e.cfg.Clock().UTC(),
	}
	view := e.commitLocked()
	e.mu.Unlock()
	e.emit(view, false)

	err := e.cfg.Recorder.RecordVisit(ctx, visit)

	e.mu.Lock()
	e.submitting = false
	e.visit = nil
	rising := false
	if err == nil {
		e.visited.Union(visit.RestaurantID)
		rising = e.recomputeLocked()
	}
	view = e.commitLocked()
	e.mu.Unlock()

	e.cfg.Metrics.Submitted(err == nil)
	e.emit(view, rising)

	if err != nil {
		e.log.Warn("visit submission failed", "venue_id", visit.RestaurantID, "error", err)
		e.cfg.Metrics.Transition("submit_visit", "failed")
		return fmt.Errorf("record visit: %w", err)
	}
	e.log.Info("visit recorded", "venue_id", visit.RestaurantID, "rating", visit.Rating)
	e.cfg.Metrics.Transition("submit_visit", "ok")
	return nil
}

// CancelVisit closes the rating dialog. It cannot abort an in-flight
// submission.
func (e *Engine) CancelVisit() {
	e.mu.Lock()
	if e.submitting || e.visit == nil {
		e.mu.Unlock()
		e.cfg.Metrics.Transition("cancel_visit", "noop")
		return
	}
	e.visit = nil
	view := e.commitLocked()
	e.mu.Unlock()

	e.cfg.Metrics.Transition("cancel_visit", "ok")
	e.emit(view, false)
}

// DismissCompletion acknowledges the conquered banner. The flag stays
// false until the next venue or visited mutation recomputes it.
func (e *Engine) DismissCompletion() {
	e.mu.Lock()
	e.completed = false
	view := e.commitLocked()
	e.mu.Unlock()

	e.cfg.Metrics.Transition("dismiss_completion", "ok")
	e.emit(view, false)
}

// Wait blocks until every fetch issued so far has been applied.
func (e *Engine) Wait() {
	e.WaitContext(context.Background())
}

// WaitContext is Wait bounded by ctx. It reports whether the engine settled.
// Fetches confirmed while waiting extend the wait.
func (e *Engine) WaitContext(ctx context.Context) bool {
	for {
		e.mu.Lock()
		idle := e.idle
		e.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return false
		}

		e.mu.Lock()
		settled := e.outstanding == 0
		e.mu.Unlock()
		if settled {
			return true
		}
	}
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() domain.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Epoch returns the current epoch.
func (e *Engine) Epoch() Epoch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// recomputeLocked re-derives the conquered flag and reports a false→true
// edge. The flag only holds when the venue set belongs to the current epoch
// and the visited fetch for it has resolved, so the two sets are never
// judged across epochs.
func (e *Engine) recomputeLocked() bool {
	was := e.completed
	e.completed = e.venuesEpoch == e.epoch.Seq &&
		!e.visitedInFlight &&
		ComputeCompletion(e.venues, e.visited)
	return !was && e.completed
}

func (e *Engine) commitLocked() domain.View {
	e.revision++
	return e.viewLocked()
}

func (e *Engine) viewLocked() domain.View {
	venues := make([]domain.VenueView, 0, len(e.venues))
	for _, v := range e.venues {
		venues = append(venues, domain.VenueView{
			Venue:    v,
			Visited:  e.visited.Has(v.ID),
			Distance: geospatial.Haversine(e.epoch.Center.Lat, e.epoch.Center.Lng, v.Lat, v.Lng),
		})
	}

	view := domain.View{
		Identity:       e.cfg.Identity,
		Epoch:          e.epoch.Seq,
		Revision:       e.revision,
		Station:        e.station,
		Center:         e.epoch.Center,
		Venues:         venues,
		VisitedIDs:     e.visited.Sorted(),
		Submitting:     e.submitting,
		LoadingVenues:  e.venuesInFlight,
		LoadingVisited: e.visitedInFlight,
		Conquered:      e.completed,
	}
	if e.pending != nil {
		view.PendingStation = e.pending.Name
	}
	if e.visit != nil {
		pv := *e.visit
		view.PendingVisit = &pv
	}
	return view
}

func (e *Engine) emit(view domain.View, conquered bool) {
	e.mu.Lock()
	onChange := append([]Listener(nil), e.onChange...)
	onConquered := append([]Listener(nil), e.onConquered...)
	e.mu.Unlock()

	for _, fn := range onChange {
		fn(view)
	}
	if !conquered {
		return
	}
	e.log.Info("area conquered", "station", view.Station, "venues", len(view.Venues))
	e.cfg.Metrics.Conquered()
	for _, fn := range onConquered {
		fn(view)
	}
}

func containsVenue(venues []domain.Venue, id string) bool {
	for _, v := range venues {
		if v.ID == id {
			return true
		}
	}
	return false
}
