package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/engine"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown or evicted session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionConfig tunes the session registry.
type SessionConfig struct {
	FetchTimeout time.Duration
	IdleTTL      time.Duration // zero disables eviction
}

// Session is one open check-in view.
type Session struct {
	ID       string
	Identity domain.Identity
	Engine   *engine.Engine

	lastSeen time.Time
}

// View returns the engine snapshot tagged with the session id.
func (s *Session) View() domain.View {
	v := s.Engine.Snapshot()
	v.SessionID = s.ID
	return v
}

// SessionService hosts one reconciliation engine per open view.
type SessionService struct {
	catalog   ports.StationCatalog
	venues    ports.VenueFetcher
	visits    ports.VisitStore
	publisher ports.EventPublisher
	conquests *ConquestService
	metrics   *metrics.Checkin
	cfg       SessionConfig
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionService creates a new SessionService. publisher, conquests and
// m may be nil.
func NewSessionService(
	catalog ports.StationCatalog,
	venues ports.VenueFetcher,
	visits ports.VisitStore,
	publisher ports.EventPublisher,
	conquests *ConquestService,
	m *metrics.Checkin,
	cfg SessionConfig,
) *SessionService {
	return &SessionService{
		catalog:   catalog,
		venues:    venues,
		visits:    visits,
		publisher: publisher,
		conquests: conquests,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Open starts a view for identity, centred on the default station, and
// issues the initial fetches.
func (s *SessionService) Open(ctx context.Context, identity domain.Identity) *Session {
	id := uuid.NewString()
	log := slog.Default().With("session_id", id)

	eng := engine.New(engine.Config{
		Catalog:      s.catalog,
		Venues:       s.venues,
		Visited:      s.visits,
		Recorder:     s.visits,
		Identity:     identity,
		FetchTimeout: s.cfg.FetchTimeout,
		Logger:       log,
		Metrics:      s.metrics,
	})

	if s.publisher != nil {
		eng.OnChange(func(v domain.View) {
			v.SessionID = id
			pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.publisher.PublishView(pubCtx, &v); err != nil {
				log.Debug("publish view failed", "error", err)
			}
		})
	}
	if s.conquests != nil {
		eng.OnConquered(func(v domain.View) {
			awardCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := s.conquests.Conquered(awardCtx, identity, v); err != nil {
				log.Warn("conquest award failed", "station", v.Station, "error", err)
			}
		})
	}

	sess := &Session{ID: id, Identity: identity, Engine: eng, lastSeen: s.now()}

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SessionsOpen(n)

	log.Info("session opened", "user_id", identity.UserID, "username", identity.Username)
	eng.ConfirmSelection(ctx)
	return sess
}

// Get returns an open session and marks it as used.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess, nil
}

// Close drops a session. In-flight fetches still resolve against the
// detached engine and are then garbage.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.SessionsOpen(n)
	slog.Info("session closed", "session_id", id)
	return nil
}

// Len returns the number of open sessions.
func (s *SessionService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictIdle closes sessions unused for longer than the idle TTL and
// returns how many were closed.
func (s *SessionService) EvictIdle() int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if evicted > 0 {
		s.metrics.SessionsOpen(n)
		slog.Info("idle sessions evicted", "count", evicted, "open", n)
	}
	return evicted
}

// Run evicts idle sessions every interval until ctx is done.
func (s *SessionService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.EvictIdle()
		}
	}
}
