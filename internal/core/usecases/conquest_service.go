package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
)

// conquestNamespace scopes conquest ids derived by ConquestID.
var conquestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("izakaya-checkin/conquests"))

// ConquestID derives the award id from the user, the station and the venue
// set, so the same progress always maps to the same award.
func ConquestID(userID, station string, venueIDs []string) string {
	ids := append([]string(nil), venueIDs...)
	sort.Strings(ids)
	key := userID + "\x00" + station + "\x00" + strings.Join(ids, ",")
	return uuid.NewSHA1(conquestNamespace, []byte(key)).String()
}

// ConquestService turns conquered views into awards.
type ConquestService struct {
	conquests ports.ConquestRepository
	publisher ports.EventPublisher
	now       func() time.Time

	mu      sync.Mutex
	awarded map[string]struct{}
}

// NewConquestService creates a new ConquestService. Either collaborator may
// be nil when the deployment has no store or broker.
func NewConquestService(conquests ports.ConquestRepository, publisher ports.EventPublisher) *ConquestService {
	return &ConquestService{
		conquests: conquests,
		publisher: publisher,
		now:       time.Now,
		awarded:   make(map[string]struct{}),
	}
}

// Conquered announces that a user has visited every venue around a
// station. Anonymous views earn nothing, and progress that was already
// awarded returns nil without publishing again.
func (s *ConquestService) Conquered(ctx context.Context, identity domain.Identity, view domain.View) (*domain.Conquest, error) {
	if identity.Anonymous() {
		slog.Info("anonymous view conquered; no award", "station", view.Station)
		return nil, nil
	}

	venueIDs := make([]string, 0, len(view.Venues))
	for _, v := range view.Venues {
		venueIDs = append(venueIDs, v.ID)
	}
	c := &domain.Conquest{
		ID:          ConquestID(identity.UserID, view.Station, venueIDs),
		UserID:      identity.UserID,
		Station:     view.Station,
		VenueCount:  len(view.Venues),
		ConqueredAt: s.now().UTC(),
	}

	if !s.claim(c.ID) {
		slog.Debug("conquest already awarded", "id", c.ID, "station", c.Station)
		return nil, nil
	}

	var err error
	if s.publisher == nil {
		// No broker: record inline so the award is not lost
		err = s.Record(ctx, c)
	} else if err = s.publisher.PublishConquest(ctx, c); err != nil {
		err = fmt.Errorf("publish conquest: %w", err)
	}
	if err != nil {
		s.release(c.ID)
		return nil, err
	}
	return c, nil
}

func (s *ConquestService) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.awarded[id]; ok {
		return false
	}
	s.awarded[id] = struct{}{}
	return true
}

func (s *ConquestService) release(id string) {
	s.mu.Lock()
	delete(s.awarded, id)
	s.mu.Unlock()
}

// Record persists an award.
func (s *ConquestService) Record(ctx context.Context, c *domain.Conquest) error {
	if s.conquests == nil {
		return nil
	}
	if err := s.conquests.Create(ctx, c); err != nil {
		return fmt.Errorf("create conquest: %w", err)
	}
	return nil
}

// Revoke deletes an award (saga compensation).
func (s *ConquestService) Revoke(ctx context.Context, id string) error {
	s.release(id)
	if s.conquests == nil {
		return nil
	}
	if err := s.conquests.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete conquest %s: %w", id, err)
	}
	return nil
}

// ListByUser returns a user's awards, newest first.
func (s *ConquestService) ListByUser(ctx context.Context, userID string) ([]domain.Conquest, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id must not be empty")
	}
	if s.conquests == nil {
		return []domain.Conquest{}, nil
	}
	return s.conquests.ListByUser(ctx, userID)
}
