package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
)

var (
	// ErrAnonymousVisit is returned when a visit has no user to belong to.
	ErrAnonymousVisit = errors.New("visits require a user id")
	// ErrInvalidVisit is returned for a missing venue id or a rating outside 1..5.
	ErrInvalidVisit = errors.New("invalid visit")
)

// VisitService lists and records visits against a visit store.
type VisitService struct {
	store     ports.VisitStore
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewVisitService creates a new VisitService. publisher may be nil.
func NewVisitService(store ports.VisitStore, publisher ports.EventPublisher) *VisitService {
	return &VisitService{store: store, publisher: publisher, now: time.Now}
}

// FetchVisited returns the ids of venues the user has visited. Anonymous
// users have visited nothing, and the store is not asked.
func (s *VisitService) FetchVisited(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return []string{}, nil
	}
	ids, err := s.store.FetchVisited(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch visited for %s: %w", userID, err)
	}
	return ids, nil
}

// RecordVisit validates and persists a visit, then announces it.
func (s *VisitService) RecordVisit(ctx context.Context, visit domain.Visit) error {
	if visit.UserID == "" {
		return ErrAnonymousVisit
	}
	if visit.RestaurantID == "" {
		return fmt.Errorf("%w: restaurant id is required", ErrInvalidVisit)
	}
	if !domain.ValidRating(visit.Rating) {
		return fmt.Errorf("%w: rating %d outside %d..%d", ErrInvalidVisit, visit.Rating, domain.MinRating, domain.MaxRating)
	}
	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = s.now().UTC()
	}

	if err := s.store.RecordVisit(ctx, visit); err != nil {
		return fmt.Errorf("record visit: %w", err)
	}

	// Best-effort; the visit is already stored
	if s.publisher != nil {
		if err := s.publisher.PublishVisit(ctx, &visit); err != nil {
			slog.Warn("publish visit failed", "user_id", visit.UserID, "restaurant_id", visit.RestaurantID, "error", err)
		}
	}
	return nil
}
