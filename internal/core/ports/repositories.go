package ports

import (
	"context"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// VenueFetcher lists venues near a coordinate, in upstream order.
type VenueFetcher interface {
	FetchNear(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error)
}

// VisitedSetFetcher lists the venue ids a user has already visited.
type VisitedSetFetcher interface {
	FetchVisited(ctx context.Context, userID string) ([]string, error)
}

// VisitRecorder persists a visit event.
type VisitRecorder interface {
	RecordVisit(ctx context.Context, visit domain.Visit) error
}

// VisitStore is a backend that both records and lists visits.
type VisitStore interface {
	VisitedSetFetcher
	VisitRecorder
}

// ConquestRepository persists conquest awards.
type ConquestRepository interface {
	Create(ctx context.Context, c *domain.Conquest) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Conquest, error)
}
