package ports

import (
	"context"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// EventPublisher publishes check-in events to a message broker.
type EventPublisher interface {
	PublishVisit(ctx context.Context, visit *domain.Visit) error
	PublishConquest(ctx context.Context, c *domain.Conquest) error
	PublishView(ctx context.Context, view *domain.View) error
}

// EventSubscriber subscribes to check-in events from a message broker.
type EventSubscriber interface {
	SubscribeConquests(ctx context.Context, handler func(ctx context.Context, c *domain.Conquest) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, userID, title, body string) error
}

// StationCatalog resolves station names to coordinates.
type StationCatalog interface {
	All() []domain.Station
	Find(name string) (domain.Station, bool)
	Default() domain.Station
}
