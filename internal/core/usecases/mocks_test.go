package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// --- Mock VenueFetcher ---

type mockVenues struct {
	fetchNearFn func(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error)
}

func (m *mockVenues) FetchNear(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
	if m.fetchNearFn != nil {
		return m.fetchNearFn(ctx, at)
	}
	return nil, nil
}

// --- Mock VisitStore ---

type mockVisitStore struct {
	fetchVisitedFn func(ctx context.Context, userID string) ([]string, error)
	recordVisitFn  func(ctx context.Context, visit domain.Visit) error
}

func (m *mockVisitStore) FetchVisited(ctx context.Context, userID string) ([]string, error) {
	if m.fetchVisitedFn != nil {
		return m.fetchVisitedFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockVisitStore) RecordVisit(ctx context.Context, visit domain.Visit) error {
	if m.recordVisitFn != nil {
		return m.recordVisitFn(ctx, visit)
	}
	return nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	visits    []domain.Visit
	conquests []domain.Conquest
	views     []domain.View
	err       error
}

func (m *mockPublisher) PublishVisit(ctx context.Context, visit *domain.Visit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, *visit)
	return m.err
}

func (m *mockPublisher) PublishConquest(ctx context.Context, c *domain.Conquest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conquests = append(m.conquests, *c)
	return m.err
}

func (m *mockPublisher) PublishView(ctx context.Context, view *domain.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, *view)
	return m.err
}

func (m *mockPublisher) conquestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conquests)
}

func (m *mockPublisher) lastView() (domain.View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.views) == 0 {
		return domain.View{}, false
	}
	return m.views[len(m.views)-1], true
}

// --- Mock ConquestRepository ---

type mockConquestRepo struct {
	createFn     func(ctx context.Context, c *domain.Conquest) error
	deleteFn     func(ctx context.Context, id string) error
	listByUserFn func(ctx context.Context, userID string) ([]domain.Conquest, error)
}

func (m *mockConquestRepo) Create(ctx context.Context, c *domain.Conquest) error {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	return nil
}

func (m *mockConquestRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockConquestRepo) ListByUser(ctx context.Context, userID string) ([]domain.Conquest, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}
