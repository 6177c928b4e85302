package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

var shibuya = domain.Coordinate{Lat: 35.658034, Lng: 139.701636}

func TestVenueService_FetchNear_CachesResults(t *testing.T) {
	calls := 0
	venues := &mockVenues{
		fetchNearFn: func(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
			calls++
			return []domain.Venue{
				{ID: "J001", Name: "Torikizoku", Lat: 35.6590, Lng: 139.7010},
				{ID: "J002", Name: "Uotami", Lat: 35.6585, Lng: 139.7022},
			}, nil
		},
	}
	cache := newMockCache()
	svc := usecases.NewVenueService(venues, cache, 60)

	first, err := svc.FetchNear(context.Background(), shibuya)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.FetchNear(context.Background(), shibuya)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected backend to be called once, got %d", calls)
	}
	if len(second) != 2 || second[0].ID != first[0].ID || second[1].Name != "Uotami" {
		t.Errorf("cached result differs: %+v", second)
	}
}

func TestVenueService_FetchNear_EmptyNotCached(t *testing.T) {
	cache := newMockCache()
	svc := usecases.NewVenueService(&mockVenues{}, cache, 0)

	venues, err := svc.FetchNear(context.Background(), shibuya)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(venues) != 0 {
		t.Errorf("expected no venues, got %d", len(venues))
	}
	if cache.sets != 0 {
		t.Errorf("expected empty result not to be cached, got %d sets", cache.sets)
	}
}

func TestVenueService_FetchNear_Error(t *testing.T) {
	boom := errors.New("connection refused")
	venues := &mockVenues{
		fetchNearFn: func(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
			return nil, boom
		},
	}
	svc := usecases.NewVenueService(venues, nil, 0)

	_, err := svc.FetchNear(context.Background(), shibuya)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
}
