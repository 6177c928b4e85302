package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/geospatial"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
)

const defaultVenueCacheTTL = 300

// VenueService fetches venues near a coordinate with a read-through cache.
type VenueService struct {
	venues   ports.VenueFetcher
	cache    ports.CacheService
	cacheTTL int
}

// NewVenueService creates a new VenueService. cache may be nil; ttlSeconds
// <= 0 means 5 minutes.
func NewVenueService(venues ports.VenueFetcher, cache ports.CacheService, ttlSeconds int) *VenueService {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultVenueCacheTTL
	}
	return &VenueService{venues: venues, cache: cache, cacheTTL: ttlSeconds}
}

// FetchNear returns venues near at, in the order the backend listed them.
func (s *VenueService) FetchNear(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
	cacheKey := fmt.Sprintf("venues:near:%.6f:%.6f",
		geospatial.Round(at.Lat, 6), geospatial.Round(at.Lng, 6))
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var venues []domain.Venue
			if err := json.Unmarshal(data, &venues); err == nil {
				metrics.CacheHits.WithLabelValues("venues_near").Inc()
				return venues, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("venues_near").Inc()
	}

	venues, err := s.venues.FetchNear(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("fetch venues near %s: %w", at, err)
	}

	// Empty results are not cached so a transient upstream gap heals quickly
	if s.cache != nil && len(venues) > 0 {
		if data, err := json.Marshal(venues); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}

	return venues, nil
}
