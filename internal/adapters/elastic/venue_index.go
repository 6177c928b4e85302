// Package elastic serves venue lookups from an Elasticsearch geo index.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/olivere/elastic/v7"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

const mapping = `{
	"settings": {"number_of_shards": 1, "number_of_replicas": 0},
	"mappings": {
		"properties": {
			"id":        {"type": "keyword"},
			"name":      {"type": "text"},
			"location":  {"type": "geo_point"},
			"photo_url": {"type": "keyword", "index": false},
			"page_url":  {"type": "keyword", "index": false}
		}
	}
}`

// doc is the indexed form of a venue.
type doc struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Location elastic.GeoPoint `json:"location"`
	PhotoURL string           `json:"photo_url,omitempty"`
	PageURL  string           `json:"page_url,omitempty"`
}

func toDoc(v domain.Venue) doc {
	return doc{
		ID:       v.ID,
		Name:     v.Name,
		Location: elastic.GeoPoint{Lat: v.Lat, Lon: v.Lng},
		PhotoURL: v.PhotoURL,
		PageURL:  v.PageURL,
	}
}

func (d doc) venue() domain.Venue {
	return domain.Venue{
		ID:       d.ID,
		Name:     d.Name,
		Lat:      d.Location.Lat,
		Lng:      d.Location.Lon,
		PhotoURL: d.PhotoURL,
		PageURL:  d.PageURL,
	}
}

// Config configures a VenueIndex.
type Config struct {
	URL      string
	Index    string
	Limit    int     // max venues per lookup
	RadiusKm float64 // search radius around the centre
}

// VenueIndex implements ports.VenueFetcher over an Elasticsearch index.
type VenueIndex struct {
	client   *elastic.Client
	index    string
	limit    int
	radiusKm float64
}

// New connects to Elasticsearch.
func New(cfg Config) (*VenueIndex, error) {
	client, err := elastic.NewClient(
		elastic.SetURL(cfg.URL),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic connect: %w", err)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 1
	}
	return &VenueIndex{client: client, index: cfg.Index, limit: cfg.Limit, radiusKm: cfg.RadiusKm}, nil
}

// FetchNear returns the nearest venues within the radius, closest first.
func (x *VenueIndex) FetchNear(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
	query := elastic.NewBoolQuery().
		Must(elastic.NewMatchAllQuery()).
		Filter(elastic.NewGeoDistanceQuery("location").
			Lat(at.Lat).Lon(at.Lng).
			Distance(fmt.Sprintf("%gkm", x.radiusKm)))

	res, err := x.client.Search().
		Index(x.index).
		Query(query).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(at.Lat, at.Lng).
			Asc().
			Unit("km").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		Size(x.limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", x.index, err)
	}
	return venuesFromHits(res.Hits.Hits), nil
}

func venuesFromHits(hits []*elastic.SearchHit) []domain.Venue {
	venues := make([]domain.Venue, 0, len(hits))
	for _, hit := range hits {
		var d doc
		if err := json.Unmarshal(hit.Source, &d); err != nil {
			slog.Warn("skipping malformed venue document", "id", hit.Id, "error", err)
			continue
		}
		if d.ID == "" {
			d.ID = hit.Id
		}
		venues = append(venues, d.venue())
	}
	return venues
}

// EnsureIndex creates the index with its geo mapping when missing.
func (x *VenueIndex) EnsureIndex(ctx context.Context) error {
	exists, err := x.client.IndexExists(x.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("check index %s: %w", x.index, err)
	}
	if exists {
		return nil
	}

	created, err := x.client.CreateIndex(x.index).BodyString(mapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", x.index, err)
	}
	if !created.Acknowledged {
		slog.Warn("create index not acknowledged", "index", x.index)
	}
	return nil
}

// Index bulk-upserts venues keyed by id and returns how many failed.
func (x *VenueIndex) Index(ctx context.Context, venues []domain.Venue) (int, error) {
	if len(venues) == 0 {
		return 0, nil
	}

	bulk := x.client.Bulk()
	for _, v := range venues {
		bulk = bulk.Add(elastic.NewBulkIndexRequest().Index(x.index).Id(v.ID).Doc(toDoc(v)))
	}

	res, err := bulk.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk index: %w", err)
	}

	failed := 0
	for _, item := range res.Failed() {
		failed++
		if item.Error != nil {
			slog.Warn("venue index failed", "id", item.Id, "reason", item.Error.Reason)
		}
	}
	return failed, nil
}

// Ping checks that the cluster answers.
func (x *VenueIndex) Ping(ctx context.Context) error {
	_, err := x.client.ClusterHealth().Index(x.index).Do(ctx)
	return err
}
