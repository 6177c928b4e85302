package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/elastic"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/izakaya"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/config"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/logging"
)

// venueindex fills the Elasticsearch venue index, either from a JSON dump
// of venues or by asking the listing service around every catalog station.
func main() {
	file := flag.String("file", "", "JSON array of venues to index")
	harvest := flag.Bool("harvest", false, "fetch venues around every catalog station from the upstream")
	flag.Parse()

	if *file == "" && !*harvest {
		log.Fatal("usage: venueindex -file venues.json | -harvest")
	}

	cfg, err := config.Load("izakaya-checkin-venueindex")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	index, err := elastic.New(elastic.Config{
		URL:      cfg.Elastic.URL,
		Index:    cfg.Venues.Index,
		Limit:    cfg.Venues.Limit,
		RadiusKm: cfg.Venues.RadiusKm,
	})
	if err != nil {
		log.Fatalf("elastic: %v", err)
	}
	if err := index.EnsureIndex(ctx); err != nil {
		log.Fatalf("ensure index: %v", err)
	}

	var venues []domain.Venue
	if *file != "" {
		venues, err = readDump(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
	} else {
		venues = harvestStations(ctx, izakaya.New(izakaya.Config{
			BaseURL: cfg.Upstream.BaseURL,
			Timeout: cfg.Upstream.TimeoutDuration(),
		}))
	}

	failed, err := index.Index(ctx, venues)
	if err != nil {
		log.Fatalf("index: %v", err)
	}
	slog.Info("venues indexed", "index", cfg.Venues.Index, "total", len(venues), "failed", failed)
}

func readDump(path string) ([]domain.Venue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var venues []domain.Venue
	if err := json.Unmarshal(data, &venues); err != nil {
		return nil, err
	}
	return venues, nil
}

// harvestStations collects venues near every catalog station, deduplicated
// by id. Stations whose fetch fails are skipped.
func harvestStations(ctx context.Context, client *izakaya.Client) []domain.Venue {
	seen := make(map[string]bool)
	var out []domain.Venue
	for _, st := range usecases.NewStationCatalog().All() {
		venues, err := client.FetchNear(ctx, st.Coordinate())
		if err != nil {
			slog.Warn("harvest failed", "station", st.Name, "error", err)
			continue
		}
		for _, v := range venues {
			if seen[v.ID] {
				continue
			}
			seen[v.ID] = true
			out = append(out, v)
		}
		slog.Info("harvested", "station", st.Name, "venues", len(venues))
	}
	return out
}
