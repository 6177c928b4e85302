package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/elastic"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/http"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/izakaya"
	natsadapter "github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/nats"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/postgres"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/valkey"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/config"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/logging"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("izakaya-checkin-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		Catalog:  usecases.NewStationCatalog(),
		DocsSpec: cfg.Server.DocsSpec,
	}

	var upstream *izakaya.Client
	if cfg.Venues.Backend == config.BackendUpstream || cfg.Visits.Backend == config.BackendUpstream {
		upstream = izakaya.New(izakaya.Config{
			BaseURL: cfg.Upstream.BaseURL,
			Timeout: cfg.Upstream.TimeoutDuration(),
		})
		deps.Upstream = upstream
	}

	// Database: required for conquests, and for visits when that backend is chosen
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		if cfg.Visits.Backend == config.BackendPostgres {
			log.Fatalf("database: %v", err)
		}
		slog.Warn("database unavailable, conquests will not be stored", "error", err)
	} else {
		defer db.Close()
		deps.DB = db
		go poolMetrics(ctx, db)
	}

	// Cache
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for WebSocket relay
	if nc, err := natsadapter.RawConn(cfg.NATS.URL); err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer nc.Close()
		deps.NATS = nc
	}

	// Venue backend
	var venueSource ports.VenueFetcher = upstream
	if cfg.Venues.Backend == config.BackendElastic {
		index, err := elastic.New(elastic.Config{
			URL:      cfg.Elastic.URL,
			Index:    cfg.Venues.Index,
			Limit:    cfg.Venues.Limit,
			RadiusKm: cfg.Venues.RadiusKm,
		})
		if err != nil {
			log.Fatalf("venue index: %v", err)
		}
		venueSource = index
		deps.VenueIndex = index
	}

	// Visit backend
	var visitStore ports.VisitStore = upstream
	if cfg.Visits.Backend == config.BackendPostgres {
		visitStore = postgres.NewVisitRepo(db)
	}

	var conquestRepo ports.ConquestRepository
	if db != nil {
		conquestRepo = postgres.NewConquestRepo(db)
	}

	engineMetrics, err := metrics.NewCheckin(nil)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	// Use cases
	venueSvc := usecases.NewVenueService(venueSource, cache, cfg.Venues.CacheTTL)
	visitSvc := usecases.NewVisitService(visitStore, publisher)
	conquestSvc := usecases.NewConquestService(conquestRepo, publisher)
	sessions := usecases.NewSessionService(
		deps.Catalog, venueSvc, visitSvc, publisher, conquestSvc, engineMetrics,
		usecases.SessionConfig{
			FetchTimeout: cfg.Upstream.TimeoutDuration(),
			IdleTTL:      cfg.Sessions.IdleTTLDuration(),
		},
	)
	go sessions.Run(ctx, time.Minute)

	deps.Sessions = sessions
	deps.Conquests = conquestSvc

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Izakaya Check-in API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, If-None-Match",
		ExposeHeaders:    "ETag, Location, Link, X-Fetch-Issued",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr,
			"venues_backend", cfg.Venues.Backend, "visits_backend", cfg.Visits.Backend)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// poolMetrics copies pgx pool stats into Prometheus gauges until ctx ends.
func poolMetrics(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
