package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
)

const (
	readTimeout    = 5 * time.Second
	sessionTimeout = 30 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/stations", ListStationsHandler(deps))
	v1.Get("/stations/:name", GetStationHandler(deps))

	// Session intents settle upstream fetches, so they get a longer budget
	v1.Post("/sessions", timeout.NewWithContext(OpenSessionHandler(deps), sessionTimeout))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Delete("/sessions/:id", CloseSessionHandler(deps))
	v1.Post("/sessions/:id/station", SelectStationHandler(deps))
	v1.Post("/sessions/:id/confirm", timeout.NewWithContext(ConfirmHandler(deps), sessionTimeout))
	v1.Post("/sessions/:id/venues/:venueId/select", SelectVenueHandler(deps))
	v1.Put("/sessions/:id/pending/rating", SetRatingHandler(deps))
	v1.Post("/sessions/:id/pending/submit", timeout.NewWithContext(SubmitVisitHandler(deps), sessionTimeout))
	v1.Delete("/sessions/:id/pending", CancelVisitHandler(deps))
	v1.Post("/sessions/:id/completion/dismiss", DismissCompletionHandler(deps))

	v1.Get("/users/:userId/conquests", timeout.NewWithContext(ListConquestsHandler(deps), readTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app, deps.DocsSpec)

	app.Get("/ws/sessions/:id", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if _, err := deps.Sessions.Get(c.Params("id")); err != nil {
			return engineError(c, err)
		}
		return c.Next()
	}, websocket.New(WebSocketHandler(deps)))
}
