package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

// Pinger is a backend the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers. Backends a
// deployment does not use are left nil.
type Dependencies struct {
	Catalog   ports.StationCatalog
	Sessions  *usecases.SessionService
	Conquests *usecases.ConquestService
	NATS      *nats.Conn

	// OpenAPI document served under /docs; defaults to api/openapi.yaml
	DocsSpec string

	// Readiness checks
	Upstream   Pinger
	DB         Pinger
	Cache      Pinger
	VenueIndex Pinger
}
