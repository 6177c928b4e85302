package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream for
// durable events and core NATS for view broadcasts.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "CHECKIN_VISITS",
			Subjects:  []string{visitSubjectPrefix + ">"},
			Retention: nats.InterestPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "CHECKIN_CONQUESTS",
			Subjects:  []string{conquestSubjectPrefix + ">"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishVisit(ctx context.Context, visit *domain.Visit) error {
	data, err := json.Marshal(visit)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(VisitSubject(visit.UserID), data, nats.Context(ctx))
	return err
}

// PublishConquest uses the conquest id as the message id so JetStream
// drops duplicates within its dedup window.
func (p *Publisher) PublishConquest(ctx context.Context, c *domain.Conquest) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ConquestSubject(c.UserID), data, nats.Context(ctx), nats.MsgId(c.ID))
	return err
}

// PublishView broadcasts a view snapshot. Views are ephemeral; nobody
// listening is not an error.
func (p *Publisher) PublishView(ctx context.Context, view *domain.View) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return p.conn.Publish(ViewSubject(view.SessionID), data)
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("izakaya-checkin"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
