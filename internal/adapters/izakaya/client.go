// Package izakaya is the client for the upstream izakaya listing service,
// which proxies Hotpepper shop search and stores per-user visits.
package izakaya

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
)

const tracerName = "github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/izakaya"

// ErrUpstream marks every failure to talk to the listing service.
var ErrUpstream = errors.New("izakaya upstream")

// StatusError is a non-2xx answer from the listing service.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("izakaya upstream: %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Dial overrides the transport dialer (tests use an in-memory listener).
	Dial fasthttp.DialFunc
}

// Client implements VenueFetcher, VisitedSetFetcher and VisitRecorder over
// the listing service's HTTP API.
type Client struct {
	base    string
	timeout time.Duration
	http    *fasthttp.Client
	tracer  trace.Tracer
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:                "izakaya-checkin",
			Dial:                cfg.Dial,
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		tracer: otel.Tracer(tracerName),
	}
}

// FetchNear lists venues near at via GET /izakayas.
func (c *Client) FetchNear(ctx context.Context, at domain.Coordinate) ([]domain.Venue, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", at.Lat))
	q.Set("longitude", fmt.Sprintf("%f", at.Lng))

	var shops []shop
	if err := c.getJSON(ctx, "fetch_near", "/izakayas?"+q.Encode(), &shops); err != nil {
		return nil, err
	}

	venues := make([]domain.Venue, 0, len(shops))
	for _, s := range shops {
		if s.ID == "" {
			continue
		}
		venues = append(venues, s.venue())
	}
	return venues, nil
}

// FetchVisited lists the venue ids userID has visited via
// GET /user/{id}/visited-izakayas.
func (c *Client) FetchVisited(ctx context.Context, userID string) ([]string, error) {
	var rows []visitedRow
	path := "/user/" + url.PathEscape(userID) + "/visited-izakayas"
	if err := c.getJSON(ctx, "fetch_visited", path, &rows); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.RestaurantID != "" {
			ids = append(ids, string(r.RestaurantID))
		}
	}
	return ids, nil
}

// RecordVisit stores a visit via POST /markAsEaten.
func (c *Client) RecordVisit(ctx context.Context, visit domain.Visit) error {
	body, err := json.Marshal(markAsEaten{
		UserID:       visit.UserID,
		RestaurantID: visit.RestaurantID,
		Rating:       visit.Rating,
		VisitedAt:    visit.VisitedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode visit: %w", err)
	}

	ctx, span := c.start(ctx, "record_visit", attribute.String("restaurant_id", visit.RestaurantID))
	defer span.End()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/markAsEaten")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	return c.finish(span, c.do(ctx, "record_visit", req, resp))
}

// Ping checks that the listing service answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + "/")
	req.Header.SetMethod(fasthttp.MethodGet)

	err := c.do(ctx, "ping", req, resp)
	var se *StatusError
	if errors.As(err, &se) && se.Status < 500 {
		return nil
	}
	return err
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	ctx, span := c.start(ctx, op)
	defer span.End()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.base + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if err := c.do(ctx, op, req, resp); err != nil {
		return c.finish(span, err)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		metrics.UpstreamErrors.WithLabelValues(op).Inc()
		return c.finish(span, fmt.Errorf("%w: %s: decode: %v", ErrUpstream, op, err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, op string, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&req.Header})

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.UpstreamErrors.WithLabelValues(op).Inc()
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	if sc := resp.StatusCode(); sc < 200 || sc >= 300 {
		metrics.UpstreamErrors.WithLabelValues(op).Inc()
		return &StatusError{Op: op, Status: sc, Body: truncate(resp.Body(), maxErrorBody)}
	}
	return nil
}

func (c *Client) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("peer.service", "izakaya"))
	return c.tracer.Start(ctx, "izakaya."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...))
}

func (c *Client) finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// headerCarrier adapts fasthttp request headers for trace propagation.
type headerCarrier struct {
	h *fasthttp.RequestHeader
}

func (c headerCarrier) Get(key string) string { return string(c.h.Peek(key)) }

func (c headerCarrier) Set(key, value string) { c.h.Set(key, value) }

func (c headerCarrier) Keys() []string {
	var keys []string
	c.h.VisitAll(func(k, _ []byte) {
		keys = append(keys, string(k))
	})
	return keys
}

const maxErrorBody = 256

// truncate cuts b to at most n bytes without splitting a rune.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}
