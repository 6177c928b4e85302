package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/nats"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/metrics"
)

// wsMessage is a view intent sent by the client.
type wsMessage struct {
	Action  string `json:"action"` // select_station | confirm | select_venue | set_rating | submit | cancel | dismiss
	Name    string `json:"name,omitempty"`
	VenueID string `json:"venue_id,omitempty"`
	Rating  int    `json:"rating,omitempty"`
}

// wsEvent is pushed to the client.
type wsEvent struct {
	Type  string          `json:"type"` // view | error
	View  json.RawMessage `json:"view,omitempty"`
	Code  string          `json:"code,omitempty"`
	Error string          `json:"error,omitempty"`
}

const wsIntentTimeout = 30 * time.Second

// WebSocketHandler streams one session's views. It sends a snapshot on
// connect, relays every view the session publishes, and applies intents
// sent by the client, answering each with the resulting view.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Params("id")
		log := slog.Default().With("session_id", id, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}
		sendSnapshot := func(sess *usecases.Session) error {
			data, err := json.Marshal(sess.View())
			if err != nil {
				return err
			}
			return writeJSON(wsEvent{Type: "view", View: data})
		}

		sess, err := deps.Sessions.Get(id)
		if err != nil {
			_ = writeJSON(wsEvent{Type: "error", Code: "not_found", Error: err.Error()})
			return
		}
		if err := sendSnapshot(sess); err != nil {
			return
		}

		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.ViewSubject(id), func(msg *nats.Msg) {
				_ = writeJSON(wsEvent{Type: "view", View: json.RawMessage(msg.Data)})
			})
			if err != nil {
				log.Warn("ws view subscribe failed", "error", err)
			} else {
				defer func() { _ = sub.Unsubscribe() }()
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Code: "bad_request", Error: "invalid JSON"})
				continue
			}

			// The session may have been evicted or closed while connected
			sess, err = deps.Sessions.Get(id)
			if err != nil {
				_ = writeJSON(wsEvent{Type: "error", Code: "not_found", Error: err.Error()})
				break
			}

			if err := applyIntent(sess, m); err != nil {
				status, code := intentStatus(err)
				log.Debug("ws intent rejected", "action", m.Action, "status", status, "error", err)
				_ = writeJSON(wsEvent{Type: "error", Code: code, Error: err.Error()})
				continue
			}
			if err := sendSnapshot(sess); err != nil {
				break
			}
		}

		log.Info("ws client disconnected")
	}
}

// errUnknownAction is returned for unrecognised websocket actions.
type errUnknownAction string

func (e errUnknownAction) Error() string { return "unknown action: " + string(e) }

func applyIntent(sess *usecases.Session, m wsMessage) error {
	eng := sess.Engine
	switch m.Action {
	case "select_station":
		return eng.SelectStation(m.Name)
	case "confirm":
		ctx, cancel := context.WithTimeout(context.Background(), wsIntentTimeout)
		defer cancel()
		eng.ConfirmSelection(ctx)
		settle(ctx, eng)
		return nil
	case "select_venue":
		return eng.SelectVenue(m.VenueID)
	case "set_rating":
		return eng.SetRating(m.Rating)
	case "submit":
		ctx, cancel := context.WithTimeout(context.Background(), wsIntentTimeout)
		defer cancel()
		return eng.SubmitVisit(ctx)
	case "cancel":
		eng.CancelVisit()
		return nil
	case "dismiss":
		eng.DismissCompletion()
		return nil
	default:
		return errUnknownAction(m.Action)
	}
}
