package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/JOSM/changeset-viewer/internal/adapters/geojson"
	natsadapter "github.com/JOSM/changeset-viewer/internal/adapters/nats"
	"github.com/JOSM/changeset-viewer/internal/core/usecases"
	"github.com/JOSM/changeset-viewer/internal/pkg/metrics"
)

// wsMessage is sent from client to load changesets or follow load events.
type wsMessage struct {
	Action   string `json:"action"`   // "load" | "cancel" | "subscribe" | "unsubscribe"
	Platform string `json:"platform"` // platform name ("" = default, or all for subscribe)
	ID       int64  `json:"id"`       // changeset id for "load"
}

// wsEvent is sent from server to client.
type wsEvent struct {
	Type     string          `json:"type"` // loading | loaded | empty | canceled | error | status
	Platform string          `json:"platform,omitempty"`
	ID       int64           `json:"id,omitempty"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message,omitempty"`
	Summary  any             `json:"summary,omitempty"`
	GeoJSON  json.RawMessage `json:"geojson,omitempty"`
}

// WebSocketHandler returns a handler that lets a viewer load changesets and
// follow load events.
//
// Clients send JSON: {"action":"load","platform":"osm","id":123}. Each
// connection has one Loader, so loading another changeset cancels the one in
// flight, and the client only ever receives the result it last asked for.
// {"action":"subscribe","platform":"osm"} relays load summaries published on
// NATS by any API replica; an empty platform means all platforms.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

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

		loader := usecases.NewLoader(deps.Acquisition)
		defer loader.Close()

		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Keep-alive ping
		done := make(chan struct{})
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
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Code: "bad_request", Message: "invalid JSON"})
				continue
			}

			switch m.Action {
			case "load":
				platform, err := deps.Config.Platform(m.Platform)
				if err != nil {
					_ = writeJSON(wsEvent{Type: "error", Code: usecases.ErrorKind(err), Message: err.Error()})
					continue
				}
				if m.ID <= 0 {
					_ = writeJSON(wsEvent{Type: "error", Code: "bad_request", Message: "id must be a positive integer"})
					continue
				}
				task := loader.Load(ctx, platform, m.ID)
				_ = writeJSON(wsEvent{Type: "loading", Platform: platform.Name, ID: m.ID})
				go func() {
					_ = writeJSON(taskEvent(ctx, task))
				}()

			case "cancel":
				loader.Close()

			case "subscribe", "unsubscribe":
				if deps.NATS == nil {
					_ = writeJSON(wsEvent{Type: "error", Code: "unavailable", Message: "load events are not enabled"})
					continue
				}
				subject := natsadapter.LoadedFilter(m.Platform)
				if m.Action == "subscribe" {
					if _, exists := subs[subject]; exists {
						_ = writeJSON(wsEvent{Type: "status", Message: "already subscribed to " + subject})
						continue
					}
					s, err := deps.NATS.Subscribe(subject, func(msg *nats.Msg) {
						_ = writeJSON(wsEvent{Type: "event", Summary: json.RawMessage(msg.Data)})
					})
					if err != nil {
						_ = writeJSON(wsEvent{Type: "error", Code: "upstream_error", Message: "subscribe failed: " + err.Error()})
						continue
					}
					subs[subject] = s
					_ = writeJSON(wsEvent{Type: "status", Message: "subscribed to " + subject})
				} else if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(wsEvent{Type: "status", Message: "unsubscribed from " + subject})
				} else {
					_ = writeJSON(wsEvent{Type: "error", Code: "bad_request", Message: "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(wsEvent{Type: "error", Code: "bad_request", Message: "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}

// taskEvent waits for task and describes its outcome.
func taskEvent(ctx context.Context, task *usecases.Task) wsEvent {
	ev := wsEvent{Platform: task.Platform, ID: task.ID}
	acq, err := task.Wait(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		ev.Type = "canceled"
	case err != nil:
		ev.Type, ev.Code, ev.Message = "error", usecases.ErrorKind(err), err.Error()
	case acq.Empty():
		ev.Type, ev.Code, ev.Message = "empty", "not_found", notProcessedMessage(task.ID)
	default:
		ev.Type = "loaded"
		ev.Summary = acq.Summary()
		data, err := geojson.Encode(acq.BoundedDataset).MarshalJSON()
		if err != nil {
			ev.Type, ev.Code, ev.Message = "error", "internal_error", err.Error()
			break
		}
		ev.GeoJSON = data
	}
	return ev
}
