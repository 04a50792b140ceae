package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"
	"github.com/vreid/janken/internal/pkg/rps"
)

const subscriberBuffer = 256

// Hub streams committed events to websocket subscribers. A subscriber that
// falls behind by more than subscriberBuffer messages misses events.
type Hub struct {
	Log logrus.FieldLogger

	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[string]chan []byte
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		Log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subscribers: map[string]chan []byte{},
	}
}

func NewHubService(i do.Injector) (*Hub, error) {
	return NewHub(do.MustInvoke[*logrus.Logger](i)), nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

func (h *Hub) Publish(_ context.Context, events []rps.Event) error {
	envelopes, err := Envelopes(events)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, envelope := range envelopes {
		data, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		for id, ch := range h.subscribers {
			select {
			case ch <- data:
			default:
				h.Log.WithField("subscriber", id).Warn("dropping event for slow subscriber")
			}
		}
	}

	return nil
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.WithError(err).Debug("websocket upgrade failed")

		return
	}

	defer conn.Close() //nolint:errcheck

	id := uuid.NewString()
	ch := make(chan []byte, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}()

	log := h.Log.WithField("subscriber", id)
	log.Debug("subscriber connected")

	// Subscribers never send anything; reading only notices the close.
	closed := make(chan struct{})

	go func() {
		defer close(closed)

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.WithError(err).Debug("subscriber read failed")
				}

				return
			}
		}
	}()

	for {
		select {
		case data := <-ch:
			err = conn.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				log.WithError(err).Debug("subscriber write failed")

				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// Fanout publishes to every publisher and reports all failures together.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events []rps.Event) error {
	var errs []error

	for _, publisher := range f {
		errs = append(errs, publisher.Publish(ctx, events))
	}

	return errors.Join(errs...)
}

func (f Fanout) Shutdown() error {
	var errs []error

	for _, publisher := range f {
		if shutdowner, ok := publisher.(interface{ Shutdown() error }); ok {
			errs = append(errs, shutdowner.Shutdown())
		}
	}

	return errors.Join(errs...)
}
