// Package notify publishes committed state changes to whoever follows the
// node.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/do/v2"
	"github.com/sirupsen/logrus"
	"github.com/valkey-io/valkey-go"
	"github.com/vreid/janken/internal/pkg/rps"
)

type Publisher interface {
	Publish(ctx context.Context, events []rps.Event) error
}

type Envelope struct {
	ID    string    `json:"id"`
	Event rps.Event `json:"event"`
}

func Envelopes(events []rps.Event) ([]Envelope, error) {
	result := make([]Envelope, 0, len(events))

	for _, event := range events {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate event ID: %w", err)
		}

		result = append(result, Envelope{ID: id.String(), Event: event})
	}

	return result, nil
}

// NewPublisher streams to websocket subscribers and publishes to valkey when
// an address is configured, or to the log otherwise.
func NewPublisher(i do.Injector) (Publisher, error) {
	log := do.MustInvoke[*logrus.Logger](i)
	hub := do.MustInvoke[*Hub](i)
	address := do.MustInvokeNamed[string](i, "valkey-address")
	channel := do.MustInvokeNamed[string](i, "events-channel")

	if address == "" {
		return Fanout{hub, &LogPublisher{Log: log}}, nil
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{address}})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	return Fanout{hub, &ValkeyPublisher{Client: client, Channel: channel}}, nil
}

type LogPublisher struct {
	Log logrus.FieldLogger
}

func (p *LogPublisher) Publish(_ context.Context, events []rps.Event) error {
	for _, event := range events {
		p.Log.WithFields(logrus.Fields{
			"kind":   event.Kind,
			"height": event.Height,
			"offer":  event.Offer,
			"match":  event.Match,
			"status": event.Status,
		}).Info("event")
	}

	return nil
}

type ValkeyPublisher struct {
	Client  valkey.Client
	Channel string
}

func (p *ValkeyPublisher) Publish(ctx context.Context, events []rps.Event) error {
	envelopes, err := Envelopes(events)
	if err != nil {
		return err
	}

	cmds := make([]valkey.Completed, 0, len(envelopes))

	for _, envelope := range envelopes {
		data, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}

		cmds = append(cmds, p.Client.B().Publish().Channel(p.Channel).Message(string(data)).Build())
	}

	for _, resp := range p.Client.DoMulti(ctx, cmds...) {
		err = resp.Error()
		if err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
	}

	return nil
}

func (p *ValkeyPublisher) Shutdown() error {
	p.Client.Close()

	return nil
}
