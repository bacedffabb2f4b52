// Package audit publishes security-relevant driver events to Kafka.
//
// Publishing is fire-and-forget: a broker outage must never fail a login or
// signup, so delivery errors are only logged.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

type contextKeyDevice struct{}

// WithDevice stores the client device label so emitters can attach it to
// event fields.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, device)
}

// Device returns the device label set by the transport layer, if any.
func Device(ctx context.Context) string {
	device, _ := ctx.Value(contextKeyDevice{}).(string)
	return device
}

// Event is the wire shape of one audit record.
type Event struct {
	Action   string            `json:"action"`
	DriverID uuid.UUID         `json:"driver_id"`
	At       time.Time         `json:"at"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Publisher emits audit events to a single topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// NewPublisher connects to the brokers and ensures the topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic: %w", err)
	}
	for _, res := range resp {
		// Already-exists is the common case on restart.
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("create audit topic %s: %w", res.Topic, res.Err)
		}
	}

	p := &Publisher{
		client: client,
		topic:  topic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit publishes the event keyed by driver id so per-driver ordering holds
// within a partition.
func (p *Publisher) Emit(ctx context.Context, action string, driverID uuid.UUID, fields map[string]string) {
	event := Event{
		Action:   action,
		DriverID: driverID,
		At:       time.Now().UTC(),
		Fields:   fields,
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal audit event", "error", err, "action", action)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(driverID.String()),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit event delivery failed", "error", err, "action", action)
		}
	})
}

func (p *Publisher) Close() {
	p.client.Close()
}

// Noop discards events; used in tests and when no brokers are configured.
type Noop struct{}

func (Noop) Emit(context.Context, string, uuid.UUID, map[string]string) {}
