// Package kafka streams notifications to a Kafka topic so other services
// (email, push, analytics) can react to marketplace events.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustlane/internal/notification/models"
	"trustlane/internal/platform/config"
)

// ErrCircuitOpen is returned while the breaker rejects produce calls.
var ErrCircuitOpen = errors.New("kafka publisher circuit open")

// Publisher produces one record per notification, keyed by recipient so a
// user's events stay ordered within a partition.
type Publisher struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// message is the wire form of a notification on the topic.
type message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	RelatedID string    `json:"related_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.NotificationTopic),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &Publisher{
		client:  client,
		topic:   cfg.NotificationTopic,
		timeout: cfg.ProduceTimeout,
		logger:  logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-notifications",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return p, nil
}

// EnsureTopic creates the notification topic if it does not exist.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, p.topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Name() string {
	return "kafka"
}

// Deliver produces n synchronously through the circuit breaker. An open
// breaker is reported as a permanent error so callers stop retrying.
func (p *Publisher) Deliver(ctx context.Context, n *models.Notification) error {
	value, err := json.Marshal(toMessage(n))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(n.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(n.Type)},
		},
	}

	_, err = p.breaker.Execute(func() (any, error) {
		produceCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return nil, p.client.ProduceSync(produceCtx, record).FirstErr()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrCircuitOpen, err))
	}
	if err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Publisher) Close() {
	p.client.Close()
}

func toMessage(n *models.Notification) message {
	m := message{
		ID:        n.ID.String(),
		UserID:    n.UserID.String(),
		Type:      string(n.Type),
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
	if n.RelatedID != uuid.Nil {
		m.RelatedID = n.RelatedID.String()
	}
	return m
}
