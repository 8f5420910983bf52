// Package broker publishes domain events to RabbitMQ. Publishing is best
// effort: failures are logged and returned so callers can ignore them without
// interrupting the request that produced the event.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys.
const (
	KeyTransactionStatusChanged = "transaction.status_changed"
	KeyRegistrantStatusChanged  = "event_registrant.status_changed"
	KeyEventRegistered          = "event.registered"
	KeyReviewApproved           = "review.approved"
)

// StatusChanged is published after an accepted status transition commits.
type StatusChanged struct {
	SubjectID uuid.UUID  `json:"subject_id"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	ActorKind string     `json:"actor_kind"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	At        time.Time  `json:"at"`
}

// EventRegistered is published when a student registers for an event.
type EventRegistered struct {
	RegistrantID uuid.UUID `json:"registrant_id"`
	EventID      uuid.UUID `json:"event_id"`
	StudentID    uuid.UUID `json:"student_id"`
	Status       string    `json:"status"`
	At           time.Time `json:"at"`
}

// ReviewApproved is published when a moderator approves a review.
type ReviewApproved struct {
	ReviewID    uuid.UUID `json:"review_id"`
	ProductKind string    `json:"product_kind"`
	ProductID   uuid.UUID `json:"product_id"`
	At          time.Time `json:"at"`
}

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }

// AMQP publishes persistent JSON messages to a durable topic exchange.
type AMQP struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQP connects to url and declares exchange.
func NewAMQP(url, exchange string, logger *zap.Logger) (*AMQP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &AMQP{url: url, exchange: exchange, logger: logger}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	logger.Info("rabbitmq publisher connected", zap.String("exchange", exchange))
	return p, nil
}

func (p *AMQP) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

// Publish sends event, reconnecting once if the channel was closed.
func (p *AMQP) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connectLocked(); err != nil {
			p.logger.Warn("rabbitmq reconnect failed", zap.Error(err))
			return err
		}
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.logger.Warn("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
