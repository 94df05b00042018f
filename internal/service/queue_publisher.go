// Package service wires domain operations to the outside world: the
// event broker and the remote layout mirror.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/queue"
)

// Publisher publishes domain events to the billsplit topic exchange.  The
// connection is opened lazily and re-dialled after a failure, so a broker
// outage only costs the events published while it lasts.
type Publisher struct {
	url string
	log logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{url: url, log: log.WithField("component", "publisher")}
}

// channel must be called with p.mu held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	// Durable so the exchange survives broker restarts.
	if err := ch.ExchangeDeclare(queue.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// PublishJSON marshals v and publishes it as a persistent message.
func (p *Publisher) PublishJSON(ctx context.Context, routingKey string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		p.log.WithError(err).WithField("route", routingKey).Warn("broker unavailable")
		return err
	}
	err = ch.PublishWithContext(ctx, queue.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		p.log.WithError(err).WithField("route", routingKey).Warn("publish failed")
		return err
	}
	return nil
}

// PublishSentToKitchen publishes an order.sent_to_kitchen event.
func (p *Publisher) PublishSentToKitchen(ctx context.Context, ev queue.OrderSentToKitchenEvent) error {
	return p.PublishJSON(ctx, queue.RouteSentToKitchen, ev)
}

// PublishLayoutSynced publishes a layout.synced event.
func (p *Publisher) PublishLayoutSynced(ctx context.Context, ev queue.LayoutSyncedEvent) error {
	return p.PublishJSON(ctx, queue.RouteLayoutSynced, ev)
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
