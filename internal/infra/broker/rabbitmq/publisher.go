package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Publisher sends envelopes to a topic exchange; the outbox topic becomes the routing key.
type Publisher struct {
	conn     *amqp.Connection
	exchange string

	mu sync.Mutex
	ch Channel
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: confirm mode: %w", err)
	}
	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// NewPublisherWith publishes on an already configured channel. The caller owns
// the connection behind it.
func NewPublisherWith(ch Channel, exchange string) *Publisher {
	return &Publisher{exchange: exchange, ch: ch}
}

// Publish maps the envelope's content-type header onto the message property and
// carries every other header, plus aggregate_id, in the amqp header table.
func (p *Publisher) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	table := amqp.Table{"aggregate_id": key}
	contentType := "application/json"
	for k, v := range headers {
		if k == "content-type" {
			contentType = v
			continue
		}
		table[k] = v
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, topic, true, false, amqp.Publishing{
		ContentType:  contentType,
		DeliveryMode: amqp.Persistent,
		Headers:      table,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s to %s: %w", key, topic, err)
	}
	// nil unless the channel is in confirm mode
	if conf == nil {
		return nil
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("rabbitmq: broker nacked message for %s", topic)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
