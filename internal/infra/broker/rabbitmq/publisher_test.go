package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange  string
	key       string
	mandatory bool
	msg       amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, mandatory, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.sent = append(c.sent, published{exchange: exchange, key: key, mandatory: mandatory, msg: msg})
	return nil, nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishMapsEnvelopeHeaders(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisherWith(ch, "rentdesk.events")

	err := p.Publish(context.Background(), "booking.events.v1", "bk-1", []byte(`{"id":"evt-1"}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      "booking.confirmed",
	})
	require.NoError(t, err)

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "rentdesk.events", got.exchange)
	assert.Equal(t, "booking.events.v1", got.key)
	assert.True(t, got.mandatory)
	assert.Equal(t, "application/cloudevents+json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, amqp.Table{"aggregate_id": "bk-1", "ce-type": "booking.confirmed"}, got.msg.Headers)
	assert.JSONEq(t, `{"id":"evt-1"}`, string(got.msg.Body))
}

func TestPublishDefaultsContentType(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisherWith(ch, "rentdesk.events")

	require.NoError(t, p.Publish(context.Background(), "payment.events.v1", "pay-1", nil, nil))
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "application/json", ch.sent[0].msg.ContentType)
	assert.Equal(t, amqp.Table{"aggregate_id": "pay-1"}, ch.sent[0].msg.Headers)
}

func TestPublishWrapsChannelErrors(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := NewPublisherWith(ch, "rentdesk.events")

	err := p.Publish(context.Background(), "booking.events.v1", "bk-1", nil, nil)
	require.ErrorIs(t, err, amqp.ErrClosed)
	assert.Contains(t, err.Error(), "bk-1 to booking.events.v1")

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
