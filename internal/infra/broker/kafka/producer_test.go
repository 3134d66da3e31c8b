package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSendsKeyedMessage(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "bk-1" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != "booking.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != "content-type" {
			return errors.New("missing content-type header")
		}
		return nil
	})
	p := NewProducerWith(mock)

	err := p.Publish(context.Background(), "booking.events.v1", "bk-1", []byte(`{}`), map[string]string{"content-type": "application/cloudevents+json"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishReturnsBrokerError(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := NewProducerWith(mock)
	defer p.Close()

	err := p.Publish(context.Background(), "payment.events.v1", "pay-1", []byte(`{}`), nil)
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	assert.Contains(t, err.Error(), "pay-1 to payment.events.v1")
}

func TestPublishWritesHeadersInKeyOrder(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		var got []string
		for _, h := range msg.Headers {
			got = append(got, string(h.Key))
		}
		want := []string{"ce-id", "ce-type", "content-type"}
		if len(got) != len(want) {
			return errors.New("unexpected header count")
		}
		for i := range want {
			if got[i] != want[i] {
				return errors.New("headers out of order")
			}
		}
		return nil
	})
	p := NewProducerWith(mock)
	defer p.Close()

	err := p.Publish(context.Background(), "booking.events.v1", "bk-2", []byte(`{}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      "booking.confirmed",
		"ce-id":        "evt-1",
	})
	require.NoError(t, err)
}

func TestPublishRequiresTopic(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(mock)
	defer p.Close()

	assert.ErrorIs(t, p.Publish(context.Background(), "", "bk-1", nil, nil), ErrNoTopic)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(mock)
	defer p.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
}
