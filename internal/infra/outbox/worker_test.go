package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/infra/outbox"
	"rentdesk/internal/infra/storage/memory"
)

type flakyProducer struct {
	failures int
	inner    *outbox.LogProducer
}

func (p *flakyProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	return p.inner.Publish(ctx, topic, key, payload, headers)
}

func commitEvents(t *testing.T, store *memory.Store, records ...appoutbox.EventRecord) {
	t.Helper()
	unit, err := memory.Factory{Store: store}.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, unit.Outbox().Add(context.Background(), rec))
	}
	require.NoError(t, unit.Commit(context.Background()))
}

func TestFlushPublishesCloudEvents(t *testing.T) {
	store := memory.NewStore()
	occurred := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	commitEvents(t, store,
		appoutbox.EventRecord{ID: "ev-1", Name: "booking.checked_in", Aggregate: "bk-1", OccurredAt: occurred, Payload: []byte(`{"BookingID":"bk-1"}`), Headers: map[string]string{"traceparent": "00-abc-def-01"}},
		appoutbox.EventRecord{ID: "ev-2", Name: "payment.received", Aggregate: "pay-1", OccurredAt: occurred, Payload: []byte(`{"PaymentID":"pay-1"}`)},
	)
	producer := &outbox.LogProducer{}
	w := &outbox.Worker{Queue: store.Outbox, Producer: producer, TopicPrefix: "dev.", Source: "app://test"}

	require.NoError(t, w.Flush(context.Background()))

	published := producer.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "dev.booking.events.v1", published[0].Topic)
	assert.Equal(t, "bk-1", published[0].Key)
	assert.Equal(t, "application/cloudevents+json", published[0].Headers["content-type"])
	assert.Equal(t, "dev.payment.events.v1", published[1].Topic)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(published[0].Payload, &envelope))
	assert.Equal(t, "1.0", envelope["specversion"])
	assert.Equal(t, "ev-1", envelope["id"])
	assert.Equal(t, "booking.checked_in.v1", envelope["type"])
	assert.Equal(t, "app://test", envelope["source"])
	assert.Equal(t, "00-abc-def-01", envelope["traceparent"])
	assert.Equal(t, map[string]any{"BookingID": "bk-1"}, envelope["data"])
	assert.Zero(t, store.Outbox.Pending())

	require.NoError(t, w.Flush(context.Background()))
	assert.Len(t, producer.Published(), 2)
}

func TestFlushReschedulesFailedPublish(t *testing.T) {
	store := memory.NewStore()
	commitEvents(t, store, appoutbox.EventRecord{ID: "ev-1", Name: "booking.created", Aggregate: "bk-1", Payload: []byte(`{}`)})
	producer := &flakyProducer{failures: 1, inner: &outbox.LogProducer{}}
	w := &outbox.Worker{Queue: store.Outbox, Producer: producer, Backoff: []time.Duration{-time.Second}}

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 1, store.Outbox.Pending())
	assert.Empty(t, producer.inner.Published())

	require.NoError(t, w.Flush(context.Background()))
	assert.Zero(t, store.Outbox.Pending())
	assert.Len(t, producer.inner.Published(), 1)
}

func TestFlushMarksUndecodablePayloadFailed(t *testing.T) {
	store := memory.NewStore()
	commitEvents(t, store, appoutbox.EventRecord{ID: "ev-1", Name: "booking.created", Payload: []byte(`not json`)})
	producer := &outbox.LogProducer{}
	w := &outbox.Worker{Queue: store.Outbox, Producer: producer, Backoff: []time.Duration{time.Hour}}

	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, producer.Published())
	assert.Equal(t, 1, store.Outbox.Pending())
}

func TestWorkerRequiresDependencies(t *testing.T) {
	w := &outbox.Worker{}
	assert.ErrorIs(t, w.Flush(context.Background()), outbox.ErrWorkerNotConfigured)
	assert.ErrorIs(t, w.Run(context.Background()), outbox.ErrWorkerNotConfigured)
}
