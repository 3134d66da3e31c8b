package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app/middleware"
	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
	infraoutbox "rentdesk/internal/infra/outbox"
)

var now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func seedProperty(t *testing.T, f Factory) *properties.Property {
	t.Helper()
	rate := money.Must(80000, "USD")
	p, err := properties.NewProperty(properties.CreateParams{
		ID: "prop-1", OrgID: "org-1", Name: "Loft", DailyRate: &rate, Currency: "USD", Now: now,
	})
	require.NoError(t, err)
	unit, err := f.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Properties().Save(context.Background(), p))
	require.NoError(t, unit.Commit(context.Background()))
	return p
}

func newBooking(t *testing.T, id, externalID, checkIn, checkOut string) *booking.Booking {
	t.Helper()
	b, err := booking.NewBooking(booking.CreateParams{
		ID: booking.BookingID(id), OrgID: "org-1", PropertyID: "prop-1",
		Guest: booking.Guest{Name: "Ada"}, Range: daterange.MustDates(checkIn, checkOut),
		Total: money.Must(240000, "USD"), ExternalID: externalID, CreatedAt: now,
	})
	require.NoError(t, err)
	return b
}

func TestUnitStagesWritesUntilCommit(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	seedProperty(t, f)

	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b := newBooking(t, "bk-1", "", "2025-03-01", "2025-03-05")
	require.NoError(t, unit.Bookings().Save(ctx, b))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "ev-1", Name: "booking.created"}))

	got, err := unit.Bookings().ByID(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	reader, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	_, err = reader.Bookings().ByID(ctx, "bk-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	require.NoError(t, reader.Rollback(ctx))

	require.NoError(t, unit.Commit(ctx))
	assert.Len(t, f.Store.Events(), 1)

	reader, err = f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	list, err := reader.Bookings().ListByProperty(ctx, "prop-1", booking.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.ErrorIs(t, reader.Bookings().Save(ctx, list[0]), ErrReadOnly)
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	seedProperty(t, f)

	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Save(ctx, newBooking(t, "bk-1", "", "2025-03-01", "2025-03-05")))
	require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "ev-1"}))
	require.NoError(t, unit.Rollback(ctx))
	require.NoError(t, unit.Rollback(ctx))

	assert.Empty(t, f.Store.Events())
	unit, err = f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	_, err = unit.Bookings().ByID(ctx, "bk-1")
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestSaveDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	p := seedProperty(t, f)

	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	stale := *p
	stale.Version = 0
	err = unit.Properties().Save(ctx, &stale)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	fresh, err := unit.Properties().ByID(ctx, p.ID)
	require.NoError(t, err)
	require.NoError(t, unit.Properties().Save(ctx, fresh))
	require.NoError(t, unit.Properties().Save(ctx, fresh))
	assert.Equal(t, int64(3), fresh.Version)
}

func TestBookingExternalIDIsUniquePerProperty(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	seedProperty(t, f)

	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	defer unit.Rollback(ctx)
	require.NoError(t, unit.Bookings().Save(ctx, newBooking(t, "bk-1", "uid-1@airbnb", "2025-03-01", "2025-03-05")))
	err = unit.Bookings().Save(ctx, newBooking(t, "bk-2", "uid-1@airbnb", "2025-04-01", "2025-04-05"))
	assert.ErrorIs(t, err, booking.ErrDuplicateExternalID)

	found, err := unit.Bookings().ByExternalID(ctx, "prop-1", "uid-1@airbnb")
	require.NoError(t, err)
	assert.Equal(t, booking.BookingID("bk-1"), found.ID)
}

func TestReturnedAggregatesAreCopies(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	seedProperty(t, f)

	unit, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	p, err := unit.Properties().ByID(ctx, "prop-1")
	require.NoError(t, err)
	p.Name = "changed"
	p.DailyRate.Amount = 1

	again, err := unit.Properties().ByID(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "Loft", again.Name)
	assert.Equal(t, int64(80000), again.DailyRate.Amount)
}

func TestPaymentDeleteIsVisibleInsideUnit(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	pay, err := payments.NewPayment(payments.CreateParams{ID: "pay-1", BookingID: "bk-1", Amount: money.Must(100, "USD"), Now: now})
	require.NoError(t, err)
	require.NoError(t, unit.Payments().Save(ctx, pay))
	require.NoError(t, unit.Commit(ctx))

	unit, err = f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Payments().Delete(ctx, "pay-1"))
	list, err := unit.Payments().ListByBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.ErrorIs(t, unit.Payments().Delete(ctx, "pay-1"), payments.ErrPaymentNotFound)
	require.NoError(t, unit.Commit(ctx))

	unit, err = f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	_, err = unit.Payments().ByID(ctx, "pay-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWritableUnitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := Factory{Store: NewStore()}
	first, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)

	started := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		close(started)
		second, err := f.Begin(ctx, uow.TxOptions{})
		if err == nil {
			close(acquired)
			_ = second.Rollback(ctx)
		}
	}()
	<-started
	select {
	case <-acquired:
		t.Fatal("second writer started while the first was open")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, first.Commit(ctx))
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second writer never started")
	}
}

func TestOutboxQueueClaimAndRetry(t *testing.T) {
	ctx := context.Background()
	q := NewOutboxQueue()
	q.append([]appoutbox.EventRecord{{ID: "a", Name: "booking.created"}, {ID: "b", Name: "booking.confirmed"}})

	batch, err := q.Claim(ctx, "w1", 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "a", batch[0].ID)

	batch, err = q.Claim(ctx, "w1", 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "b", batch[0].ID)

	require.NoError(t, q.MarkSent(ctx, "a"))
	require.NoError(t, q.MarkFailed(ctx, "b", time.Now().Add(-time.Second), "broker down"))
	assert.Equal(t, 1, q.Pending())

	batch, err = q.Claim(ctx, "w2", 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Attempts)
	assert.Equal(t, infraoutbox.StateClaimed, q.entries[1].state)
}

func TestIdempotencyStoreExpiresRecords(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore(time.Hour)
	require.NoError(t, s.Save(ctx, middlewareRecord("fresh", time.Now())))
	require.NoError(t, s.Save(ctx, middlewareRecord("old", time.Now().Add(-2*time.Hour))))

	_, found, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLockerSerializesPerKey(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	release, err := l.Acquire(ctx, "property:1")
	require.NoError(t, err)

	other, err := l.Acquire(ctx, "property:2")
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(timeout, "property:1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r, err := l.Acquire(ctx, "property:1")
		if err == nil {
			_ = r(ctx)
		}
	}()
	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))
	wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}

func middlewareRecord(key string, at time.Time) middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{Key: key, Payload: []byte(`{}`), OccurredAt: at}
}
