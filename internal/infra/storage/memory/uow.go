package memory

import (
	"context"
	"errors"
	"fmt"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
)

var (
	// ErrFactoryMisconfigured indicates a factory without a store.
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrReadOnly             = errors.New("memory: unit of work is read-only")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrConcurrentUpdate     = fmt.Errorf("memory: concurrent update detected: %w", apperr.ErrStateConflict)
)

// Factory opens units over a shared Store.
type Factory struct {
	Store *Store
}

// Begin starts a unit. Writable units wait for the previous writer to finish.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := &Unit{store: f.Store, readOnly: opts.ReadOnly}
	if !opts.ReadOnly {
		f.Store.writeMu.Lock()
		u.properties = make(map[properties.PropertyID]*properties.Property)
		u.bookings = make(map[booking.BookingID]*booking.Booking)
		u.payments = make(map[payments.PaymentID]*payments.Payment)
		u.deletedPayments = make(map[payments.PaymentID]struct{})
	}
	return u, nil
}

// Unit stages writes locally and publishes them to the store on Commit.
type Unit struct {
	store    *Store
	readOnly bool
	done     bool

	properties      map[properties.PropertyID]*properties.Property
	bookings        map[booking.BookingID]*booking.Booking
	payments        map[payments.PaymentID]*payments.Payment
	deletedPayments map[payments.PaymentID]struct{}
	events          []appoutbox.EventRecord
}

func (u *Unit) Properties() properties.Repository { return propertyRepository{u} }
func (u *Unit) Bookings() booking.Repository       { return bookingRepository{u} }
func (u *Unit) Payments() payments.Repository      { return paymentRepository{u} }
func (u *Unit) Outbox() appoutbox.Outbox           { return unitOutbox{u} }

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	defer u.store.writeMu.Unlock()
	u.store.commit(u)
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	if !u.readOnly {
		u.store.writeMu.Unlock()
	}
	return nil
}

func (u *Unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnly
	}
	return nil
}

type unitOutbox struct{ u *Unit }

func (o unitOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := o.u.writable(); err != nil {
		return err
	}
	o.u.events = append(o.u.events, record)
	return nil
}

var (
	_ uow.UoWFactory    = Factory{}
	_ uow.UnitOfWork    = (*Unit)(nil)
	_ appoutbox.Outbox = unitOutbox{}
)
