package uow

import (
	"context"

	"rentdesk/internal/app/outbox"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Properties() properties.Repository
	Bookings() booking.Repository
	Payments() payments.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
