package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
)

var ErrUnitOfWorkNotConfigured = errors.New("postgres: unit of work factory missing database")

// Factory opens one SQL transaction per unit of work.
type Factory struct {
	DB *gorm.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	txOpts := &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: opts.ReadOnly}
	tx := f.DB.WithContext(ctx).Begin(txOpts)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx}, nil
}

type Unit struct {
	tx   *gorm.DB
	done bool
}

func (u *Unit) Properties() properties.Repository { return PropertyRepository{tx: u.tx} }
func (u *Unit) Bookings() booking.Repository       { return BookingRepository{tx: u.tx} }
func (u *Unit) Payments() payments.Repository      { return PaymentRepository{tx: u.tx} }
func (u *Unit) Outbox() appoutbox.Outbox           { return outboxWriter{tx: u.tx} }

func (u *Unit) Commit(ctx context.Context) error {
	u.done = true
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback().Error
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
