package support

import (
	"context"
	"time"

	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
)

// Reconcile recomputes AmountPaid from the PAID payment rows and saves the booking
// if it changed. Calling it repeatedly yields the same state.
func Reconcile(ctx context.Context, unit uow.UnitOfWork, b *booking.Booking, now time.Time) (bool, error) {
	list, err := unit.Payments().ListByBooking(ctx, string(b.ID))
	if err != nil {
		return false, err
	}
	total := payments.TotalPaid(list, b.TotalAmount.Currency, "")
	if !b.ApplyPayments(total, now) {
		return false, nil
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}
