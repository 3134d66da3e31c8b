package support

import (
	"context"

	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
)

// PropertyResolver finds the property behind a booking or payment so the
// lock middleware can serialize on it.
type PropertyResolver struct {
	UoWFactory uow.UoWFactory
}

func (r PropertyResolver) ResolveProperty(ctx context.Context, scope middleware.LockScope) (string, error) {
	if scope.PropertyID != "" {
		return scope.PropertyID, nil
	}
	unit, execCtx, cleanup, err := BeginReadOnlyUnit(ctx, r.UoWFactory)
	if err != nil {
		return "", err
	}
	if cleanup != nil {
		defer cleanup()
	}
	bookingID := scope.BookingID
	if bookingID == "" && scope.PaymentID != "" {
		p, err := unit.Payments().ByID(execCtx, payments.PaymentID(scope.PaymentID))
		if err != nil {
			return "", err
		}
		bookingID = p.BookingID
	}
	if bookingID == "" {
		return "", nil
	}
	b, err := unit.Bookings().ByID(execCtx, booking.BookingID(bookingID))
	if err != nil {
		return "", err
	}
	return string(b.PropertyID), nil
}

var _ middleware.PropertyResolver = PropertyResolver{}
