package support

import (
	"context"
	"errors"
	"strings"

	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
)

// LoadProperty fetches a property owned by orgID. An empty orgID skips the
// ownership check and is reserved for public and system callers.
func LoadProperty(ctx context.Context, unit uow.UnitOfWork, orgID, id string) (*properties.Property, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Invalid("property_id", "required")
	}
	p, err := unit.Properties().ByID(ctx, properties.PropertyID(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("property", id)
		}
		return nil, err
	}
	if orgID != "" && !p.OwnedBy(orgID) {
		return nil, apperr.Forbidden("property", id)
	}
	return p, nil
}

// LoadBooking fetches a booking whose property belongs to orgID.
func LoadBooking(ctx context.Context, unit uow.UnitOfWork, orgID, id string) (*booking.Booking, *properties.Property, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil, apperr.Invalid("booking_id", "required")
	}
	b, err := unit.Bookings().ByID(ctx, booking.BookingID(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.NotFound("booking", id)
		}
		return nil, nil, err
	}
	if orgID != "" && b.OrgID != "" && b.OrgID != orgID {
		return nil, nil, apperr.Forbidden("booking", id)
	}
	p, err := LoadProperty(ctx, unit, orgID, string(b.PropertyID))
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			return nil, nil, apperr.Forbidden("booking", id)
		}
		return nil, nil, err
	}
	return b, p, nil
}

// LoadPayment fetches a payment owned by orgID.
func LoadPayment(ctx context.Context, unit uow.UnitOfWork, orgID, id string) (*payments.Payment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Invalid("payment_id", "required")
	}
	p, err := unit.Payments().ByID(ctx, payments.PaymentID(id))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.NotFound("payment", id)
		}
		return nil, err
	}
	if orgID != "" && p.OrgID != orgID {
		return nil, apperr.Forbidden("payment", id)
	}
	return p, nil
}
