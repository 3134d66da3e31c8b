package bookings

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/daterange"
)

// Deps are shared by every booking handler.
type Deps struct {
	UoWFactory uow.UoWFactory
	Pricing    policies.PricingPort
	Encoder    outbox.EventEncoder
	Clock      policies.Clock
	Logger     *slog.Logger
	NewID      func() string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d Deps) pricing() policies.PricingPort {
	if d.Pricing != nil {
		return d.Pricing
	}
	return policies.RatePricing{}
}

var blockingFilter = domainbooking.ListFilter{Statuses: domainbooking.BlockingStatuses}

// ensureAvailable loads the property's blocking bookings and fails with an
// availability error listing the conflicts.
func ensureAvailable(ctx context.Context, unit uow.UnitOfWork, propertyID properties.PropertyID, dr daterange.DateRange, exclude domainbooking.BookingID) error {
	existing, err := unit.Bookings().ListByProperty(ctx, propertyID, blockingFilter)
	if err != nil {
		return err
	}
	return availability.Check(existing, dr, exclude).Error(string(propertyID), dr)
}

// othersCheckedIn reports whether a booking other than self is still in the unit.
func othersCheckedIn(ctx context.Context, unit uow.UnitOfWork, propertyID properties.PropertyID, self domainbooking.BookingID) (bool, error) {
	list, err := unit.Bookings().ListByProperty(ctx, propertyID, domainbooking.ListFilter{
		Statuses: []domainbooking.Status{domainbooking.StatusCheckedIn},
	})
	if err != nil {
		return false, err
	}
	for _, b := range list {
		if b.ID != self {
			return true, nil
		}
	}
	return false, nil
}
