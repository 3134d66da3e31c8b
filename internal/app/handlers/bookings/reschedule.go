package bookings

import (
	"context"
	"fmt"
	"time"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
)

const rescheduleBookingKey = "bookings.reschedule"

type RescheduleBookingCommand struct {
	bookingRef
	CheckIn  time.Time `validate:"required"`
	CheckOut time.Time `validate:"required"`
}

func NewRescheduleBookingCommand(orgID, bookingID string, checkIn, checkOut time.Time) RescheduleBookingCommand {
	return RescheduleBookingCommand{bookingRef: bookingRef{OrgID: orgID, BookingID: bookingID}, CheckIn: checkIn, CheckOut: checkOut}
}

func (c RescheduleBookingCommand) Key() string { return rescheduleBookingKey }

type RescheduleBookingHandler struct{ Deps }

// Handle moves a booking to new dates. Availability is re-checked excluding the booking
// itself. Directly entered bookings are re-priced; imported ones keep their amounts.
func (h *RescheduleBookingHandler) Handle(ctx context.Context, cmd RescheduleBookingCommand) (*dto.Booking, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	b, p, err := support.LoadBooking(ctx, unit, cmd.OrgID, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, domainbooking.ErrInvalidRange
	}
	if err := unit.Properties().Lock(ctx, p.ID); err != nil {
		return nil, err
	}
	if err := ensureAvailable(ctx, unit, p.ID, dr, b.ID); err != nil {
		return nil, err
	}
	base, total := b.BaseRate, b.TotalAmount
	if !b.Imported() {
		quote, err := h.pricing().Quote(ctx, p, dr)
		if err != nil {
			return nil, err
		}
		base = quote.BaseRate
		total = quote.Total
		total.Amount += b.AdditionalCharges.Amount
	}
	if err := b.Reschedule(dr, base, total, h.Clock.Now()); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}
	h.logger().Info("booking rescheduled", "booking_id", b.ID, "check_in", dr.CheckIn.Format(time.DateOnly), "check_out", dr.CheckOut.Format(time.DateOnly))
	out := dto.MapBooking(b)
	return &out, nil
}

func invalidAmount(field string, err error) error {
	return &apperr.ValidationError{Field: field, Message: fmt.Sprintf("invalid amount: %v", err)}
}
