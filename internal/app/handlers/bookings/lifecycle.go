package bookings

import (
	"context"
	"strings"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/uow"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/money"
)

const (
	confirmBookingKey  = "bookings.confirm"
	checkInBookingKey  = "bookings.check_in"
	checkOutBookingKey = "bookings.check_out"
	cancelBookingKey   = "bookings.cancel"
	noShowBookingKey   = "bookings.no_show"
	completeBookingKey = "bookings.complete"
)

// bookingRef is embedded by every command that addresses one booking of a tenant.
type bookingRef struct {
	OrgID     string `validate:"required"`
	BookingID string `validate:"required"`
}

func (r bookingRef) TenantID() string { return r.OrgID }
func (r bookingRef) LockScope() middleware.LockScope {
	return middleware.LockScope{BookingID: r.BookingID}
}

type ConfirmBookingCommand struct{ bookingRef }

func NewConfirmBookingCommand(orgID, bookingID string) ConfirmBookingCommand {
	return ConfirmBookingCommand{bookingRef{OrgID: orgID, BookingID: bookingID}}
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

type CheckInCommand struct {
	bookingRef
	Notes string `validate:"max=2000"`
}

func NewCheckInCommand(orgID, bookingID, notes string) CheckInCommand {
	return CheckInCommand{bookingRef: bookingRef{OrgID: orgID, BookingID: bookingID}, Notes: notes}
}

func (c CheckInCommand) Key() string { return checkInBookingKey }

type CheckOutCommand struct {
	bookingRef
	Notes        string `validate:"max=2000"`
	DamageReport string `validate:"max=4000"`
	// AdditionalCharges is a decimal amount in the booking currency, e.g. "50.00".
	AdditionalCharges string
}

func NewCheckOutCommand(orgID, bookingID, notes, damageReport, charges string) CheckOutCommand {
	return CheckOutCommand{
		bookingRef:        bookingRef{OrgID: orgID, BookingID: bookingID},
		Notes:             notes,
		DamageReport:      damageReport,
		AdditionalCharges: charges,
	}
}

func (c CheckOutCommand) Key() string { return checkOutBookingKey }

type CancelBookingCommand struct {
	bookingRef
	Reason string `validate:"max=500"`
}

func NewCancelBookingCommand(orgID, bookingID, reason string) CancelBookingCommand {
	return CancelBookingCommand{bookingRef: bookingRef{OrgID: orgID, BookingID: bookingID}, Reason: reason}
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

type MarkNoShowCommand struct{ bookingRef }

func NewMarkNoShowCommand(orgID, bookingID string) MarkNoShowCommand {
	return MarkNoShowCommand{bookingRef{OrgID: orgID, BookingID: bookingID}}
}

func (c MarkNoShowCommand) Key() string { return noShowBookingKey }

type CompleteBookingCommand struct{ bookingRef }

func NewCompleteBookingCommand(orgID, bookingID string) CompleteBookingCommand {
	return CompleteBookingCommand{bookingRef{OrgID: orgID, BookingID: bookingID}}
}

func (c CompleteBookingCommand) Key() string { return completeBookingKey }

// transition loads the booking, applies fn and persists booking and property.
// fn may return a property to save when the transition has a property side effect.
func (d Deps) transition(ctx context.Context, ref bookingRef, action string,
	fn func(unit uow.UnitOfWork, b *domainbooking.Booking, p *properties.Property) (*properties.Property, error),
) (*dto.Booking, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	b, p, err := support.LoadBooking(ctx, unit, ref.OrgID, ref.BookingID)
	if err != nil {
		return nil, err
	}
	changedProperty, err := fn(unit, b, p)
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if changedProperty != nil {
		if err := unit.Properties().Save(ctx, changedProperty); err != nil {
			return nil, err
		}
	}
	if err := support.Record(ctx, unit, d.Encoder, b, p); err != nil {
		return nil, err
	}
	d.logger().Info("booking "+action, "booking_id", b.ID, "property_id", b.PropertyID, "status", b.Status)
	out := dto.MapBooking(b)
	return &out, nil
}

type ConfirmBookingHandler struct{ Deps }

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.bookingRef, "confirmed", func(_ uow.UnitOfWork, b *domainbooking.Booking, _ *properties.Property) (*properties.Property, error) {
		return nil, b.Confirm(h.Clock.Now())
	})
}

type CheckInHandler struct{ Deps }

// Handle checks the guest in and marks the property occupied.
func (h *CheckInHandler) Handle(ctx context.Context, cmd CheckInCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.bookingRef, "checked in", func(_ uow.UnitOfWork, b *domainbooking.Booking, p *properties.Property) (*properties.Property, error) {
		now := h.Clock.Now()
		if err := b.CheckIn(strings.TrimSpace(cmd.Notes), now); err != nil {
			return nil, err
		}
		p.Occupy(string(b.ID), now)
		return p, nil
	})
}

type CheckOutHandler struct{ Deps }

// Handle checks the guest out. The property returns to ACTIVE only when no other
// booking on it is still checked in.
func (h *CheckOutHandler) Handle(ctx context.Context, cmd CheckOutCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.bookingRef, "checked out", func(unit uow.UnitOfWork, b *domainbooking.Booking, p *properties.Property) (*properties.Property, error) {
		charges := money.Zero(b.TotalAmount.Currency)
		if raw := strings.TrimSpace(cmd.AdditionalCharges); raw != "" {
			parsed, err := money.Parse(raw, b.TotalAmount.Currency)
			if err != nil {
				return nil, invalidAmount("additional_charges", err)
			}
			charges = parsed
		}
		now := h.Clock.Now()
		if err := b.CheckOut(strings.TrimSpace(cmd.Notes), strings.TrimSpace(cmd.DamageReport), charges, now); err != nil {
			return nil, err
		}
		if err := unit.Properties().Lock(ctx, p.ID); err != nil {
			return nil, err
		}
		occupied, err := othersCheckedIn(ctx, unit, p.ID, b.ID)
		if err != nil {
			return nil, err
		}
		if occupied {
			return nil, nil
		}
		p.Vacate(string(b.ID), now)
		return p, nil
	})
}

type CancelBookingHandler struct{ Deps }

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.bookingRef, "cancelled", func(_ uow.UnitOfWork, b *domainbooking.Booking, _ *properties.Property) (*properties.Property, error) {
		return nil, b.Cancel(strings.TrimSpace(cmd.Reason), h.Clock.Now())
	})
}

type MarkNoShowHandler struct{ Deps }

func (h *MarkNoShowHandler) Handle(ctx context.Context, cmd MarkNoShowCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.bookingRef, "marked no-show", func(_ uow.UnitOfWork, b *domainbooking.Booking, _ *properties.Property) (*properties.Property, error) {
		return nil, b.MarkNoShow(h.Clock.Now())
	})
}

type CompleteBookingHandler struct{ Deps }

func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*dto.Booking, error) {
	return h.transition(ctx, cmd.bookingRef, "completed", func(_ uow.UnitOfWork, b *domainbooking.Booking, _ *properties.Property) (*properties.Property, error) {
		return nil, b.Complete(h.Clock.Now())
	})
}

var (
	_ commands.Handler[CheckInCommand, *dto.Booking]  = (*CheckInHandler)(nil)
	_ commands.Handler[CheckOutCommand, *dto.Booking] = (*CheckOutHandler)(nil)
	_ middleware.PropertyScoped                       = CheckOutCommand{}
	_ middleware.TenantScoped                         = CancelBookingCommand{}
)
