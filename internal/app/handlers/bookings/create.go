package bookings

import (
	"context"
	"strings"
	"time"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/uow"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
)

const (
	createBookingKey  = "bookings.create"
	requestBookingKey = "bookings.request"
)

type CreateBookingCommand struct {
	OrgID           string    `validate:"required"`
	PropertyID      string    `validate:"required"`
	GuestName       string    `validate:"required,max=200"`
	GuestEmail      string    `validate:"omitempty,email"`
	GuestPhone      string    `validate:"omitempty,max=40"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int       `validate:"gte=0,lte=50"`
	Source          string
	Status          string
	Notes           string `validate:"max=2000"`
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string            { return createBookingKey }
func (c CreateBookingCommand) TenantID() string       { return c.OrgID }
func (c CreateBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c CreateBookingCommand) ResultPrototype() any   { return &dto.Booking{} }
func (c CreateBookingCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PropertyID: c.PropertyID}
}

// RequestBookingCommand comes from the public website form. It carries no
// organisation and always produces a PENDING booking.
type RequestBookingCommand struct {
	PropertyID      string    `validate:"required"`
	GuestName       string    `validate:"required,max=200"`
	GuestEmail      string    `validate:"required,email"`
	GuestPhone      string    `validate:"omitempty,max=40"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int       `validate:"gte=0,lte=50"`
	Notes           string    `validate:"max=2000"`
	IdempotencyKeyV string
}

func (c RequestBookingCommand) Key() string            { return requestBookingKey }
func (c RequestBookingCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c RequestBookingCommand) ResultPrototype() any   { return &dto.Booking{} }
func (c RequestBookingCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PropertyID: c.PropertyID}
}

type newBookingInput struct {
	Guest    domainbooking.Guest
	Guests   int
	CheckIn  time.Time
	CheckOut time.Time
	Status   domainbooking.Status
	Source   domainbooking.Source
	Notes    string
}

type CreateBookingHandler struct {
	Deps
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	property, err := support.LoadProperty(ctx, unit, cmd.OrgID, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	source, err := domainbooking.ParseSource(cmd.Source)
	if err != nil {
		return nil, err
	}
	status := domainbooking.StatusConfirmed
	if strings.TrimSpace(cmd.Status) != "" {
		if status, err = domainbooking.ParseStatus(cmd.Status); err != nil {
			return nil, err
		}
	}
	b, err := h.create(ctx, unit, property, newBookingInput{
		Guest:    domainbooking.Guest{Name: cmd.GuestName, Email: cmd.GuestEmail, Phone: cmd.GuestPhone},
		Guests:   cmd.Guests,
		CheckIn:  cmd.CheckIn,
		CheckOut: cmd.CheckOut,
		Status:   status,
		Source:   source,
		Notes:    cmd.Notes,
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("booking created", "booking_id", b.ID, "property_id", b.PropertyID, "reference", b.Reference, "status", b.Status)
	out := dto.MapBooking(b)
	return &out, nil
}

type RequestBookingHandler struct {
	Deps
}

func (h *RequestBookingHandler) Handle(ctx context.Context, cmd RequestBookingCommand) (*dto.Booking, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	property, err := support.LoadProperty(ctx, unit, "", cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	create := CreateBookingHandler{Deps: h.Deps}
	b, err := create.create(ctx, unit, property, newBookingInput{
		Guest:    domainbooking.Guest{Name: cmd.GuestName, Email: cmd.GuestEmail, Phone: cmd.GuestPhone},
		Guests:   cmd.Guests,
		CheckIn:  cmd.CheckIn,
		CheckOut: cmd.CheckOut,
		Status:   domainbooking.StatusPending,
		Source:   domainbooking.SourceWebsite,
		Notes:    cmd.Notes,
	})
	if err != nil {
		return nil, err
	}
	h.logger().Info("website booking requested", "booking_id", b.ID, "property_id", b.PropertyID, "reference", b.Reference)
	out := dto.MapBooking(b)
	return &out, nil
}

func (h *CreateBookingHandler) create(ctx context.Context, unit uow.UnitOfWork, property *properties.Property, in newBookingInput) (*domainbooking.Booking, error) {
	if !property.AcceptsBookings() {
		return nil, apperr.Invalid("property_id", "property %s does not accept bookings while %s", property.ID, property.Status)
	}
	dr, err := daterange.New(in.CheckIn, in.CheckOut)
	if err != nil {
		return nil, domainbooking.ErrInvalidRange
	}
	if err := unit.Properties().Lock(ctx, property.ID); err != nil {
		return nil, err
	}
	if err := ensureAvailable(ctx, unit, property.ID, dr, ""); err != nil {
		return nil, err
	}
	quote, err := h.pricing().Quote(ctx, property, dr)
	if err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(h.newID()),
		OrgID:      property.OrgID,
		PropertyID: property.ID,
		Guest:      in.Guest,
		Guests:     in.Guests,
		Range:      dr,
		BaseRate:   quote.BaseRate,
		Total:      quote.Total,
		Status:     in.Status,
		Source:     in.Source,
		Notes:      in.Notes,
		CreatedAt:  h.Clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}
	return b, nil
}

var (
	_ commands.Handler[CreateBookingCommand, *dto.Booking]  = (*CreateBookingHandler)(nil)
	_ commands.Handler[RequestBookingCommand, *dto.Booking] = (*RequestBookingHandler)(nil)
	_ middleware.IdempotentCommand                          = CreateBookingCommand{}
	_ middleware.PropertyScoped                             = RequestBookingCommand{}
)
