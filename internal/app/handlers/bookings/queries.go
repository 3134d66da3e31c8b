package bookings

import (
	"context"
	"sort"
	"strings"
	"time"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
)

const (
	getBookingKey        = "bookings.get"
	listBookingsKey      = "bookings.list"
	checkAvailabilityKey = "properties.availability"
	quotePriceKey        = "properties.quote"
	propertyCalendarKey  = "properties.calendar"
)

type GetBookingQuery struct {
	OrgID     string `validate:"required"`
	BookingID string `validate:"required"`
}

func (q GetBookingQuery) Key() string      { return getBookingKey }
func (q GetBookingQuery) TenantID() string { return q.OrgID }

type GetBookingHandler struct{ Deps }

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, _, err := support.LoadBooking(execCtx, unit, q.OrgID, q.BookingID)
	if err != nil {
		return nil, err
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// ListBookingsQuery lists the organisation's bookings, optionally for one property
// and restricted to a status or source.
type ListBookingsQuery struct {
	OrgID      string `validate:"required"`
	PropertyID string
	Status     string
	Source     string
}

func (q ListBookingsQuery) Key() string      { return listBookingsKey }
func (q ListBookingsQuery) TenantID() string { return q.OrgID }

type ListBookingsHandler struct{ Deps }

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	filter := domainbooking.ListFilter{}
	if raw := strings.TrimSpace(q.Status); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := domainbooking.ParseStatus(part)
			if err != nil {
				return dto.BookingCollection{}, err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if strings.TrimSpace(q.Source) != "" {
		source, err := domainbooking.ParseSource(q.Source)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		filter.Source = source
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	var list []*domainbooking.Booking
	if q.PropertyID != "" {
		p, err := support.LoadProperty(execCtx, unit, q.OrgID, q.PropertyID)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		list, err = unit.Bookings().ListByProperty(execCtx, p.ID, filter)
		if err != nil {
			return dto.BookingCollection{}, err
		}
	} else {
		list, err = unit.Bookings().ListByOrg(execCtx, q.OrgID, filter)
		if err != nil {
			return dto.BookingCollection{}, err
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Range.CheckIn.Before(list[j].Range.CheckIn)
	})
	h.logger().Debug("bookings listed", "org_id", q.OrgID, "property_id", q.PropertyID, "count", len(list))
	return dto.MapBookings(list), nil
}

type CheckAvailabilityQuery struct {
	OrgID            string    `validate:"required"`
	PropertyID       string    `validate:"required"`
	CheckIn          time.Time `validate:"required"`
	CheckOut         time.Time `validate:"required"`
	ExcludeBookingID string
}

func (q CheckAvailabilityQuery) Key() string      { return checkAvailabilityKey }
func (q CheckAvailabilityQuery) TenantID() string { return q.OrgID }

type CheckAvailabilityHandler struct{ Deps }

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, domainbooking.ErrInvalidRange
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	p, err := support.LoadProperty(execCtx, unit, q.OrgID, q.PropertyID)
	if err != nil {
		return dto.Availability{}, err
	}
	existing, err := unit.Bookings().ListByProperty(execCtx, p.ID, blockingFilter)
	if err != nil {
		return dto.Availability{}, err
	}
	res := availability.Check(existing, dr, domainbooking.BookingID(q.ExcludeBookingID))
	return dto.MapAvailability(string(p.ID), dr.CheckIn.Format(time.DateOnly), dr.CheckOut.Format(time.DateOnly), res), nil
}

type QuotePriceQuery struct {
	OrgID      string    `validate:"required"`
	PropertyID string    `validate:"required"`
	CheckIn    time.Time `validate:"required"`
	CheckOut   time.Time `validate:"required"`
}

func (q QuotePriceQuery) Key() string      { return quotePriceKey }
func (q QuotePriceQuery) TenantID() string { return q.OrgID }

type QuotePriceHandler struct{ Deps }

func (h *QuotePriceHandler) Handle(ctx context.Context, q QuotePriceQuery) (dto.Quote, error) {
	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Quote{}, domainbooking.ErrInvalidRange
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	p, err := support.LoadProperty(execCtx, unit, q.OrgID, q.PropertyID)
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := h.pricing().Quote(execCtx, p, dr)
	if err != nil {
		return dto.Quote{}, err
	}
	return dto.MapQuote(string(p.ID), quote), nil
}

// PropertyCalendarQuery returns blocked ranges in [From, To).
type PropertyCalendarQuery struct {
	OrgID      string `validate:"required"`
	PropertyID string `validate:"required"`
	From       time.Time
	To         time.Time
}

func (q PropertyCalendarQuery) Key() string      { return propertyCalendarKey }
func (q PropertyCalendarQuery) TenantID() string { return q.OrgID }

type PropertyCalendarHandler struct{ Deps }

const defaultCalendarWindow = 365 * 24 * time.Hour

func (h *PropertyCalendarHandler) Handle(ctx context.Context, q PropertyCalendarQuery) (dto.Calendar, error) {
	from := q.From
	if from.IsZero() {
		from = h.Clock.Now().Truncate(24 * time.Hour)
	}
	to := q.To
	if to.IsZero() {
		to = from.Add(defaultCalendarWindow)
	}
	window, err := daterange.New(from, to)
	if err != nil {
		return dto.Calendar{}, apperr.Invalid("to", "must be after from")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	p, err := support.LoadProperty(execCtx, unit, q.OrgID, q.PropertyID)
	if err != nil {
		return dto.Calendar{}, err
	}
	existing, err := unit.Bookings().ListByProperty(execCtx, p.ID, blockingFilter)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(string(p.ID), availability.Blocks(existing, window)), nil
}

var (
	_ queries.Handler[GetBookingQuery, *dto.Booking]            = (*GetBookingHandler)(nil)
	_ queries.Handler[ListBookingsQuery, dto.BookingCollection] = (*ListBookingsHandler)(nil)
	_ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
	_ queries.Handler[QuotePriceQuery, dto.Quote]               = (*QuotePriceHandler)(nil)
	_ queries.Handler[PropertyCalendarQuery, dto.Calendar]      = (*PropertyCalendarHandler)(nil)
)
