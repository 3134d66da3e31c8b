package memory

import (
	"time"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
)

// Stored aggregates are copied on the way in and out so callers never share
// state with the store or with another unit.

func cloneProperty(p *properties.Property) *properties.Property {
	out := *p
	out.EventRecorder = events.EventRecorder{}
	out.MonthlyRent = cloneMoney(p.MonthlyRent)
	out.DailyRate = cloneMoney(p.DailyRate)
	out.CalendarFeeds = append([]properties.CalendarFeed(nil), p.CalendarFeeds...)
	return &out
}

func cloneBooking(b *booking.Booking) *booking.Booking {
	out := *b
	out.EventRecorder = events.EventRecorder{}
	out.CheckedInAt = cloneTime(b.CheckedInAt)
	out.CheckedOutAt = cloneTime(b.CheckedOutAt)
	return &out
}

func clonePayment(p *payments.Payment) *payments.Payment {
	out := *p
	out.EventRecorder = events.EventRecorder{}
	return &out
}

func cloneMoney(m *money.Money) *money.Money {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
