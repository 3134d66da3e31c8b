package booking

import (
	"time"

	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

type BookingCreated struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	Reference  string
	GuestEmail string
	Range      daterange.DateRange
	Total      money.Money
	Status     Status
	Source     Source
	At         time.Time
}

func (e BookingCreated) EventName() string     { return "booking.created" }
func (e BookingCreated) AggregateID() string   { return string(e.BookingID) }
func (e BookingCreated) OccurredAt() time.Time { return e.At }

type BookingImported struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	ExternalID string
	Source     Source
	Range      daterange.DateRange
	At         time.Time
}

func (e BookingImported) EventName() string     { return "booking.imported" }
func (e BookingImported) AggregateID() string   { return string(e.BookingID) }
func (e BookingImported) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	Range      daterange.DateRange
	At         time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingRescheduled struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	Previous   daterange.DateRange
	Range      daterange.DateRange
	Total      money.Money
	At         time.Time
}

func (e BookingRescheduled) EventName() string     { return "booking.rescheduled" }
func (e BookingRescheduled) AggregateID() string   { return string(e.BookingID) }
func (e BookingRescheduled) OccurredAt() time.Time { return e.At }

type GuestCheckedIn struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	At         time.Time
}

func (e GuestCheckedIn) EventName() string     { return "booking.checked_in" }
func (e GuestCheckedIn) AggregateID() string   { return string(e.BookingID) }
func (e GuestCheckedIn) OccurredAt() time.Time { return e.At }

type GuestCheckedOut struct {
	BookingID         BookingID
	PropertyID        properties.PropertyID
	AdditionalCharges money.Money
	AmountDue         money.Money
	At                time.Time
}

func (e GuestCheckedOut) EventName() string     { return "booking.checked_out" }
func (e GuestCheckedOut) AggregateID() string   { return string(e.BookingID) }
func (e GuestCheckedOut) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID
	At        time.Time
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	Reason     string
	Range      daterange.DateRange
	At         time.Time
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type NoShowRecorded struct {
	BookingID BookingID
	At        time.Time
}

func (e NoShowRecorded) EventName() string     { return "booking.no_show" }
func (e NoShowRecorded) AggregateID() string   { return string(e.BookingID) }
func (e NoShowRecorded) OccurredAt() time.Time { return e.At }

type BookingFeedUpdated struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	ExternalID string
	Range      daterange.DateRange
	At         time.Time
}

func (e BookingFeedUpdated) EventName() string     { return "booking.feed_updated" }
func (e BookingFeedUpdated) AggregateID() string   { return string(e.BookingID) }
func (e BookingFeedUpdated) OccurredAt() time.Time { return e.At }

type PaymentsReconciled struct {
	BookingID     BookingID
	AmountPaid    money.Money
	AmountDue     money.Money
	PaymentStatus PaymentStatus
	At            time.Time
}

func (e PaymentsReconciled) EventName() string     { return "booking.payments_reconciled" }
func (e PaymentsReconciled) AggregateID() string   { return string(e.BookingID) }
func (e PaymentsReconciled) OccurredAt() time.Time { return e.At }

type BookingReinstated struct {
	BookingID  BookingID
	PropertyID properties.PropertyID
	ExternalID string
	Range      daterange.DateRange
	At         time.Time
}

func (e BookingReinstated) EventName() string     { return "booking.reinstated" }
func (e BookingReinstated) AggregateID() string   { return string(e.BookingID) }
func (e BookingReinstated) OccurredAt() time.Time { return e.At }
