package payments

import (
	"time"

	"rentdesk/internal/domain/shared/money"
)

type PaymentReceived struct {
	PaymentID PaymentID
	BookingID string
	Amount    money.Money
	Status    Status
	At        time.Time
}

func (e PaymentReceived) EventName() string     { return "payment.received" }
func (e PaymentReceived) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentReceived) OccurredAt() time.Time { return e.At }

type PaymentUpdated struct {
	PaymentID PaymentID
	BookingID string
	Amount    money.Money
	Status    Status
	At        time.Time
}

func (e PaymentUpdated) EventName() string     { return "payment.updated" }
func (e PaymentUpdated) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentUpdated) OccurredAt() time.Time { return e.At }

type PaymentDeleted struct {
	PaymentID PaymentID
	BookingID string
	Amount    money.Money
	At        time.Time
}

func (e PaymentDeleted) EventName() string     { return "payment.deleted" }
func (e PaymentDeleted) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentDeleted) OccurredAt() time.Time { return e.At }
