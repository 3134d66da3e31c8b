package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
)

var ErrPaymentNotFound = fmt.Errorf("payment: %w", apperr.ErrNotFound)

type PaymentID string

type Status string

const (
	StatusPending       Status = "PENDING"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusRefunded      Status = "REFUNDED"
	StatusFailed        Status = "FAILED"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case "":
		return StatusPaid, nil
	case StatusPending, StatusPartiallyPaid, StatusPaid, StatusRefunded, StatusFailed:
		return s, nil
	}
	return "", apperr.Invalid("status", "unknown payment status %q", raw)
}

// Counts reports whether payments in this status are or may become money received.
// Refunded and failed payments never count toward the booking balance.
func (s Status) Counts() bool {
	return s == StatusPending || s == StatusPartiallyPaid || s == StatusPaid
}

type Payment struct {
	ID        PaymentID
	OrgID     string
	BookingID string
	Amount    money.Money
	Method    string
	Status    Status
	PaidAt    time.Time
	Reference string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PaymentID) (*Payment, error)
	ListByBooking(ctx context.Context, bookingID string) ([]*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id PaymentID) error
}

type CreateParams struct {
	ID        PaymentID
	OrgID     string
	BookingID string
	Amount    money.Money
	Method    string
	Status    Status
	PaidAt    time.Time
	Reference string
	Now       time.Time
}

func NewPayment(params CreateParams) (*Payment, error) {
	if !params.Amount.IsPositive() {
		return nil, apperr.Invalid("amount", "must be positive")
	}
	status := params.Status
	if status == "" {
		status = StatusPaid
	}
	now := params.Now.UTC()
	paidAt := params.PaidAt.UTC()
	if params.PaidAt.IsZero() {
		paidAt = now
	}
	method := strings.ToUpper(strings.TrimSpace(params.Method))
	if method == "" {
		method = "OTHER"
	}
	p := &Payment{
		ID:        params.ID,
		OrgID:     params.OrgID,
		BookingID: params.BookingID,
		Amount:    params.Amount,
		Method:    method,
		Status:    status,
		PaidAt:    paidAt,
		Reference: params.Reference,
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.Record(PaymentReceived{PaymentID: p.ID, BookingID: p.BookingID, Amount: p.Amount, Status: p.Status, At: now})
	return p, nil
}

type Changes struct {
	Amount *money.Money
	Status *Status
	PaidAt *time.Time
	Method *string
}

// Apply mutates the payment and reports whether amount or status changed,
// which is when the booking balance must be reconciled again.
func (p *Payment) Apply(ch Changes, now time.Time) (bool, error) {
	balanceChanged := false
	if ch.Amount != nil {
		if !ch.Amount.IsPositive() {
			return false, apperr.Invalid("amount", "must be positive")
		}
		if ch.Amount.Currency != p.Amount.Currency {
			return false, apperr.Invalid("amount", "currency %s does not match %s", ch.Amount.Currency, p.Amount.Currency)
		}
		if ch.Amount.Amount != p.Amount.Amount {
			p.Amount = *ch.Amount
			balanceChanged = true
		}
	}
	if ch.Status != nil && *ch.Status != p.Status {
		p.Status = *ch.Status
		balanceChanged = true
	}
	if ch.PaidAt != nil {
		p.PaidAt = ch.PaidAt.UTC()
	}
	if ch.Method != nil && strings.TrimSpace(*ch.Method) != "" {
		p.Method = strings.ToUpper(strings.TrimSpace(*ch.Method))
	}
	p.UpdatedAt = now.UTC()
	p.Record(PaymentUpdated{PaymentID: p.ID, BookingID: p.BookingID, Amount: p.Amount, Status: p.Status, At: p.UpdatedAt})
	return balanceChanged, nil
}

// MarkDeleted records the deletion event; the repository removes the row.
func (p *Payment) MarkDeleted(now time.Time) {
	p.Record(PaymentDeleted{PaymentID: p.ID, BookingID: p.BookingID, Amount: p.Amount, At: now.UTC()})
}

// TotalPaid sums PAID payments, skipping the payment with id skip.
func TotalPaid(list []*Payment, currency string, skip PaymentID) money.Money {
	total := money.Zero(currency)
	for _, p := range list {
		if p == nil || p.Status != StatusPaid {
			continue
		}
		if skip != "" && p.ID == skip {
			continue
		}
		total.Amount += p.Amount.Amount
	}
	return total
}

// OverpaymentError is returned when a payment would push the total paid past the booking total.
type OverpaymentError struct {
	Amount    money.Money
	AmountDue money.Money
	TotalPaid money.Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds amount due %s (already paid %s)", e.Amount, e.AmountDue, e.TotalPaid)
}

func (e *OverpaymentError) Unwrap() error { return apperr.ErrValidation }

// ValidateAmount checks that candidate would not cause the booking to be overpaid.
// Other PAID payments are summed from existing, so the candidate's own prior row is ignored.
func ValidateAmount(candidate *Payment, existing []*Payment, bookingTotal money.Money) error {
	if !candidate.Status.Counts() {
		return nil
	}
	if candidate.Amount.Currency != bookingTotal.Currency {
		return apperr.Invalid("amount", "currency %s does not match booking currency %s", candidate.Amount.Currency, bookingTotal.Currency)
	}
	paid := TotalPaid(existing, bookingTotal.Currency, candidate.ID)
	if paid.Amount+candidate.Amount.Amount > bookingTotal.Amount {
		return &OverpaymentError{
			Amount:    candidate.Amount,
			AmountDue: money.Money{Amount: bookingTotal.Amount - paid.Amount, Currency: bookingTotal.Currency},
			TotalPaid: paid,
		}
	}
	return nil
}
