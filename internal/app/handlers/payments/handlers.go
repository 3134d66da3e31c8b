package payments

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	domainbooking "rentdesk/internal/domain/booking"
	domainpayments "rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/money"
)

const (
	recordPaymentKey    = "payments.record"
	updatePaymentKey    = "payments.update"
	deletePaymentKey    = "payments.delete"
	reconcileBookingKey = "bookings.reconcile"
	listPaymentsKey     = "payments.list"
)

type Deps struct {
	UoWFactory uow.UoWFactory
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

type RecordPaymentCommand struct {
	OrgID     string `validate:"required"`
	BookingID string `validate:"required"`
	// Amount is a decimal string in the booking currency.
	Amount          string `validate:"required"`
	Method          string `validate:"max=40"`
	Status          string
	PaidAt          time.Time
	Reference       string `validate:"max=200"`
	IdempotencyKeyV string
}

func (c RecordPaymentCommand) Key() string            { return recordPaymentKey }
func (c RecordPaymentCommand) TenantID() string       { return c.OrgID }
func (c RecordPaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c RecordPaymentCommand) ResultPrototype() any   { return &dto.PaymentResult{} }
func (c RecordPaymentCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{BookingID: c.BookingID}
}

type RecordPaymentHandler struct{ Deps }

// Handle stores a payment after checking it cannot overpay the booking, then
// reconciles the booking balance from the payment rows.
func (h *RecordPaymentHandler) Handle(ctx context.Context, cmd RecordPaymentCommand) (*dto.PaymentResult, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := support.LoadBooking(ctx, unit, cmd.OrgID, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(cmd.Amount, b.TotalAmount.Currency)
	if err != nil {
		return nil, apperr.Invalid("amount", "%v", err)
	}
	status, err := domainpayments.ParseStatus(cmd.Status)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	if h.NewID != nil {
		id = h.NewID()
	}
	now := h.Clock.Now()
	payment, err := domainpayments.NewPayment(domainpayments.CreateParams{
		ID:        domainpayments.PaymentID(id),
		OrgID:     b.OrgID,
		BookingID: string(b.ID),
		Amount:    amount,
		Method:    cmd.Method,
		Status:    status,
		PaidAt:    cmd.PaidAt,
		Reference: strings.TrimSpace(cmd.Reference),
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	existing, err := unit.Payments().ListByBooking(ctx, string(b.ID))
	if err != nil {
		return nil, err
	}
	if err := domainpayments.ValidateAmount(payment, existing, b.TotalAmount); err != nil {
		return nil, err
	}
	if err := unit.Payments().Save(ctx, payment); err != nil {
		return nil, err
	}
	if _, err := support.Reconcile(ctx, unit, b, now); err != nil {
		return nil, err
	}
	if err := support.Record(ctx, unit, h.Encoder, payment, b); err != nil {
		return nil, err
	}
	h.logger().Info("payment recorded", "payment_id", payment.ID, "booking_id", b.ID, "amount", payment.Amount.String(), "payment_status", b.PaymentStatus())
	bookingOut := dto.MapBooking(b)
	return &dto.PaymentResult{Payment: dto.MapPayment(payment), Booking: &bookingOut}, nil
}

// UpdatePaymentCommand changes only the fields that are set.
type UpdatePaymentCommand struct {
	OrgID     string `validate:"required"`
	PaymentID string `validate:"required"`
	Amount    *string
	Status    *string
	Method    *string
	PaidAt    *time.Time
}

func (c UpdatePaymentCommand) Key() string      { return updatePaymentKey }
func (c UpdatePaymentCommand) TenantID() string { return c.OrgID }
func (c UpdatePaymentCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PaymentID: c.PaymentID}
}

type UpdatePaymentHandler struct{ Deps }

func (h *UpdatePaymentHandler) Handle(ctx context.Context, cmd UpdatePaymentCommand) (*dto.PaymentResult, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := support.LoadPayment(ctx, unit, cmd.OrgID, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	changes := domainpayments.Changes{Method: cmd.Method, PaidAt: cmd.PaidAt}
	if cmd.Amount != nil {
		amount, err := money.Parse(*cmd.Amount, payment.Amount.Currency)
		if err != nil {
			return nil, apperr.Invalid("amount", "%v", err)
		}
		changes.Amount = &amount
	}
	if cmd.Status != nil {
		status, err := domainpayments.ParseStatus(*cmd.Status)
		if err != nil {
			return nil, err
		}
		changes.Status = &status
	}
	now := h.Clock.Now()
	balanceChanged, err := payment.Apply(changes, now)
	if err != nil {
		return nil, err
	}
	var b *domainbooking.Booking
	if payment.BookingID != "" {
		if b, _, err = support.LoadBooking(ctx, unit, cmd.OrgID, payment.BookingID); err != nil {
			return nil, err
		}
		if balanceChanged {
			existing, err := unit.Payments().ListByBooking(ctx, payment.BookingID)
			if err != nil {
				return nil, err
			}
			if err := domainpayments.ValidateAmount(payment, existing, b.TotalAmount); err != nil {
				return nil, err
			}
		}
	}
	if err := unit.Payments().Save(ctx, payment); err != nil {
		return nil, err
	}
	result := &dto.PaymentResult{Payment: dto.MapPayment(payment)}
	if b != nil {
		if balanceChanged {
			if _, err := support.Reconcile(ctx, unit, b, now); err != nil {
				return nil, err
			}
		}
		if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
			return nil, err
		}
		out := dto.MapBooking(b)
		result.Booking = &out
	}
	if err := support.Record(ctx, unit, h.Encoder, payment); err != nil {
		return nil, err
	}
	h.logger().Info("payment updated", "payment_id", payment.ID, "booking_id", payment.BookingID, "balance_changed", balanceChanged)
	return result, nil
}

type DeletePaymentCommand struct {
	OrgID     string `validate:"required"`
	PaymentID string `validate:"required"`
}

func (c DeletePaymentCommand) Key() string      { return deletePaymentKey }
func (c DeletePaymentCommand) TenantID() string { return c.OrgID }
func (c DeletePaymentCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PaymentID: c.PaymentID}
}

type DeletePaymentHandler struct{ Deps }

func (h *DeletePaymentHandler) Handle(ctx context.Context, cmd DeletePaymentCommand) (*dto.PaymentResult, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := support.LoadPayment(ctx, unit, cmd.OrgID, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := unit.Payments().Delete(ctx, payment.ID); err != nil {
		return nil, err
	}
	now := h.Clock.Now()
	payment.MarkDeleted(now)
	result := &dto.PaymentResult{Payment: dto.MapPayment(payment)}
	if payment.BookingID != "" {
		b, _, err := support.LoadBooking(ctx, unit, cmd.OrgID, payment.BookingID)
		if err != nil {
			return nil, err
		}
		if _, err := support.Reconcile(ctx, unit, b, now); err != nil {
			return nil, err
		}
		if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
			return nil, err
		}
		out := dto.MapBooking(b)
		result.Booking = &out
	}
	if err := support.Record(ctx, unit, h.Encoder, payment); err != nil {
		return nil, err
	}
	h.logger().Info("payment deleted", "payment_id", payment.ID, "booking_id", payment.BookingID)
	return result, nil
}

// ReconcileBookingCommand recomputes the booking balance on demand.
type ReconcileBookingCommand struct {
	OrgID     string `validate:"required"`
	BookingID string `validate:"required"`
}

func (c ReconcileBookingCommand) Key() string      { return reconcileBookingKey }
func (c ReconcileBookingCommand) TenantID() string { return c.OrgID }
func (c ReconcileBookingCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{BookingID: c.BookingID}
}

type ReconcileBookingHandler struct{ Deps }

func (h *ReconcileBookingHandler) Handle(ctx context.Context, cmd ReconcileBookingCommand) (*dto.Booking, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := support.LoadBooking(ctx, unit, cmd.OrgID, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	changed, err := support.Reconcile(ctx, unit, b, h.Clock.Now())
	if err != nil {
		return nil, err
	}
	if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}
	if changed {
		h.logger().Info("payments reconciled", "booking_id", b.ID, "amount_paid", b.AmountPaid.String(), "amount_due", b.AmountDue().String())
	}
	out := dto.MapBooking(b)
	return &out, nil
}

type ListPaymentsQuery struct {
	OrgID     string `validate:"required"`
	BookingID string `validate:"required"`
}

func (q ListPaymentsQuery) Key() string      { return listPaymentsKey }
func (q ListPaymentsQuery) TenantID() string { return q.OrgID }

type ListPaymentsHandler struct{ Deps }

func (h *ListPaymentsHandler) Handle(ctx context.Context, q ListPaymentsQuery) (dto.PaymentCollection, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PaymentCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, _, err := support.LoadBooking(execCtx, unit, q.OrgID, q.BookingID)
	if err != nil {
		return dto.PaymentCollection{}, err
	}
	list, err := unit.Payments().ListByBooking(execCtx, string(b.ID))
	if err != nil {
		return dto.PaymentCollection{}, err
	}
	return dto.MapPayments(list), nil
}

var (
	_ commands.Handler[RecordPaymentCommand, *dto.PaymentResult] = (*RecordPaymentHandler)(nil)
	_ commands.Handler[UpdatePaymentCommand, *dto.PaymentResult] = (*UpdatePaymentHandler)(nil)
	_ commands.Handler[DeletePaymentCommand, *dto.PaymentResult] = (*DeletePaymentHandler)(nil)
	_ commands.Handler[ReconcileBookingCommand, *dto.Booking]    = (*ReconcileBookingHandler)(nil)
	_ queries.Handler[ListPaymentsQuery, dto.PaymentCollection]  = (*ListPaymentsHandler)(nil)
)
