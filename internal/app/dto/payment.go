package dto

import (
	"time"

	domainpayments "rentdesk/internal/domain/payments"
)

type Payment struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id,omitempty"`
	Amount    MoneyDTO  `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	PaidAt    time.Time `json:"payment_date"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentResult returns the payment together with the reconciled booking.
type PaymentResult struct {
	Payment Payment  `json:"payment"`
	Booking *Booking `json:"booking,omitempty"`
}

type PaymentCollection struct {
	Items []Payment `json:"items"`
}

func MapPayment(p *domainpayments.Payment) Payment {
	return Payment{
		ID:        string(p.ID),
		BookingID: p.BookingID,
		Amount:    MapMoney(p.Amount),
		Method:    p.Method,
		Status:    string(p.Status),
		PaidAt:    p.PaidAt,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
	}
}

func MapPayments(list []*domainpayments.Payment) PaymentCollection {
	items := make([]Payment, 0, len(list))
	for _, p := range list {
		items = append(items, MapPayment(p))
	}
	return PaymentCollection{Items: items}
}
