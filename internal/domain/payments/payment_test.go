package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/money"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func paid(id string, amount int64) *Payment {
	return &Payment{ID: PaymentID(id), BookingID: "b2", Amount: money.Must(amount, "USD"), Status: StatusPaid}
}

func TestOverpaymentScenario(t *testing.T) {
	total := money.Must(100000, "USD")
	existing := []*Payment{paid("p1", 40000), paid("p2", 30000)}

	assert.Equal(t, int64(70000), TotalPaid(existing, "USD", "").Amount)

	third, err := NewPayment(CreateParams{ID: "p3", BookingID: "b2", Amount: money.Must(40000, "USD"), Now: now})
	require.NoError(t, err)
	err = ValidateAmount(third, existing, total)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	var over *OverpaymentError
	require.ErrorAs(t, err, &over)
	assert.Equal(t, int64(40000), over.Amount.Amount)
	assert.Equal(t, int64(30000), over.AmountDue.Amount)
	assert.Equal(t, int64(70000), over.TotalPaid.Amount)

	exact, err := NewPayment(CreateParams{ID: "p4", BookingID: "b2", Amount: money.Must(30000, "USD"), Now: now})
	require.NoError(t, err)
	assert.NoError(t, ValidateAmount(exact, existing, total))
}

func TestValidateAmountIgnoresOwnPreviousRow(t *testing.T) {
	total := money.Must(100000, "USD")
	existing := []*Payment{paid("p1", 40000), paid("p2", 30000)}

	edited := *existing[0]
	edited.Amount = money.Must(70000, "USD")
	assert.NoError(t, ValidateAmount(&edited, existing, total))

	edited.Amount = money.Must(70001, "USD")
	assert.Error(t, ValidateAmount(&edited, existing, total))
}

func TestValidateAmountSkipsNonCountingStatuses(t *testing.T) {
	total := money.Must(1000, "USD")
	refund := &Payment{ID: "r", Amount: money.Must(999999, "USD"), Status: StatusRefunded}
	assert.NoError(t, ValidateAmount(refund, nil, total))
}

func TestNewPaymentRequiresPositiveAmount(t *testing.T) {
	_, err := NewPayment(CreateParams{Amount: money.Zero("USD"), Now: now})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestApplyReportsBalanceChanges(t *testing.T) {
	p, err := NewPayment(CreateParams{ID: "p1", Amount: money.Must(100, "USD"), Now: now})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	assert.Equal(t, now, p.PaidAt)

	method := "card"
	changed, err := p.Apply(Changes{Method: &method}, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "CARD", p.Method)

	refunded := StatusRefunded
	changed, err = p.Apply(Changes{Status: &refunded}, now)
	require.NoError(t, err)
	assert.True(t, changed)

	other := money.Must(100, "EUR")
	_, err = p.Apply(Changes{Amount: &other}, now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
