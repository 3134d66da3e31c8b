package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	paymentapp "rentdesk/internal/app/handlers/payments"
	"rentdesk/internal/app/queries"
)

type PaymentHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type recordPaymentRequest struct {
	Amount    string     `json:"amount"`
	Method    string     `json:"payment_method"`
	Status    string     `json:"status"`
	PaidAt    *time.Time `json:"paid_at"`
	Reference string     `json:"reference"`
}

func (h PaymentHandler) List(c *gin.Context) {
	q := paymentapp.ListPaymentsQuery{OrgID: orgID(c), BookingID: c.Param("id")}
	result, err := queries.Ask[paymentapp.ListPaymentsQuery, dto.PaymentCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) Record(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	cmd := paymentapp.RecordPaymentCommand{
		OrgID:           orgID(c),
		BookingID:       c.Param("id"),
		Amount:          req.Amount,
		Method:          req.Method,
		Status:          req.Status,
		Reference:       req.Reference,
		IdempotencyKeyV: c.GetHeader(IdempotencyHeader),
	}
	if req.PaidAt != nil {
		cmd.PaidAt = *req.PaidAt
	}
	result, err := commands.Dispatch[paymentapp.RecordPaymentCommand, *dto.PaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h PaymentHandler) Reconcile(c *gin.Context) {
	cmd := paymentapp.ReconcileBookingCommand{OrgID: orgID(c), BookingID: c.Param("id")}
	result, err := commands.Dispatch[paymentapp.ReconcileBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updatePaymentRequest struct {
	Amount *string    `json:"amount"`
	Status *string    `json:"status"`
	Method *string    `json:"payment_method"`
	PaidAt *time.Time `json:"paid_at"`
}

func (h PaymentHandler) Update(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	cmd := paymentapp.UpdatePaymentCommand{
		OrgID:     orgID(c),
		PaymentID: c.Param("id"),
		Amount:    req.Amount,
		Status:    req.Status,
		Method:    req.Method,
		PaidAt:    req.PaidAt,
	}
	result, err := commands.Dispatch[paymentapp.UpdatePaymentCommand, *dto.PaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PaymentHandler) Delete(c *gin.Context) {
	cmd := paymentapp.DeletePaymentCommand{OrgID: orgID(c), PaymentID: c.Param("id")}
	result, err := commands.Dispatch[paymentapp.DeletePaymentCommand, *dto.PaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PaymentHTTP = PaymentHandler{}
