package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/dto"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/apperr"
)

const (
	OrgHeader         = "X-Org-ID"
	IdempotencyHeader = "Idempotency-Key"
)

type errorBody struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Field     string         `json:"field,omitempty"`
	Status    string         `json:"current_status,omitempty"`
	Conflicts []dto.Conflict `json:"conflicts,omitempty"`
}

// writeError maps error categories onto HTTP statuses. Unknown errors are 500.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var (
		validation *apperr.ValidationError
		avail      *domainbooking.AvailabilityError
		state      *domainbooking.StateError
	)
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status, body.Code = http.StatusBadRequest, "validation_failed"
		if errors.As(err, &validation) {
			body.Field = validation.Field
		}
	case errors.Is(err, apperr.ErrForbidden):
		status, body.Code = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		status, body.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrAvailability):
		status, body.Code = http.StatusConflict, "dates_unavailable"
		if errors.As(err, &avail) {
			body.Conflicts = mapConflicts(avail.Conflicts)
		}
	case errors.Is(err, apperr.ErrStateConflict):
		status, body.Code = http.StatusConflict, "state_conflict"
		if errors.As(err, &state) {
			body.Status = string(state.Current)
		}
	default:
		body = errorBody{Error: "internal error", Code: "internal"}
	}
	c.AbortWithStatusJSON(status, body)
}

func mapConflicts(list []*domainbooking.Booking) []dto.Conflict {
	out := make([]dto.Conflict, 0, len(list))
	for _, b := range list {
		if b == nil {
			continue
		}
		out = append(out, dto.Conflict{
			BookingID:    string(b.ID),
			Reference:    b.Reference,
			CheckInDate:  b.Range.CheckIn.Format(time.DateOnly),
			CheckOutDate: b.Range.CheckOut.Format(time.DateOnly),
			Status:       string(b.Status),
		})
	}
	return out
}

func badRequest(c *gin.Context, field string, err error) {
	writeError(c, apperr.Invalid(field, "%v", err))
}

func orgID(c *gin.Context) string {
	return c.GetHeader(OrgHeader)
}

func parseDate(c *gin.Context, field, raw string) (time.Time, bool) {
	if raw == "" {
		writeError(c, apperr.Invalid(field, "required"))
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		writeError(c, apperr.Invalid(field, "expected YYYY-MM-DD, got %q", raw))
		return time.Time{}, false
	}
	return t, true
}

func parseOptionalDate(c *gin.Context, field, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	return parseDate(c, field, raw)
}

var errMissingOrg = apperr.Forbidden("organisation", "")
