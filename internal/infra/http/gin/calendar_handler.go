package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	bookingapp "rentdesk/internal/app/handlers/bookings"
	calendarapp "rentdesk/internal/app/handlers/calendars"
	propertyapp "rentdesk/internal/app/handlers/properties"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/services/calendarsync"
)

type CalendarHandler struct {
	Queries queries.Bus
	Sync    *calendarsync.Service
}

// SyncProperty imports one feed given in the body, or every feed registered on
// the property when the body names none.
func (h CalendarHandler) SyncProperty(c *gin.Context) {
	org, propertyID := orgID(c), c.Param("id")
	if org == "" {
		writeError(c, errMissingOrg)
		return
	}
	var req feedRequest
	if !bindOptional(c, &req) {
		return
	}
	ctx := c.Request.Context()
	feeds := []dto.CalendarFeed{{URL: req.URL, Source: req.Source}}
	if req.URL == "" {
		p, err := queries.Ask[propertyapp.GetPropertyQuery, *dto.Property](ctx, h.Queries, propertyapp.GetPropertyQuery{OrgID: org, PropertyID: propertyID})
		if err != nil {
			writeError(c, err)
			return
		}
		feeds = p.CalendarFeeds
	}
	report := dto.SyncReport{Results: []dto.SyncResult{}}
	for _, feed := range feeds {
		res, err := h.Sync.Sync(ctx, calendarsync.Request{OrgID: org, PropertyID: propertyID, URL: feed.URL, Source: feed.Source})
		if err != nil {
			writeError(c, err)
			return
		}
		report.Results = append(report.Results, res)
		if len(res.Errors) > 0 {
			report.Failed++
		}
	}
	c.JSON(http.StatusOK, report)
}

func (h CalendarHandler) SyncAll(c *gin.Context) {
	org := orgID(c)
	if org == "" {
		writeError(c, errMissingOrg)
		return
	}
	report, err := h.Sync.SyncAll(c.Request.Context(), org)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

var _ CalendarHTTP = CalendarHandler{}

// PublicHandler serves the unauthenticated website endpoints.
type PublicHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type bookingRequestBody struct {
	GuestName      string `json:"guest_name"`
	GuestEmail     string `json:"guest_email"`
	GuestPhone     string `json:"guest_phone"`
	NumberOfGuests int    `json:"number_of_guests"`
	CheckInDate    string `json:"check_in_date"`
	CheckOutDate   string `json:"check_out_date"`
	Notes          string `json:"notes"`
}

func (h PublicHandler) RequestBooking(c *gin.Context) {
	var req bookingRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	checkIn, ok := parseDate(c, "check_in_date", req.CheckInDate)
	if !ok {
		return
	}
	checkOut, ok := parseDate(c, "check_out_date", req.CheckOutDate)
	if !ok {
		return
	}
	cmd := bookingapp.RequestBookingCommand{
		PropertyID:      c.Param("id"),
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.NumberOfGuests,
		Notes:           req.Notes,
		IdempotencyKeyV: c.GetHeader(IdempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h PublicHandler) CalendarFeed(c *gin.Context) {
	q := calendarapp.ExportCalendarQuery{PropertyID: c.Param("id")}
	export, err := queries.Ask[calendarapp.ExportCalendarQuery, *dto.CalendarExport](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, export.ContentType, []byte(export.Body))
}

var _ PublicHTTP = PublicHandler{}
