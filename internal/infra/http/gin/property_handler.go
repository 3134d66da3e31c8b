package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	bookingapp "rentdesk/internal/app/handlers/bookings"
	propertyapp "rentdesk/internal/app/handlers/properties"
	"rentdesk/internal/app/queries"
)

type PropertyHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type feedRequest struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type registerPropertyRequest struct {
	Name        string        `json:"name"`
	RentalType  string        `json:"rental_type"`
	MonthlyRent string        `json:"monthly_rent"`
	DailyRate   string        `json:"daily_rate"`
	Currency    string        `json:"currency"`
	Feeds       []feedRequest `json:"calendar_feeds"`
}

func (h PropertyHandler) Register(c *gin.Context) {
	var req registerPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	cmd := propertyapp.RegisterPropertyCommand{
		OrgID:           orgID(c),
		Name:            req.Name,
		RentalType:      req.RentalType,
		MonthlyRent:     req.MonthlyRent,
		DailyRate:       req.DailyRate,
		Currency:        req.Currency,
		IdempotencyKeyV: c.GetHeader(IdempotencyHeader),
	}
	for _, f := range req.Feeds {
		cmd.Feeds = append(cmd.Feeds, propertyapp.FeedInput{URL: f.URL, Source: f.Source})
	}
	result, err := commands.Dispatch[propertyapp.RegisterPropertyCommand, *dto.Property](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h PropertyHandler) Get(c *gin.Context) {
	q := propertyapp.GetPropertyQuery{OrgID: orgID(c), PropertyID: c.Param("id")}
	result, err := queries.Ask[propertyapp.GetPropertyQuery, *dto.Property](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PropertyHandler) AddFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err)
		return
	}
	cmd := propertyapp.AddCalendarFeedCommand{OrgID: orgID(c), PropertyID: c.Param("id"), URL: req.URL, Source: req.Source}
	result, err := commands.Dispatch[propertyapp.AddCalendarFeedCommand, *dto.Property](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PropertyHandler) Availability(c *gin.Context) {
	checkIn, ok := parseDate(c, "check_in", c.Query("check_in"))
	if !ok {
		return
	}
	checkOut, ok := parseDate(c, "check_out", c.Query("check_out"))
	if !ok {
		return
	}
	q := bookingapp.CheckAvailabilityQuery{
		OrgID:            orgID(c),
		PropertyID:       c.Param("id"),
		CheckIn:          checkIn,
		CheckOut:         checkOut,
		ExcludeBookingID: c.Query("exclude_booking_id"),
	}
	result, err := queries.Ask[bookingapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PropertyHandler) Quote(c *gin.Context) {
	checkIn, ok := parseDate(c, "check_in", c.Query("check_in"))
	if !ok {
		return
	}
	checkOut, ok := parseDate(c, "check_out", c.Query("check_out"))
	if !ok {
		return
	}
	q := bookingapp.QuotePriceQuery{OrgID: orgID(c), PropertyID: c.Param("id"), CheckIn: checkIn, CheckOut: checkOut}
	result, err := queries.Ask[bookingapp.QuotePriceQuery, dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PropertyHandler) Calendar(c *gin.Context) {
	from, ok := parseOptionalDate(c, "from", c.Query("from"))
	if !ok {
		return
	}
	to, ok := parseOptionalDate(c, "to", c.Query("to"))
	if !ok {
		return
	}
	q := bookingapp.PropertyCalendarQuery{OrgID: orgID(c), PropertyID: c.Param("id"), From: from, To: to}
	result, err := queries.Ask[bookingapp.PropertyCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PropertyHTTP = PropertyHandler{}
