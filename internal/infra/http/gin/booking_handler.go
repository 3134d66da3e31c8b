package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	bookingapp "rentdesk/internal/app/handlers/bookings"
	"rentdesk/internal/app/queries"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	PropertyID     string `json:"property_id"`
	GuestName      string `json:"guest_name"`
	GuestEmail     string `json:"guest_email"`
	GuestPhone     string `json:"guest_phone"`
	NumberOfGuests int    `json:"number_of_guests"`
	CheckInDate    string `json:"check_in_date"`
	CheckOutDate   string `json:"check_out_date"`
	Source         string `json:"booking_source"`
	Status         string `json:"status"`
	Notes          string `json:"notes"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
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
	cmd := bookingapp.CreateBookingCommand{
		OrgID:           orgID(c),
		PropertyID:      req.PropertyID,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.NumberOfGuests,
		Source:          req.Source,
		Status:          req.Status,
		Notes:           req.Notes,
		IdempotencyKeyV: c.GetHeader(IdempotencyHeader),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) List(c *gin.Context) {
	q := bookingapp.ListBookingsQuery{
		OrgID:      orgID(c),
		PropertyID: c.Query("property_id"),
		Status:     c.Query("status"),
		Source:     c.Query("source"),
	}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	q := bookingapp.GetBookingQuery{OrgID: orgID(c), BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type changeDatesRequest struct {
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
}

func (h BookingHandler) ChangeDates(c *gin.Context) {
	var req changeDatesRequest
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
	dispatchBooking(c, h.Commands, bookingapp.NewRescheduleBookingCommand(orgID(c), c.Param("id"), checkIn, checkOut))
}

func (h BookingHandler) Confirm(c *gin.Context) {
	dispatchBooking(c, h.Commands, bookingapp.NewConfirmBookingCommand(orgID(c), c.Param("id")))
}

type notesRequest struct {
	Notes             string `json:"notes"`
	DamageReport      string `json:"damage_report"`
	AdditionalCharges string `json:"additional_charges"`
	Reason            string `json:"reason"`
}

// bindOptional accepts an empty body.
func bindOptional(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		badRequest(c, "body", err)
		return false
	}
	return true
}

func (h BookingHandler) CheckIn(c *gin.Context) {
	var req notesRequest
	if !bindOptional(c, &req) {
		return
	}
	dispatchBooking(c, h.Commands, bookingapp.NewCheckInCommand(orgID(c), c.Param("id"), req.Notes))
}

func (h BookingHandler) CheckOut(c *gin.Context) {
	var req notesRequest
	if !bindOptional(c, &req) {
		return
	}
	dispatchBooking(c, h.Commands, bookingapp.NewCheckOutCommand(orgID(c), c.Param("id"), req.Notes, req.DamageReport, req.AdditionalCharges))
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req notesRequest
	if !bindOptional(c, &req) {
		return
	}
	dispatchBooking(c, h.Commands, bookingapp.NewCancelBookingCommand(orgID(c), c.Param("id"), req.Reason))
}

func (h BookingHandler) NoShow(c *gin.Context) {
	dispatchBooking(c, h.Commands, bookingapp.NewMarkNoShowCommand(orgID(c), c.Param("id")))
}

func (h BookingHandler) Complete(c *gin.Context) {
	dispatchBooking(c, h.Commands, bookingapp.NewCompleteBookingCommand(orgID(c), c.Param("id")))
}

func dispatchBooking[C commands.Command](c *gin.Context, bus commands.Bus, cmd C) {
	result, err := commands.Dispatch[C, *dto.Booking](c.Request.Context(), bus, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
