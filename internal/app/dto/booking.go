package dto

import (
	"time"

	domainbooking "rentdesk/internal/domain/booking"
)

const dateLayout = time.DateOnly

type Booking struct {
	ID                 string     `json:"id"`
	PropertyID         string     `json:"property_id"`
	Reference          string     `json:"booking_reference"`
	GuestName          string     `json:"guest_name"`
	GuestEmail         string     `json:"guest_email,omitempty"`
	GuestPhone         string     `json:"guest_phone,omitempty"`
	NumberOfGuests     int        `json:"number_of_guests"`
	CheckInDate        string     `json:"check_in_date"`
	CheckOutDate       string     `json:"check_out_date"`
	NumberOfNights     int        `json:"number_of_nights"`
	BaseRate           MoneyDTO   `json:"base_rate"`
	TotalAmount        MoneyDTO   `json:"total_amount"`
	AdditionalCharges  MoneyDTO   `json:"additional_charges"`
	AmountPaid         MoneyDTO   `json:"amount_paid"`
	AmountDue          MoneyDTO   `json:"amount_due"`
	PaymentStatus      string     `json:"payment_status"`
	Status             string     `json:"status"`
	Source             string     `json:"booking_source"`
	ExternalID         string     `json:"external_id,omitempty"`
	FeedURL            string     `json:"feed_url,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CheckedIn          bool       `json:"checked_in"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CheckInNotes       string     `json:"check_in_notes,omitempty"`
	CheckedOut         bool       `json:"checked_out"`
	CheckedOutAt       *time.Time `json:"checked_out_at,omitempty"`
	CheckOutNotes      string     `json:"check_out_notes,omitempty"`
	DamageReport       string     `json:"damage_report,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

// MapBooking renders derived fields (nights, amount due, payment status) at read time.
func MapBooking(b *domainbooking.Booking) Booking {
	return Booking{
		ID:                 string(b.ID),
		PropertyID:         string(b.PropertyID),
		Reference:          b.Reference,
		GuestName:          b.Guest.Name,
		GuestEmail:         b.Guest.Email,
		GuestPhone:         b.Guest.Phone,
		NumberOfGuests:     b.Guests,
		CheckInDate:        b.Range.CheckIn.Format(dateLayout),
		CheckOutDate:       b.Range.CheckOut.Format(dateLayout),
		NumberOfNights:     b.Nights(),
		BaseRate:           MapMoney(b.BaseRate),
		TotalAmount:        MapMoney(b.TotalAmount),
		AdditionalCharges:  MapMoney(b.AdditionalCharges),
		AmountPaid:         MapMoney(b.AmountPaid),
		AmountDue:          MapMoney(b.AmountDue()),
		PaymentStatus:      string(b.PaymentStatus()),
		Status:             string(b.Status),
		Source:             string(b.Source),
		ExternalID:         b.ExternalID,
		FeedURL:            b.FeedURL,
		Notes:              b.Notes,
		CheckedIn:          b.CheckedIn(),
		CheckedInAt:        b.CheckedInAt,
		CheckInNotes:       b.CheckInNotes,
		CheckedOut:         b.CheckedOut(),
		CheckedOutAt:       b.CheckedOutAt,
		CheckOutNotes:      b.CheckOutNotes,
		DamageReport:       b.DamageReport,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func MapBookings(list []*domainbooking.Booking) BookingCollection {
	items := make([]Booking, 0, len(list))
	for _, b := range list {
		items = append(items, MapBooking(b))
	}
	return BookingCollection{Items: items}
}
