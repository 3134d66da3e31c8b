package dto

import (
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/pricing"
)

type Conflict struct {
	BookingID    string `json:"booking_id"`
	Reference    string `json:"booking_reference"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
	Status       string `json:"status"`
}

type Availability struct {
	PropertyID   string     `json:"property_id"`
	CheckInDate  string     `json:"check_in_date"`
	CheckOutDate string     `json:"check_out_date"`
	Available    bool       `json:"available"`
	Conflicts    []Conflict `json:"conflicts"`
}

func MapAvailability(propertyID, checkIn, checkOut string, res availability.Result) Availability {
	out := Availability{
		PropertyID:   propertyID,
		CheckInDate:  checkIn,
		CheckOutDate: checkOut,
		Available:    res.Available,
		Conflicts:    make([]Conflict, 0, len(res.Conflicts)),
	}
	for _, c := range res.Conflicts {
		out.Conflicts = append(out.Conflicts, Conflict{
			BookingID:    string(c.ID),
			Reference:    c.Reference,
			CheckInDate:  c.Range.CheckIn.Format(dateLayout),
			CheckOutDate: c.Range.CheckOut.Format(dateLayout),
			Status:       string(c.Status),
		})
	}
	return out
}

type Quote struct {
	PropertyID     string   `json:"property_id"`
	NumberOfNights int      `json:"number_of_nights"`
	BaseRate       MoneyDTO `json:"base_rate"`
	TotalAmount    MoneyDTO `json:"total_amount"`
	Basis          string   `json:"basis"`
}

func MapQuote(propertyID string, q pricing.Quote) Quote {
	return Quote{
		PropertyID:     propertyID,
		NumberOfNights: q.Nights,
		BaseRate:       MapMoney(q.BaseRate),
		TotalAmount:    MapMoney(q.Total),
		Basis:          string(q.Basis),
	}
}

type CalendarBlock struct {
	BookingID    string `json:"booking_id"`
	Reference    string `json:"booking_reference"`
	CheckInDate  string `json:"check_in_date"`
	CheckOutDate string `json:"check_out_date"`
	Status       string `json:"status"`
	Source       string `json:"booking_source"`
}

type Calendar struct {
	PropertyID string          `json:"property_id"`
	Blocks     []CalendarBlock `json:"blocks"`
}

func MapCalendar(propertyID string, blocks []availability.Block) Calendar {
	out := Calendar{PropertyID: propertyID, Blocks: make([]CalendarBlock, 0, len(blocks))}
	for _, b := range blocks {
		out.Blocks = append(out.Blocks, CalendarBlock{
			BookingID:    string(b.BookingID),
			Reference:    b.Reference,
			CheckInDate:  b.Range.CheckIn.Format(dateLayout),
			CheckOutDate: b.Range.CheckOut.Format(dateLayout),
			Status:       string(b.Status),
			Source:       string(b.Source),
		})
	}
	return out
}

// CalendarExport is an iCal document ready to be served as a download.
type CalendarExport struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}
