package mongo

import (
	"time"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

func optionalMoney(m *money.Money) *moneyDocument {
	if m == nil {
		return nil
	}
	d := newMoneyDocument(*m)
	return &d
}

func (d *moneyDocument) toOptional() *money.Money {
	if d == nil {
		return nil
	}
	m := d.toMoney()
	return &m
}

type feedDocument struct {
	URL    string `bson:"url"`
	Source string `bson:"source"`
}

type propertyDocument struct {
	ID            string         `bson:"_id"`
	OrgID         string         `bson:"org_id"`
	Name          string         `bson:"name"`
	RentalType    string         `bson:"rental_type"`
	MonthlyRent   *moneyDocument `bson:"monthly_rent,omitempty"`
	DailyRate     *moneyDocument `bson:"daily_rate,omitempty"`
	Currency      string         `bson:"currency"`
	Status        string         `bson:"status"`
	CalendarFeeds []feedDocument `bson:"calendar_feeds"`
	CreatedAt     time.Time      `bson:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at"`
	Version       int64          `bson:"version"`
}

func newPropertyDocument(p *properties.Property) propertyDocument {
	feeds := make([]feedDocument, 0, len(p.CalendarFeeds))
	for _, f := range p.CalendarFeeds {
		feeds = append(feeds, feedDocument{URL: f.URL, Source: f.Source})
	}
	return propertyDocument{
		ID:            string(p.ID),
		OrgID:         p.OrgID,
		Name:          p.Name,
		RentalType:    string(p.RentalType),
		MonthlyRent:   optionalMoney(p.MonthlyRent),
		DailyRate:     optionalMoney(p.DailyRate),
		Currency:      p.Currency,
		Status:        string(p.Status),
		CalendarFeeds: feeds,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}

func (d propertyDocument) toAggregate() *properties.Property {
	feeds := make([]properties.CalendarFeed, 0, len(d.CalendarFeeds))
	for _, f := range d.CalendarFeeds {
		feeds = append(feeds, properties.CalendarFeed{URL: f.URL, Source: f.Source})
	}
	return &properties.Property{
		ID:            properties.PropertyID(d.ID),
		OrgID:         d.OrgID,
		Name:          d.Name,
		RentalType:    properties.RentalType(d.RentalType),
		MonthlyRent:   d.MonthlyRent.toOptional(),
		DailyRate:     d.DailyRate.toOptional(),
		Currency:      d.Currency,
		Status:        properties.Status(d.Status),
		CalendarFeeds: feeds,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}
}

type bookingDocument struct {
	ID                 string        `bson:"_id"`
	OrgID              string        `bson:"org_id"`
	PropertyID         string        `bson:"property_id"`
	Reference          string        `bson:"reference"`
	GuestName          string        `bson:"guest_name"`
	GuestEmail         string        `bson:"guest_email,omitempty"`
	GuestPhone         string        `bson:"guest_phone,omitempty"`
	Guests             int           `bson:"guests"`
	CheckIn            time.Time     `bson:"check_in"`
	CheckOut           time.Time     `bson:"check_out"`
	BaseRate           moneyDocument `bson:"base_rate"`
	TotalAmount        moneyDocument `bson:"total_amount"`
	AdditionalCharges  moneyDocument `bson:"additional_charges"`
	AmountPaid         moneyDocument `bson:"amount_paid"`
	Status             string        `bson:"status"`
	Source             string        `bson:"source"`
	ExternalID         string        `bson:"external_id,omitempty"`
	FeedURL            string        `bson:"feed_url,omitempty"`
	Notes              string        `bson:"notes,omitempty"`
	CheckInNotes       string        `bson:"check_in_notes,omitempty"`
	CheckOutNotes      string        `bson:"check_out_notes,omitempty"`
	DamageReport       string        `bson:"damage_report,omitempty"`
	CancellationReason string        `bson:"cancellation_reason,omitempty"`
	CheckedInAt        *time.Time    `bson:"checked_in_at,omitempty"`
	CheckedOutAt       *time.Time    `bson:"checked_out_at,omitempty"`
	CreatedAt          time.Time     `bson:"created_at"`
	UpdatedAt          time.Time     `bson:"updated_at"`
	Version            int64         `bson:"version"`
}

func newBookingDocument(b *booking.Booking) bookingDocument {
	return bookingDocument{
		ID:                 string(b.ID),
		OrgID:              b.OrgID,
		PropertyID:         string(b.PropertyID),
		Reference:          b.Reference,
		GuestName:          b.Guest.Name,
		GuestEmail:         b.Guest.Email,
		GuestPhone:         b.Guest.Phone,
		Guests:             b.Guests,
		CheckIn:            b.Range.CheckIn,
		CheckOut:           b.Range.CheckOut,
		BaseRate:           newMoneyDocument(b.BaseRate),
		TotalAmount:        newMoneyDocument(b.TotalAmount),
		AdditionalCharges:  newMoneyDocument(b.AdditionalCharges),
		AmountPaid:         newMoneyDocument(b.AmountPaid),
		Status:             string(b.Status),
		Source:             string(b.Source),
		ExternalID:         b.ExternalID,
		FeedURL:            b.FeedURL,
		Notes:              b.Notes,
		CheckInNotes:       b.CheckInNotes,
		CheckOutNotes:      b.CheckOutNotes,
		DamageReport:       b.DamageReport,
		CancellationReason: b.CancellationReason,
		CheckedInAt:        b.CheckedInAt,
		CheckedOutAt:       b.CheckedOutAt,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		Version:            b.Version,
	}
}

func (d bookingDocument) toAggregate() *booking.Booking {
	return &booking.Booking{
		ID:                 booking.BookingID(d.ID),
		OrgID:              d.OrgID,
		PropertyID:         properties.PropertyID(d.PropertyID),
		Reference:          d.Reference,
		Guest:              booking.Guest{Name: d.GuestName, Email: d.GuestEmail, Phone: d.GuestPhone},
		Guests:             d.Guests,
		Range:              daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		BaseRate:           d.BaseRate.toMoney(),
		TotalAmount:        d.TotalAmount.toMoney(),
		AdditionalCharges:  d.AdditionalCharges.toMoney(),
		AmountPaid:         d.AmountPaid.toMoney(),
		Status:             booking.Status(d.Status),
		Source:             booking.Source(d.Source),
		ExternalID:         d.ExternalID,
		FeedURL:            d.FeedURL,
		Notes:              d.Notes,
		CheckInNotes:       d.CheckInNotes,
		CheckOutNotes:      d.CheckOutNotes,
		DamageReport:       d.DamageReport,
		CancellationReason: d.CancellationReason,
		CheckedInAt:        utcPtr(d.CheckedInAt),
		CheckedOutAt:       utcPtr(d.CheckedOutAt),
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
		Version:            d.Version,
	}
}

type paymentDocument struct {
	ID        string        `bson:"_id"`
	OrgID     string        `bson:"org_id"`
	BookingID string        `bson:"booking_id"`
	Amount    moneyDocument `bson:"amount"`
	Method    string        `bson:"method"`
	Status    string        `bson:"status"`
	PaidAt    time.Time     `bson:"paid_at"`
	Reference string        `bson:"reference,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
	Version   int64         `bson:"version"`
}

func newPaymentDocument(p *payments.Payment) paymentDocument {
	return paymentDocument{
		ID:        string(p.ID),
		OrgID:     p.OrgID,
		BookingID: p.BookingID,
		Amount:    newMoneyDocument(p.Amount),
		Method:    p.Method,
		Status:    string(p.Status),
		PaidAt:    p.PaidAt,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version,
	}
}

func (d paymentDocument) toAggregate() *payments.Payment {
	return &payments.Payment{
		ID:        payments.PaymentID(d.ID),
		OrgID:     d.OrgID,
		BookingID: d.BookingID,
		Amount:    d.Amount.toMoney(),
		Method:    d.Method,
		Status:    payments.Status(d.Status),
		PaidAt:    d.PaidAt.UTC(),
		Reference: d.Reference,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Version:   d.Version,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
