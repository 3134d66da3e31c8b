package postgres

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

type propertyModel struct {
	ID            string `gorm:"primaryKey"`
	OrgID         string `gorm:"index;not null"`
	Name          string `gorm:"not null"`
	RentalType    string `gorm:"not null"`
	MonthlyRent   *int64
	DailyRate     *int64
	Currency      string `gorm:"size:3;not null"`
	Status        string `gorm:"not null"`
	CalendarFeeds datatypes.JSON
	LockSeq       int64
	CreatedAt     time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
	Version       int64 `gorm:"not null"`
}

func (propertyModel) TableName() string { return "properties" }

type feedJSON struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

func newPropertyModel(p *properties.Property) (propertyModel, error) {
	feeds := make([]feedJSON, 0, len(p.CalendarFeeds))
	for _, f := range p.CalendarFeeds {
		feeds = append(feeds, feedJSON{URL: f.URL, Source: f.Source})
	}
	raw, err := json.Marshal(feeds)
	if err != nil {
		return propertyModel{}, err
	}
	return propertyModel{
		ID:            string(p.ID),
		OrgID:         p.OrgID,
		Name:          p.Name,
		RentalType:    string(p.RentalType),
		MonthlyRent:   amountPtr(p.MonthlyRent),
		DailyRate:     amountPtr(p.DailyRate),
		Currency:      p.Currency,
		Status:        string(p.Status),
		CalendarFeeds: datatypes.JSON(raw),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}, nil
}

func (m propertyModel) toAggregate() (*properties.Property, error) {
	var feeds []feedJSON
	if len(m.CalendarFeeds) > 0 {
		if err := json.Unmarshal(m.CalendarFeeds, &feeds); err != nil {
			return nil, err
		}
	}
	p := &properties.Property{
		ID:          properties.PropertyID(m.ID),
		OrgID:       m.OrgID,
		Name:        m.Name,
		RentalType:  properties.RentalType(m.RentalType),
		MonthlyRent: moneyPtr(m.MonthlyRent, m.Currency),
		DailyRate:   moneyPtr(m.DailyRate, m.Currency),
		Currency:    m.Currency,
		Status:      properties.Status(m.Status),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
		Version:     m.Version,
	}
	for _, f := range feeds {
		p.CalendarFeeds = append(p.CalendarFeeds, properties.CalendarFeed{URL: f.URL, Source: f.Source})
	}
	return p, nil
}

// bookingModel stores every amount in minor units of Currency.
type bookingModel struct {
	ID                 string    `gorm:"primaryKey"`
	OrgID              string    `gorm:"index:idx_bookings_org_check_in,priority:1"`
	PropertyID         string    `gorm:"not null;index:idx_bookings_property_check_in,priority:1"`
	Reference          string    `gorm:"not null"`
	GuestName          string    `gorm:"not null"`
	GuestEmail         string
	GuestPhone         string
	Guests             int       `gorm:"not null"`
	CheckIn            time.Time `gorm:"type:date;not null;index:idx_bookings_property_check_in,priority:2;index:idx_bookings_org_check_in,priority:2"`
	CheckOut           time.Time `gorm:"type:date;not null"`
	Currency           string    `gorm:"size:3;not null"`
	BaseRate           int64
	TotalAmount        int64
	AdditionalCharges  int64
	AmountPaid         int64
	Status             string `gorm:"not null"`
	Source             string `gorm:"not null"`
	ExternalID         string `gorm:"not null;default:''"`
	FeedURL            string `gorm:"not null;default:''"`
	Notes              string
	CheckInNotes       string
	CheckOutNotes      string
	DamageReport       string
	CancellationReason string
	CheckedInAt        *time.Time
	CheckedOutAt       *time.Time
	CreatedAt          time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime:false"`
	Version            int64 `gorm:"not null"`
}

func (bookingModel) TableName() string { return "bookings" }

func newBookingModel(b *booking.Booking) bookingModel {
	return bookingModel{
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
		Currency:           b.TotalAmount.Currency,
		BaseRate:           b.BaseRate.Amount,
		TotalAmount:        b.TotalAmount.Amount,
		AdditionalCharges:  b.AdditionalCharges.Amount,
		AmountPaid:         b.AmountPaid.Amount,
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

func (m bookingModel) toAggregate() *booking.Booking {
	cur := m.Currency
	return &booking.Booking{
		ID:                 booking.BookingID(m.ID),
		OrgID:              m.OrgID,
		PropertyID:         properties.PropertyID(m.PropertyID),
		Reference:          m.Reference,
		Guest:              booking.Guest{Name: m.GuestName, Email: m.GuestEmail, Phone: m.GuestPhone},
		Guests:             m.Guests,
		Range:              daterange.DateRange{CheckIn: dateOnly(m.CheckIn), CheckOut: dateOnly(m.CheckOut)},
		BaseRate:           money.Money{Amount: m.BaseRate, Currency: cur},
		TotalAmount:        money.Money{Amount: m.TotalAmount, Currency: cur},
		AdditionalCharges:  money.Money{Amount: m.AdditionalCharges, Currency: cur},
		AmountPaid:         money.Money{Amount: m.AmountPaid, Currency: cur},
		Status:             booking.Status(m.Status),
		Source:             booking.Source(m.Source),
		ExternalID:         m.ExternalID,
		FeedURL:            m.FeedURL,
		Notes:              m.Notes,
		CheckInNotes:       m.CheckInNotes,
		CheckOutNotes:      m.CheckOutNotes,
		DamageReport:       m.DamageReport,
		CancellationReason: m.CancellationReason,
		CheckedInAt:        utcPtr(m.CheckedInAt),
		CheckedOutAt:       utcPtr(m.CheckedOutAt),
		CreatedAt:          m.CreatedAt.UTC(),
		UpdatedAt:          m.UpdatedAt.UTC(),
		Version:            m.Version,
	}
}

type paymentModel struct {
	ID        string `gorm:"primaryKey"`
	OrgID     string `gorm:"index"`
	BookingID string `gorm:"not null;index"`
	Amount    int64  `gorm:"not null"`
	Currency  string `gorm:"size:3;not null"`
	Method    string
	Status    string `gorm:"not null"`
	PaidAt    time.Time
	Reference string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
	Version   int64 `gorm:"not null"`
}

func (paymentModel) TableName() string { return "payments" }

func newPaymentModel(p *payments.Payment) paymentModel {
	return paymentModel{
		ID:        string(p.ID),
		OrgID:     p.OrgID,
		BookingID: p.BookingID,
		Amount:    p.Amount.Amount,
		Currency:  p.Amount.Currency,
		Method:    p.Method,
		Status:    string(p.Status),
		PaidAt:    p.PaidAt,
		Reference: p.Reference,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version,
	}
}

func (m paymentModel) toAggregate() *payments.Payment {
	return &payments.Payment{
		ID:        payments.PaymentID(m.ID),
		OrgID:     m.OrgID,
		BookingID: m.BookingID,
		Amount:    money.Money{Amount: m.Amount, Currency: m.Currency},
		Method:    m.Method,
		Status:    payments.Status(m.Status),
		PaidAt:    m.PaidAt.UTC(),
		Reference: m.Reference,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Version:   m.Version,
	}
}

type outboxModel struct {
	ID            string `gorm:"primaryKey"`
	Name          string `gorm:"not null"`
	Payload       []byte
	OccurredAt    time.Time
	Aggregate     string
	Headers       datatypes.JSON
	State         string    `gorm:"not null;index:idx_outbox_due,priority:1"`
	Attempts      int       `gorm:"not null;default:0"`
	NextAttemptAt time.Time `gorm:"index:idx_outbox_due,priority:2"`
	ClaimedBy     string
	ClaimedAt     *time.Time
	SentAt        *time.Time
	LastError     string
	CreatedAt     time.Time
}

func (outboxModel) TableName() string { return "outbox_events" }

type idempotencyModel struct {
	Key         string `gorm:"primaryKey"`
	Fingerprint string
	Payload     []byte
	OccurredAt  time.Time
	CreatedAt   time.Time `gorm:"index"`
}

func (idempotencyModel) TableName() string { return "idempotency_keys" }

func amountPtr(m *money.Money) *int64 {
	if m == nil {
		return nil
	}
	v := m.Amount
	return &v
}

func moneyPtr(amount *int64, currency string) *money.Money {
	if amount == nil {
		return nil
	}
	return &money.Money{Amount: *amount, Currency: currency}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
