package properties

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
)

var (
	ErrPropertyNotFound = fmt.Errorf("property: %w", apperr.ErrNotFound)
	ErrRateRequired     = &apperr.ValidationError{Field: "rates", Message: "monthly rent or daily rate required"}
)

type PropertyID string

type RentalType string

const (
	RentalLongTerm  RentalType = "LONG_TERM"
	RentalShortTerm RentalType = "SHORT_TERM"
	RentalBoth      RentalType = "BOTH"
)

func (t RentalType) Valid() bool {
	switch t {
	case RentalLongTerm, RentalShortTerm, RentalBoth:
		return true
	}
	return false
}

type Status string

const (
	StatusActive      Status = "ACTIVE"
	StatusInactive    Status = "INACTIVE"
	StatusOccupied    Status = "OCCUPIED"
	StatusMaintenance Status = "MAINTENANCE"
	StatusArchived    Status = "ARCHIVED"
)

// CalendarFeed is an external iCal URL attached to a property.
type CalendarFeed struct {
	URL    string
	Source string
}

type Property struct {
	ID            PropertyID
	OrgID         string
	Name          string
	RentalType    RentalType
	MonthlyRent   *money.Money
	DailyRate     *money.Money
	Currency      string
	Status        Status
	CalendarFeeds []CalendarFeed
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, property *Property) error
	// Lock serializes booking mutations for the property inside the current transaction.
	Lock(ctx context.Context, id PropertyID) error
	// ListWithFeeds returns properties that have at least one calendar feed; empty orgID means all.
	ListWithFeeds(ctx context.Context, orgID string) ([]*Property, error)
}

type CreateParams struct {
	ID          PropertyID
	OrgID       string
	Name        string
	RentalType  RentalType
	MonthlyRent *money.Money
	DailyRate   *money.Money
	Currency    string
	Feeds       []CalendarFeed
	Now         time.Time
}

func NewProperty(params CreateParams) (*Property, error) {
	if strings.TrimSpace(params.OrgID) == "" {
		return nil, apperr.Invalid("org_id", "required")
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, apperr.Invalid("name", "required")
	}
	rentalType := params.RentalType
	if rentalType == "" {
		rentalType = RentalBoth
	}
	if !rentalType.Valid() {
		return nil, apperr.Invalid("rental_type", "unknown rental type %q", params.RentalType)
	}
	if params.MonthlyRent == nil && params.DailyRate == nil {
		return nil, ErrRateRequired
	}
	for _, rate := range []*money.Money{params.MonthlyRent, params.DailyRate} {
		if rate != nil && rate.Amount < 0 {
			return nil, apperr.Invalid("rates", "must not be negative")
		}
	}
	now := params.Now.UTC()
	p := &Property{
		ID:          params.ID,
		OrgID:       params.OrgID,
		Name:        strings.TrimSpace(params.Name),
		RentalType:  rentalType,
		MonthlyRent: params.MonthlyRent,
		DailyRate:   params.DailyRate,
		Currency:    strings.ToUpper(params.Currency),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, feed := range params.Feeds {
		if err := p.AddFeed(feed.URL, feed.Source, now); err != nil {
			return nil, err
		}
	}
	p.Record(PropertyRegistered{PropertyID: p.ID, OrgID: p.OrgID, At: now})
	return p, nil
}

// OwnedBy reports whether the property belongs to the organisation.
func (p *Property) OwnedBy(orgID string) bool {
	return orgID != "" && p.OrgID == orgID
}

// AcceptsBookings is false for archived or inactive units.
func (p *Property) AcceptsBookings() bool {
	return p.Status != StatusArchived && p.Status != StatusInactive
}

// AddFeed attaches an iCal URL. Re-adding a known URL only refreshes its source.
func (p *Property) AddFeed(rawURL, source string, now time.Time) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "webcal") || u.Host == "" {
		return apperr.Invalid("calendar_url", "must be an absolute http(s) or webcal URL")
	}
	if u.Scheme == "webcal" {
		u.Scheme = "https"
	}
	normalized := u.String()
	if source == "" {
		source = SourceForURL(normalized)
	}
	source = strings.ToUpper(source)
	for i := range p.CalendarFeeds {
		if p.CalendarFeeds[i].URL == normalized {
			p.CalendarFeeds[i].Source = source
			p.UpdatedAt = now.UTC()
			return nil
		}
	}
	p.CalendarFeeds = append(p.CalendarFeeds, CalendarFeed{URL: normalized, Source: source})
	p.UpdatedAt = now.UTC()
	return nil
}

// Occupy marks the unit occupied after a guest checks in.
func (p *Property) Occupy(bookingID string, now time.Time) {
	if p.Status == StatusOccupied {
		return
	}
	p.Status = StatusOccupied
	p.UpdatedAt = now.UTC()
	p.Record(PropertyOccupied{PropertyID: p.ID, BookingID: bookingID, At: p.UpdatedAt})
}

// Vacate reverts an occupied unit to active; other statuses set meanwhile are kept.
func (p *Property) Vacate(bookingID string, now time.Time) {
	if p.Status != StatusOccupied {
		return
	}
	p.Status = StatusActive
	p.UpdatedAt = now.UTC()
	p.Record(PropertyVacated{PropertyID: p.ID, BookingID: bookingID, At: p.UpdatedAt})
}

// SourceForURL infers the booking channel from a feed host.
func SourceForURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "OTHER"
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "airbnb."):
		return "AIRBNB"
	case strings.Contains(host, "booking.com"):
		return "BOOKING_COM"
	case strings.Contains(host, "vrbo.") || strings.Contains(host, "homeaway."):
		return "VRBO"
	default:
		return "OTHER"
	}
}
