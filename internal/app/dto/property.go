package dto

import (
	"time"

	domainproperties "rentdesk/internal/domain/properties"
)

type CalendarFeed struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

type Property struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	RentalType    string         `json:"rental_type"`
	MonthlyRent   *MoneyDTO      `json:"monthly_rent,omitempty"`
	DailyRate     *MoneyDTO      `json:"daily_rate,omitempty"`
	Currency      string         `json:"currency"`
	Status        string         `json:"status"`
	CalendarFeeds []CalendarFeed `json:"calendar_feeds"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func MapProperty(p *domainproperties.Property) Property {
	feeds := make([]CalendarFeed, 0, len(p.CalendarFeeds))
	for _, f := range p.CalendarFeeds {
		feeds = append(feeds, CalendarFeed{URL: f.URL, Source: f.Source})
	}
	return Property{
		ID:            string(p.ID),
		Name:          p.Name,
		RentalType:    string(p.RentalType),
		MonthlyRent:   mapOptionalMoney(p.MonthlyRent),
		DailyRate:     mapOptionalMoney(p.DailyRate),
		Currency:      p.Currency,
		Status:        string(p.Status),
		CalendarFeeds: feeds,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
