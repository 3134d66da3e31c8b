package properties

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	domainproperties "rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/money"
)

const (
	registerPropertyKey = "properties.register"
	addCalendarFeedKey  = "properties.add_feed"
	getPropertyKey      = "properties.get"
)

type Deps struct {
	UoWFactory      uow.UoWFactory
	Encoder         outbox.EventEncoder
	Clock           policies.Clock
	Logger          *slog.Logger
	DefaultCurrency string
	NewID           func() string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

type FeedInput struct {
	URL    string `validate:"required,url"`
	Source string
}

type RegisterPropertyCommand struct {
	OrgID      string `validate:"required"`
	Name       string `validate:"required,max=200"`
	RentalType string `validate:"omitempty,oneof=LONG_TERM SHORT_TERM BOTH"`
	// MonthlyRent and DailyRate are decimal strings; at least one is required.
	MonthlyRent     string
	DailyRate       string
	Currency        string      `validate:"omitempty,len=3"`
	Feeds           []FeedInput `validate:"dive"`
	IdempotencyKeyV string
}

func (c RegisterPropertyCommand) Key() string            { return registerPropertyKey }
func (c RegisterPropertyCommand) TenantID() string       { return c.OrgID }
func (c RegisterPropertyCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c RegisterPropertyCommand) ResultPrototype() any   { return &dto.Property{} }

type RegisterPropertyHandler struct{ Deps }

func (h *RegisterPropertyHandler) Handle(ctx context.Context, cmd RegisterPropertyCommand) (*dto.Property, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = h.DefaultCurrency
	}
	if currency == "" {
		return nil, apperr.Invalid("currency", "required")
	}
	monthly, err := optionalMoney("monthly_rent", cmd.MonthlyRent, currency)
	if err != nil {
		return nil, err
	}
	daily, err := optionalMoney("daily_rate", cmd.DailyRate, currency)
	if err != nil {
		return nil, err
	}
	feeds := make([]domainproperties.CalendarFeed, 0, len(cmd.Feeds))
	for _, f := range cmd.Feeds {
		feeds = append(feeds, domainproperties.CalendarFeed{URL: f.URL, Source: f.Source})
	}
	id := uuid.NewString()
	if h.NewID != nil {
		id = h.NewID()
	}
	p, err := domainproperties.NewProperty(domainproperties.CreateParams{
		ID:          domainproperties.PropertyID(id),
		OrgID:       cmd.OrgID,
		Name:        cmd.Name,
		RentalType:  domainproperties.RentalType(strings.ToUpper(cmd.RentalType)),
		MonthlyRent: monthly,
		DailyRate:   daily,
		Currency:    currency,
		Feeds:       feeds,
		Now:         h.Clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Properties().Save(ctx, p); err != nil {
		return nil, err
	}
	if err := support.Record(ctx, unit, h.Encoder, p); err != nil {
		return nil, err
	}
	h.logger().Info("property registered", "property_id", p.ID, "org_id", p.OrgID)
	out := dto.MapProperty(p)
	return &out, nil
}

func optionalMoney(field, raw, currency string) (*money.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	m, err := money.Parse(raw, currency)
	if err != nil {
		return nil, apperr.Invalid(field, "%v", err)
	}
	return &m, nil
}

type AddCalendarFeedCommand struct {
	OrgID      string `validate:"required"`
	PropertyID string `validate:"required"`
	URL        string `validate:"required"`
	Source     string
}

func (c AddCalendarFeedCommand) Key() string      { return addCalendarFeedKey }
func (c AddCalendarFeedCommand) TenantID() string { return c.OrgID }
func (c AddCalendarFeedCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PropertyID: c.PropertyID}
}

type AddCalendarFeedHandler struct{ Deps }

func (h *AddCalendarFeedHandler) Handle(ctx context.Context, cmd AddCalendarFeedCommand) (*dto.Property, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	p, err := support.LoadProperty(ctx, unit, cmd.OrgID, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if err := p.AddFeed(cmd.URL, cmd.Source, h.Clock.Now()); err != nil {
		return nil, err
	}
	if err := unit.Properties().Save(ctx, p); err != nil {
		return nil, err
	}
	h.logger().Info("calendar feed added", "property_id", p.ID, "feeds", len(p.CalendarFeeds))
	out := dto.MapProperty(p)
	return &out, nil
}

type GetPropertyQuery struct {
	OrgID      string `validate:"required"`
	PropertyID string `validate:"required"`
}

func (q GetPropertyQuery) Key() string      { return getPropertyKey }
func (q GetPropertyQuery) TenantID() string { return q.OrgID }

type GetPropertyHandler struct{ Deps }

func (h *GetPropertyHandler) Handle(ctx context.Context, q GetPropertyQuery) (*dto.Property, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	p, err := support.LoadProperty(execCtx, unit, q.OrgID, q.PropertyID)
	if err != nil {
		return nil, err
	}
	out := dto.MapProperty(p)
	return &out, nil
}

var (
	_ commands.Handler[RegisterPropertyCommand, *dto.Property] = (*RegisterPropertyHandler)(nil)
	_ commands.Handler[AddCalendarFeedCommand, *dto.Property]  = (*AddCalendarFeedHandler)(nil)
	_ queries.Handler[GetPropertyQuery, *dto.Property]         = (*GetPropertyHandler)(nil)
)
