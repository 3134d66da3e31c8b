package calendars

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/middleware"
	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

const (
	upsertExternalBookingKey = "calendars.upsert_external"
	cancelMissingImportsKey  = "calendars.cancel_missing"
)

type Outcome string

const (
	OutcomeImported   Outcome = "imported"
	OutcomeUpdated    Outcome = "updated"
	OutcomeReinstated Outcome = "reinstated"
	OutcomeUnchanged  Outcome = "unchanged"
)

type Deps struct {
	UoWFactory uow.UoWFactory
	Encoder    outbox.EventEncoder
	Clock      policies.Clock
	Logger     *slog.Logger
	NewID      func() string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// UpsertExternalBookingCommand applies one event of an external feed. It is dispatched
// by the sync service after the property's ownership has been checked.
type UpsertExternalBookingCommand struct {
	PropertyID string    `validate:"required"`
	ExternalID string    `validate:"required,max=500"`
	Source     string    `validate:"required"`
	FeedURL    string    `validate:"required"`
	CheckIn    time.Time `validate:"required"`
	CheckOut   time.Time `validate:"required"`
	Summary    string
}

func (c UpsertExternalBookingCommand) Key() string { return upsertExternalBookingKey }
func (c UpsertExternalBookingCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PropertyID: c.PropertyID}
}

type UpsertResult struct {
	BookingID string
	Outcome   Outcome
}

type UpsertExternalBookingHandler struct{ Deps }

// Handle creates the booking for (property, external id) or updates it in place.
// Re-applying identical values changes nothing and reports OutcomeUnchanged. An import
// cancelled because its event had vanished is reinstated when the event is listed again.
func (h *UpsertExternalBookingHandler) Handle(ctx context.Context, cmd UpsertExternalBookingCommand) (*UpsertResult, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return nil, err
	}
	property, err := support.LoadProperty(ctx, unit, "", cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	dr, err := daterange.New(daterange.DateOf(cmd.CheckIn), daterange.DateOf(cmd.CheckOut))
	if err != nil {
		return nil, domainbooking.ErrInvalidRange
	}
	if err := unit.Properties().Lock(ctx, property.ID); err != nil {
		return nil, err
	}
	now := h.Clock.Now()
	existing, err := unit.Bookings().ByExternalID(ctx, property.ID, cmd.ExternalID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, err
	}

	if existing != nil && existing.RemovedFromFeed() {
		if err := h.ensureAvailable(ctx, unit, existing.PropertyID, dr, existing.ID); err != nil {
			return nil, err
		}
		existing.FeedURL = cmd.FeedURL
		if err := existing.Reinstate(dr, cmd.Summary, now); err != nil {
			return nil, err
		}
		if err := unit.Bookings().Save(ctx, existing); err != nil {
			return nil, err
		}
		if err := support.Record(ctx, unit, h.Encoder, existing); err != nil {
			return nil, err
		}
		h.logger().Info("imported booking reinstated", "booking_id", existing.ID, "external_id", existing.ExternalID)
		return &UpsertResult{BookingID: string(existing.ID), Outcome: OutcomeReinstated}, nil
	}

	if existing != nil {
		// Imports that predate feed tracking adopt the feed that lists them.
		adopted := existing.FeedURL == ""
		if adopted {
			existing.FeedURL = cmd.FeedURL
		}
		if existing.Status.Blocks() && !existing.Range.Equal(dr) {
			if err := h.ensureAvailable(ctx, unit, existing.PropertyID, dr, existing.ID); err != nil {
				return nil, err
			}
		}
		changed, err := existing.ApplyFeed(dr, cmd.Summary, now)
		if err != nil {
			return nil, err
		}
		if !changed && !adopted {
			return &UpsertResult{BookingID: string(existing.ID), Outcome: OutcomeUnchanged}, nil
		}
		if err := unit.Bookings().Save(ctx, existing); err != nil {
			return nil, err
		}
		if !changed {
			return &UpsertResult{BookingID: string(existing.ID), Outcome: OutcomeUnchanged}, nil
		}
		if err := support.Record(ctx, unit, h.Encoder, existing); err != nil {
			return nil, err
		}
		return &UpsertResult{BookingID: string(existing.ID), Outcome: OutcomeUpdated}, nil
	}

	if err := h.ensureAvailable(ctx, unit, property.ID, dr, ""); err != nil {
		return nil, err
	}
	source, err := domainbooking.ParseSource(cmd.Source)
	if err != nil {
		source = domainbooking.SourceOther
	}
	guest := strings.TrimSpace(cmd.Summary)
	if guest == "" {
		guest = fmt.Sprintf("External booking (%s)", source)
	}
	id := uuid.NewString()
	if h.NewID != nil {
		id = h.NewID()
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:         domainbooking.BookingID(id),
		OrgID:      property.OrgID,
		PropertyID: property.ID,
		Guest:      domainbooking.Guest{Name: guest},
		Range:      dr,
		BaseRate:   money.Zero(property.Currency),
		Total:      money.Zero(property.Currency),
		Status:     domainbooking.StatusConfirmed,
		Source:     source,
		ExternalID: cmd.ExternalID,
		FeedURL:    cmd.FeedURL,
		CreatedAt:  now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}
	return &UpsertResult{BookingID: string(b.ID), Outcome: OutcomeImported}, nil
}

func (h *UpsertExternalBookingHandler) ensureAvailable(ctx context.Context, unit uow.UnitOfWork, propertyID properties.PropertyID, dr daterange.DateRange, exclude domainbooking.BookingID) error {
	list, err := unit.Bookings().ListByProperty(ctx, propertyID, domainbooking.ListFilter{Statuses: domainbooking.BlockingStatuses})
	if err != nil {
		return err
	}
	return availability.Check(list, dr, exclude).Error(string(propertyID), dr)
}

// CancelMissingImportsCommand cancels future bookings imported from FeedURL whose
// events are no longer listed there. Manually entered bookings and imports from
// other feeds are never touched.
type CancelMissingImportsCommand struct {
	PropertyID string `validate:"required"`
	FeedURL    string `validate:"required"`
	Keep       []string
}

func (c CancelMissingImportsCommand) Key() string { return cancelMissingImportsKey }
func (c CancelMissingImportsCommand) LockScope() middleware.LockScope {
	return middleware.LockScope{PropertyID: c.PropertyID}
}

type CancelMissingImportsHandler struct{ Deps }

func (h *CancelMissingImportsHandler) Handle(ctx context.Context, cmd CancelMissingImportsCommand) (int, error) {
	unit, err := support.Unit(ctx)
	if err != nil {
		return 0, err
	}
	property, err := support.LoadProperty(ctx, unit, "", cmd.PropertyID)
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(cmd.Keep))
	for _, id := range cmd.Keep {
		keep[id] = struct{}{}
	}
	list, err := unit.Bookings().ListByProperty(ctx, property.ID, domainbooking.ListFilter{
		Statuses:     []domainbooking.Status{domainbooking.StatusPending, domainbooking.StatusConfirmed},
		ImportedOnly: true,
		FeedURL:      cmd.FeedURL,
	})
	if err != nil {
		return 0, err
	}
	now := h.Clock.Now()
	cancelled := 0
	for _, b := range list {
		if _, ok := keep[b.ExternalID]; ok {
			continue
		}
		if b.Range.StartsBefore(now) {
			continue
		}
		if err := b.CancelRemovedImport(now); err != nil {
			return cancelled, err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return cancelled, err
		}
		if err := support.Record(ctx, unit, h.Encoder, b); err != nil {
			return cancelled, err
		}
		cancelled++
	}
	if cancelled > 0 {
		h.logger().Info("stale imported bookings cancelled", "property_id", property.ID, "feed_url", cmd.FeedURL, "count", cancelled)
	}
	return cancelled, nil
}

var (
	_ commands.Handler[UpsertExternalBookingCommand, *UpsertResult] = (*UpsertExternalBookingHandler)(nil)
	_ commands.Handler[CancelMissingImportsCommand, int]            = (*CancelMissingImportsHandler)(nil)
)
