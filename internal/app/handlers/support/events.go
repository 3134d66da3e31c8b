package support

import (
	"context"

	"rentdesk/internal/app/outbox"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/shared/events"
)

type recorder interface {
	PullEvents() []events.DomainEvent
}

// Record moves pending events of every aggregate into the unit's outbox.
func Record(ctx context.Context, unit uow.UnitOfWork, encoder outbox.EventEncoder, aggregates ...recorder) error {
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), encoder, agg.PullEvents()); err != nil {
			return err
		}
	}
	return nil
}
