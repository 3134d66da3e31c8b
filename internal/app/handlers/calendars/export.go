package calendars

import (
	"context"
	"fmt"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/calendar"
)

const (
	exportCalendarKey = "calendars.export"

	ContentType = "text/calendar; charset=utf-8"
)

// ExportCalendarQuery renders a property's blocking bookings as iCal. OrgID is empty
// on the public feed URL, in which case ownership is not checked.
type ExportCalendarQuery struct {
	OrgID      string
	PropertyID string `validate:"required"`
}

func (q ExportCalendarQuery) Key() string { return exportCalendarKey }

type ExportCalendarHandler struct{ Deps }

func (h *ExportCalendarHandler) Handle(ctx context.Context, q ExportCalendarQuery) (*dto.CalendarExport, error) {
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
	list, err := unit.Bookings().ListByProperty(execCtx, p.ID, domainbooking.ListFilter{Statuses: domainbooking.BlockingStatuses})
	if err != nil {
		return nil, err
	}
	body := calendar.Generate(calendar.Export{Name: p.Name, Bookings: list, Now: h.Clock.Now()})
	return &dto.CalendarExport{
		Filename:    fmt.Sprintf("property-%s.ics", p.ID),
		ContentType: ContentType,
		Body:        body,
	}, nil
}

var _ queries.Handler[ExportCalendarQuery, *dto.CalendarExport] = (*ExportCalendarHandler)(nil)
