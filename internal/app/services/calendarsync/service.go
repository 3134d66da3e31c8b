// Package calendarsync imports external iCal feeds into bookings.
package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/calendars"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/policies"
	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/calendar"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultConcurrency = 4
)

var ErrFetcherRequired = errors.New("calendarsync: feed fetcher required")

type Service struct {
	Commands    commands.Bus
	UoWFactory  uow.UoWFactory
	Fetcher     policies.FeedFetcher
	Timeout     time.Duration
	Concurrency int
	// CancelMissing cancels future imports whose events vanished from a feed.
	CancelMissing bool
	Logger        *slog.Logger
}

type Request struct {
	OrgID      string
	PropertyID string
	URL        string
	Source     string
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Sync imports one feed into one property. Fetch, parse and per-event failures are
// reported in the result's Errors; only a missing or foreign property is returned as error.
func (s *Service) Sync(ctx context.Context, req Request) (dto.SyncResult, error) {
	if s.Fetcher == nil {
		return dto.SyncResult{}, ErrFetcherRequired
	}
	if strings.TrimSpace(req.URL) == "" {
		return dto.SyncResult{}, apperr.Invalid("url", "required")
	}
	property, err := s.loadProperty(ctx, req.OrgID, req.PropertyID)
	if err != nil {
		return dto.SyncResult{}, err
	}
	source := strings.ToUpper(strings.TrimSpace(req.Source))
	if source == "" {
		source = properties.SourceForURL(req.URL)
	}
	return s.syncFeed(ctx, property, properties.CalendarFeed{URL: req.URL, Source: source}), nil
}

// SyncAll imports every feed of every property of orgID (all organisations when empty).
// Feeds run concurrently; a failing feed never stops the others.
func (s *Service) SyncAll(ctx context.Context, orgID string) (dto.SyncReport, error) {
	if s.Fetcher == nil {
		return dto.SyncReport{}, ErrFetcherRequired
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.UoWFactory)
	if err != nil {
		return dto.SyncReport{}, err
	}
	props, err := unit.Properties().ListWithFeeds(execCtx, orgID)
	if cleanup != nil {
		cleanup()
	}
	if err != nil {
		return dto.SyncReport{}, err
	}

	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu     sync.Mutex
		report dto.SyncReport
	)
	for _, p := range props {
		for _, feed := range p.CalendarFeeds {
			p, feed := p, feed
			g.Go(func() error {
				res := s.syncFeed(gctx, p, feed)
				mu.Lock()
				report.Results = append(report.Results, res)
				if len(res.Errors) > 0 {
					report.Failed++
				}
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	s.logger().Info("calendar sync finished", "org_id", orgID, "feeds", len(report.Results), "with_errors", report.Failed)
	return report, nil
}

func (s *Service) loadProperty(ctx context.Context, orgID, id string) (*properties.Property, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, s.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return support.LoadProperty(execCtx, unit, orgID, id)
}

func (s *Service) syncFeed(ctx context.Context, p *properties.Property, feed properties.CalendarFeed) dto.SyncResult {
	res := dto.SyncResult{PropertyID: string(p.ID), URL: feed.URL, Source: feed.Source, Errors: []string{}}
	logger := s.logger().With("property_id", p.ID, "url", feed.URL)

	events, invalid, err := s.fetch(ctx, feed.URL)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		logger.Warn("calendar feed unavailable", "err", err)
		return res
	}
	res.EventsFound = len(events) + len(invalid)
	keep := make([]string, 0, res.EventsFound)
	for _, bad := range invalid {
		res.Errors = append(res.Errors, bad.Error())
		if bad.UID != "" {
			keep = append(keep, bad.UID)
		}
	}
	for _, ev := range events {
		keep = append(keep, ev.UID)
		out, err := commands.Dispatch[calendars.UpsertExternalBookingCommand, *calendars.UpsertResult](ctx, s.Commands, calendars.UpsertExternalBookingCommand{
			PropertyID: string(p.ID),
			ExternalID: ev.UID,
			Source:     feed.Source,
			FeedURL:    feed.URL,
			CheckIn:    ev.Start,
			CheckOut:   ev.End,
			Summary:    ev.Summary,
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("event %s: %v", ev.UID, err))
			continue
		}
		switch out.Outcome {
		case calendars.OutcomeImported:
			res.Imported++
		case calendars.OutcomeUpdated:
			res.Updated++
		case calendars.OutcomeReinstated:
			res.Reinstated++
		default:
			res.Unchanged++
		}
	}

	if s.CancelMissing && res.EventsFound > 0 {
		cancelled, err := commands.Dispatch[calendars.CancelMissingImportsCommand, int](ctx, s.Commands, calendars.CancelMissingImportsCommand{
			PropertyID: string(p.ID),
			FeedURL:    feed.URL,
			Keep:       keep,
		})
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("cancel missing: %v", err))
		}
		res.Cancelled = cancelled
	}

	logger.Info("calendar feed synced", "imported", res.Imported, "updated", res.Updated, "unchanged", res.Unchanged, "reinstated", res.Reinstated, "cancelled", res.Cancelled, "errors", len(res.Errors))
	return res
}

func (s *Service) fetch(ctx context.Context, url string) ([]calendar.Event, []calendar.ParseError, error) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	body, err := s.Fetcher.Fetch(fetchCtx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()
	events, invalid, err := calendar.Parse(body)
	if err != nil {
		return nil, nil, err
	}
	return events, invalid, nil
}
