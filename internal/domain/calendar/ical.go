// Package calendar converts between iCal documents and booking data.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
)

const ProductID = "-//rentdesk//booking calendar//EN"

// Event is a VEVENT parsed from an external feed. It is never persisted.
// Start and End are calendar dates at midnight UTC.
type Event struct {
	UID     string
	Start   time.Time
	End     time.Time
	Summary string
}

// Range returns the event as a booking range, validating End > Start.
func (e Event) Range() (daterange.DateRange, error) {
	dr, err := daterange.New(e.Start, e.End)
	if err != nil {
		return daterange.DateRange{}, apperr.Invalid("dtend", "event %s ends before it starts", e.UID)
	}
	return dr, nil
}

// ParseError describes one VEVENT that could not be read; the rest of the feed is still returned.
type ParseError struct {
	UID    string
	Reason string
}

func (e ParseError) Error() string {
	if e.UID == "" {
		return "event: " + e.Reason
	}
	return fmt.Sprintf("event %s: %s", e.UID, e.Reason)
}

// Parse reads a feed. A malformed document fails as a whole; malformed events are
// reported individually. Cancelled events are skipped. Timed events are reduced to the
// dates they start and end on, in their own time zone, so a 15:00 arrival and an 11:00
// departure become check-in and check-out days.
func Parse(r io.Reader) ([]Event, []ParseError, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, nil, apperr.Invalid("calendar", "parse feed: %v", err)
	}
	var (
		out     []Event
		invalid []ParseError
	)
	for _, ve := range cal.Events() {
		uid := strings.TrimSpace(ve.Id())
		if uid == "" {
			invalid = append(invalid, ParseError{Reason: "missing UID"})
			continue
		}
		if p := ve.GetProperty(ics.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
			continue
		}
		start, dateOnly, err := propertyTime(ve, ics.ComponentPropertyDtStart)
		if err != nil {
			invalid = append(invalid, ParseError{UID: uid, Reason: err.Error()})
			continue
		}
		end, _, err := propertyTime(ve, ics.ComponentPropertyDtEnd)
		if err != nil {
			if ve.GetProperty(ics.ComponentPropertyDtEnd) != nil || !dateOnly {
				invalid = append(invalid, ParseError{UID: uid, Reason: err.Error()})
				continue
			}
			// An all-day event without DTEND lasts one day.
			end = start.AddDate(0, 0, 1)
		}
		if !end.After(start) {
			invalid = append(invalid, ParseError{UID: uid, Reason: "event does not cover a night"})
			continue
		}
		summary := ""
		if p := ve.GetProperty(ics.ComponentPropertySummary); p != nil {
			summary = strings.TrimSpace(p.Value)
		}
		out = append(out, Event{UID: uid, Start: start, End: end, Summary: summary})
	}
	return out, invalid, nil
}

var timeLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{"20060102T150405Z", false},
	{"20060102T150405", false},
	{"20060102", true},
}

func propertyTime(ve *ics.VEvent, name ics.ComponentProperty) (time.Time, bool, error) {
	p := ve.GetProperty(name)
	if p == nil {
		return time.Time{}, false, fmt.Errorf("missing %s", name)
	}
	raw := strings.TrimSpace(p.Value)
	loc := time.UTC
	if tzid, ok := p.ICalParameters["TZID"]; ok && len(tzid) > 0 {
		if l, err := time.LoadLocation(tzid[0]); err == nil {
			loc = l
		}
	}
	for _, candidate := range timeLayouts {
		t, err := time.ParseInLocation(candidate.layout, raw, loc)
		if err != nil {
			continue
		}
		return daterange.DateOf(t), candidate.dateOnly, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable %s %q", name, raw)
}

// Export describes an outbound calendar document.
type Export struct {
	Name     string
	Bookings []*booking.Booking
	Now      time.Time
}

// Generate renders blocking bookings as all-day VEVENTs keyed by booking id.
func Generate(exp Export) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	if exp.Name != "" {
		cal.SetXWRCalName(exp.Name)
	}
	stamp := exp.Now.UTC()
	for _, b := range exp.Bookings {
		if b == nil || !b.Status.Blocks() {
			continue
		}
		ev := cal.AddEvent(string(b.ID))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(b.Range.CheckIn)
		ev.SetAllDayEndAt(b.Range.CheckOut)
		ev.SetSummary(fmt.Sprintf("%s (%s)", b.Guest.Name, b.Status))
		ev.SetDescription(fmt.Sprintf("Reference: %s\nSource: %s", b.Reference, b.Source))
	}
	return cal.Serialize()
}
