package calendar

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Airbnb Inc//Hosting Calendar 1.0//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:abc123\r\n" +
	"DTSTART;VALUE=DATE:20240301\r\n" +
	"DTEND;VALUE=DATE:20240305\r\n" +
	"SUMMARY:Reserved\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:timed-1\r\n" +
	"DTSTART:20240310T150000Z\r\n" +
	"DTEND:20240312T110000Z\r\n" +
	"SUMMARY:Jane Doe\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:cancelled-1\r\n" +
	"STATUS:CANCELLED\r\n" +
	"DTSTART;VALUE=DATE:20240401\r\n" +
	"DTEND;VALUE=DATE:20240402\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:broken-1\r\n" +
	"DTSTART:yesterday\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single-day\r\n" +
	"DTSTART;VALUE=DATE:20240420\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse(t *testing.T) {
	evs, invalid, err := Parse(strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, evs, 3)
	require.Len(t, invalid, 1)
	assert.Equal(t, "broken-1", invalid[0].UID)

	first := evs[0]
	assert.Equal(t, "abc123", first.UID)
	assert.Equal(t, "Reserved", first.Summary)
	dr, err := first.Range()
	require.NoError(t, err)
	assert.True(t, dr.Equal(daterange.MustDates("2024-03-01", "2024-03-05")))
	assert.Equal(t, 4, dr.Nights())

	timed := evs[1]
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), timed.Start)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), timed.End)
	dr, err = timed.Range()
	require.NoError(t, err)
	assert.Equal(t, 2, dr.Nights())

	single := evs[2]
	assert.Equal(t, single.Start.AddDate(0, 0, 1), single.End)
}

func TestParseTimedEventsUseTheirOwnDates(t *testing.T) {
	doc := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//x//y//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:tz-1\r\n" +
		"DTSTART;TZID=America/New_York:20240310T220000\r\n" +
		"DTEND;TZID=America/New_York:20240312T100000\r\n" +
		"END:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:same-day\r\n" +
		"DTSTART:20240315T090000Z\r\nDTEND:20240315T170000Z\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	evs, invalid, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	dr, err := evs[0].Range()
	require.NoError(t, err)
	assert.True(t, dr.Equal(daterange.MustDates("2024-03-10", "2024-03-12")), "local dates, not UTC: %v", dr)

	require.Len(t, invalid, 1)
	assert.Equal(t, "same-day", invalid[0].UID)
}

func TestEventRangeRejectsInvertedDates(t *testing.T) {
	ev := Event{UID: "x", Start: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	_, err := ev.Range()
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGenerateExportsBlockingBookings(t *testing.T) {
	bookings := []*booking.Booking{
		{ID: "b-1", Reference: "BK-1", Guest: booking.Guest{Name: "Ada"}, Status: booking.StatusConfirmed, Source: booking.SourceDirect, Range: daterange.MustDates("2024-03-01", "2024-03-04")},
		{ID: "b-2", Reference: "BK-2", Guest: booking.Guest{Name: "Bob"}, Status: booking.StatusCancelled, Range: daterange.MustDates("2024-03-05", "2024-03-06")},
		{ID: "b-3", Reference: "BK-3", Guest: booking.Guest{Name: "Cy"}, Status: booking.StatusPending, Range: daterange.MustDates("2024-03-10", "2024-03-12")},
	}
	out := Generate(Export{Name: "Loft", Bookings: bookings, Now: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "METHOD:PUBLISH")
	assert.Contains(t, out, "UID:b-1")
	assert.Contains(t, out, "UID:b-3")
	assert.NotContains(t, out, "UID:b-2")
	assert.Contains(t, out, "20240301")
	assert.Contains(t, out, "Ada (CONFIRMED)")
	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))

	evs, invalid, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	assert.Empty(t, invalid)
	require.Len(t, evs, 2)
	assert.Equal(t, "b-1", evs[0].UID)
	dr, err := evs[0].Range()
	require.NoError(t, err)
	assert.True(t, dr.Equal(bookings[0].Range))
}
