package app_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app"
	"rentdesk/internal/app/commands"
	"rentdesk/internal/app/dto"
	bookingapp "rentdesk/internal/app/handlers/bookings"
	paymentapp "rentdesk/internal/app/handlers/payments"
	propertyapp "rentdesk/internal/app/handlers/properties"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/services/calendarsync"
	domainbooking "rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/apperr"
	infraoutbox "rentdesk/internal/infra/outbox"
	"rentdesk/internal/infra/storage/memory"
	"rentdesk/internal/infra/validation"
)

const org = "org-1"

type feedStub struct {
	mu    sync.Mutex
	feeds map[string]string
}

func (f *feedStub) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[url] = body
}

func (f *feedStub) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.feeds[url]
	if !ok {
		return nil, fmt.Errorf("unexpected status 404 for %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type fixture struct {
	app      *app.Application
	store    *memory.Store
	feeds    *feedStub
	producer *infraoutbox.LogProducer
}

func newFixture(t *testing.T, cancelMissing bool) *fixture {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer := &infraoutbox.LogProducer{Logger: logger, Keep: 100}
	feeds := &feedStub{feeds: map[string]string{}}
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	application := app.New(app.Options{
		UoWFactory:      memory.Factory{Store: store},
		Idempotency:     memory.NewIdempotencyStore(time.Hour),
		Flusher:         &infraoutbox.Worker{Queue: store.Outbox, Producer: producer, Logger: logger},
		Locker:          memory.NewLocker(),
		Validator:       validation.New(),
		Fetcher:         feeds,
		Clock:           func() time.Time { return now },
		Logger:          logger,
		DefaultCurrency: "USD",
		SyncConcurrency: 2,
		CancelMissing:   cancelMissing,
	})
	return &fixture{app: application, store: store, feeds: feeds, producer: producer}
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *fixture) property(t *testing.T, dailyRate string, feeds ...propertyapp.FeedInput) *dto.Property {
	t.Helper()
	p, err := commands.Dispatch[propertyapp.RegisterPropertyCommand, *dto.Property](context.Background(), f.app.Commands, propertyapp.RegisterPropertyCommand{
		OrgID:      org,
		Name:       "Harbour Loft",
		RentalType: "SHORT_TERM",
		DailyRate:  dailyRate,
		Feeds:      feeds,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) book(propertyID, checkIn, checkOut string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), f.app.Commands, bookingapp.CreateBookingCommand{
		OrgID:      org,
		PropertyID: propertyID,
		GuestName:  "Ana Silva",
		CheckIn:    day(checkIn),
		CheckOut:   day(checkOut),
	})
}

func (f *fixture) getProperty(t *testing.T, id string) *dto.Property {
	t.Helper()
	p, err := queries.Ask[propertyapp.GetPropertyQuery, *dto.Property](context.Background(), f.app.Queries, propertyapp.GetPropertyQuery{OrgID: org, PropertyID: id})
	require.NoError(t, err)
	return p
}

func (f *fixture) getBooking(t *testing.T, id string) *dto.Booking {
	t.Helper()
	b, err := queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](context.Background(), f.app.Queries, bookingapp.GetBookingQuery{OrgID: org, BookingID: id})
	require.NoError(t, err)
	return b
}

func TestCreateBookingPricesAndRejectsOverlap(t *testing.T) {
	f := newFixture(t, false)
	p := f.property(t, "800")

	b, err := f.book(p.ID, "2024-03-01", "2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, 3, b.NumberOfNights)
	assert.Equal(t, int64(240000), b.TotalAmount.Amount)
	assert.Equal(t, "CONFIRMED", b.Status)
	assert.Equal(t, "PENDING", b.PaymentStatus)

	_, err = f.book(p.ID, "2024-03-03", "2024-03-05")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrAvailability)
	var avail *domainbooking.AvailabilityError
	require.ErrorAs(t, err, &avail)
	require.Len(t, avail.Conflicts, 1)
	assert.Equal(t, b.ID, string(avail.Conflicts[0].ID))

	_, err = f.book(p.ID, "2024-03-04", "2024-03-05")
	assert.NoError(t, err)

	_, err = f.book(p.ID, "2024-03-05", "2024-03-05")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCheckOutKeepsPropertyOccupiedWhileAnotherGuestStays(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.property(t, "100")
	first, err := f.book(p.ID, "2024-03-01", "2024-03-04")
	require.NoError(t, err)
	second, err := f.book(p.ID, "2024-03-04", "2024-03-06")
	require.NoError(t, err)

	for _, id := range []string{first.ID, second.ID} {
		_, err := commands.Dispatch[bookingapp.CheckInCommand, *dto.Booking](ctx, f.app.Commands, bookingapp.NewCheckInCommand(org, id, "keys handed over"))
		require.NoError(t, err)
	}
	assert.Equal(t, "OCCUPIED", f.getProperty(t, p.ID).Status)

	out, err := commands.Dispatch[bookingapp.CheckOutCommand, *dto.Booking](ctx, f.app.Commands, bookingapp.NewCheckOutCommand(org, first.ID, "", "broken lamp", "50.00"))
	require.NoError(t, err)
	assert.Equal(t, "CHECKED_OUT", out.Status)
	assert.Equal(t, int64(35000), out.TotalAmount.Amount)
	assert.Equal(t, "OCCUPIED", f.getProperty(t, p.ID).Status)

	_, err = commands.Dispatch[bookingapp.CheckOutCommand, *dto.Booking](ctx, f.app.Commands, bookingapp.NewCheckOutCommand(org, second.ID, "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", f.getProperty(t, p.ID).Status)

	_, err = commands.Dispatch[bookingapp.CheckInCommand, *dto.Booking](ctx, f.app.Commands, bookingapp.NewCheckInCommand(org, first.ID, ""))
	var state *domainbooking.StateError
	require.ErrorAs(t, err, &state)
	assert.Equal(t, domainbooking.StatusCheckedOut, state.Current)

	done, err := commands.Dispatch[bookingapp.CompleteBookingCommand, *dto.Booking](ctx, f.app.Commands, bookingapp.NewCompleteBookingCommand(org, first.ID))
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", done.Status)
}

func TestPaymentsCannotExceedTotal(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.property(t, "500")
	b, err := f.book(p.ID, "2024-03-01", "2024-03-03")
	require.NoError(t, err)
	require.Equal(t, int64(100000), b.TotalAmount.Amount)

	record := func(amount, key string) (*dto.PaymentResult, error) {
		return commands.Dispatch[paymentapp.RecordPaymentCommand, *dto.PaymentResult](ctx, f.app.Commands, paymentapp.RecordPaymentCommand{
			OrgID: org, BookingID: b.ID, Amount: amount, Method: "card", IdempotencyKeyV: key,
		})
	}
	_, err = record("400", "p1")
	require.NoError(t, err)
	res, err := record("300", "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(70000), res.Booking.AmountPaid.Amount)
	assert.Equal(t, int64(30000), res.Booking.AmountDue.Amount)
	assert.Equal(t, "PARTIALLY_PAID", res.Booking.PaymentStatus)

	replayed, err := record("300", "p2")
	require.NoError(t, err)
	assert.Equal(t, res.Payment.ID, replayed.Payment.ID)

	_, err = record("400", "p3")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	list, err := queries.Ask[paymentapp.ListPaymentsQuery, dto.PaymentCollection](ctx, f.app.Queries, paymentapp.ListPaymentsQuery{OrgID: org, BookingID: b.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, int64(70000), f.getBooking(t, b.ID).AmountPaid.Amount)
}

func TestCommittedEventsAreRelayed(t *testing.T) {
	f := newFixture(t, false)
	p := f.property(t, "120")
	_, err := f.book(p.ID, "2024-03-01", "2024-03-02")
	require.NoError(t, err)

	assert.Zero(t, f.store.Outbox.Pending())
	var topics []string
	for _, msg := range f.producer.Published() {
		topics = append(topics, msg.Topic)
	}
	assert.Contains(t, topics, "booking.events.v1")
	assert.Contains(t, topics, "property.events.v1")
}

func TestFailedCommandRollsBack(t *testing.T) {
	f := newFixture(t, false)
	p := f.property(t, "120")
	_, err := f.book(p.ID, "2024-03-01", "2024-03-04")
	require.NoError(t, err)
	before := len(f.store.Events())

	_, err = f.book(p.ID, "2024-03-02", "2024-03-03")
	require.Error(t, err)
	assert.Len(t, f.store.Events(), before)

	list, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](context.Background(), f.app.Queries, bookingapp.ListBookingsQuery{OrgID: org, PropertyID: p.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestForeignOrganisationIsForbidden(t *testing.T) {
	f := newFixture(t, false)
	p := f.property(t, "120")
	b, err := f.book(p.ID, "2024-03-01", "2024-03-04")
	require.NoError(t, err)

	_, err = queries.Ask[bookingapp.GetBookingQuery, *dto.Booking](context.Background(), f.app.Queries, bookingapp.GetBookingQuery{OrgID: "org-2", BookingID: b.ID})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](context.Background(), f.app.Commands, bookingapp.NewCancelBookingCommand("org-2", b.ID, "nope"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, "CONFIRMED", f.getBooking(t, b.ID).Status)
}

func TestIdempotencyKeyIsNotSharedAcrossOrganisations(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	mine := f.property(t, "120")
	theirs, err := commands.Dispatch[propertyapp.RegisterPropertyCommand, *dto.Property](ctx, f.app.Commands, propertyapp.RegisterPropertyCommand{
		OrgID: "org-2", Name: "Hill Cabin", RentalType: "SHORT_TERM", DailyRate: "90",
	})
	require.NoError(t, err)

	create := func(orgID, propertyID, guest string) (*dto.Booking, error) {
		return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, f.app.Commands, bookingapp.CreateBookingCommand{
			OrgID: orgID, PropertyID: propertyID, GuestName: guest,
			CheckIn: day("2024-03-01"), CheckOut: day("2024-03-03"), IdempotencyKeyV: "k1",
		})
	}
	first, err := create(org, mine.ID, "Secret Guest")
	require.NoError(t, err)

	second, err := create("org-2", theirs.ID, "Other Guest")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "Other Guest", second.GuestName)

	_, err = create("", mine.ID, "Secret Guest")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

const feedURL = "https://www.airbnb.com/calendar/ical/123.ics"

func feed(events ...string) string {
	return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Airbnb Inc//Hosting Calendar//EN\r\n" +
		strings.Join(events, "") + "END:VCALENDAR\r\n"
}

func vevent(uid, start, end string) string {
	return "BEGIN:VEVENT\r\nUID:" + uid + "\r\nDTSTART;VALUE=DATE:" + start + "\r\nDTEND;VALUE=DATE:" + end +
		"\r\nSUMMARY:Reserved\r\nEND:VEVENT\r\n"
}

func TestCalendarImportIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.property(t, "120")
	f.feeds.set(feedURL, feed(vevent("abc@airbnb.com", "20240310", "20240314")))

	req := calendarsync.Request{OrgID: org, PropertyID: p.ID, URL: feedURL, Source: "AIRBNB"}
	res, err := f.app.Calendars.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsFound)
	assert.Equal(t, 1, res.Imported)
	assert.Empty(t, res.Errors)

	res, err = f.app.Calendars.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Unchanged)

	list, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](ctx, f.app.Queries, bookingapp.ListBookingsQuery{OrgID: org, PropertyID: p.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	imported := list.Items[0]
	assert.Equal(t, "AIRBNB", imported.Source)
	assert.Equal(t, "abc@airbnb.com", imported.ExternalID)
	assert.Equal(t, int64(0), imported.TotalAmount.Amount)

	f.feeds.set(feedURL, feed(vevent("abc@airbnb.com", "20240310", "20240316")))
	res, err = f.app.Calendars.Sync(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	updated := f.getBooking(t, imported.ID)
	assert.Equal(t, "2024-03-16", updated.CheckOutDate)
	assert.Equal(t, 6, updated.NumberOfNights)
}

func TestCalendarImportReportsPartialFailures(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.property(t, "120")
	_, err := f.book(p.ID, "2024-03-01", "2024-03-05")
	require.NoError(t, err)

	broken := "BEGIN:VEVENT\r\nUID:broken@airbnb.com\r\nSUMMARY:No dates\r\nEND:VEVENT\r\n"
	f.feeds.set(feedURL, feed(
		vevent("ok@airbnb.com", "20240320", "20240322"),
		vevent("clash@airbnb.com", "20240303", "20240306"),
		broken,
	))
	res, err := f.app.Calendars.Sync(ctx, calendarsync.Request{OrgID: org, PropertyID: p.ID, URL: feedURL})
	require.NoError(t, err)
	assert.Equal(t, "AIRBNB", res.Source)
	assert.Equal(t, 3, res.EventsFound)
	assert.Equal(t, 1, res.Imported)
	assert.Len(t, res.Errors, 2)

	_, err = f.app.Calendars.Sync(ctx, calendarsync.Request{OrgID: org, PropertyID: p.ID, URL: "https://example.com/missing.ics"})
	require.NoError(t, err)

	_, err = f.app.Calendars.Sync(ctx, calendarsync.Request{OrgID: "org-2", PropertyID: p.ID, URL: feedURL})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestSyncAllCancelsEventsRemovedFromFeed(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.property(t, "120", propertyapp.FeedInput{URL: feedURL, Source: "AIRBNB"})
	f.feeds.set(feedURL, feed(
		vevent("keep@airbnb.com", "20240310", "20240312"),
		vevent("gone@airbnb.com", "20240320", "20240322"),
	))

	report, err := f.app.Calendars.SyncAll(ctx, org)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 2, report.Results[0].Imported)
	assert.Zero(t, report.Failed)

	f.feeds.set(feedURL, feed(vevent("keep@airbnb.com", "20240310", "20240312")))
	report, err = f.app.Calendars.SyncAll(ctx, "")
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, 1, report.Results[0].Cancelled)

	list, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](ctx, f.app.Queries, bookingapp.ListBookingsQuery{OrgID: org, PropertyID: p.ID, Status: "CANCELLED"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "gone@airbnb.com", list.Items[0].ExternalID)
}

func TestCancelMissingIsScopedToEachFeed(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	const feedA, feedB = "https://a.example/cal.ics", "https://b.example/cal.ics"
	p := f.property(t, "120", propertyapp.FeedInput{URL: feedA}, propertyapp.FeedInput{URL: feedB})
	f.feeds.set(feedA, feed(vevent("a1@a.example", "20240310", "20240312")))
	f.feeds.set(feedB, feed(vevent("b1@b.example", "20240320", "20240322")))

	for i := 0; i < 2; i++ {
		report, err := f.app.Calendars.SyncAll(ctx, org)
		require.NoError(t, err)
		require.Len(t, report.Results, 2)
		for _, res := range report.Results {
			assert.Equal(t, "OTHER", res.Source)
			assert.Zero(t, res.Cancelled, "run %d feed %s", i, res.URL)
		}
	}
	active, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](ctx, f.app.Queries, bookingapp.ListBookingsQuery{OrgID: org, PropertyID: p.ID, Status: "CONFIRMED"})
	require.NoError(t, err)
	assert.Len(t, active.Items, 2)

	f.feeds.set(feedA, feed(vevent("other@a.example", "20240401", "20240403")))
	_, err = f.app.Calendars.SyncAll(ctx, org)
	require.NoError(t, err)

	byExternal := map[string]dto.Booking{}
	list, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](ctx, f.app.Queries, bookingapp.ListBookingsQuery{OrgID: org, PropertyID: p.ID})
	require.NoError(t, err)
	for _, b := range list.Items {
		byExternal[b.ExternalID] = b
	}
	assert.Equal(t, "CANCELLED", byExternal["a1@a.example"].Status)
	assert.Equal(t, "CONFIRMED", byExternal["b1@b.example"].Status)
	assert.Equal(t, "CONFIRMED", byExternal["other@a.example"].Status)
	assert.NotEqual(t, byExternal["a1@a.example"].FeedURL, byExternal["b1@b.example"].FeedURL)

	f.feeds.set(feedA, feed(
		vevent("other@a.example", "20240401", "20240403"),
		vevent("a1@a.example", "20240310", "20240313"),
	))
	res, err := f.app.Calendars.Sync(ctx, calendarsync.Request{OrgID: org, PropertyID: p.ID, URL: byExternal["a1@a.example"].FeedURL})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reinstated)
	assert.Zero(t, res.Imported)

	back := f.getBooking(t, byExternal["a1@a.example"].ID)
	assert.Equal(t, "CONFIRMED", back.Status)
	assert.Equal(t, "2024-03-13", back.CheckOutDate)
	assert.Empty(t, back.CancellationReason)
}

func TestTimedFeedEventsAllowSameDayTurnover(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	p := f.property(t, "120")
	timed := "BEGIN:VEVENT\r\nUID:timed@a.example\r\nDTSTART:20240310T150000Z\r\nDTEND:20240312T110000Z\r\nSUMMARY:Jane\r\nEND:VEVENT\r\n"
	f.feeds.set(feedURL, feed(timed))

	req := calendarsync.Request{OrgID: org, PropertyID: p.ID, URL: feedURL}
	res, err := f.app.Calendars.Sync(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	next, err := f.book(p.ID, "2024-03-12", "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-12", next.CheckInDate)

	res, err = f.app.Calendars.Sync(ctx, req)
	require.NoError(t, err)
	assert.Zero(t, res.Imported)
	assert.Zero(t, res.Updated)
	assert.Equal(t, 1, res.Unchanged)
}
