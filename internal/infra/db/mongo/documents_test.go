package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

func TestBookingDocumentKeepsDerivedInputs(t *testing.T) {
	checkedIn := time.Date(2025, 3, 1, 15, 0, 0, 0, time.UTC)
	b := &booking.Booking{
		ID:                "bk-1",
		OrgID:             "org-1",
		PropertyID:        "prop-1",
		Guest:             booking.Guest{Name: "Ada", Email: "ada@example.com"},
		Guests:            2,
		Range:             daterange.MustDates("2025-03-01", "2025-03-04"),
		BaseRate:          money.Must(80000, "USD"),
		TotalAmount:       money.Must(250000, "USD"),
		AdditionalCharges: money.Must(10000, "USD"),
		AmountPaid:        money.Must(70000, "USD"),
		Status:            booking.StatusCheckedIn,
		Source:            booking.SourceAirbnb,
		ExternalID:        "uid-1@airbnb.com",
		FeedURL:           "https://www.airbnb.com/calendar/ical/1.ics",
		CheckedInAt:       &checkedIn,
		Version:           4,
	}

	raw, err := bson.Marshal(newBookingDocument(b))
	require.NoError(t, err)
	var doc bookingDocument
	require.NoError(t, bson.Unmarshal(raw, &doc))
	got := doc.toAggregate()

	assert.Equal(t, b.Range, got.Range)
	assert.Equal(t, 3, got.Nights())
	assert.Equal(t, int64(180000), got.AmountDue().Amount)
	assert.Equal(t, booking.PaymentPartiallyPaid, got.PaymentStatus())
	assert.Equal(t, b.ExternalID, got.ExternalID)
	assert.Equal(t, b.FeedURL, got.FeedURL)
	require.NotNil(t, got.CheckedInAt)
	assert.True(t, checkedIn.Equal(*got.CheckedInAt))
	assert.Nil(t, got.CheckedOutAt)
	assert.Equal(t, int64(4), got.Version)
}

func TestListFilterTranslation(t *testing.T) {
	q := listFilter(booking.ListFilter{
		Statuses:     []booking.Status{booking.StatusPending, booking.StatusConfirmed},
		Source:       booking.SourceAirbnb,
		ImportedOnly: true,
		FeedURL:      "https://a.example/cal.ics",
	})
	assert.Equal(t, bson.M{"$in": []string{"PENDING", "CONFIRMED"}}, q["status"])
	assert.Equal(t, "AIRBNB", q["source"])
	assert.Equal(t, bson.M{"$gt": ""}, q["external_id"])
	assert.Equal(t, "https://a.example/cal.ics", q["feed_url"])

	assert.Empty(t, listFilter(booking.ListFilter{}))
}
