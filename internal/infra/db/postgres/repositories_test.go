package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

func TestTranslateBookingError(t *testing.T) {
	b := &booking.Booking{ID: "bk-1", PropertyID: "prop-1", Range: daterange.MustDates("2025-03-03", "2025-03-06")}

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"overlap", &pgconn.PgError{Code: codeExclusionViolation, ConstraintName: overlapConstraint}, apperr.ErrAvailability},
		{"external id", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: externalIDIndex}, booking.ErrDuplicateExternalID},
		{"primary key", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "bookings_pkey"}, ErrConcurrentUpdate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := translateBookingError(b, fmt.Errorf("exec: %w", tc.err))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var availErr *booking.AvailabilityError
	err := translateBookingError(b, &pgconn.PgError{Code: codeExclusionViolation})
	require.True(t, errors.As(err, &availErr))
	assert.Equal(t, "2025-03-03", availErr.CheckIn)
	assert.Equal(t, "2025-03-06", availErr.CheckOut)

	plain := errors.New("connection reset")
	assert.Same(t, plain, translateBookingError(b, plain))
}

func TestPropertyModelRoundTrip(t *testing.T) {
	rent := money.Must(300000, "EUR")
	p := &properties.Property{
		ID: "prop-1", OrgID: "org-1", Name: "Loft", RentalType: properties.RentalLongTerm,
		MonthlyRent: &rent, Currency: "EUR", Status: properties.StatusActive,
		CalendarFeeds: []properties.CalendarFeed{{URL: "https://www.airbnb.com/calendar/ical/1.ics", Source: "AIRBNB"}},
		Version:       2,
	}
	m, err := newPropertyModel(p)
	require.NoError(t, err)
	assert.Nil(t, m.DailyRate)

	got, err := m.toAggregate()
	require.NoError(t, err)
	assert.Equal(t, p.CalendarFeeds, got.CalendarFeeds)
	require.NotNil(t, got.MonthlyRent)
	assert.Equal(t, rent, *got.MonthlyRent)
	assert.Nil(t, got.DailyRate)
}
