package booking

import (
	"fmt"
	"strings"

	"rentdesk/internal/domain/shared/apperr"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusCheckedOut},
	StatusCheckedOut: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// BlockingStatuses hold a date range against other bookings.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed, StatusCheckedIn}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Blocks reports whether a booking in this status occupies its dates.
func (s Status) Blocks() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", apperr.Invalid("status", "unknown booking status %q", raw)
	}
	return s, nil
}

type Source string

const (
	SourceDirect     Source = "DIRECT"
	SourceWebsite    Source = "WEBSITE"
	SourceAirbnb     Source = "AIRBNB"
	SourceBookingCom Source = "BOOKING_COM"
	SourceVrbo       Source = "VRBO"
	SourcePhone      Source = "PHONE"
	SourceEmail      Source = "EMAIL"
	SourceOther      Source = "OTHER"
)

var knownSources = map[Source]struct{}{
	SourceDirect: {}, SourceWebsite: {}, SourceAirbnb: {}, SourceBookingCom: {},
	SourceVrbo: {}, SourcePhone: {}, SourceEmail: {}, SourceOther: {},
}

func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToUpper(strings.TrimSpace(raw)))
	if s == "" {
		return SourceDirect, nil
	}
	if _, ok := knownSources[s]; !ok {
		return "", apperr.Invalid("booking_source", "unknown booking source %q", raw)
	}
	return s, nil
}

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "PENDING"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentPaid          PaymentStatus = "PAID"
)

var ErrInvalidState = fmt.Errorf("booking: invalid state transition: %w", apperr.ErrStateConflict)

// StateError is returned when a lifecycle action is not allowed from the current status.
type StateError struct {
	BookingID BookingID
	Current   Status
	Action    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("booking %s: cannot %s while %s", e.BookingID, e.Action, e.Current)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// AvailabilityError lists the bookings that block the requested range.
type AvailabilityError struct {
	PropertyID string
	CheckIn    string
	CheckOut   string
	Conflicts  []*Booking
}

func (e *AvailabilityError) Error() string {
	refs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		refs = append(refs, c.Reference)
	}
	return fmt.Sprintf("property %s is not available %s..%s: conflicts with %s",
		e.PropertyID, e.CheckIn, e.CheckOut, strings.Join(refs, ", "))
}

func (e *AvailabilityError) Unwrap() error { return apperr.ErrAvailability }
