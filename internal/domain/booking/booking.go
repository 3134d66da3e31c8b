package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/apperr"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/events"
	"rentdesk/internal/domain/shared/money"
)

var (
	ErrBookingNotFound     = fmt.Errorf("booking: %w", apperr.ErrNotFound)
	ErrDuplicateExternalID = fmt.Errorf("booking: external id already imported for property: %w", apperr.ErrStateConflict)
	ErrInvalidGuests       = &apperr.ValidationError{Field: "number_of_guests", Message: "must be positive"}
	ErrGuestNameRequired   = &apperr.ValidationError{Field: "guest_name", Message: "required"}
	ErrInvalidRange        = &apperr.ValidationError{Field: "check_out_date", Message: "must be after check-in date"}
)

type BookingID string

type Guest struct {
	Name  string
	Email string
	Phone string
}

// Booking is a reservation of a property for a contiguous half-open date range.
// Nights, amount due and payment status are always derived; only AmountPaid is stored
// and it is only ever replaced wholesale by ApplyPayments.
type Booking struct {
	ID                 BookingID
	OrgID              string
	PropertyID         properties.PropertyID
	Reference          string
	Guest              Guest
	Guests             int
	Range              daterange.DateRange
	BaseRate           money.Money
	TotalAmount        money.Money
	AdditionalCharges  money.Money
	AmountPaid         money.Money
	Status             Status
	Source             Source
	ExternalID         string
	FeedURL            string
	Notes              string
	CheckInNotes       string
	CheckOutNotes      string
	DamageReport       string
	CancellationReason string
	CheckedInAt        *time.Time
	CheckedOutAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

type ListFilter struct {
	Statuses     []Status
	Source       Source
	ImportedOnly bool
	FeedURL      string
}

func (f ListFilter) Match(b *Booking) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if b.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Source != "" && b.Source != f.Source {
		return false
	}
	if f.ImportedOnly && b.ExternalID == "" {
		return false
	}
	if f.FeedURL != "" && b.FeedURL != f.FeedURL {
		return false
	}
	return true
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByExternalID(ctx context.Context, propertyID properties.PropertyID, externalID string) (*Booking, error)
	ListByProperty(ctx context.Context, propertyID properties.PropertyID, filter ListFilter) ([]*Booking, error)
	ListByOrg(ctx context.Context, orgID string, filter ListFilter) ([]*Booking, error)
	Save(ctx context.Context, booking *Booking) error
}

type CreateParams struct {
	ID         BookingID
	OrgID      string
	PropertyID properties.PropertyID
	Reference  string
	Guest      Guest
	Guests     int
	Range      daterange.DateRange
	BaseRate   money.Money
	Total      money.Money
	Status     Status
	Source     Source
	ExternalID string
	FeedURL    string
	Notes      string
	CreatedAt  time.Time
}

func NewBooking(params CreateParams) (*Booking, error) {
	guests := params.Guests
	if guests == 0 {
		guests = 1
	}
	if guests < 0 {
		return nil, ErrInvalidGuests
	}
	name := strings.TrimSpace(params.Guest.Name)
	if name == "" {
		return nil, ErrGuestNameRequired
	}
	if err := params.Range.Validate(); err != nil {
		return nil, ErrInvalidRange
	}
	status := params.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusConfirmed {
		return nil, apperr.Invalid("status", "new bookings start as PENDING or CONFIRMED, got %s", status)
	}
	if params.Total.Amount < 0 {
		return nil, apperr.Invalid("total_amount", "must not be negative")
	}
	if params.Total.Currency == "" {
		return nil, apperr.Invalid("total_amount", "currency required")
	}
	source := params.Source
	if source == "" {
		source = SourceDirect
	}
	now := params.CreatedAt.UTC()
	reference := params.Reference
	if reference == "" {
		reference = NewReference(params.Range.CheckIn)
	}
	b := &Booking{
		ID:         params.ID,
		OrgID:      params.OrgID,
		PropertyID: params.PropertyID,
		Reference:  reference,
		Guest: Guest{
			Name:  name,
			Email: strings.TrimSpace(params.Guest.Email),
			Phone: strings.TrimSpace(params.Guest.Phone),
		},
		Guests:            guests,
		Range:             params.Range,
		BaseRate:          params.BaseRate,
		TotalAmount:       params.Total,
		AdditionalCharges: money.Zero(params.Total.Currency),
		AmountPaid:        money.Zero(params.Total.Currency),
		Status:            status,
		Source:            source,
		ExternalID:        strings.TrimSpace(params.ExternalID),
		FeedURL:           strings.TrimSpace(params.FeedURL),
		Notes:             params.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if b.BaseRate.Currency == "" {
		b.BaseRate = money.Zero(params.Total.Currency)
	}
	if b.ExternalID != "" {
		b.Record(BookingImported{BookingID: b.ID, PropertyID: b.PropertyID, ExternalID: b.ExternalID, Source: b.Source, Range: b.Range, At: now})
	} else {
		b.Record(BookingCreated{BookingID: b.ID, PropertyID: b.PropertyID, Reference: b.Reference, GuestEmail: b.Guest.Email, Range: b.Range, Total: b.TotalAmount, Status: b.Status, Source: b.Source, At: now})
	}
	return b, nil
}

// Nights is derived from the date range on every read.
func (b *Booking) Nights() int {
	return b.Range.Nights()
}

// AmountDue is TotalAmount minus AmountPaid.
func (b *Booking) AmountDue() money.Money {
	return money.Money{Amount: b.TotalAmount.Amount - b.AmountPaid.Amount, Currency: b.TotalAmount.Currency}
}

// PaymentStatus follows the paid amount relative to the total. A zero-total booking
// is PAID from the start.
func (b *Booking) PaymentStatus() PaymentStatus {
	switch {
	case b.AmountPaid.Amount >= b.TotalAmount.Amount:
		return PaymentPaid
	case b.AmountPaid.Amount > 0:
		return PaymentPartiallyPaid
	default:
		return PaymentPending
	}
}

func (b *Booking) CheckedIn() bool  { return b.CheckedInAt != nil }
func (b *Booking) CheckedOut() bool { return b.CheckedOutAt != nil }

// Imported reports whether the booking came from an external calendar feed.
func (b *Booking) Imported() bool { return b.ExternalID != "" }

func (b *Booking) transition(target Status, action string) error {
	if !b.Status.CanTransitionTo(target) {
		return &StateError{BookingID: b.ID, Current: b.Status, Action: action}
	}
	b.Status = target
	return nil
}

func (b *Booking) Confirm(now time.Time) error {
	if err := b.transition(StatusConfirmed, "confirm"); err != nil {
		return err
	}
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{BookingID: b.ID, PropertyID: b.PropertyID, Range: b.Range, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckIn(notes string, now time.Time) error {
	if err := b.transition(StatusCheckedIn, "check in"); err != nil {
		return err
	}
	at := now.UTC()
	b.CheckedInAt = &at
	if notes != "" {
		b.CheckInNotes = notes
	}
	b.UpdatedAt = at
	b.Record(GuestCheckedIn{BookingID: b.ID, PropertyID: b.PropertyID, At: at})
	return nil
}

// CheckOut closes the stay. Additional charges are added to the total, and so to the amount due.
func (b *Booking) CheckOut(notes, damageReport string, charges money.Money, now time.Time) error {
	if charges.Amount < 0 {
		return apperr.Invalid("additional_charges", "must not be negative")
	}
	if !charges.IsZero() && charges.Currency != b.TotalAmount.Currency {
		return apperr.Invalid("additional_charges", "currency %s does not match booking currency %s", charges.Currency, b.TotalAmount.Currency)
	}
	if err := b.transition(StatusCheckedOut, "check out"); err != nil {
		return err
	}
	at := now.UTC()
	b.CheckedOutAt = &at
	if notes != "" {
		b.CheckOutNotes = notes
	}
	if damageReport != "" {
		b.DamageReport = damageReport
	}
	if charges.Amount > 0 {
		b.AdditionalCharges.Amount += charges.Amount
		b.TotalAmount.Amount += charges.Amount
	}
	b.UpdatedAt = at
	b.Record(GuestCheckedOut{BookingID: b.ID, PropertyID: b.PropertyID, AdditionalCharges: charges, AmountDue: b.AmountDue(), At: at})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if err := b.transition(StatusCompleted, "complete"); err != nil {
		return err
	}
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Cancel(reason string, now time.Time) error {
	if err := b.transition(StatusCancelled, "cancel"); err != nil {
		return err
	}
	b.CancellationReason = reason
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, PropertyID: b.PropertyID, Reason: reason, Range: b.Range, At: b.UpdatedAt})
	return nil
}

func (b *Booking) MarkNoShow(now time.Time) error {
	if err := b.transition(StatusNoShow, "mark no-show"); err != nil {
		return err
	}
	b.UpdatedAt = now.UTC()
	b.Record(NoShowRecorded{BookingID: b.ID, At: b.UpdatedAt})
	return nil
}

// Reschedule moves a stay that has not started yet. The caller has already checked
// availability and priced the new range.
func (b *Booking) Reschedule(dr daterange.DateRange, baseRate, total money.Money, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusConfirmed {
		return &StateError{BookingID: b.ID, Current: b.Status, Action: "change dates"}
	}
	if err := dr.Validate(); err != nil {
		return ErrInvalidRange
	}
	if total.Amount < b.AmountPaid.Amount {
		return apperr.Invalid("check_out_date", "new total %s would fall below amount paid %s", total, b.AmountPaid)
	}
	previous := b.Range
	b.Range = dr
	b.BaseRate = baseRate
	b.TotalAmount = total
	b.UpdatedAt = now.UTC()
	b.Record(BookingRescheduled{BookingID: b.ID, PropertyID: b.PropertyID, Previous: previous, Range: dr, Total: total, At: b.UpdatedAt})
	return nil
}

// RemovedFromFeed reports whether the booking was cancelled because its event
// disappeared from the feed that imported it.
func (b *Booking) RemovedFromFeed() bool {
	return b.Status == StatusCancelled && b.Imported() && b.CancellationReason == ReasonRemovedFromFeed
}

// CancelRemovedImport cancels an imported booking whose event is no longer listed.
func (b *Booking) CancelRemovedImport(now time.Time) error {
	if !b.Imported() {
		return apperr.Invalid("external_id", "booking %s was not imported", b.ID)
	}
	return b.Cancel(ReasonRemovedFromFeed, now)
}

// Reinstate brings back an import cancelled by CancelRemovedImport once its event is
// listed again. Any other cancelled booking stays cancelled.
func (b *Booking) Reinstate(dr daterange.DateRange, guestName string, now time.Time) error {
	if !b.RemovedFromFeed() {
		return &StateError{BookingID: b.ID, Current: b.Status, Action: "reinstate"}
	}
	if err := dr.Validate(); err != nil {
		return ErrInvalidRange
	}
	b.Status = StatusConfirmed
	b.CancellationReason = ""
	b.Range = dr
	if name := strings.TrimSpace(guestName); name != "" {
		b.Guest.Name = name
	}
	b.UpdatedAt = now.UTC()
	b.Record(BookingReinstated{BookingID: b.ID, PropertyID: b.PropertyID, ExternalID: b.ExternalID, Range: b.Range, At: b.UpdatedAt})
	return nil
}

// ApplyFeed copies values from an external calendar event. It reports whether anything changed
// so that re-importing an unchanged feed is a no-op.
func (b *Booking) ApplyFeed(dr daterange.DateRange, guestName string, now time.Time) (bool, error) {
	if err := dr.Validate(); err != nil {
		return false, ErrInvalidRange
	}
	guestName = strings.TrimSpace(guestName)
	changed := false
	if !b.Range.Equal(dr) {
		b.Range = dr
		changed = true
	}
	if guestName != "" && guestName != b.Guest.Name {
		b.Guest.Name = guestName
		changed = true
	}
	if !changed {
		return false, nil
	}
	b.UpdatedAt = now.UTC()
	b.Record(BookingFeedUpdated{BookingID: b.ID, PropertyID: b.PropertyID, ExternalID: b.ExternalID, Range: b.Range, At: b.UpdatedAt})
	return true, nil
}

// ApplyPayments replaces AmountPaid with the authoritative sum of paid payments.
func (b *Booking) ApplyPayments(totalPaid money.Money, now time.Time) bool {
	if totalPaid.Currency == "" {
		totalPaid.Currency = b.TotalAmount.Currency
	}
	if b.AmountPaid.Amount == totalPaid.Amount && b.AmountPaid.Currency == totalPaid.Currency {
		return false
	}
	b.AmountPaid = totalPaid
	b.UpdatedAt = now.UTC()
	b.Record(PaymentsReconciled{BookingID: b.ID, AmountPaid: b.AmountPaid, AmountDue: b.AmountDue(), PaymentStatus: b.PaymentStatus(), At: b.UpdatedAt})
	return true
}

// ReasonRemovedFromFeed marks imports cancelled by a calendar sync.
const ReasonRemovedFromFeed = "removed from external calendar"

const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReference returns a human-facing code such as BK-20240301-7F3K9Q.
func NewReference(checkIn time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("booking: read random: %v", err))
	}
	for i := range buf {
		buf[i] = referenceAlphabet[int(buf[i])%len(referenceAlphabet)]
	}
	return fmt.Sprintf("BK-%s-%s", checkIn.UTC().Format("20060102"), buf)
}
