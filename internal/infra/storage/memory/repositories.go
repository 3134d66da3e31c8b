package memory

import (
	"context"
	"sort"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
)

type propertyRepository struct{ u *Unit }

func (r propertyRepository) current(id properties.PropertyID) (*properties.Property, bool) {
	if p, ok := r.u.properties[id]; ok {
		return p, true
	}
	return r.u.store.property(id)
}

func (r propertyRepository) ByID(ctx context.Context, id properties.PropertyID) (*properties.Property, error) {
	p, ok := r.current(id)
	if !ok {
		return nil, properties.ErrPropertyNotFound
	}
	return cloneProperty(p), nil
}

func (r propertyRepository) Save(ctx context.Context, p *properties.Property) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if existing, ok := r.current(p.ID); ok {
		if existing.Version != p.Version {
			return ErrConcurrentUpdate
		}
	} else if p.Version != 0 {
		return ErrConcurrentUpdate
	}
	p.Version++
	r.u.properties[p.ID] = cloneProperty(p)
	return nil
}

// Lock only checks existence: a writable unit already excludes every other writer.
func (r propertyRepository) Lock(ctx context.Context, id properties.PropertyID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.current(id); !ok {
		return properties.ErrPropertyNotFound
	}
	return nil
}

func (r propertyRepository) ListWithFeeds(ctx context.Context, orgID string) ([]*properties.Property, error) {
	merged := make(map[properties.PropertyID]*properties.Property)
	for _, p := range r.u.store.allProperties() {
		merged[p.ID] = p
	}
	for id, p := range r.u.properties {
		merged[id] = p
	}
	out := make([]*properties.Property, 0, len(merged))
	for _, p := range merged {
		if len(p.CalendarFeeds) == 0 {
			continue
		}
		if orgID != "" && p.OrgID != orgID {
			continue
		}
		out = append(out, cloneProperty(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type bookingRepository struct{ u *Unit }

func (r bookingRepository) current(id booking.BookingID) (*booking.Booking, bool) {
	if b, ok := r.u.bookings[id]; ok {
		return b, true
	}
	return r.u.store.booking(id)
}

func (r bookingRepository) visible() []*booking.Booking {
	merged := make(map[booking.BookingID]*booking.Booking)
	for _, b := range r.u.store.allBookings() {
		merged[b.ID] = b
	}
	for id, b := range r.u.bookings {
		merged[id] = b
	}
	out := make([]*booking.Booking, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	return out
}

func (r bookingRepository) ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error) {
	b, ok := r.current(id)
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r bookingRepository) ByExternalID(ctx context.Context, propertyID properties.PropertyID, externalID string) (*booking.Booking, error) {
	for _, b := range r.visible() {
		if b.PropertyID == propertyID && b.ExternalID != "" && b.ExternalID == externalID {
			return cloneBooking(b), nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (r bookingRepository) ListByProperty(ctx context.Context, propertyID properties.PropertyID, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.list(func(b *booking.Booking) bool { return b.PropertyID == propertyID }, filter), nil
}

func (r bookingRepository) ListByOrg(ctx context.Context, orgID string, filter booking.ListFilter) ([]*booking.Booking, error) {
	return r.list(func(b *booking.Booking) bool { return b.OrgID == orgID }, filter), nil
}

func (r bookingRepository) list(scope func(*booking.Booking) bool, filter booking.ListFilter) []*booking.Booking {
	var out []*booking.Booking
	for _, b := range r.visible() {
		if scope(b) && filter.Match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sortBookings(out)
	return out
}

func (r bookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if existing, ok := r.current(b.ID); ok {
		if existing.Version != b.Version {
			return ErrConcurrentUpdate
		}
	} else if b.Version != 0 {
		return ErrConcurrentUpdate
	}
	if b.ExternalID != "" {
		for _, other := range r.visible() {
			if other.ID != b.ID && other.PropertyID == b.PropertyID && other.ExternalID == b.ExternalID {
				return booking.ErrDuplicateExternalID
			}
		}
	}
	b.Version++
	r.u.bookings[b.ID] = cloneBooking(b)
	return nil
}

func sortBookings(list []*booking.Booking) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Range.CheckIn.Equal(b.Range.CheckIn) {
			return a.Range.CheckIn.Before(b.Range.CheckIn)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type paymentRepository struct{ u *Unit }

func (r paymentRepository) current(id payments.PaymentID) (*payments.Payment, bool) {
	if r.u.deletedPayments != nil {
		if _, gone := r.u.deletedPayments[id]; gone {
			return nil, false
		}
	}
	if p, ok := r.u.payments[id]; ok {
		return p, true
	}
	return r.u.store.payment(id)
}

func (r paymentRepository) ByID(ctx context.Context, id payments.PaymentID) (*payments.Payment, error) {
	p, ok := r.current(id)
	if !ok {
		return nil, payments.ErrPaymentNotFound
	}
	return clonePayment(p), nil
}

func (r paymentRepository) ListByBooking(ctx context.Context, bookingID string) ([]*payments.Payment, error) {
	merged := make(map[payments.PaymentID]*payments.Payment)
	for _, p := range r.u.store.allPayments() {
		merged[p.ID] = p
	}
	for id, p := range r.u.payments {
		merged[id] = p
	}
	for id := range r.u.deletedPayments {
		delete(merged, id)
	}
	var out []*payments.Payment
	for _, p := range merged {
		if p.BookingID == bookingID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.Before(out[j].PaidAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r paymentRepository) Save(ctx context.Context, p *payments.Payment) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if existing, ok := r.current(p.ID); ok {
		if existing.Version != p.Version {
			return ErrConcurrentUpdate
		}
	} else if p.Version != 0 {
		return ErrConcurrentUpdate
	}
	p.Version++
	delete(r.u.deletedPayments, p.ID)
	r.u.payments[p.ID] = clonePayment(p)
	return nil
}

func (r paymentRepository) Delete(ctx context.Context, id payments.PaymentID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	if _, ok := r.current(id); !ok {
		return payments.ErrPaymentNotFound
	}
	delete(r.u.payments, id)
	r.u.deletedPayments[id] = struct{}{}
	return nil
}

var (
	_ properties.Repository = propertyRepository{}
	_ booking.Repository    = bookingRepository{}
	_ payments.Repository   = paymentRepository{}
)
