package memory

import (
	"context"
	"sync"

	appoutbox "rentdesk/internal/app/outbox"
	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/payments"
	"rentdesk/internal/domain/properties"
)

// Store keeps every aggregate in process memory. Writable units are serialized
// by writeMu for their whole lifetime, so a unit observes a consistent snapshot
// and commits atomically.
type Store struct {
	writeMu sync.Mutex

	mu         sync.RWMutex
	properties map[properties.PropertyID]*properties.Property
	bookings   map[booking.BookingID]*booking.Booking
	payments   map[payments.PaymentID]*payments.Payment

	Outbox *OutboxQueue
}

func NewStore() *Store {
	return &Store{
		properties: make(map[properties.PropertyID]*properties.Property),
		bookings:   make(map[booking.BookingID]*booking.Booking),
		payments:   make(map[payments.PaymentID]*payments.Payment),
		Outbox:     NewOutboxQueue(),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) commit(u *Unit) {
	s.mu.Lock()
	for id, p := range u.properties {
		s.properties[id] = p
	}
	for id, b := range u.bookings {
		s.bookings[id] = b
	}
	for id, p := range u.payments {
		s.payments[id] = p
	}
	for id := range u.deletedPayments {
		delete(s.payments, id)
	}
	s.mu.Unlock()
	s.Outbox.append(u.events)
}

func (s *Store) property(id properties.PropertyID) (*properties.Property, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	return p, ok
}

func (s *Store) booking(id booking.BookingID) (*booking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	return b, ok
}

func (s *Store) payment(id payments.PaymentID) (*payments.Payment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[id]
	return p, ok
}

func (s *Store) allProperties() []*properties.Property {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*properties.Property, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, p)
	}
	return out
}

func (s *Store) allBookings() []*booking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*booking.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	return out
}

func (s *Store) allPayments() []*payments.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*payments.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

// Events returns every committed outbox record in commit order.
func (s *Store) Events() []appoutbox.EventRecord {
	return s.Outbox.Records()
}
