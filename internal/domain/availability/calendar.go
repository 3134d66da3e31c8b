package availability

import (
	"sort"
	"time"

	"rentdesk/internal/domain/booking"
	"rentdesk/internal/domain/shared/daterange"
)

// Result of an availability check. Available is true iff Conflicts is empty.
type Result struct {
	Available bool
	Conflicts []*booking.Booking
}

// Check compares the candidate range against the given bookings of one property.
// Only blocking statuses count, and excludeID (if set) is skipped so a booking
// can be moved without conflicting with itself. The range must already be valid.
func Check(existing []*booking.Booking, candidate daterange.DateRange, excludeID booking.BookingID) Result {
	conflicts := make([]*booking.Booking, 0)
	for _, b := range existing {
		if b == nil || !b.Status.Blocks() {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if b.Range.Overlaps(candidate) {
			conflicts = append(conflicts, b)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Range.CheckIn.Before(conflicts[j].Range.CheckIn)
	})
	return Result{Available: len(conflicts) == 0, Conflicts: conflicts}
}

// Error converts a failed check into a typed availability error, or nil.
func (r Result) Error(propertyID string, candidate daterange.DateRange) error {
	if r.Available {
		return nil
	}
	return &booking.AvailabilityError{
		PropertyID: propertyID,
		CheckIn:    candidate.CheckIn.Format(time.DateOnly),
		CheckOut:   candidate.CheckOut.Format(time.DateOnly),
		Conflicts:  r.Conflicts,
	}
}

// Block is a blocked range on the property calendar.
type Block struct {
	Range     daterange.DateRange
	BookingID booking.BookingID
	Reference string
	Status    booking.Status
	Source    booking.Source
}

// Blocks lists blocking bookings that intersect window, ordered by check-in.
func Blocks(existing []*booking.Booking, window daterange.DateRange) []Block {
	blocks := make([]Block, 0)
	for _, b := range existing {
		if b == nil || !b.Status.Blocks() || !b.Range.Overlaps(window) {
			continue
		}
		blocks = append(blocks, Block{
			Range:     b.Range,
			BookingID: b.ID,
			Reference: b.Reference,
			Status:    b.Status,
			Source:    b.Source,
		})
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Range.CheckIn.Before(blocks[j].Range.CheckIn)
	})
	return blocks
}
