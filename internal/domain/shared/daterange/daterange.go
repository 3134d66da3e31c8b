package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval [checkIn, checkOut)
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// DateOf returns the calendar date of t, as seen in t's own location, at midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MustDates builds a range from calendar dates; intended for tests and fixtures.
func MustDates(checkIn, checkOut string) DateRange {
	in, err := time.Parse(time.DateOnly, checkIn)
	if err != nil {
		panic(err)
	}
	out, err := time.Parse(time.DateOnly, checkOut)
	if err != nil {
		panic(err)
	}
	dr, err := New(in, out)
	if err != nil {
		panic(err)
	}
	return dr
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights rounds partial days up.
func (dr DateRange) Nights() int {
	d := dr.CheckOut.Sub(dr.CheckIn)
	if d <= 0 {
		return 0
	}
	nights := int(d / day)
	if d%day != 0 {
		nights++
	}
	return nights
}

// Overlaps treats both ranges as half-open, so back-to-back stays do not overlap.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return (dr.CheckIn.Before(other.CheckIn) || dr.CheckIn.Equal(other.CheckIn)) &&
		(dr.CheckOut.After(other.CheckOut) || dr.CheckOut.Equal(other.CheckOut))
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

func (dr DateRange) Equal(other DateRange) bool {
	return dr.CheckIn.Equal(other.CheckIn) && dr.CheckOut.Equal(other.CheckOut)
}

// StartsBefore reports whether the stay begins strictly before t.
func (dr DateRange) StartsBefore(t time.Time) bool {
	return dr.CheckIn.Before(t)
}
