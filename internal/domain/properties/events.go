package properties

import "time"

type PropertyRegistered struct {
	PropertyID PropertyID
	OrgID      string
	At         time.Time
}

func (e PropertyRegistered) EventName() string     { return "property.registered" }
func (e PropertyRegistered) AggregateID() string   { return string(e.PropertyID) }
func (e PropertyRegistered) OccurredAt() time.Time { return e.At }

type PropertyOccupied struct {
	PropertyID PropertyID
	BookingID  string
	At         time.Time
}

func (e PropertyOccupied) EventName() string     { return "property.occupied" }
func (e PropertyOccupied) AggregateID() string   { return string(e.PropertyID) }
func (e PropertyOccupied) OccurredAt() time.Time { return e.At }

type PropertyVacated struct {
	PropertyID PropertyID
	BookingID  string
	At         time.Time
}

func (e PropertyVacated) EventName() string     { return "property.vacated" }
func (e PropertyVacated) AggregateID() string   { return string(e.PropertyID) }
func (e PropertyVacated) OccurredAt() time.Time { return e.At }
