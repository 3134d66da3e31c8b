package pricing

import (
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

// DaysPerMonth approximates a month when deriving a nightly rate from monthly rent.
const DaysPerMonth = 30

type Basis string

const (
	BasisDaily   Basis = "DAILY"
	BasisMonthly Basis = "MONTHLY"
	BasisNone    Basis = "NONE"
)

type Quote struct {
	Nights   int
	BaseRate money.Money
	Total    money.Money
	Basis    Basis
}

// Compute prices a stay. The daily rate wins when both rates are configured.
// Monthly totals are computed as rent*nights/30 in one step so rounding happens once.
func Compute(p *properties.Property, dr daterange.DateRange) (Quote, error) {
	nights := dr.Nights()
	switch {
	case p.DailyRate != nil:
		rate := *p.DailyRate
		return Quote{Nights: nights, BaseRate: rate, Total: rate.Multiply(int64(nights)), Basis: BasisDaily}, nil
	case p.MonthlyRent != nil:
		rent := *p.MonthlyRent
		base, err := rent.MulDiv(1, DaysPerMonth)
		if err != nil {
			return Quote{}, err
		}
		total, err := rent.MulDiv(int64(nights), DaysPerMonth)
		if err != nil {
			return Quote{}, err
		}
		return Quote{Nights: nights, BaseRate: base, Total: total, Basis: BasisMonthly}, nil
	default:
		zero := money.Zero(p.Currency)
		return Quote{Nights: nights, BaseRate: zero, Total: zero, Basis: BasisNone}, nil
	}
}
