package policies

import (
	"context"

	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/properties"
	"rentdesk/internal/domain/shared/daterange"
)

type PricingPort interface {
	Quote(ctx context.Context, property *properties.Property, dr daterange.DateRange) (pricing.Quote, error)
}

// RatePricing prices stays from the property's own daily or monthly rate.
type RatePricing struct{}

func (RatePricing) Quote(_ context.Context, property *properties.Property, dr daterange.DateRange) (pricing.Quote, error) {
	return pricing.Compute(property, dr)
}
