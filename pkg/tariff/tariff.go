// Package tariff defines the boundary to the pricing rule engine. The
// billing core produces period records; pricing consumes them and returns
// the same records enriched with monetary amounts.
package tariff

import (
	"context"

	"github.com/enerflux/voltcore/pkg/models"
)

// Engine prices computed periods. Implementations own the tariff rule
// lookup; the billing core never inspects the amounts it gets back.
type Engine interface {
	// PriceSubscriptions returns the input periods with the fixed
	// (power-based) charge attached, in the same order.
	PriceSubscriptions(ctx context.Context, periods []models.SubscriptionPeriod) ([]models.PricedSubscriptionPeriod, error)
	// PriceEnergy returns the input periods with the variable
	// (consumption-based) charge attached, in the same order.
	PriceEnergy(ctx context.Context, periods []models.EnergyPeriod) ([]models.PricedEnergyPeriod, error)
}

// NoopEngine passes periods through with zero amounts. Used when pricing is
// disabled by configuration.
type NoopEngine struct{}

func (NoopEngine) PriceSubscriptions(_ context.Context, periods []models.SubscriptionPeriod) ([]models.PricedSubscriptionPeriod, error) {
	out := make([]models.PricedSubscriptionPeriod, len(periods))
	for i := range periods {
		out[i] = models.PricedSubscriptionPeriod{SubscriptionPeriod: periods[i]}
	}
	return out, nil
}

func (NoopEngine) PriceEnergy(_ context.Context, periods []models.EnergyPeriod) ([]models.PricedEnergyPeriod, error) {
	out := make([]models.PricedEnergyPeriod, len(periods))
	for i := range periods {
		out[i] = models.PricedEnergyPeriod{EnergyPeriod: periods[i]}
	}
	return out, nil
}
