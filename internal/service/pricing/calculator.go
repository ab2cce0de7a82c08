package pricing

import (
	"context"
	"math"

	"github.com/gocomet/ride-sdk/internal/domain/booking"
)

// Money is an amount in whole local currency units
type Money = int64

// Rates holds the fare constants
type Rates struct {
	Base      float64
	PerKM     float64
	PerMinute float64
}

// DefaultRates are the production fare constants in local currency units
var DefaultRates = Rates{
	Base:      5000,
	PerKM:     2000,
	PerMinute: 500,
}

// Quote is the result of applying vehicle multiplier and promo discount
type Quote struct {
	Total    Money `json:"total"`
	Discount Money `json:"discount"`
}

// Calculator computes fares. Pure apart from the promo lookup, which goes
// through the injected PromoSource.
type Calculator struct {
	rates  Rates
	promos PromoSource
}

// NewCalculator creates a fare calculator
func NewCalculator(rates Rates, promos PromoSource) *Calculator {
	if promos == nil {
		promos = StaticPromos{}
	}
	return &Calculator{rates: rates, promos: promos}
}

// BaseFare computes the distance/duration fare, rounded to the nearest
// currency unit. Negative inputs are clamped to zero; there is no error path.
func (c *Calculator) BaseFare(distanceMeters, durationSeconds float64) Money {
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	fare := c.rates.Base +
		c.rates.PerKM*(distanceMeters/1000.0) +
		c.rates.PerMinute*(durationSeconds/60.0)
	return Money(math.Round(fare))
}

// FinalFare applies the vehicle multiplier, then the promo discount. Unknown
// vehicle types multiply by 1.0; unknown or empty promo codes discount
// nothing. The result is never negative.
func (c *Calculator) FinalFare(ctx context.Context, baseFare Money, vehicleType booking.VehicleType, promoCode string) Quote {
	withVehicle := Money(math.Round(float64(baseFare) * booking.Multiplier(vehicleType)))

	fraction := c.promos.Fraction(ctx, promoCode)
	if fraction < 0 || fraction >= 1 {
		fraction = 0
	}

	discount := Money(math.Round(float64(withVehicle) * fraction))
	if discount > withVehicle {
		discount = withVehicle
	}

	return Quote{Total: withVehicle - discount, Discount: discount}
}
