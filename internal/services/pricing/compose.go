package pricing

import (
	"github.com/shopspring/decimal"

	"HotelRevenue/internal/domain/models"
)

// Bounds limits the composed factor.
type Bounds struct {
	Min float64
	Max float64
}

func (b Bounds) clamp(f float64) float64 {
	switch {
	case f < b.Min:
		return b.Min
	case f > b.Max:
		return b.Max
	default:
		return f
	}
}

// Compose multiplies the rule factors, clamps the product and rounds
// base*factor to whole currency units, half away from zero.
func Compose(row *models.PricingRow, b Bounds) {
	row.FactorTotal = row.Product()
	row.ClampedFactor = b.clamp(row.FactorTotal)
	row.RecommendedRate = roundUnits(decimal.NewFromFloat(row.BaseRate).Mul(decimal.NewFromFloat(row.ClampedFactor)))
}

// DirectDiscount applies the direct-channel discount to an already rounded rate.
func DirectDiscount(rate, discount float64) float64 {
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount))
	return roundUnits(decimal.NewFromFloat(rate).Mul(keep))
}

func roundUnits(d decimal.Decimal) float64 {
	return d.Round(0).InexactFloat64()
}
