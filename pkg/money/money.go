// Package money holds the canonical monetary arithmetic. Amounts are rupiah
// stored as decimal.Decimal; nothing outside this package converts them to
// floats or integers.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType is how a promo discount is applied.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var hundred = decimal.NewFromInt(100)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Breakdown is the price triple persisted on a transaction.
type Breakdown struct {
	OriginalPrice decimal.Decimal `json:"original_price"`
	Discount      decimal.Decimal `json:"discount"`
	FinalPrice    decimal.Decimal `json:"final_price"`
}

// Discount returns the discount for price. Percentages are clamped to [0,100]
// and rounded to whole rupiah; fixed amounts never exceed the price.
func Discount(price decimal.Decimal, typ DiscountType, value decimal.Decimal) decimal.Decimal {
	if price.Sign() <= 0 || value.Sign() <= 0 {
		return decimal.Zero
	}
	switch typ {
	case DiscountPercentage:
		pct := decimal.Min(value, hundred)
		return price.Mul(pct).Div(hundred).Round(0)
	case DiscountFixed:
		return decimal.Min(value, price)
	default:
		return decimal.Zero
	}
}

// Compute builds a Breakdown where FinalPrice = OriginalPrice - Discount and never negative.
func Compute(price decimal.Decimal, typ DiscountType, value decimal.Decimal) Breakdown {
	if price.Sign() < 0 {
		price = decimal.Zero
	}
	d := Discount(price, typ, value)
	return Breakdown{OriginalPrice: price, Discount: d, FinalPrice: price.Sub(d)}
}

// NoDiscount is the breakdown for a purchase without promo code.
func NoDiscount(price decimal.Decimal) Breakdown {
	return Compute(price, "", decimal.Zero)
}

// Consistent reports whether b satisfies FinalPrice = OriginalPrice - Discount.
func (b Breakdown) Consistent() bool {
	return b.OriginalPrice.Sub(b.Discount).Equal(b.FinalPrice) && b.FinalPrice.Sign() >= 0
}

// IsFree reports whether nothing is owed.
func (b Breakdown) IsFree() bool { return b.FinalPrice.Sign() == 0 }

// GrossAmount converts an amount to integer rupiah as required by the payment
// gateway. Fractional amounts are rejected rather than silently rounded.
func GrossAmount(d decimal.Decimal) (int64, error) {
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has a fractional part", d.String())
	}
	return d.IntPart(), nil
}

// IsZeroOrNil reports whether an optional price means "free".
func IsZeroOrNil(d *decimal.Decimal) bool {
	return d == nil || d.Sign() == 0
}
