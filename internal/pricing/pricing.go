package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimal places amounts are rounded to.
const CurrencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ErrInvalidPromo is returned by promo resolvers when a code does not apply.
var ErrInvalidPromo = errors.New("promo code is not valid")

// Promo is a promotion whose discount has already been resolved to an amount.
type Promo struct {
	Code     string
	Discount decimal.Decimal
}

// Breakdown is the full price of an order.
// Total = Subtotal - DiscountAmount + DeliveryFee + ServiceFee, never below zero.
type Breakdown struct {
	Subtotal          decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2)"`
	DiscountAmount    decimal.Decimal `json:"discountAmount" gorm:"type:decimal(12,2)"`
	DeliveryFee       decimal.Decimal `json:"deliveryFee" gorm:"type:decimal(12,2)"`
	ServiceFeePercent decimal.Decimal `json:"serviceFeePercent" gorm:"type:decimal(5,2)"`
	ServiceFee        decimal.Decimal `json:"serviceFee" gorm:"type:decimal(12,2)"`
	Total             decimal.Decimal `json:"total" gorm:"type:decimal(12,2)"`
}

// ComputeTotals prices an order. Negative inputs are treated as zero and the
// discount is capped at the subtotal.
func ComputeTotals(subtotal, deliveryFee decimal.Decimal, promo *Promo, serviceFeePercent decimal.Decimal) Breakdown {
	subtotal = nonNegative(subtotal)
	deliveryFee = nonNegative(deliveryFee)
	serviceFeePercent = nonNegative(serviceFeePercent)

	discount := decimal.Zero
	if promo != nil {
		discount = decimal.Min(nonNegative(promo.Discount), subtotal)
	}

	serviceFee := ServiceFee(subtotal, serviceFeePercent)
	total := subtotal.Sub(discount).Add(deliveryFee).Add(serviceFee)

	return Breakdown{
		Subtotal:          subtotal,
		DiscountAmount:    discount,
		DeliveryFee:       deliveryFee,
		ServiceFeePercent: serviceFeePercent,
		ServiceFee:        serviceFee,
		Total:             nonNegative(total),
	}
}

// ServiceFee returns subtotal * percent / 100 rounded half-up to currency precision.
func ServiceFee(subtotal, percent decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 || percent.Sign() <= 0 {
		return decimal.Zero
	}
	// Round is half away from zero, which is half-up for positive amounts.
	return subtotal.Mul(percent).Div(hundred).Round(CurrencyPlaces)
}

// Recompute derives a breakdown again from the stored fee fields.
func Recompute(b Breakdown) Breakdown {
	return ComputeTotals(b.Subtotal, b.DeliveryFee, &Promo{Discount: b.DiscountAmount}, b.ServiceFeePercent)
}

// Audit checks that a stored breakdown is consistent with its own inputs.
func Audit(b Breakdown) error {
	r := Recompute(b)
	switch {
	case !r.DiscountAmount.Equal(b.DiscountAmount):
		return fmt.Errorf("discount %s exceeds subtotal %s", b.DiscountAmount, b.Subtotal)
	case !r.ServiceFee.Equal(b.ServiceFee):
		return fmt.Errorf("service fee %s does not match %s%% of %s (expected %s)", b.ServiceFee, b.ServiceFeePercent, b.Subtotal, r.ServiceFee)
	case !r.Total.Equal(b.Total):
		return fmt.Errorf("total %s does not match recomputed total %s", b.Total, r.Total)
	}
	return nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
