package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DeliveryType is the shopper's chosen fulfilment option.
type DeliveryType string

const (
	DeliveryStandard  DeliveryType = "standard"
	DeliveryExpress   DeliveryType = "express"
	DeliveryScheduled DeliveryType = "scheduled"
)

func (t DeliveryType) Valid() bool {
	switch t {
	case DeliveryStandard, DeliveryExpress, DeliveryScheduled:
		return true
	}
	return false
}

// DeliveryRates holds the configured fee per delivery type. A positive
// FreeThreshold makes standard delivery free at or above that subtotal.
type DeliveryRates struct {
	Standard      decimal.Decimal
	Express       decimal.Decimal
	Scheduled     decimal.Decimal
	FreeThreshold decimal.Decimal
}

// Fee returns the delivery fee for t at the given subtotal.
func (r DeliveryRates) Fee(t DeliveryType, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch t {
	case DeliveryStandard:
		if r.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(r.FreeThreshold) {
			return decimal.Zero, nil
		}
		return r.Standard, nil
	case DeliveryExpress:
		return r.Express, nil
	case DeliveryScheduled:
		return r.Scheduled, nil
	}
	return decimal.Zero, fmt.Errorf("unknown delivery type %q", t)
}
