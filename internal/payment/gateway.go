package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrProviderRejected is returned when the provider answered but refused to
// create an intent.
var ErrProviderRejected = errors.New("payment provider rejected the intent request")

// Item identifies a product being paid for.
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// IntentRequest asks the provider to open a payment attempt.
type IntentRequest struct {
	IdempotencyKey string
	Items          []Item
	DeliveryFee    decimal.Decimal
	Amount         decimal.Decimal
}

// Intent is the provider-side handle for an in-progress payment.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// Gateway is the payment service contract.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// MinorUnits converts an amount to integer minor currency units (pence).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
