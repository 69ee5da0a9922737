package checkout

import (
	"time"

	"grocer/internal/cart"
	"grocer/internal/models"
	"grocer/internal/notify"
	"grocer/internal/payment"
	"grocer/internal/pricing"

	"github.com/shopspring/decimal"
)

// OrderStore persists order records. CreateOrder must be idempotent on the
// order's IdempotencyKey: a repeated call returns the order already stored.
type OrderStore interface {
	CreateOrder(order *models.Order) (*models.Order, error)
}

// PromoResolver turns a promo code into a discount for a subtotal. Codes that
// do not apply are reported with pricing.ErrInvalidPromo.
type PromoResolver interface {
	Resolve(code string, subtotal decimal.Decimal) (*pricing.Promo, error)
}

// AbandonedIntentHold is how long a session stays in memory after abandoning
// a payment intent the shopper had already opened.
const AbandonedIntentHold = 24 * time.Hour

// Config holds the fee settings applied to every checkout.
type Config struct {
	Rates             pricing.DeliveryRates
	ServiceFeePercent decimal.Decimal
}

// Orchestrator holds the collaborators shared by all checkout sessions.
type Orchestrator struct {
	gateway payment.Gateway
	orders  OrderStore
	promos  PromoResolver
	sink    notify.Sink
	cfg     Config
	now     func() time.Time
}

// NewOrchestrator wires the checkout flow. promos may be nil, in which case
// every promo code is rejected. A nil sink discards notifications.
func NewOrchestrator(gateway payment.Gateway, orders OrderStore, promos PromoResolver, sink notify.Sink, cfg Config) *Orchestrator {
	return &Orchestrator{
		gateway: gateway,
		orders:  orders,
		promos:  promos,
		sink:    sink,
		cfg:     cfg,
		now:     time.Now,
	}
}

// NewSession starts a session owning a cart restored from lines.
func (o *Orchestrator) NewSession(id string, lines []cart.Line) *Session {
	return &Session{
		id:    id,
		o:     o,
		cart:  cart.New(lines...),
		state: StateCollectingDetails,
	}
}
