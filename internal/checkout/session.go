package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"grocer/internal/cart"
	"grocer/internal/models"
	"grocer/internal/notify"
	"grocer/internal/payment"
	"grocer/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Confirmation is the single callback the payment widget reports.
type Confirmation struct {
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload"`
	Reason  string                 `json:"reason"`
}

// attempt is one pass through payment, keyed by an idempotency token. Its
// fields are frozen once the intent is requested, except payment.
type attempt struct {
	key       string
	details   Details
	lines     []cart.Line
	promo     *pricing.Promo
	breakdown pricing.Breakdown
	intent    *payment.Intent
	payment   map[string]interface{}

	abandonedAt time.Time
}

// Session is one shopper's cart and checkout flow. All methods are safe for
// concurrent use; operations on one session are serialised.
type Session struct {
	id string
	o  *Orchestrator

	mu        sync.Mutex
	cart      *cart.Cart
	state     State
	details   *Details
	attempt   *attempt
	failure   error
	retryable bool
	orderID   string
	closed    bool
	queue     notify.Queue

	// abandoned holds attempts dropped after their intent reached the shopper.
	// The provider may still capture them, so a late success settles them.
	abandoned []*attempt
}

// View is a read-only snapshot of a session.
type View struct {
	SessionID       string          `json:"sessionId"`
	State           State           `json:"state"`
	Items           []cart.Line     `json:"items"`
	Count           int             `json:"count"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Details         *Details        `json:"details,omitempty"`
	AttemptKey      string          `json:"attemptKey,omitempty"`
	ClientSecret    string          `json:"clientSecret,omitempty"`
	OrderID         string          `json:"orderId,omitempty"`
	Error           string          `json:"error,omitempty"`
	Retryable       bool            `json:"retryable"`
	PaymentCaptured bool            `json:"paymentCaptured"`
	UnsavedPayments []string        `json:"unsavedPayments,omitempty"`
}

func (s *Session) ID() string { return s.id }

// State returns the current checkout state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the error that put the session in StateErrored.
func (s *Session) Failure() (err error, retryable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure, s.retryable
}

// Lines returns the cart lines in insertion order.
func (s *Session) Lines() []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines()
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		SessionID: s.id,
		State:     s.state,
		Items:     s.cart.Lines(),
		Count:     s.cart.Count(),
		Subtotal:  s.cart.Subtotal(),
		OrderID:   s.orderID,
		Retryable: s.retryable,
	}
	if s.details != nil {
		d := *s.details
		v.Details = &d
	}
	if s.attempt != nil {
		v.AttemptKey = s.attempt.key
		if s.attempt.intent != nil {
			v.ClientSecret = s.attempt.intent.ClientSecret
		}
		v.PaymentCaptured = s.attempt.payment != nil
	}
	if s.failure != nil {
		v.Error = s.failure.Error()
	}
	for _, att := range s.abandoned {
		if att.payment != nil {
			v.UnsavedPayments = append(v.UnsavedPayments, att.key)
		}
	}
	return v
}

// AddItem adds quantity units of a product at the given unit price.
func (s *Session) AddItem(ctx context.Context, productID, name string, unitPrice decimal.Decimal, quantity int) {
	s.mutateCart(ctx, func(c *cart.Cart) { c.Add(productID, name, unitPrice, quantity) })
}

// RemoveItem drops a product from the cart.
func (s *Session) RemoveItem(ctx context.Context, productID string) {
	s.mutateCart(ctx, func(c *cart.Cart) { c.Remove(productID) })
}

// SetQuantity overwrites a line's quantity; zero or less removes it.
func (s *Session) SetQuantity(ctx context.Context, productID string, quantity int) {
	s.mutateCart(ctx, func(c *cart.Cart) { c.SetQuantity(productID, quantity) })
}

// ClearCart empties the cart.
func (s *Session) ClearCart(ctx context.Context) {
	s.mutateCart(ctx, func(c *cart.Cart) { c.Clear() })
}

// mutateCart applies a cart change. Changing the cart invalidates a payment
// intent that has not reached the shopper yet. Once the intent is out, the
// attempt keeps the cart as priced and only those lines leave the cart when
// the order is created. Closed sessions ignore cart changes.
func (s *Session) mutateCart(ctx context.Context, fn func(*cart.Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	fn(s.cart)
	events := s.cart.PullEvents()
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		s.push(cartNotification(ev))
	}

	switch s.state {
	case StateAwaitingPaymentIntent:
		log.Printf("Cart of session %s changed before payment opened, abandoning attempt %s", s.id, s.attempt.key)
		s.attempt = nil
		s.state = StateCollectingDetails
	case StateAwaitingPaymentConfirmation, StateSubmitting:
		log.Printf("Cart of session %s changed while attempt %s is being paid; the attempt keeps its priced cart", s.id, s.attempt.key)
	case StateCompleted:
		s.orderID = ""
		s.state = StateCollectingDetails
	case StateErrored:
		if !s.paymentCaptured() {
			s.reset()
		}
	}
	s.queue.Drain(ctx, s.o.sink)
}

// SubmitDetails validates and stores the customer form. Invalid input leaves
// the session unchanged and returns a *ValidationError.
func (s *Session) SubmitDetails(ctx context.Context, d Details) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(); err != nil {
		return err
	}

	d = d.normalised()
	verr := validateDetails(d, s.o.now())
	if d.PromoCode != "" {
		if _, err := s.resolvePromo(d.PromoCode, s.cart.Subtotal()); err != nil {
			if !errors.Is(err, pricing.ErrInvalidPromo) {
				return err
			}
			if verr == nil {
				verr = &ValidationError{}
			}
			verr.add("promoCode", err.Error())
		}
	}
	if verr != nil {
		return verr
	}

	s.details = &d
	if s.state == StateErrored || s.state == StateCompleted {
		s.reset()
	}
	return nil
}

// Quote prices the current cart with the chosen delivery type and promo.
// Without a delivery type the delivery fee is zero; a promo that does not
// apply is left out.
func (s *Session) Quote() (pricing.Breakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subtotal := s.cart.Subtotal()
	fee := decimal.Zero
	var promo *pricing.Promo
	if s.details != nil {
		if s.details.DeliveryType != "" {
			var err error
			if fee, err = s.o.cfg.Rates.Fee(s.details.DeliveryType, subtotal); err != nil {
				return pricing.Breakdown{}, err
			}
		}
		if s.details.PromoCode != "" {
			p, err := s.resolvePromo(s.details.PromoCode, subtotal)
			if err != nil && !errors.Is(err, pricing.ErrInvalidPromo) {
				return pricing.Breakdown{}, err
			}
			promo = p
		}
	}
	return pricing.ComputeTotals(subtotal, fee, promo, s.o.cfg.ServiceFeePercent), nil
}

// StartCheckout prices the cart and requests a payment intent. Only one
// attempt may be outstanding per session; a second call while one is pending
// returns ErrCheckoutInProgress.
func (s *Session) StartCheckout(ctx context.Context) (*payment.Intent, error) {
	s.mu.Lock()
	if err := s.checkEditable(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	att, err := s.prepareAttempt()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.attempt = att
	s.failure, s.retryable = nil, false
	s.orderID = ""
	s.state = StateAwaitingPaymentIntent
	req := payment.IntentRequest{
		IdempotencyKey: att.key,
		Items:          paymentItems(att.lines),
		DeliveryFee:    att.breakdown.DeliveryFee,
		Amount:         att.breakdown.Total,
	}
	s.mu.Unlock()

	intent, err := s.o.gateway.CreateIntent(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.queue.Drain(ctx, s.o.sink)

	if s.attempt != att {
		return nil, ErrAttemptSuperseded
	}
	if err != nil {
		s.attempt = nil
		failure := &PaymentIntentError{Err: err}
		log.Printf("Payment intent for session %s failed: %v", s.id, err)
		s.fail(failure, true)
		s.push(notify.Notification{
			Title:       "Checkout unavailable",
			Description: "We couldn't start your payment. Please try again.",
			DurationMs:  5000,
		})
		return nil, failure
	}
	att.intent = intent
	s.state = StateAwaitingPaymentConfirmation
	return intent, nil
}

// ConfirmPayment receives the payment widget's result. A success creates the
// order record; a decline returns the session to an errored, retryable state.
func (s *Session) ConfirmPayment(ctx context.Context, c Confirmation) (*models.Order, error) {
	s.mu.Lock()
	if c.Success {
		if late := s.abandonedAttempt(c); late != nil {
			late.payment = paymentData(c.Payload, late)
			s.mu.Unlock()
			return s.settleAbandoned(ctx, late)
		}
	}
	if s.closed || s.state != StateAwaitingPaymentConfirmation {
		defer s.mu.Unlock()
		if c.Success {
			log.Printf("CRITICAL: session %s: payment confirmed with no checkout attempt waiting for it: %v", s.id, c.Payload)
		}
		if s.closed {
			return nil, ErrSessionClosed
		}
		return nil, ErrNoPendingPayment
	}
	att := s.attempt

	if !c.Success {
		defer s.mu.Unlock()
		s.attempt = nil
		failure := &PaymentDeclinedError{Reason: c.Reason}
		s.fail(failure, true)
		s.push(notify.Notification{
			Title:       "Payment failed",
			Description: failure.Error(),
			DurationMs:  5000,
		})
		s.queue.Drain(ctx, s.o.sink)
		return nil, failure
	}

	att.payment = paymentData(c.Payload, att)
	s.state = StateSubmitting
	s.mu.Unlock()

	return s.submit(ctx, att)
}

// RetryOrder creates the order for a payment that was captured but whose
// order write failed. It reuses the attempt's idempotency key.
func (s *Session) RetryOrder(ctx context.Context) (*models.Order, error) {
	s.mu.Lock()
	if s.state != StateErrored || !s.paymentCaptured() {
		late := s.unsaved()
		s.mu.Unlock()
		if late == nil {
			return nil, ErrNothingToRetry
		}
		log.Printf("Retrying order creation for session %s (abandoned attempt %s)", s.id, late.key)
		return s.settleAbandoned(ctx, late)
	}
	att := s.attempt
	s.state = StateSubmitting
	s.mu.Unlock()

	log.Printf("Retrying order creation for session %s (attempt %s)", s.id, att.key)
	return s.submit(ctx, att)
}

// Abandon drops a pending payment intent, e.g. when the shopper navigates
// away. No order is created and nothing is retried. A captured payment cannot
// be abandoned.
func (s *Session) Abandon(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.abandon()
}

// Close tears the session down, abandoning any pending intent. A session
// holding a captured payment without an order refuses to close.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.unsaved() != nil {
		return ErrPaymentCaptured
	}
	if err := s.abandon(); err != nil {
		return err
	}
	s.closed = true
	s.queue.Drain(ctx, s.o.sink)
	return nil
}

func (s *Session) abandon() error {
	switch s.state {
	case StateAwaitingPaymentIntent, StateAwaitingPaymentConfirmation:
		log.Printf("Session %s abandoned payment attempt %s", s.id, s.attempt.key)
		if s.attempt.intent != nil {
			s.attempt.abandonedAt = s.o.now()
			s.abandoned = append(s.abandoned, s.attempt)
		}
		s.attempt = nil
		s.state = StateCollectingDetails
	case StateSubmitting:
		return ErrPaymentCaptured
	case StateErrored:
		if s.paymentCaptured() {
			return ErrPaymentCaptured
		}
		s.reset()
	}
	return nil
}

func (s *Session) submit(ctx context.Context, att *attempt) (*models.Order, error) {
	created, err := s.o.orders.CreateOrder(buildOrder(att))

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.queue.Drain(ctx, s.o.sink)

	if err != nil {
		failure := s.persistFailed(att, err)
		s.fail(failure, true)
		return nil, failure
	}
	s.attempt = nil
	s.complete(created)
	s.orderCreated(att, created)
	return created, nil
}

// settleAbandoned creates the order for an abandoned attempt whose payment
// was captured anyway. An idle session takes the attempt back, so a failure
// surfaces like any other unsaved payment.
func (s *Session) settleAbandoned(ctx context.Context, att *attempt) (*models.Order, error) {
	created, err := s.o.orders.CreateOrder(buildOrder(att))

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.queue.Drain(ctx, s.o.sink)

	idle := s.attempt == nil && !s.state.InFlight()
	if err != nil {
		failure := s.persistFailed(att, err)
		if idle {
			s.dropAbandoned(att)
			s.attempt = att
			s.orderID = ""
			s.fail(failure, true)
		}
		return nil, failure
	}
	s.dropAbandoned(att)
	if idle {
		s.complete(created)
	}
	s.orderCreated(att, created)
	return created, nil
}

func (s *Session) persistFailed(att *attempt, err error) *OrderPersistError {
	failure := &OrderPersistError{IdempotencyKey: att.key, PaymentRef: paymentRef(att), Err: err}
	log.Printf("CRITICAL: session %s: %v", s.id, failure)
	s.push(notify.Notification{
		Title:       "Order not saved",
		Description: fmt.Sprintf("Your payment was received but we could not save your order. Reference: %s", att.key),
		DurationMs:  10000,
	})
	return failure
}

func (s *Session) complete(created *models.Order) {
	s.failure, s.retryable = nil, false
	s.orderID = created.ID
	s.state = StateCompleted
}

// orderCreated takes the paid lines out of the cart. Items added after the
// cart was priced stay behind.
func (s *Session) orderCreated(att *attempt, created *models.Order) {
	s.cart.Deduct(att.lines)
	s.cart.PullEvents()
	s.push(notify.Notification{
		Title:       "Order Created",
		Description: fmt.Sprintf("Your order %s has been placed.", created.ID),
		DurationMs:  5000,
		Action:      &notify.Action{Label: "View order", Href: "/orders/" + created.ID},
	})
	log.Printf("Session %s created order %s (attempt %s)", s.id, created.ID, att.key)
}

// prepareAttempt validates everything needed to ask for payment and freezes
// the priced cart. Caller holds the lock.
func (s *Session) prepareAttempt() (*attempt, error) {
	if s.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if s.details == nil {
		return nil, &ValidationError{Fields: map[string]string{"details": "customer details are required"}}
	}
	d := *s.details
	if verr := validateDetails(d, s.o.now()); verr != nil {
		return nil, verr
	}
	if d.DeliveryType == "" {
		return nil, &ValidationError{Fields: map[string]string{"deliveryType": "deliveryType is required"}}
	}

	subtotal := s.cart.Subtotal()
	fee, err := s.o.cfg.Rates.Fee(d.DeliveryType, subtotal)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"deliveryType": err.Error()}}
	}
	var promo *pricing.Promo
	if d.PromoCode != "" {
		promo, err = s.resolvePromo(d.PromoCode, subtotal)
		if err != nil {
			if errors.Is(err, pricing.ErrInvalidPromo) {
				return nil, &ValidationError{Fields: map[string]string{"promoCode": err.Error()}}
			}
			return nil, err
		}
	}

	return &attempt{
		key:       uuid.New().String(),
		details:   d,
		lines:     s.cart.Lines(),
		promo:     promo,
		breakdown: pricing.ComputeTotals(subtotal, fee, promo, s.o.cfg.ServiceFeePercent),
	}, nil
}

func (s *Session) resolvePromo(code string, subtotal decimal.Decimal) (*pricing.Promo, error) {
	if s.o.promos == nil {
		return nil, fmt.Errorf("%w: %s", pricing.ErrInvalidPromo, code)
	}
	return s.o.promos.Resolve(code, subtotal)
}

// checkEditable rejects changes while a payment is outstanding or captured.
func (s *Session) checkEditable() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state.InFlight() {
		return ErrCheckoutInProgress
	}
	if s.state == StateErrored && s.paymentCaptured() {
		return ErrPaymentCaptured
	}
	return nil
}

func (s *Session) paymentCaptured() bool {
	return s.attempt != nil && s.attempt.payment != nil
}

// abandonedAttempt finds the abandoned attempt a success callback pays for.
func (s *Session) abandonedAttempt(c Confirmation) *attempt {
	id, _ := c.Payload["paymentIntent"].(string)
	if id == "" {
		return nil
	}
	for _, att := range s.abandoned {
		if att.intent.ID == id {
			return att
		}
	}
	return nil
}

// unsaved returns the oldest abandoned attempt that was paid but has no order.
func (s *Session) unsaved() *attempt {
	for _, att := range s.abandoned {
		if att.payment != nil {
			return att
		}
	}
	return nil
}

func (s *Session) dropAbandoned(att *attempt) {
	for i, a := range s.abandoned {
		if a == att {
			s.abandoned = append(s.abandoned[:i], s.abandoned[i+1:]...)
			return
		}
	}
}

// Idle reports whether the session can be dropped from memory without losing
// anything its cart does not already hold. Abandoned intents keep the session
// alive for AbandonedIntentHold in case the provider captures them late.
func (s *Session) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	if s.state.InFlight() || s.paymentCaptured() {
		return false
	}
	cutoff := s.o.now().Add(-AbandonedIntentHold)
	for _, att := range s.abandoned {
		if att.payment != nil || att.abandonedAt.After(cutoff) {
			return false
		}
	}
	return true
}

func (s *Session) fail(err error, retryable bool) {
	s.failure, s.retryable = err, retryable
	s.state = StateErrored
}

func (s *Session) reset() {
	s.failure, s.retryable = nil, false
	s.orderID = ""
	s.state = StateCollectingDetails
}

func (s *Session) push(n notify.Notification) {
	n.SessionID = s.id
	s.queue.Push(n)
}

func buildOrder(att *attempt) *models.Order {
	items := make([]models.OrderItem, 0, len(att.lines))
	for _, l := range att.lines {
		items = append(items, models.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}
	order := &models.Order{
		IdempotencyKey: att.key,
		Customer: models.Customer{
			Name:     att.details.Name,
			Email:    att.details.Email,
			Phone:    att.details.Phone,
			Address:  att.details.Address,
			Postcode: att.details.Postcode,
		},
		Items:                 items,
		DeliveryNotes:         att.details.DeliveryNotes,
		DeliveryType:          att.details.DeliveryType,
		ScheduledDeliveryTime: att.details.ScheduledDeliveryTime,
		Fees:                  att.breakdown,
		PaymentData:           att.payment,
		Status:                models.OrderStatusPending,
	}
	if att.promo != nil {
		order.PromoCode = att.details.PromoCode
	}
	return order
}

// paymentData copies the widget payload and records which intent it paid.
func paymentData(payload map[string]interface{}, att *attempt) map[string]interface{} {
	paid := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		paid[k] = v
	}
	if _, ok := paid["paymentIntent"]; !ok && att.intent != nil {
		paid["paymentIntent"] = att.intent.ID
	}
	return paid
}

func paymentItems(lines []cart.Line) []payment.Item {
	items := make([]payment.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, payment.Item{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return items
}

func paymentRef(att *attempt) string {
	if att.intent != nil {
		return att.intent.ID
	}
	return att.key
}
