package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrCheckoutInProgress = errors.New("a checkout is already in progress for this session")
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrNoPendingPayment   = errors.New("no payment is awaiting confirmation")
	ErrPaymentCaptured    = errors.New("payment already captured, the order must be created for it")
	ErrNothingToRetry     = errors.New("no paid checkout is waiting for its order")
	ErrSessionClosed      = errors.New("checkout session is closed")
	ErrAttemptSuperseded  = errors.New("checkout attempt was abandoned before the payment service answered")
)

// ValidationError carries one message per invalid input field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// PaymentIntentError means the payment service could not open an intent.
type PaymentIntentError struct {
	Err error
}

func (e *PaymentIntentError) Error() string {
	return fmt.Sprintf("failed to create payment intent: %v", e.Err)
}

func (e *PaymentIntentError) Unwrap() error { return e.Err }

// PaymentDeclinedError means the shopper's payment method was refused.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

// OrderPersistError means the payment went through but the order record could
// not be written. It is never retried automatically.
type OrderPersistError struct {
	IdempotencyKey string
	PaymentRef     string
	Err            error
}

func (e *OrderPersistError) Error() string {
	return fmt.Sprintf("payment %s captured but order was not saved (attempt %s): %v", e.PaymentRef, e.IdempotencyKey, e.Err)
}

func (e *OrderPersistError) Unwrap() error { return e.Err }
