package services

import (
	"context"
	"fmt"

	"grocer/internal/checkout"
	"grocer/internal/models"
	"grocer/internal/payment"
	"grocer/internal/pricing"
	"grocer/internal/repositories"
)

// CheckoutService drives a session through details, payment and order
// creation, keeping the cart cache in step.
type CheckoutService struct {
	sessions *SessionStore
}

func NewCheckoutService(sessions *SessionStore) *CheckoutService {
	return &CheckoutService{sessions: sessions}
}

func (s *CheckoutService) SubmitDetails(ctx context.Context, sessionID string, d checkout.Details) (checkout.View, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	if err := sess.SubmitDetails(ctx, d); err != nil {
		return checkout.View{}, err
	}
	return sess.View(), nil
}

func (s *CheckoutService) Quote(ctx context.Context, sessionID string) (pricing.Breakdown, error) {
	sess, err := s.sessions.Peek(ctx, sessionID)
	if err != nil {
		return pricing.Breakdown{}, err
	}
	return sess.Quote()
}

// Start requests a payment intent for the session's cart.
func (s *CheckoutService) Start(ctx context.Context, sessionID string) (*payment.Intent, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.StartCheckout(ctx)
}

// Confirm reports the payment widget's result. On success the order is
// created and the cached cart is dropped.
func (s *CheckoutService) Confirm(ctx context.Context, sessionID string, c checkout.Confirmation) (*models.Order, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	order, err := sess.ConfirmPayment(ctx, c)
	if err != nil {
		return nil, err
	}
	s.sessions.Persist(ctx, sess)
	return order, nil
}

// Retry re-submits the order of a session whose payment was captured but
// whose order write failed. Only live sessions can be retried.
func (s *CheckoutService) Retry(ctx context.Context, sessionID string) (*models.Order, error) {
	sess, ok := s.sessions.Lookup(sessionID)
	if !ok {
		return nil, fmt.Errorf("checkout session %s: %w", sessionID, repositories.ErrNotFound)
	}
	order, err := sess.RetryOrder(ctx)
	if err != nil {
		return nil, err
	}
	s.sessions.Persist(ctx, sess)
	return order, nil
}

func (s *CheckoutService) Abandon(ctx context.Context, sessionID string) (checkout.View, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	if err := sess.Abandon(ctx); err != nil {
		return checkout.View{}, err
	}
	return sess.View(), nil
}

func (s *CheckoutService) Close(ctx context.Context, sessionID string) error {
	return s.sessions.Close(ctx, sessionID)
}
