package services

import (
	"context"
	"errors"
	"fmt"

	"grocer/internal/checkout"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// CartService applies shopper cart changes to a session, pricing items from
// the catalogue.
type CartService struct {
	sessions *SessionStore
	products *ProductService
}

func NewCartService(sessions *SessionStore, products *ProductService) *CartService {
	return &CartService{sessions: sessions, products: products}
}

// GetCart returns the session's current state.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (checkout.View, error) {
	sess, err := s.sessions.Peek(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	return sess.View(), nil
}

// AddItem adds quantity units of a catalogue product at its current price.
func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (checkout.View, error) {
	if quantity < 1 {
		return checkout.View{}, ErrInvalidQuantity
	}
	product, err := s.products.GetProductByID(productID)
	if err != nil {
		return checkout.View{}, err
	}
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	inCart := 0
	for _, l := range sess.Lines() {
		if l.ProductID == productID {
			inCart = l.Quantity
		}
	}
	if inCart+quantity > product.Stock {
		return checkout.View{}, fmt.Errorf("%w for %s (requested: %d, available: %d)", ErrInsufficientStock, product.Name, inCart+quantity, product.Stock)
	}

	sess.AddItem(ctx, product.ID, product.Name, product.Price, quantity)
	s.sessions.Persist(ctx, sess)
	return sess.View(), nil
}

// SetQuantity overwrites a line's quantity; zero removes the line.
func (s *CartService) SetQuantity(ctx context.Context, sessionID, productID string, quantity int) (checkout.View, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	if quantity > 0 {
		product, err := s.products.GetProductByID(productID)
		if err == nil && quantity > product.Stock {
			return checkout.View{}, fmt.Errorf("%w for %s (requested: %d, available: %d)", ErrInsufficientStock, product.Name, quantity, product.Stock)
		}
	}
	sess.SetQuantity(ctx, productID, quantity)
	s.sessions.Persist(ctx, sess)
	return sess.View(), nil
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (checkout.View, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	sess.RemoveItem(ctx, productID)
	s.sessions.Persist(ctx, sess)
	return sess.View(), nil
}

func (s *CartService) Clear(ctx context.Context, sessionID string) (checkout.View, error) {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return checkout.View{}, err
	}
	sess.ClearCart(ctx)
	s.sessions.Persist(ctx, sess)
	return sess.View(), nil
}
