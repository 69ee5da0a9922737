package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"grocer/internal/models"
	"grocer/internal/repositories"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("order status transition not allowed")
)

// EventExchange is the broker exchange order events are published to.
const EventExchange = "grocer"

// EventPublisher is the subset of the message broker client the services use.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// OrderEvent is the body of the order.created and order.status_updated events.
type OrderEvent struct {
	OrderID        string             `json:"orderId"`
	IdempotencyKey string             `json:"idempotencyKey"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previousStatus,omitempty"`
	Email          string             `json:"email,omitempty"`
	Total          string             `json:"total"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	orderRepo repositories.OrderRepository
	events    EventPublisher
	validate  *validator.Validate
}

// NewOrderService creates a new OrderService. events may be nil, in which case
// no order events are published.
func NewOrderService(orderRepo repositories.OrderRepository, events EventPublisher) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		events:    events,
		validate:  validator.New(),
	}
}

// GetAllOrders lists orders matching the filter, newest first.
func (s *OrderService) GetAllOrders(filter repositories.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, filter.Status)
	}
	return s.orderRepo.Query(filter)
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(id string) (*models.Order, error) {
	return s.orderRepo.GetByID(id)
}

// CreateOrder stores a paid order. It is idempotent on the order's
// IdempotencyKey: if an order with that key exists it is returned unchanged.
func (s *OrderService) CreateOrder(order *models.Order) (*models.Order, error) {
	if order.IdempotencyKey != "" {
		existing, err := s.orderRepo.GetByIdempotencyKey(order.IdempotencyKey)
		if err == nil {
			log.Printf("Order for attempt %s already exists as %s", order.IdempotencyKey, existing.ID)
			return existing, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up order for attempt %s: %w", order.IdempotencyKey, err)
		}
	}

	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if err := s.validate.Struct(order); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	if err := s.orderRepo.Create(order); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Lost a race with a concurrent write of the same attempt.
			if existing, lookupErr := s.orderRepo.GetByIdempotencyKey(order.IdempotencyKey); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create order in repository: %w", err)
	}

	s.publish("order.created", OrderEvent{
		OrderID:        order.ID,
		IdempotencyKey: order.IdempotencyKey,
		Status:         order.Status,
		Email:          order.Customer.Email,
		Total:          order.Fees.Total.StringFixed(2),
	})
	return order, nil
}

// UpdateOrderStatus moves an order to a new status. Setting the current status
// again is a no-op.
func (s *OrderService) UpdateOrderStatus(id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	current, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}
	if !current.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	updated, err := s.orderRepo.UpdateStatus(id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status for order %s: %w", id, err)
	}

	s.publish("order.status_updated", OrderEvent{
		OrderID:        updated.ID,
		IdempotencyKey: updated.IdempotencyKey,
		Status:         updated.Status,
		PreviousStatus: current.Status,
		Email:          updated.Customer.Email,
		Total:          updated.Fees.Total.StringFixed(2),
	})
	return updated, nil
}

func (s *OrderService) publish(routingKey string, event OrderEvent) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal %s event for order %s: %v", routingKey, event.OrderID, err)
		return
	}
	if err := s.events.Publish(EventExchange, routingKey, body); err != nil {
		log.Printf("Warning: Failed to publish %s event for order %s: %v", routingKey, event.OrderID, err)
		return
	}
	log.Printf("Successfully published %s event for order %s", routingKey, event.OrderID)
}
