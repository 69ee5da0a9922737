package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"grocer/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	byKey  map[string]string
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
		byKey:  make(map[string]string),
	}
}

// Query returns orders matching filter, newest first.
func (r *MockOrderRepository) Query(filter OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.Email != "" && order.Customer.Email != filter.Email {
			continue
		}
		orderList = append(orderList, order)
	}
	sort.Slice(orderList, func(i, j int) bool { return orderList[i].CreatedAt.After(orderList[j].CreatedAt) })
	if filter.Limit > 0 && len(orderList) > filter.Limit {
		orderList = orderList[:filter.Limit]
	}
	return orderList, nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with id %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

// GetByIdempotencyKey returns the order created for a checkout attempt.
func (r *MockOrderRepository) GetByIdempotencyKey(key string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("order with idempotency_key %s: %w", key, ErrNotFound)
	}
	order := r.orders[id]
	return &order, nil
}

// Create adds a new order.
func (r *MockOrderRepository) Create(order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byKey[order.IdempotencyKey]; taken {
		return fmt.Errorf("order with idempotency key %s: %w", order.IdempotencyKey, ErrDuplicate)
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	order.CreatedAt, order.UpdatedAt = now, now
	r.orders[order.ID] = *order
	r.byKey[order.IdempotencyKey] = order.ID
	return nil
}

// UpdateStatus updates the status of an order.
func (r *MockOrderRepository) UpdateStatus(id string, status models.OrderStatus) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with id %s: %w", id, ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return &order, nil
}
