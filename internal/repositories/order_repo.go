package repositories

import (
	"grocer/internal/models"
)

// OrderFilter narrows an order query. Results are newest first.
type OrderFilter struct {
	Status models.OrderStatus
	Email  string
	Limit  int
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Query(filter OrderFilter) ([]models.Order, error)
	GetByID(id string) (*models.Order, error)
	GetByIdempotencyKey(key string) (*models.Order, error)
	Create(order *models.Order) error
	UpdateStatus(id string, status models.OrderStatus) (*models.Order, error)
}
