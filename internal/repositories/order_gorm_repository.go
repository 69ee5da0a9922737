package repositories

import (
	"errors"
	"fmt"

	"grocer/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Query returns orders matching filter, newest first.
func (r *GORMOrderRepository) Query(filter OrderFilter) ([]models.Order, error) {
	var orders []models.Order
	q := r.db.Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Email != "" {
		q = q.Where("customer_email = ?", filter.Email)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return orders, nil
}

// GetByID retrieves an order by its ID.
func (r *GORMOrderRepository) GetByID(id string) (*models.Order, error) {
	return r.first("id", id)
}

// GetByIdempotencyKey retrieves the order created for a checkout attempt.
func (r *GORMOrderRepository) GetByIdempotencyKey(key string) (*models.Order, error) {
	return r.first("idempotency_key", key)
}

func (r *GORMOrderRepository) first(column, value string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where(column+" = ?", value).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order with %s %s: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// Create inserts a new order.
func (r *GORMOrderRepository) Create(order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := r.db.Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("order with idempotency key %s: %w", order.IdempotencyKey, ErrDuplicate)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateStatus overwrites an order's status and returns the updated order.
func (r *GORMOrderRepository) UpdateStatus(id string, status models.OrderStatus) (*models.Order, error) {
	res := r.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("order with id %s: %w", id, ErrNotFound)
	}
	return r.GetByID(id)
}
