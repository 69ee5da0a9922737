package repositories

import (
	"grocer/internal/models"
)

// ProductFilter narrows a catalogue listing. Empty fields match everything.
type ProductFilter struct {
	Category string
	Search   string
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(filter ProductFilter) ([]models.Product, error)
	GetByID(id string) (*models.Product, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id string) error
}
