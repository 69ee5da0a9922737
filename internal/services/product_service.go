package services

import (
	"errors"
	"fmt"
	"strings"

	"grocer/internal/models"
	"grocer/internal/repositories"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidProduct is wrapped by catalogue writes that fail validation.
var ErrInvalidProduct = errors.New("invalid product")

// ProductService handles business logic related to products.
type ProductService struct {
	repo     repositories.ProductRepository
	validate *validator.Validate
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo:     repo,
		validate: validator.New(),
	}
}

// GetAllProducts lists the catalogue, optionally filtered.
func (s *ProductService) GetAllProducts(filter repositories.ProductFilter) ([]models.Product, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.GetAll(filter)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(id string) (*models.Product, error) {
	return s.repo.GetByID(id)
}

// CreateProduct validates and stores a new product.
func (s *ProductService) CreateProduct(product *models.Product) error {
	if err := s.check(product); err != nil {
		return err
	}
	return s.repo.Create(product)
}

// UpdateProduct validates and replaces an existing product.
func (s *ProductService) UpdateProduct(product *models.Product) error {
	if err := s.check(product); err != nil {
		return err
	}
	return s.repo.Update(product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(id string) error {
	return s.repo.Delete(id)
}

func (s *ProductService) check(product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.ToLower(strings.TrimSpace(product.Category))
	if err := s.validate.Struct(product); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	product.Price = product.Price.Round(2)
	return nil
}
