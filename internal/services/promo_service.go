package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"grocer/internal/models"
	"grocer/internal/pricing"
	"grocer/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PromoService manages promo codes and resolves them into discounts.
type PromoService struct {
	repo     repositories.PromoRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewPromoService(repo repositories.PromoRepository) *PromoService {
	return &PromoService{repo: repo, validate: validator.New(), now: time.Now}
}

func (s *PromoService) GetAll() ([]models.PromoCode, error) {
	return s.repo.GetAll()
}

// Save creates or replaces a promo code.
func (s *PromoService) Save(promo *models.PromoCode) error {
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	if err := s.validate.Struct(promo); err != nil {
		return fmt.Errorf("%w: %v", pricing.ErrInvalidPromo, err)
	}
	if !promo.Value.IsPositive() {
		return fmt.Errorf("%w: value must be positive", pricing.ErrInvalidPromo)
	}
	if promo.Kind == models.PromoPercent && promo.Value.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage cannot exceed 100", pricing.ErrInvalidPromo)
	}
	if promo.MinSubtotal.IsNegative() {
		return fmt.Errorf("%w: minimum subtotal must not be negative", pricing.ErrInvalidPromo)
	}
	return s.repo.Save(promo)
}

// Resolve turns a code into a discount amount for subtotal. Unknown, inactive,
// expired or unmet codes return an error wrapping pricing.ErrInvalidPromo.
func (s *PromoService) Resolve(code string, subtotal decimal.Decimal) (*pricing.Promo, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	promo, err := s.repo.GetByCode(code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s does not exist", pricing.ErrInvalidPromo, code)
		}
		return nil, err
	}
	if !promo.Active {
		return nil, fmt.Errorf("%w: %s is not active", pricing.ErrInvalidPromo, code)
	}
	if promo.ExpiresAt != nil && !s.now().Before(*promo.ExpiresAt) {
		return nil, fmt.Errorf("%w: %s has expired", pricing.ErrInvalidPromo, code)
	}
	if subtotal.LessThan(promo.MinSubtotal) {
		return nil, fmt.Errorf("%w: %s needs a subtotal of at least %s", pricing.ErrInvalidPromo, code, promo.MinSubtotal.StringFixed(2))
	}

	discount := promo.Value
	if promo.Kind == models.PromoPercent {
		discount = subtotal.Mul(promo.Value).Div(hundred)
	}
	discount = decimal.Min(discount.Round(pricing.CurrencyPlaces), subtotal)
	return &pricing.Promo{Code: code, Discount: discount}, nil
}
