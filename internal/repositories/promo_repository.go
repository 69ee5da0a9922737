package repositories

import (
	"errors"
	"fmt"
	"strings"

	"grocer/internal/models"

	"gorm.io/gorm"
)

// PromoRepository defines the interface for promo code data access.
type PromoRepository interface {
	GetAll() ([]models.PromoCode, error)
	GetByCode(code string) (*models.PromoCode, error)
	Save(promo *models.PromoCode) error
}

// GORMPromoRepository is a GORM implementation of PromoRepository.
// Codes are stored upper-case.
type GORMPromoRepository struct {
	db *gorm.DB
}

func NewGORMPromoRepository(db *gorm.DB) *GORMPromoRepository {
	return &GORMPromoRepository{db: db}
}

func (r *GORMPromoRepository) GetAll() ([]models.PromoCode, error) {
	var promos []models.PromoCode
	if err := r.db.Order("code").Find(&promos).Error; err != nil {
		return nil, fmt.Errorf("failed to get promo codes: %w", err)
	}
	return promos, nil
}

func (r *GORMPromoRepository) GetByCode(code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.First(&promo, "code = ?", strings.ToUpper(code)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("promo code %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get promo code %s: %w", code, err)
	}
	return &promo, nil
}

// Save creates the promo code or replaces an existing one with the same code.
func (r *GORMPromoRepository) Save(promo *models.PromoCode) error {
	promo.Code = strings.ToUpper(promo.Code)
	if err := r.db.Save(promo).Error; err != nil {
		return fmt.Errorf("failed to save promo code %s: %w", promo.Code, err)
	}
	return nil
}
