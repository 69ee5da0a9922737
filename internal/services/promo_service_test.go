package services_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"grocer/internal/models"
	"grocer/internal/pricing"
	"grocer/internal/repositories"
	"grocer/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryPromoRepository map[string]models.PromoCode

func (r memoryPromoRepository) GetAll() ([]models.PromoCode, error) {
	out := make([]models.PromoCode, 0, len(r))
	for _, p := range r {
		out = append(out, p)
	}
	return out, nil
}

func (r memoryPromoRepository) GetByCode(code string) (*models.PromoCode, error) {
	p, ok := r[strings.ToUpper(code)]
	if !ok {
		return nil, fmt.Errorf("promo code %s: %w", code, repositories.ErrNotFound)
	}
	return &p, nil
}

func (r memoryPromoRepository) Save(promo *models.PromoCode) error {
	r[promo.Code] = *promo
	return nil
}

func TestPromoService_Resolve(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	repo := memoryPromoRepository{
		"TENPC":   {Code: "TENPC", Kind: models.PromoPercent, Value: decimal.NewFromInt(10), Active: true},
		"FIVER":   {Code: "FIVER", Kind: models.PromoFixed, Value: decimal.NewFromInt(5), Active: true, ExpiresAt: &future},
		"BIG":     {Code: "BIG", Kind: models.PromoFixed, Value: decimal.NewFromInt(50), Active: true},
		"MIN30":   {Code: "MIN30", Kind: models.PromoFixed, Value: decimal.NewFromInt(3), Active: true, MinSubtotal: decimal.NewFromInt(30)},
		"OFF":     {Code: "OFF", Kind: models.PromoFixed, Value: decimal.NewFromInt(3)},
		"EXPIRED": {Code: "EXPIRED", Kind: models.PromoFixed, Value: decimal.NewFromInt(3), Active: true, ExpiresAt: &past},
	}
	service := services.NewPromoService(repo)
	subtotal := decimal.RequireFromString("24.99")

	promo, err := service.Resolve("tenpc", subtotal)
	require.NoError(t, err)
	assert.Equal(t, "TENPC", promo.Code)
	assert.Equal(t, "2.50", promo.Discount.StringFixed(2))

	promo, err = service.Resolve("FIVER", subtotal)
	require.NoError(t, err)
	assert.Equal(t, "5.00", promo.Discount.StringFixed(2))

	promo, err = service.Resolve("BIG", subtotal)
	require.NoError(t, err)
	assert.True(t, promo.Discount.Equal(subtotal), "discount is capped at the subtotal")

	for _, code := range []string{"MIN30", "OFF", "EXPIRED", "NOPE"} {
		_, err := service.Resolve(code, subtotal)
		assert.ErrorIs(t, err, pricing.ErrInvalidPromo, code)
	}
}

func TestPromoService_Save(t *testing.T) {
	repo := memoryPromoRepository{}
	service := services.NewPromoService(repo)

	require.NoError(t, service.Save(&models.PromoCode{Code: " spring ", Kind: models.PromoPercent, Value: decimal.NewFromInt(15), Active: true}))
	assert.Contains(t, repo, "SPRING")

	invalid := []*models.PromoCode{
		{Code: "BAD", Kind: models.PromoPercent, Value: decimal.NewFromInt(150)},
		{Code: "BAD", Kind: models.PromoFixed, Value: decimal.Zero},
		{Code: "BAD", Kind: "bogo", Value: decimal.NewFromInt(1)},
		{Code: "NOT OK", Kind: models.PromoFixed, Value: decimal.NewFromInt(1)},
	}
	for _, p := range invalid {
		assert.ErrorIs(t, service.Save(p), pricing.ErrInvalidPromo, p.Code)
	}
}
