package repositories_test

import (
	"testing"
	"time"

	"grocer/internal/models"
	"grocer/internal/pricing"
	"grocer/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a private in-memory SQLite database with all models migrated.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.User{}, &models.Order{}, &models.PromoCode{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func sampleOrder(key, email string) *models.Order {
	return &models.Order{
		IdempotencyKey: key,
		Customer: models.Customer{
			Name:    "Ada",
			Email:   email,
			Phone:   "07700900000",
			Address: "1 Market Street",
		},
		Items: []models.OrderItem{
			{ProductID: "apple", Name: "Apple", UnitPrice: decimal.RequireFromString("10"), Quantity: 2},
		},
		DeliveryType: pricing.DeliveryStandard,
		Fees:         pricing.ComputeTotals(decimal.NewFromInt(20), decimal.NewFromInt(5), nil, decimal.NewFromInt(10)),
		PaymentData:  map[string]interface{}{"paymentIntent": "pi_1", "status": "succeeded"},
		Status:       models.OrderStatusPending,
	}
}

func TestGORMOrderRepository_CreateAndGet(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))

	order := sampleOrder("key-1", "ada@example.com")
	require.NoError(t, repo.Create(order))
	require.NotEmpty(t, order.ID)

	got, err := repo.GetByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Customer.Name)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "27.00", got.Fees.Total.StringFixed(2))
	assert.Equal(t, "2.00", got.Fees.ServiceFee.StringFixed(2))
	assert.Equal(t, "pi_1", got.PaymentData["paymentIntent"])
	assert.NoError(t, pricing.Audit(got.Fees))

	byKey, err := repo.GetByIdempotencyKey("key-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byKey.ID)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.GetByIdempotencyKey("missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMOrderRepository_DuplicateIdempotencyKey(t *testing.T) {
	repo := repositories.NewGORMOrderRepository(openTestDB(t))

	require.NoError(t, repo.Create(sampleOrder("same", "a@example.com")))
	err := repo.Create(sampleOrder("same", "a@example.com"))
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestGORMOrderRepository_QueryAndUpdateStatus(t *testing.T) {
	db := openTestDB(t)
	repo := repositories.NewGORMOrderRepository(db)

	first := sampleOrder("k1", "a@example.com")
	require.NoError(t, repo.Create(first))
	time.Sleep(5 * time.Millisecond)
	second := sampleOrder("k2", "b@example.com")
	require.NoError(t, repo.Create(second))

	all, err := repo.Query(repositories.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID, "newest first")

	updated, err := repo.UpdateStatus(first.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, updated.Status)

	pending, err := repo.Query(repositories.OrderFilter{Status: models.OrderStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	byEmail, err := repo.Query(repositories.OrderFilter{Email: "a@example.com"})
	require.NoError(t, err)
	require.Len(t, byEmail, 1)

	limited, err := repo.Query(repositories.OrderFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = repo.UpdateStatus("missing", models.OrderStatusCancelled)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMProductRepository(t *testing.T) {
	repo := repositories.NewGORMProductRepository(openTestDB(t))

	bananas := &models.Product{Name: "Bananas", Category: "fruit", Price: decimal.RequireFromString("0.99"), Stock: 40}
	bread := &models.Product{Name: "Sourdough Bread", Category: "bakery", Price: decimal.RequireFromString("3.20"), Stock: 8}
	require.NoError(t, repo.Create(bananas))
	require.NoError(t, repo.Create(bread))

	fruit, err := repo.GetAll(repositories.ProductFilter{Category: "fruit"})
	require.NoError(t, err)
	require.Len(t, fruit, 1)
	assert.Equal(t, "Bananas", fruit[0].Name)

	found, err := repo.GetAll(repositories.ProductFilter{Search: "dough"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, bread.ID, found[0].ID)

	bread.Stock = 0
	require.NoError(t, repo.Update(bread))
	got, err := repo.GetByID(bread.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, "3.20", got.Price.StringFixed(2))

	assert.ErrorIs(t, repo.Update(&models.Product{ID: "missing", Name: "x"}), repositories.ErrNotFound)
	require.NoError(t, repo.Delete(bread.ID))
	assert.ErrorIs(t, repo.Delete(bread.ID), repositories.ErrNotFound)
	_, err = repo.GetByID(bread.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMUserRepository_Addresses(t *testing.T) {
	repo := repositories.NewGORMUserRepository(openTestDB(t))

	user := &models.User{Name: "Grace", Email: "grace@example.com", Password: "hashed"}
	require.NoError(t, repo.Create(user))

	addresses := []models.Address{{Label: "home", Address: "2 Hill Road", Postcode: "AB1 2CD"}}
	require.NoError(t, repo.UpdateAddresses(user.ID, addresses))

	got, err := repo.GetByEmail("grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, addresses, got.Addresses)

	_, err = repo.GetByID("missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateAddresses("missing", addresses), repositories.ErrNotFound)
}

func TestGORMPromoRepository(t *testing.T) {
	repo := repositories.NewGORMPromoRepository(openTestDB(t))

	promo := &models.PromoCode{Code: "fresh10", Kind: models.PromoPercent, Value: decimal.NewFromInt(10), Active: true}
	require.NoError(t, repo.Save(promo))

	got, err := repo.GetByCode("FRESH10")
	require.NoError(t, err)
	assert.Equal(t, models.PromoPercent, got.Kind)

	promo.Active = false
	require.NoError(t, repo.Save(promo))
	got, err = repo.GetByCode("fresh10")
	require.NoError(t, err)
	assert.False(t, got.Active)

	all, err := repo.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.GetByCode("nope")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
