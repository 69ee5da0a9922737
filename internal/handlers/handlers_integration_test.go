package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"grocer/internal/cache"
	"grocer/internal/checkout"
	"grocer/internal/handlers"
	"grocer/internal/middleware"
	"grocer/internal/models"
	"grocer/internal/notify"
	"grocer/internal/payment"
	"grocer/internal/pricing"
	"grocer/internal/repositories"
	"grocer/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// flakyOrderStore fails the first n order writes, then delegates.
type flakyOrderStore struct {
	next  checkout.OrderStore
	fails int
}

func (s *flakyOrderStore) CreateOrder(order *models.Order) (*models.Order, error) {
	if s.fails > 0 {
		s.fails--
		return nil, errors.New("connection reset by peer")
	}
	return s.next.CreateOrder(order)
}

type testEnv struct {
	app      *fiber.App
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	store    *flakyOrderStore
	auth     *services.AuthService
	redis    *miniredis.Miniredis
}

// setupApp sets up a Fiber app for testing with in-memory SQLite, miniredis
// and the sandbox payment gateway.
func setupApp(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.User{}, &models.Order{}, &models.PromoCode{}))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)
	promoRepo := repositories.NewGORMPromoRepository(db)

	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, nil)
	promoService := services.NewPromoService(promoRepo)
	authService := services.NewAuthService(userRepo, cache.NewRedisDenylist(rdb), "test_jwt_secret", time.Hour)

	store := &flakyOrderStore{next: orderService}
	orchestrator := checkout.NewOrchestrator(payment.NewSandboxGateway(), store, promoService, notify.LogSink{}, checkout.Config{
		Rates: pricing.DeliveryRates{
			Standard:  decimal.NewFromInt(5),
			Express:   decimal.NewFromInt(9),
			Scheduled: decimal.NewFromInt(7),
		},
		ServiceFeePercent: decimal.NewFromInt(10),
	})
	sessions := services.NewSessionStore(orchestrator, cache.NewRedisCache(rdb))

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	productHandler := handlers.NewProductHandler(productService)
	productHandler.RegisterRoutes(apiV1)
	handlers.NewCartHandler(services.NewCartService(sessions, productService)).RegisterRoutes(apiV1)
	checkoutHandler := handlers.NewCheckoutHandler(services.NewCheckoutService(sessions))
	checkoutHandler.RegisterRoutes(apiV1)

	admin := apiV1.Group("/admin", middleware.AuthRequired(authService), middleware.AdminRequired())
	productHandler.RegisterAdminRoutes(admin)
	handlers.NewOrderHandler(orderService).RegisterRoutes(admin)
	handlers.NewPromoHandler(promoService).RegisterRoutes(admin)
	checkoutHandler.RegisterAdminRoutes(admin)

	return &testEnv{app: app, products: productRepo, orders: orderRepo, store: store, auth: authService, redis: mr}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func (e *testEnv) do(t *testing.T, method, path, session, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(handlers.SessionHeader, session)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (e *testEnv) seedProduct(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Category: "fresh", Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, e.products.Create(p))
	return p
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	require.NoError(t, e.auth.EnsureAdmin("admin@example.com", "admin-secret"))
	result, err := e.auth.LoginUser("admin@example.com", "admin-secret")
	require.NoError(t, err)
	require.True(t, result.IsAdmin)
	return result.Token
}

var shopperDetails = map[string]interface{}{
	"name":         "Ada Lovelace",
	"email":        "ada@example.com",
	"phone":        "07700900000",
	"address":      "1 Market Street",
	"postcode":     "AB1 2CD",
	"deliveryType": "standard",
}

func TestCheckoutFlow(t *testing.T) {
	env := setupApp(t)
	apples := env.seedProduct(t, "Apples", "10.00", 50)
	const sid = "shopper-1"

	resp, cart := env.do(t, http.MethodPost, "/api/v1/cart/items", sid, "", map[string]interface{}{"productId": apples.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), cart["count"])
	assert.True(t, env.redis.Exists("cart:"+sid), "cart is persisted")

	resp, _ = env.do(t, http.MethodPut, "/api/v1/checkout/details", sid, "", shopperDetails)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, quote := env.do(t, http.MethodGet, "/api/v1/checkout/quote", sid, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "27", quote["total"])

	resp, intent := env.do(t, http.MethodPost, "/api/v1/checkout/start", sid, "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, intent["clientSecret"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/checkout/start", sid, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "second checkout while one is pending")

	resp, order := env.do(t, http.MethodPost, "/api/v1/checkout/confirm", sid, "", map[string]interface{}{
		"success": true,
		"payload": map[string]interface{}{"status": "succeeded"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, intent["paymentIntent"], order["paymentData"].(map[string]interface{})["paymentIntent"])
	assert.False(t, env.redis.Exists("cart:"+sid), "cart is dropped once the order exists")

	stored, err := env.orders.Query(repositories.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "27.00", stored[0].Fees.Total.StringFixed(2))

	resp, _ = env.do(t, http.MethodPost, "/api/v1/checkout/confirm", sid, "", map[string]interface{}{"success": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "nothing is awaiting confirmation")
}

func TestCheckoutErrors(t *testing.T) {
	env := setupApp(t)
	apples := env.seedProduct(t, "Apples", "10.00", 3)
	const sid = "shopper-2"

	resp, _ := env.do(t, http.MethodPost, "/api/v1/checkout/start", sid, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty cart")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/cart/items", sid, "", map[string]interface{}{"productId": "nope", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/cart/items", sid, "", map[string]interface{}{"productId": apples.ID, "quantity": 4})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "more than in stock")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/cart/items", sid, "", map[string]interface{}{"productId": apples.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	bad := map[string]interface{}{"name": "", "phone": "1", "address": "x", "deliveryType": "drone"}
	resp, body := env.do(t, http.MethodPut, "/api/v1/checkout/details", sid, "", bad)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	fields := body["errors"].(map[string]interface{})
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "deliveryType")

	resp, _ = env.do(t, http.MethodPut, "/api/v1/checkout/details", sid, "", shopperDetails)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/checkout/start", sid, "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/v1/checkout/confirm", sid, "", map[string]interface{}{"success": false, "reason": "card_declined"})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	assert.Contains(t, body["error"], "card_declined")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/checkout/abandon", sid, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/v1/checkout", sid, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, env.redis.Exists("cart:"+sid))
}

func TestPersistFailureAndAdminRetry(t *testing.T) {
	env := setupApp(t)
	apples := env.seedProduct(t, "Apples", "10.00", 10)
	token := env.adminToken(t)
	const sid = "shopper-3"

	env.do(t, http.MethodPost, "/api/v1/cart/items", sid, "", map[string]interface{}{"productId": apples.ID, "quantity": 1})
	env.do(t, http.MethodPut, "/api/v1/checkout/details", sid, "", shopperDetails)
	resp, _ := env.do(t, http.MethodPost, "/api/v1/checkout/start", sid, "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	env.store.fails = 1
	resp, body := env.do(t, http.MethodPost, "/api/v1/checkout/confirm", sid, "", map[string]interface{}{"success": true})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, true, body["critical"])
	key := body["idempotencyKey"].(string)
	assert.NotEmpty(t, key)

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/checkout", sid, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "paid session cannot be closed")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/checkout/"+sid+"/retry", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, order := env.do(t, http.MethodPost, "/api/v1/admin/checkout/"+sid+"/retry", "", token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, key, order["idempotencyKey"])

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/checkout/unknown/retry", "", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminOrderStatus(t *testing.T) {
	env := setupApp(t)
	token := env.adminToken(t)

	order := &models.Order{
		IdempotencyKey: "key-1",
		Customer:       models.Customer{Name: "Ada", Phone: "1", Address: "1 Market Street", Email: "ada@example.com"},
		Items:          []models.OrderItem{{ProductID: "p", Name: "Apples", UnitPrice: decimal.NewFromInt(1), Quantity: 1}},
		DeliveryType:   pricing.DeliveryExpress,
		Status:         models.OrderStatusPending,
	}
	require.NoError(t, env.orders.Create(order))
	path := "/api/v1/admin/orders/" + order.ID + "/status"

	resp, updated := env.do(t, http.MethodPatch, path, "", token, map[string]string{"status": "processing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processing", updated["status"])

	resp, _ = env.do(t, http.MethodPatch, path, "", token, map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPatch, path, "", token, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPatch, "/api/v1/admin/orders/missing/status", "", token, map[string]string{"status": "delivered"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders?status=processing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	listResp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	var orders []models.Order
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestAuthRegisterLoginLogout(t *testing.T) {
	env := setupApp(t)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/register", "", "", map[string]string{
		"name": "Grace", "email": "grace@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/register", "", "", map[string]string{
		"name": "Grace", "email": "grace@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{"email": "grace@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, login := env.do(t, http.MethodPost, "/api/v1/auth/login", "", "", map[string]string{"email": "grace@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, login["isAdmin"])
	token := login["token"].(string)

	resp, me := env.do(t, http.MethodGet, "/api/v1/auth/me", "", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "grace@example.com", me["email"])
	assert.NotContains(t, me, "password")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/me/addresses", "", token, map[string]string{"label": "home", "address": "2 Hill Road", "postcode": "ab1 2cd"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/orders", "", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "shoppers are not admins")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/logout", "", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/auth/me", "", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "revoked token")
}

func TestPromoCodes(t *testing.T) {
	env := setupApp(t)
	apples := env.seedProduct(t, "Apples", "10.00", 10)
	token := env.adminToken(t)
	const sid = "shopper-4"

	resp, _ := env.do(t, http.MethodPut, "/api/v1/admin/promos/fresh10", "", token, map[string]interface{}{
		"kind": "percent", "value": "10", "active": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	env.do(t, http.MethodPost, "/api/v1/cart/items", sid, "", map[string]interface{}{"productId": apples.ID, "quantity": 2})
	details := map[string]interface{}{}
	for k, v := range shopperDetails {
		details[k] = v
	}
	details["promoCode"] = "fresh10"
	resp, _ = env.do(t, http.MethodPut, "/api/v1/checkout/details", sid, "", details)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, quote := env.do(t, http.MethodGet, "/api/v1/checkout/quote", sid, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2", quote["discountAmount"])
	assert.Equal(t, "25", quote["total"])

	details["promoCode"] = "NOPE"
	resp, body := env.do(t, http.MethodPut, "/api/v1/checkout/details", sid, "", details)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["errors"], "promoCode")

}
