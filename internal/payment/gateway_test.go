package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grocer/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2599), payment.MinorUnits(decimal.RequireFromString("25.99")))
	assert.Equal(t, int64(500), payment.MinorUnits(decimal.RequireFromString("5")))
	assert.Equal(t, int64(13), payment.MinorUnits(decimal.RequireFromString("0.125")))
}

func TestHTTPGateway_CreateIntent(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","clientSecret":"pi_123_secret_abc"}`))
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(srv.URL, "sk_test", time.Second)
	intent, err := gw.CreateIntent(context.Background(), payment.IntentRequest{
		IdempotencyKey: "attempt-1",
		Items:          []payment.Item{{ProductID: "apple", Quantity: 2}},
		DeliveryFee:    decimal.RequireFromString("3.99"),
		Amount:         decimal.RequireFromString("23.99"),
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.Equal(t, "attempt-1", gotKey)
	assert.Equal(t, "Bearer sk_test", gotAuth)
	assert.EqualValues(t, 399, gotBody["deliveryFee"])
	assert.EqualValues(t, 2399, gotBody["amount"])
}

func TestHTTPGateway_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"amount too small"}`))
	}))
	defer srv.Close()

	gw := payment.NewHTTPGateway(srv.URL, "", time.Second)
	_, err := gw.CreateIntent(context.Background(), payment.IntentRequest{Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, payment.ErrProviderRejected)
	assert.Contains(t, err.Error(), "amount too small")
}

func TestHTTPGateway_CancelledContext(t *testing.T) {
	gw := payment.NewHTTPGateway("http://127.0.0.1:1", "", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gw.CreateIntent(ctx, payment.IntentRequest{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSandboxGateway(t *testing.T) {
	gw := payment.NewSandboxGateway()
	ctx := context.Background()

	first, err := gw.CreateIntent(ctx, payment.IntentRequest{IdempotencyKey: "k1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Contains(t, first.ClientSecret, "_secret_")

	again, err := gw.CreateIntent(ctx, payment.IntentRequest{IdempotencyKey: "k1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := gw.CreateIntent(ctx, payment.IntentRequest{IdempotencyKey: "k2", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	free, err := gw.CreateIntent(ctx, payment.IntentRequest{IdempotencyKey: "k3", Amount: decimal.Zero})
	require.NoError(t, err, "fully discounted orders still get an intent")
	assert.NotEmpty(t, free.ClientSecret)

	_, err = gw.CreateIntent(ctx, payment.IntentRequest{Amount: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, payment.ErrProviderRejected)
}
