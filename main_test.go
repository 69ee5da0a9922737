package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"grocer/internal/config"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func setupTestApp(t *testing.T) (*miniredis.Miniredis, func(req *http.Request) *http.Response) {
	t.Helper()
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	app, err := newApp(cfg, db, rdb, nil)
	require.NoError(t, err)
	return mr, func(req *http.Request) *http.Response {
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}
}

func TestHealthCheck(t *testing.T) {
	mr, do := setupTestApp(t)

	resp := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "disabled", body["rabbitmq"])

	mr.Close()
	resp = do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSeededCatalogue(t *testing.T) {
	_, do := setupTestApp(t)

	resp := do(httptest.NewRequest(http.MethodGet, "/api/v1/products?category=dairy", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.Len(t, products, 2)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	_, do := setupTestApp(t)

	resp := do(httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
