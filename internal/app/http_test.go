package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio-service/internal/config"
	"portfolio-service/internal/db"
	"portfolio-service/internal/redis"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupProvidersSkipsUnconfigured(t *testing.T) {
	registry, err := setupProviders(context.Background(), config.Config{
		GoogleClientID: "id-without-secret",
	})

	require.NoError(t, err)
	assert.Empty(t, registry.Names())
}

func TestHealthReportsBackingStores(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	mr := miniredis.RunT(t)
	rdb, err := redis.New(context.Background(), redis.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.GET("/health", health(&Infra{DB: &db.DB{DB: sqlDB}, Redis: rdb}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	mr.Close()

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
