package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "REPORT_CACHE_TTL", "LEDGER_CURRENCY", "RATE_LIMIT_PER_MINUTE"} {
		t.Setenv(key, "unset")
		require.NoError(t, os.Unsetenv(key))
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 10*time.Minute, cfg.ReportCacheTTL)
	assert.Equal(t, "JPY", cfg.Currency)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LEDGER_CURRENCY", "USD")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, 0, cfg.RateLimitPerMinute)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestActorMiddleware(t *testing.T) {
	var seen uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	})
	handler := ActorMiddleware(nil)(next)

	actorID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ActorHeader, actorID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actorID, seen)

	seen = uuid.New()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, uuid.Nil, seen)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ActorHeader, "someone")
	rec = httptest.NewRecorder()
	ActorMiddleware(nil)(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestRouterHealthEndpointsAndMetrics(t *testing.T) {
	cfg := &Config{AppEnv: "development", AppRequestTimeout: time.Second, RateLimitPerMinute: 100}
	metrics := observability.NewMetrics()
	router := NewRouter(RouterParams{Config: cfg, Database: stubPinger{}, Metrics: metrics})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}

func TestReadinessReportsDatabaseFailure(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 0}
	router := NewRouter(RouterParams{Config: cfg, Database: stubPinger{err: errors.New("down")}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitRejectsBurst(t *testing.T) {
	cfg := &Config{RateLimitPerMinute: 2}
	router := NewRouter(RouterParams{Config: cfg})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
