package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-events", nil)
		rec := httptest.NewRecorder()
		if err := mw(handler)(e.NewContext(req, rec)); err != nil {
			t.Fatalf("request %d rejected inside burst: %v", i, err)
		}
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	e := echo.New()
	limited := 0
	mw := RateLimit(RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         2,
		OnLimited:         func(echo.Context) { limited++ },
	})
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	var lastErr error
	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-events", nil)
		lastRec = httptest.NewRecorder()
		lastErr = mw(handler)(e.NewContext(req, lastRec))
	}

	if lastErr == nil {
		t.Fatal("third request should exceed the burst")
	}
	httpErr, ok := lastErr.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", lastErr)
	}
	if limited != 1 {
		t.Errorf("OnLimited fired %d times, want 1", limited)
	}
	if lastRec.Header().Get("Retry-After") == "" {
		t.Error("rejected response must carry Retry-After")
	}
}

func TestRateLimit_KeysByTenant(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	handler := func(c echo.Context) error { return c.String(http.StatusOK, "ok") }

	send := func(tenant string) error {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-events", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("jwt_tenant_id", tenant)
		return mw(handler)(c)
	}

	if err := send("acme"); err != nil {
		t.Fatalf("first acme request rejected: %v", err)
	}
	if err := send("acme"); err == nil {
		t.Fatal("second acme request should be limited")
	}
	if err := send("globex"); err != nil {
		t.Fatalf("other tenant must have its own bucket: %v", err)
	}
}
