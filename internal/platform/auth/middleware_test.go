package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func adminClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID:    "acme",
		Roles:       []string{"admin"},
		DisplayName: "Jo Admin",
	}
}

func doAuth(t *testing.T, header string) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-events", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	return c, Middleware(testKey)(handler)(c)
}

func TestMiddleware_ValidToken(t *testing.T) {
	token := signToken(t, testKey, adminClaims())

	c, err := doAuth(t, "Bearer "+token)
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	id, display := UserFromContext(c)
	if id != "u-9" || display != "Jo Admin" {
		t.Errorf("user = %s/%s, want u-9/Jo Admin", id, display)
	}
	if tid, _ := c.Get("jwt_tenant_id").(string); tid != "acme" {
		t.Errorf("tenant claim = %q, want acme", tid)
	}
	roles, _ := c.Get(UserRolesKey).([]string)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("roles = %v", roles)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	expired := adminClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong key", "Bearer " + signToken(t, []byte("other-key"), adminClaims())},
		{"expired", "Bearer " + signToken(t, testKey, expired)},
	}

	for _, tc := range cases {
		_, err := doAuth(t, tc.header)
		httpErr, ok := err.(*echo.HTTPError)
		if !ok || httpErr.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %v", tc.name, err)
		}
	}
}

func TestMiddleware_RejectsUnsignedAlg(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, adminClaims())
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	_, authErr := doAuth(t, "Bearer "+signed)
	if authErr == nil {
		t.Fatal("alg=none token must be rejected")
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	newCtx := func(roles []string) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		if roles != nil {
			c.Set(UserRolesKey, roles)
		}
		return c
	}

	if err := RequireRole("admin")(handler)(newCtx([]string{"viewer", "admin"})); err != nil {
		t.Errorf("admin role rejected: %v", err)
	}

	err := RequireRole("admin")(handler)(newCtx([]string{"viewer"}))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for missing role, got %v", err)
	}

	if err := RequireRole("admin")(handler)(newCtx(nil)); err == nil {
		t.Error("no roles at all must be rejected")
	}
}

func TestDevMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	if err := DevMiddleware()(handler)(c); err != nil {
		t.Fatal(err)
	}

	id, _ := UserFromContext(c)
	if id != "dev-admin" {
		t.Errorf("dev user = %q", id)
	}
	if err := RequireRole("admin")(handler)(c); err != nil {
		t.Error("dev identity must satisfy the admin role")
	}
}
