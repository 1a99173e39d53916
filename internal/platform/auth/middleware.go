// Package auth guards the portal's admin read surface with JWT bearer
// tokens. Tokens are HMAC-signed by the portal's identity service and carry
// the customer organization and role claims used for tenant scoping and
// role checks.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	UserIDKey    = "user_id"
	UserRolesKey = "user_roles"
)

type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tenant_id"`
	Roles       []string `json:"roles"`
	DisplayName string   `json:"display_name"`
}

// Middleware validates the Authorization bearer token and populates the echo
// context with the caller's identity. The tenant claim is exposed as
// jwt_tenant_id so the tenant middleware can pick it up.
func Middleware(signingKey []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed authorization header")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return signingKey, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(UserIDKey, claims.Subject)
			c.Set(UserRolesKey, claims.Roles)
			c.Set("user_display", claims.DisplayName)
			c.Set("jwt_tenant_id", claims.TenantID)

			return next(c)
		}
	}
}

// DevMiddleware grants every request admin access. Development only.
func DevMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(UserIDKey, "dev-admin")
			c.Set(UserRolesKey, []string{"admin"})
			c.Set("user_display", "Development Admin")
			return next(c)
		}
	}
}

// RequireRole rejects requests whose token lacks the given role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			roles, _ := c.Get(UserRolesKey).([]string)
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}

// UserFromContext returns the authenticated user's ID and display name.
func UserFromContext(c echo.Context) (id, display string) {
	id, _ = c.Get(UserIDKey).(string)
	display, _ = c.Get("user_display").(string)
	return id, display
}
