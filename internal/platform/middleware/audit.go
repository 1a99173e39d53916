package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/interex/interex/internal/platform/auth"
)

// AuditEntry captures one admin API request: who did what to which resource,
// from where, and how the server answered.
type AuditEntry struct {
	UserID      string
	UserDisplay string
	UserRoles   []string
	Resource    string
	ResourceID  string
	Action      string // read, search, create, update, delete
	Method      string
	Path        string
	IPAddress   string
	UserAgent   string
	RequestID   string
	StatusCode  int
	Timestamp   time.Time
}

// AuditRecorder persists audit entries. The middleware depends on this
// interface rather than the ledger writer directly so the two packages stay
// acyclic and tests can substitute a capture.
type AuditRecorder interface {
	RecordAccess(c echo.Context, entry AuditEntry)
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(c echo.Context, entry AuditEntry)

func (f AuditRecorderFunc) RecordAccess(c echo.Context, entry AuditEntry) {
	f(c, entry)
}

// Audit returns middleware that records every /api/v1 request to the audit
// trail. The handler runs first so the response status lands in the entry.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				RequestID:  RequestIDFromContext(req.Context()),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			entry.UserID, entry.UserDisplay = auth.UserFromContext(c)
			entry.UserRoles, _ = c.Get(auth.UserRolesKey).([]string)
			entry.Resource, entry.ResourceID = splitResourcePath(path)
			entry.Action = actionFor(req.Method, entry.ResourceID, req.URL.RawQuery)

			if recorder != nil {
				recorder.RecordAccess(c, entry)
			}

			logger.Info().
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("resource", entry.Resource).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("admin api access")

			return err
		}
	}
}

// splitResourcePath maps /api/v1/audit-events/123 to ("audit-events", "123").
func splitResourcePath(path string) (resource, id string) {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 {
		resource = segments[0]
	}
	if len(segments) > 1 {
		id = segments[1]
	}
	return resource, id
}

func actionFor(method, resourceID, rawQuery string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		if resourceID == "" && rawQuery != "" {
			return "search"
		}
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
