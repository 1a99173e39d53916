// Package middleware holds the HTTP middleware shared by the portal's API
// surface: request correlation and structured request logging. Correlation
// IDs set here are picked up by the audit facades so every ledger entry can
// be traced back to the request that produced it.
package middleware

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
)

// Correlation headers honored on inbound requests.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
	HeaderSpanID    = "X-Span-ID"
)

// RequestID threads a request identifier through the request context and
// echoes it back on the response. Inbound X-Request-ID is honored so the
// portal front-end can correlate; otherwise a fresh UUID is assigned.
// Trace and span IDs are propagated when present but never generated here.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.New().String()
			}

			ctx := context.WithValue(req.Context(), requestIDKey, rid)
			if tid := req.Header.Get(HeaderTraceID); tid != "" {
				ctx = context.WithValue(ctx, traceIDKey, tid)
			}
			if sid := req.Header.Get(HeaderSpanID); sid != "" {
				ctx = context.WithValue(ctx, spanIDKey, sid)
			}

			c.SetRequest(req.WithContext(ctx))
			c.Set(string(requestIDKey), rid)
			c.Response().Header().Set(HeaderRequestID, rid)

			return next(c)
		}
	}
}

// RequestIDFromContext returns the request ID, or "" when none was threaded.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// TraceIDFromContext returns the propagated trace ID, if any.
func TraceIDFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(traceIDKey).(string)
	return tid
}

// SpanIDFromContext returns the propagated span ID, if any.
func SpanIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(spanIDKey).(string)
	return sid
}
