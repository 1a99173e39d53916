package ledger

import (
	"context"

	"github.com/interex/interex/internal/platform/db"
	"github.com/interex/interex/internal/platform/middleware"
)

// Fields is the partial field set a category facade accepts. Category and
// chain key are supplied by the facade; correlation IDs are threaded from the
// request context when not set explicitly.
type Fields struct {
	Action       string
	Status       Status
	ActorType    ActorType
	ActorID      string
	ActorDisplay string
	EntityType   string
	EntityID     string
	Summary      string
	Metadata     map[string]any
	Diff         map[string]any
	AllowPHI     bool
	RequestID    string
	TraceID      string
	SpanID       string
}

// AuditLogger is the sanctioned entry point for business code: category
// helpers that fill in defaults and delegate to the chain writer. Direct
// ChainWriter calls are reserved for the digest job and backfill tooling.
// Every method is best-effort and returns whether the entry was written.
type AuditLogger struct {
	writer *ChainWriter
}

func NewAuditLogger(writer *ChainWriter) *AuditLogger {
	return &AuditLogger{writer: writer}
}

// Auth records authentication and session actions (login, logout, MFA).
func (l *AuditLogger) Auth(ctx context.Context, f Fields) bool {
	return l.write(ctx, CategoryAuth, f)
}

// Admin records administrative actions (user management, org settings).
func (l *AuditLogger) Admin(ctx context.Context, f Fields) bool {
	return l.write(ctx, CategoryAdmin, f)
}

// Submission records document submission lifecycle actions.
func (l *AuditLogger) Submission(ctx context.Context, f Fields) bool {
	return l.write(ctx, CategorySubmission, f)
}

// Security records security-sensitive actions (lockouts, permission denials).
func (l *AuditLogger) Security(ctx context.Context, f Fields) bool {
	return l.write(ctx, CategorySecurity, f)
}

// System records system-originated actions. The actor defaults to SYSTEM
// with a nil actor ID.
func (l *AuditLogger) System(ctx context.Context, f Fields) bool {
	if f.ActorType == "" {
		f.ActorType = ActorSystem
	}
	return l.write(ctx, CategorySystem, f)
}

// Error records failures observed outside a more specific category.
func (l *AuditLogger) Error(ctx context.Context, f Fields) bool {
	if f.Status == "" {
		f.Status = StatusFailure
	}
	return l.write(ctx, CategoryError, f)
}

func (l *AuditLogger) write(ctx context.Context, cat Category, f Fields) bool {
	e := &Entry{
		ChainKey:     chainKeyFromContext(ctx),
		Category:     cat,
		Action:       f.Action,
		Status:       f.Status,
		ActorType:    f.ActorType,
		ActorDisplay: f.ActorDisplay,
		EntityType:   f.EntityType,
		EntityID:     f.EntityID,
		Summary:      f.Summary,
		Metadata:     f.Metadata,
		Diff:         f.Diff,
		PHIAllowed:   f.AllowPHI,
		RequestID:    f.RequestID,
		TraceID:      f.TraceID,
		SpanID:       f.SpanID,
	}
	if f.ActorID != "" {
		id := f.ActorID
		e.ActorID = &id
	}
	if e.RequestID == "" {
		e.RequestID = middleware.RequestIDFromContext(ctx)
	}
	if e.TraceID == "" {
		e.TraceID = middleware.TraceIDFromContext(ctx)
	}
	if e.SpanID == "" {
		e.SpanID = middleware.SpanIDFromContext(ctx)
	}
	_, written := l.writer.Append(ctx, e)
	return written
}

// chainKeyFromContext scopes the entry to the requesting tenant's chain when
// a tenant is resolved, falling back to the global chain.
func chainKeyFromContext(ctx context.Context) string {
	if tid := db.TenantFromContext(ctx); tid != "" {
		return tid
	}
	return GlobalChain
}
