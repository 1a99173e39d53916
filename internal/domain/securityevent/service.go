// Package securityevent records and serves the portal's raw security log:
// login failures, lockouts, rate limits, password resets. Rows here are not
// hash-chained individually; their integrity is established in aggregate by
// the security-event digest chain.
package securityevent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/interex/interex/internal/platform/db"
	"github.com/interex/interex/internal/platform/ledger"
)

// Recorder is the write path used by auth and security code. Recording is
// best-effort: a failed insert is logged and swallowed so security plumbing
// never breaks the request that tripped it.
type Recorder struct {
	store ledger.Store
	log   zerolog.Logger
}

func NewRecorder(store ledger.Store, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Event carries the optional fields of a security occurrence.
type Event struct {
	UserID    string
	TenantID  string
	Reason    string
	IPAddress string
}

// Record appends one security event. It reports whether the row was written.
func (r *Recorder) Record(ctx context.Context, kind string, success bool, ev Event) bool {
	row := &ledger.SecurityEvent{
		Kind:      kind,
		Success:   success,
		TenantID:  ev.TenantID,
		Reason:    ev.Reason,
		IPAddress: ev.IPAddress,
	}
	if ev.UserID != "" {
		id := ev.UserID
		row.UserID = &id
	}
	if row.TenantID == "" {
		row.TenantID = db.TenantFromContext(ctx)
	}

	if err := r.store.InsertSecurityEvent(ctx, row); err != nil {
		r.log.Error().Err(err).Str("kind", kind).Msg("security event not recorded")
		return false
	}
	return true
}

// LoginFailure records a failed authentication attempt.
func (r *Recorder) LoginFailure(ctx context.Context, ev Event) bool {
	return r.Record(ctx, ledger.SecurityLoginFailure, false, ev)
}

// Lockout records an account lockout.
func (r *Recorder) Lockout(ctx context.Context, ev Event) bool {
	return r.Record(ctx, ledger.SecurityLockout, false, ev)
}

// RateLimited records a rejected request due to rate limiting.
func (r *Recorder) RateLimited(ctx context.Context, ev Event) bool {
	return r.Record(ctx, ledger.SecurityRateLimit, false, ev)
}

// PasswordReset records a completed password reset.
func (r *Recorder) PasswordReset(ctx context.Context, ev Event) bool {
	return r.Record(ctx, ledger.SecurityPasswordReset, true, ev)
}
