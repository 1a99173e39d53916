// Package ledger implements the tamper-evident audit core of the portal: a
// hash-chained, append-only event ledger with per-tenant and global chains,
// PHI redaction applied at write time, payload byte budgets, and a periodic
// digest job that rolls the raw security-event log into a cryptographic
// checksum per time window.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Category is the domain of a ledger entry.
type Category string

const (
	CategoryAuth       Category = "AUTH"
	CategoryAdmin      Category = "ADMIN"
	CategorySubmission Category = "SUBMISSION"
	CategorySecurity   Category = "SECURITY"
	CategorySystem     Category = "SYSTEM"
	CategoryError      Category = "ERROR"
)

// Status is the outcome of the action a ledger entry records.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusWarning Status = "WARNING"
)

// ActorType identifies who performed the recorded action.
type ActorType string

const (
	ActorUser   ActorType = "USER"
	ActorSystem ActorType = "SYSTEM"
)

// Reserved chain keys. Tenant-scoped entries use the tenant identifier itself
// as the chain key, so every customer org owns an independent chain.
const (
	GlobalChain = "GLOBAL"
	DigestChain = "SECURITY_EVENT_DIGEST"
)

// Entry is one immutable, hash-linked ledger record. Within a chain key,
// Seq is contiguous starting at 1 and HashPrev equals the HashSelf of the
// preceding entry (nil for the first). Entries are never updated or deleted.
type Entry struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	ChainKey     string         `db:"chain_key" json:"chain_key"`
	Seq          int64          `db:"seq" json:"seq"`
	HashPrev     *string        `db:"hash_prev" json:"hash_prev,omitempty"`
	HashSelf     string         `db:"hash_self" json:"hash_self"`
	Category     Category       `db:"category" json:"category"`
	Action       string         `db:"action" json:"action"`
	Status       Status         `db:"status" json:"status"`
	ActorType    ActorType      `db:"actor_type" json:"actor_type"`
	ActorID      *string        `db:"actor_id" json:"actor_id,omitempty"`
	ActorDisplay string         `db:"actor_display" json:"actor_display"`
	EntityType   string         `db:"entity_type" json:"entity_type"`
	EntityID     string         `db:"entity_id" json:"entity_id"`
	Summary      string         `db:"summary" json:"summary"`
	Metadata     map[string]any `db:"metadata" json:"metadata,omitempty"`
	Diff         map[string]any `db:"diff" json:"diff,omitempty"`
	PHIAllowed   bool           `db:"phi_allowed" json:"phi_allowed"`
	RequestID    string         `db:"request_id" json:"request_id,omitempty"`
	TraceID      string         `db:"trace_id" json:"trace_id,omitempty"`
	SpanID       string         `db:"span_id" json:"span_id,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// SecurityEvent is one row of the separate, non-chained security log
// (login failures, lockouts, rate limits, password resets). Integrity of
// this log is established only in aggregate, via the digest chain.
type SecurityEvent struct {
	ID        int64     `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Success   bool      `db:"success" json:"success"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Reason    string    `db:"reason" json:"reason"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Security event kinds recorded by the auth/security code paths.
const (
	SecurityLoginFailure   = "LOGIN_FAILURE"
	SecurityLockout        = "ACCOUNT_LOCKOUT"
	SecurityRateLimit      = "RATE_LIMIT"
	SecurityPasswordReset  = "PASSWORD_RESET"
	SecurityDigestRecorded = "SECURITY_EVENT_DIGEST_RECORDED"
)
