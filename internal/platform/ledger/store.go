package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrSeqConflict is returned by Store.Insert when another writer claimed the
// same (chain_key, seq) first. The chain writer recovers by re-reading the
// tail and recomputing.
var ErrSeqConflict = errors.New("ledger: sequence already used for chain")

// Store is the persistence boundary of the audit core. Implementations are
// append-only: nothing ever updates or deletes an entry.
type Store interface {
	// Tail returns the highest-seq entry for a chain, or nil when the chain
	// is empty.
	Tail(ctx context.Context, chainKey string) (*Entry, error)

	// Insert persists one entry. It returns ErrSeqConflict when the
	// (chain_key, seq) pair is already taken.
	Insert(ctx context.Context, e *Entry) error

	// ChainEntries returns up to limit entries of a chain with seq > afterSeq,
	// ordered by seq ascending. Used by chain verification.
	ChainEntries(ctx context.Context, chainKey string, afterSeq int64, limit int) ([]*Entry, error)

	// InsertSecurityEvent appends one row to the non-chained security log.
	InsertSecurityEvent(ctx context.Context, ev *SecurityEvent) error

	// SecurityEventsInWindow returns security events with created_at in
	// [from, to), ordered by (created_at, id) ascending, at most limit rows.
	SecurityEventsInWindow(ctx context.Context, from, to time.Time, limit int) ([]*SecurityEvent, error)

	// FindDigest returns the most recent digest-chain entry recorded for the
	// exact [from, to) window, or nil when the window has not been digested.
	FindDigest(ctx context.Context, from, to time.Time) (*Entry, error)
}
