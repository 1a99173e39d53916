package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interex/interex/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// StorePG is the Postgres-backed ledger store. The audit_event table carries
// UNIQUE (chain_key, seq); violations surface as ErrSeqConflict.
type StorePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) *StorePG {
	return &StorePG{pool: pool}
}

func (s *StorePG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

const entryCols = `id, chain_key, seq, hash_prev, hash_self,
	category, action, status,
	actor_type, actor_id, actor_display,
	entity_type, entity_id, summary,
	metadata, diff, phi_allowed,
	request_id, trace_id, span_id, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.ChainKey, &e.Seq, &e.HashPrev, &e.HashSelf,
		&e.Category, &e.Action, &e.Status,
		&e.ActorType, &e.ActorID, &e.ActorDisplay,
		&e.EntityType, &e.EntityID, &e.Summary,
		&e.Metadata, &e.Diff, &e.PHIAllowed,
		&e.RequestID, &e.TraceID, &e.SpanID, &e.CreatedAt,
	)
	return &e, err
}

func (s *StorePG) Tail(ctx context.Context, chainKey string) (*Entry, error) {
	q := "SELECT " + entryCols + " FROM audit_event WHERE chain_key = $1 ORDER BY seq DESC LIMIT 1"
	e, err := scanEntry(s.conn(ctx).QueryRow(ctx, q, chainKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *StorePG) Insert(ctx context.Context, e *Entry) error {
	const q = `
		INSERT INTO audit_event (
			chain_key, seq, hash_prev, hash_self,
			category, action, status,
			actor_type, actor_id, actor_display,
			entity_type, entity_id, summary,
			metadata, diff, phi_allowed,
			request_id, trace_id, span_id
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
		) RETURNING id, created_at`

	err := s.conn(ctx).QueryRow(ctx, q,
		e.ChainKey, e.Seq, e.HashPrev, e.HashSelf,
		e.Category, e.Action, e.Status,
		e.ActorType, e.ActorID, e.ActorDisplay,
		e.EntityType, e.EntityID, e.Summary,
		e.Metadata, e.Diff, e.PHIAllowed,
		e.RequestID, e.TraceID, e.SpanID,
	).Scan(&e.ID, &e.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSeqConflict
	}
	return err
}

func (s *StorePG) ChainEntries(ctx context.Context, chainKey string, afterSeq int64, limit int) ([]*Entry, error) {
	q := "SELECT " + entryCols + ` FROM audit_event
		WHERE chain_key = $1 AND seq > $2 ORDER BY seq ASC LIMIT $3`
	rows, err := s.conn(ctx).Query(ctx, q, chainKey, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *StorePG) InsertSecurityEvent(ctx context.Context, ev *SecurityEvent) error {
	const q = `
		INSERT INTO security_event (kind, success, user_id, tenant_id, reason, ip_address)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at`
	return s.conn(ctx).QueryRow(ctx, q,
		ev.Kind, ev.Success, ev.UserID, ev.TenantID, ev.Reason, ev.IPAddress,
	).Scan(&ev.ID, &ev.CreatedAt)
}

func (s *StorePG) SecurityEventsInWindow(ctx context.Context, from, to time.Time, limit int) ([]*SecurityEvent, error) {
	const q = `
		SELECT id, kind, success, user_id, tenant_id, reason, ip_address, created_at
		FROM security_event
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3`
	rows, err := s.conn(ctx).Query(ctx, q, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SecurityEvent
	for rows.Next() {
		var ev SecurityEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Success, &ev.UserID,
			&ev.TenantID, &ev.Reason, &ev.IPAddress, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (s *StorePG) FindDigest(ctx context.Context, from, to time.Time) (*Entry, error) {
	q := "SELECT " + entryCols + ` FROM audit_event
		WHERE chain_key = $1 AND metadata->>'from' = $2 AND metadata->>'to' = $3
		ORDER BY seq DESC LIMIT 1`
	e, err := scanEntry(s.conn(ctx).QueryRow(ctx, q,
		DigestChain, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
