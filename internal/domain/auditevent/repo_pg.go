package auditevent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interex/interex/internal/platform/db"
	"github.com/interex/interex/internal/platform/ledger"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, chain_key, seq, hash_prev, hash_self,
	category, action, status,
	actor_type, actor_id, actor_display,
	entity_type, entity_id, summary,
	metadata, diff, phi_allowed,
	request_id, trace_id, span_id, created_at`

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
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

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	q := "SELECT " + entryCols + " FROM audit_event WHERE id = $1"
	return scanEntry(r.conn(ctx).QueryRow(ctx, q, id))
}

func (r *RepoPG) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*ledger.Entry, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	add := func(clause string, val interface{}) {
		where = append(where, fmt.Sprintf(clause, idx))
		args = append(args, val)
		idx++
	}

	if params.ChainKey != "" {
		add("chain_key = $%d", params.ChainKey)
	}
	if params.Category != "" {
		add("category = $%d", params.Category)
	}
	if params.Action != "" {
		add("action = $%d", params.Action)
	}
	if params.Status != "" {
		add("status = $%d", params.Status)
	}
	if params.ActorID != "" {
		add("actor_id = $%d", params.ActorID)
	}
	if params.EntityType != "" {
		add("entity_type = $%d", params.EntityType)
	}
	if params.EntityID != "" {
		add("entity_id = $%d", params.EntityID)
	}
	if params.From != nil {
		add("created_at >= $%d", *params.From)
	}
	if params.To != nil {
		add("created_at < $%d", *params.To)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_event %s", whereClause)
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_event %s ORDER BY created_at DESC, seq DESC LIMIT $%d OFFSET $%d",
		entryCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
