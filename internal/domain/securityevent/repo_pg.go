package securityevent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interex/interex/internal/platform/db"
	"github.com/interex/interex/internal/platform/ledger"
)

// ListParams filter the security-event report. Zero values mean "no filter".
type ListParams struct {
	Kind     string
	TenantID string
	From     *time.Time
	To       *time.Time
}

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
} {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// List returns security events newest-first with a total count.
func (r *RepoPG) List(ctx context.Context, params ListParams, limit, offset int) ([]*ledger.SecurityEvent, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if params.Kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", idx))
		args = append(args, params.Kind)
		idx++
	}
	if params.TenantID != "" {
		where = append(where, fmt.Sprintf("tenant_id = $%d", idx))
		args = append(args, params.TenantID)
		idx++
	}
	if params.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *params.From)
		idx++
	}
	if params.To != nil {
		where = append(where, fmt.Sprintf("created_at < $%d", idx))
		args = append(args, *params.To)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM security_event %s", whereClause)
	if err := r.conn(ctx).QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT id, kind, success, user_id, tenant_id, reason, ip_address, created_at
		FROM security_event %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*ledger.SecurityEvent
	for rows.Next() {
		var ev ledger.SecurityEvent
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Success, &ev.UserID,
			&ev.TenantID, &ev.Reason, &ev.IPAddress, &ev.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &ev)
	}
	return items, total, rows.Err()
}
