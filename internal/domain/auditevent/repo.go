package auditevent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/interex/interex/internal/platform/ledger"
)

// SearchParams are the admin report filters. Zero values mean "no filter".
type SearchParams struct {
	ChainKey   string
	Category   string
	Action     string
	Status     string
	ActorID    string
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error)
	Search(ctx context.Context, params SearchParams, limit, offset int) ([]*ledger.Entry, int, error)
}
