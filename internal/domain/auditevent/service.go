package auditevent

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/interex/interex/internal/platform/ledger"
)

// Service is the read side of the ledger: admin reports, CSV export, and
// chain verification. It never writes entries.
type Service struct {
	repo  Repository
	store ledger.Store
}

func NewService(repo Repository, store ledger.Store) *Service {
	return &Service{repo: repo, store: store}
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params SearchParams, limit, offset int) ([]*ledger.Entry, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}

// Verify replays the named chain and reports the first divergence, if any.
func (s *Service) Verify(ctx context.Context, chainKey string) (*ledger.VerifyResult, error) {
	return ledger.VerifyChain(ctx, s.store, chainKey)
}

// exportPageSize bounds one repo read while streaming a CSV export.
const exportPageSize = 500

var csvHeader = []string{
	"id", "chain_key", "seq", "category", "action", "status",
	"actor_type", "actor_id", "actor_display", "entity_type", "entity_id",
	"summary", "metadata", "request_id", "created_at",
}

// ExportCSV streams all entries matching params to w as CSV, paging through
// the repository so exports of large ranges stay bounded in memory.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, params SearchParams) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}

	written := 0
	for offset := 0; ; offset += exportPageSize {
		entries, _, err := s.repo.Search(ctx, params, exportPageSize, offset)
		if err != nil {
			return written, fmt.Errorf("export page at offset %d: %w", offset, err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			if err := cw.Write(csvRow(e)); err != nil {
				return written, fmt.Errorf("write csv row: %w", err)
			}
			written++
		}
		if len(entries) < exportPageSize {
			break
		}
	}

	cw.Flush()
	return written, cw.Error()
}

func csvRow(e *ledger.Entry) []string {
	actorID := ""
	if e.ActorID != nil {
		actorID = *e.ActorID
	}
	metadata := ""
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			metadata = string(b)
		}
	}
	return []string{
		e.ID.String(),
		e.ChainKey,
		strconv.FormatInt(e.Seq, 10),
		string(e.Category),
		e.Action,
		string(e.Status),
		string(e.ActorType),
		actorID,
		e.ActorDisplay,
		e.EntityType,
		e.EntityID,
		e.Summary,
		metadata,
		e.RequestID,
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
