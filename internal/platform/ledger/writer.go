package ledger

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// seqConflictRetries bounds how many times an append re-reads the tail after
// losing a (chain_key, seq) race. Concurrent writers to one chain are rare
// under request-scoped usage, so one retry usually suffices.
const seqConflictRetries = 3

// ChainWriter appends entries to a hash chain: it reads the chain tail,
// applies PHI redaction and byte budgets to the payloads, computes the self
// hash over the finalized fields, and inserts. Audit logging is always
// secondary to the operation it observes, so Append never returns an error:
// failures are logged, counted, and swallowed.
type ChainWriter struct {
	store       Store
	log         zerolog.Logger
	metadataMax int
	diffMax     int
}

// WriterOption configures a ChainWriter.
type WriterOption func(*ChainWriter)

// WithPayloadBudgets overrides the metadata and diff byte budgets.
func WithPayloadBudgets(metadataMax, diffMax int) WriterOption {
	return func(w *ChainWriter) {
		w.metadataMax = metadataMax
		w.diffMax = diffMax
	}
}

func NewChainWriter(store Store, log zerolog.Logger, opts ...WriterOption) *ChainWriter {
	w := &ChainWriter{
		store:       store,
		log:         log,
		metadataMax: DefaultMetadataMaxBytes,
		diffMax:     DefaultDiffMaxBytes,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Append writes one entry to the chain identified by e.ChainKey. The entry's
// Seq, HashPrev, and HashSelf are assigned here; Metadata and Diff are
// redacted (unless e.PHIAllowed) and capped before hashing. On success the
// persisted entry is returned with written=true. On any failure Append
// returns (nil, false) after recording the failure on its side channels;
// it never panics and never propagates an error to the caller.
func (w *ChainWriter) Append(ctx context.Context, e *Entry) (entry *Entry, written bool) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Str("chain_key", e.ChainKey).
				Str("action", e.Action).Msg("audit append panicked")
			metricWriteFailures.WithLabelValues(string(e.Category)).Inc()
			entry, written = nil, false
		}
	}()

	if e.ChainKey == "" {
		e.ChainKey = GlobalChain
	}
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	if e.ActorType == "" {
		e.ActorType = ActorUser
	}

	if !e.PHIAllowed {
		e.Metadata, _ = RedactMetadata(e.Metadata)
		e.Diff, _ = RedactDiff(e.Diff)
	}
	e.Metadata = CapPayload(e.Metadata, w.metadataMax)
	e.Diff = CapPayload(e.Diff, w.diffMax)

	var lastErr error
	for attempt := 0; attempt <= seqConflictRetries; attempt++ {
		tail, err := w.store.Tail(ctx, e.ChainKey)
		if err != nil {
			lastErr = err
			break
		}
		if tail == nil {
			e.Seq = 1
			e.HashPrev = nil
		} else {
			e.Seq = tail.Seq + 1
			prev := tail.HashSelf
			e.HashPrev = &prev
		}
		e.HashSelf = ComputeSelfHash(e)

		err = w.store.Insert(ctx, e)
		if err == nil {
			metricWrites.WithLabelValues(string(e.Category)).Inc()
			return e, true
		}
		if errors.Is(err, ErrSeqConflict) {
			metricSeqConflicts.Inc()
			lastErr = err
			continue
		}
		lastErr = err
		break
	}

	w.log.Error().Err(lastErr).
		Str("chain_key", e.ChainKey).
		Str("category", string(e.Category)).
		Str("action", e.Action).
		Msg("audit append failed, entry dropped")
	metricWriteFailures.WithLabelValues(string(e.Category)).Inc()
	return nil, false
}
