package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDigestMaxRows bounds how many security events one digest run reads.
const DefaultDigestMaxRows = 50_000

// Window is a half-open [From, To) time range.
type Window struct {
	From time.Time
	To   time.Time
}

// PreviousUTCDay returns the default digest window: the last full UTC
// calendar day before ref.
func PreviousUTCDay(ref time.Time) Window {
	today := ref.UTC().Truncate(24 * time.Hour)
	return Window{From: today.Add(-24 * time.Hour), To: today}
}

// DigestResult is what a digest run computed, whether or not the ledger
// entry made it to storage.
type DigestResult struct {
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Count     int       `json:"count"`
	Truncated bool      `json:"truncated"`
	FirstID   int64     `json:"first_id"`
	LastID    int64     `json:"last_id"`
	Hash      string    `json:"hash"`
	Created   bool      `json:"created"`
	Skipped   bool      `json:"skipped"`
	Throttled bool      `json:"throttled"`
}

// DigestJob folds a window of security events into one rolling SHA-256 and
// appends a summary entry to the digest chain. It is invoked out-of-band
// (cron, manual trigger); scheduling is not its concern.
type DigestJob struct {
	store   Store
	writer  *ChainWriter
	gate    Gate
	maxRows int
	log     zerolog.Logger
	clock   func() time.Time
}

// DigestOption configures a DigestJob.
type DigestOption func(*DigestJob)

// WithMaxRows overrides the per-run row cap.
func WithMaxRows(n int) DigestOption {
	return func(j *DigestJob) {
		if n > 0 {
			j.maxRows = n
		}
	}
}

// WithGate replaces the default in-memory gate.
func WithGate(g Gate) DigestOption {
	return func(j *DigestJob) { j.gate = g }
}

// WithClock replaces the time source. Tests use this to pin windows.
func WithClock(clock func() time.Time) DigestOption {
	return func(j *DigestJob) { j.clock = clock }
}

func NewDigestJob(store Store, writer *ChainWriter, log zerolog.Logger, opts ...DigestOption) *DigestJob {
	j := &DigestJob{
		store:   store,
		writer:  writer,
		gate:    NewMemoryGate(DefaultDigestInterval),
		maxRows: DefaultDigestMaxRows,
		log:     log,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes one digest pass. A nil window defaults to the previous full
// UTC day. The error return covers only read-side failures; a failed ledger
// insert still yields the computed result with Created=false, because the
// digest job never retries and never raises into its trigger.
func (j *DigestJob) Run(ctx context.Context, window *Window) (*DigestResult, error) {
	if !j.gate.Allow(ctx) {
		metricDigestRuns.WithLabelValues("throttled").Inc()
		return &DigestResult{Throttled: true}, nil
	}

	w := PreviousUTCDay(j.clock())
	if window != nil {
		w = Window{From: window.From.UTC(), To: window.To.UTC()}
	}
	if !w.From.Before(w.To) {
		return nil, fmt.Errorf("digest: invalid window [%s, %s)", w.From, w.To)
	}

	// Idempotency: skip a window that already has a complete digest. A
	// truncated digest does not seal its window; a later run with a higher
	// row cap may supersede it.
	existing, err := j.store.FindDigest(ctx, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("digest: lookup existing: %w", err)
	}
	if existing != nil {
		truncated, _ := existing.Metadata[truncatedMetaKey].(bool)
		if !truncated {
			metricDigestRuns.WithLabelValues("skipped").Inc()
			return digestResultFromEntry(existing, w), nil
		}
	}

	// Read one row past the cap to detect truncation.
	events, err := j.store.SecurityEventsInWindow(ctx, w.From, w.To, j.maxRows+1)
	if err != nil {
		metricDigestRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("digest: read window: %w", err)
	}

	truncated := false
	if len(events) > j.maxRows {
		truncated = true
		events = events[:j.maxRows]
	}

	res := &DigestResult{
		From:      w.From,
		To:        w.To,
		Count:     len(events),
		Truncated: truncated,
		Hash:      rollingDigest(events),
	}
	if len(events) > 0 {
		res.FirstID = events[0].ID
		res.LastID = events[len(events)-1].ID
	}

	entry := &Entry{
		ChainKey:  DigestChain,
		Category:  CategorySecurity,
		Action:    "SECURITY_EVENT_DIGEST",
		Status:    StatusSuccess,
		ActorType: ActorSystem,
		Summary: fmt.Sprintf("Security event digest %s..%s: %d events",
			w.From.Format(time.RFC3339), w.To.Format(time.RFC3339), res.Count),
		Metadata: map[string]any{
			"from":           w.From.Format(time.RFC3339),
			"to":             w.To.Format(time.RFC3339),
			"count":          res.Count,
			truncatedMetaKey: res.Truncated,
			"first_id":       res.FirstID,
			"last_id":        res.LastID,
			"hash":           res.Hash,
		},
	}

	_, res.Created = j.writer.Append(ctx, entry)
	if res.Created {
		metricDigestRuns.WithLabelValues("created").Inc()
	} else {
		metricDigestRuns.WithLabelValues("failed").Inc()
		j.log.Error().Time("from", w.From).Time("to", w.To).
			Msg("digest entry insert failed, result not persisted")
	}

	// Observability breadcrumb in the raw log itself; best-effort.
	note := &SecurityEvent{
		Kind:    SecurityDigestRecorded,
		Success: res.Created,
		Reason: fmt.Sprintf("window %s..%s count=%d truncated=%t",
			w.From.Format(time.RFC3339), w.To.Format(time.RFC3339), res.Count, res.Truncated),
	}
	if err := j.store.InsertSecurityEvent(ctx, note); err != nil {
		j.log.Warn().Err(err).Msg("digest breadcrumb security event not recorded")
	}

	return res, nil
}

const truncatedMetaKey = "truncated"

// rollingDigest feeds one canonical JSON line per event, in (created_at, id)
// order, into a single SHA-256. Zero events hash to the digest of the empty
// input, which is still a well-defined window checksum.
func rollingDigest(events []*SecurityEvent) string {
	h := sha256.New()
	for _, ev := range events {
		line := canonicalEventLine(ev)
		h.Write([]byte(line))
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalEventLine is the minimal stable projection of one security event.
// encoding/json sorts map keys, making the line deterministic.
func canonicalEventLine(ev *SecurityEvent) string {
	userID := ""
	if ev.UserID != nil {
		userID = *ev.UserID
	}
	b, _ := json.Marshal(map[string]any{
		"id":        ev.ID,
		"ts":        ev.CreatedAt.UTC().Format(time.RFC3339Nano),
		"kind":      ev.Kind,
		"success":   ev.Success,
		"user_id":   userID,
		"tenant_id": ev.TenantID,
		"reason":    ev.Reason,
	})
	return string(b)
}

func digestResultFromEntry(e *Entry, w Window) *DigestResult {
	res := &DigestResult{From: w.From, To: w.To, Skipped: true}
	if c, ok := e.Metadata["count"].(float64); ok {
		res.Count = int(c)
	} else if c, ok := e.Metadata["count"].(int); ok {
		res.Count = c
	}
	if h, ok := e.Metadata["hash"].(string); ok {
		res.Hash = h
	}
	res.Truncated, _ = e.Metadata[truncatedMetaKey].(bool)
	return res
}
