package ledger

import (
	"context"
	"sync"
	"time"
)

// memStore is the in-memory Store used across the package tests. Error
// injection fields let writer and digest tests exercise failure paths.
type memStore struct {
	mu     sync.Mutex
	chains map[string][]*Entry
	events []*SecurityEvent

	tailErr       error
	insertErr     error
	conflictsLeft int
	conflictErr   error // returned while conflictsLeft > 0; bare sentinel when nil
	panicOnTail   bool
	secInsertErr  error
}

func newMemStore() *memStore {
	return &memStore{chains: make(map[string][]*Entry)}
}

func (s *memStore) Tail(_ context.Context, chainKey string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnTail {
		panic("tail exploded")
	}
	if s.tailErr != nil {
		return nil, s.tailErr
	}
	chain := s.chains[chainKey]
	if len(chain) == 0 {
		return nil, nil
	}
	return chain[len(chain)-1], nil
}

func (s *memStore) Insert(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		if s.conflictErr != nil {
			return s.conflictErr
		}
		return ErrSeqConflict
	}
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, existing := range s.chains[e.ChainKey] {
		if existing.Seq == e.Seq {
			return ErrSeqConflict
		}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	stored := *e
	s.chains[e.ChainKey] = append(s.chains[e.ChainKey], &stored)
	return nil
}

func (s *memStore) ChainEntries(_ context.Context, chainKey string, afterSeq int64, limit int) ([]*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Entry
	for _, e := range s.chains[chainKey] {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) InsertSecurityEvent(_ context.Context, ev *SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secInsertErr != nil {
		return s.secInsertErr
	}
	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) SecurityEventsInWindow(_ context.Context, from, to time.Time, limit int) ([]*SecurityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*SecurityEvent
	for _, ev := range s.events {
		if !ev.CreatedAt.Before(from) && ev.CreatedAt.Before(to) {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) FindDigest(_ context.Context, from, to time.Time) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromStr := from.UTC().Format(time.RFC3339)
	toStr := to.UTC().Format(time.RFC3339)
	chain := s.chains[DigestChain]
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i]
		if e.Metadata["from"] == fromStr && e.Metadata["to"] == toStr {
			return e, nil
		}
	}
	return nil, nil
}
