package securityevent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/interex/interex/internal/platform/db"
	"github.com/interex/interex/internal/platform/ledger"
)

type fakeStore struct {
	events    []*ledger.SecurityEvent
	insertErr error
	digests   []*ledger.Entry
}

func (s *fakeStore) Tail(context.Context, string) (*ledger.Entry, error) { return nil, nil }
func (s *fakeStore) Insert(context.Context, *ledger.Entry) error { return nil }
func (s *fakeStore) ChainEntries(_ context.Context, chainKey string, afterSeq int64, limit int) ([]*ledger.Entry, error) {
	if chainKey != ledger.DigestChain {
		return nil, nil
	}
	var out []*ledger.Entry
	for _, e := range s.digests {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
func (s *fakeStore) InsertSecurityEvent(_ context.Context, ev *ledger.SecurityEvent) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return nil
}
func (s *fakeStore) SecurityEventsInWindow(context.Context, time.Time, time.Time, int) ([]*ledger.SecurityEvent, error) {
	return nil, nil
}
func (s *fakeStore) FindDigest(context.Context, time.Time, time.Time) (*ledger.Entry, error) {
	return nil, nil
}

func TestRecorder_Record(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, zerolog.Nop())

	ok := r.Record(context.Background(), ledger.SecurityLoginFailure, false, Event{
		UserID:    "u-9",
		TenantID:  "acme",
		Reason:    "bad password",
		IPAddress: "10.0.0.1",
	})
	if !ok {
		t.Fatal("record failed")
	}

	ev := store.events[0]
	if ev.Kind != ledger.SecurityLoginFailure || ev.Success {
		t.Errorf("kind/success = %s/%t", ev.Kind, ev.Success)
	}
	if ev.UserID == nil || *ev.UserID != "u-9" {
		t.Error("user id not recorded")
	}
	if ev.TenantID != "acme" || ev.IPAddress != "10.0.0.1" {
		t.Errorf("tenant/ip = %s/%s", ev.TenantID, ev.IPAddress)
	}
}

func TestRecorder_AnonymousActor(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, zerolog.Nop())

	r.Record(context.Background(), ledger.SecurityRateLimit, false, Event{IPAddress: "10.0.0.2"})

	if store.events[0].UserID != nil {
		t.Error("empty user id must be stored as NULL, not empty string")
	}
}

func TestRecorder_TenantFromContext(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, zerolog.Nop())
	ctx := context.WithValue(context.Background(), db.TenantIDKey, "globex")

	r.LoginFailure(ctx, Event{Reason: "bad password"})

	if store.events[0].TenantID != "globex" {
		t.Errorf("tenant = %q, want globex from context", store.events[0].TenantID)
	}
}

func TestRecorder_SwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("db down")}
	r := NewRecorder(store, zerolog.Nop())

	if r.Lockout(context.Background(), Event{UserID: "u-9"}) {
		t.Fatal("failed insert must report false, not panic or error")
	}
}

func TestRecorder_KindHelpers(t *testing.T) {
	store := &fakeStore{}
	r := NewRecorder(store, zerolog.Nop())
	ctx := context.Background()

	r.LoginFailure(ctx, Event{})
	r.Lockout(ctx, Event{})
	r.RateLimited(ctx, Event{})
	r.PasswordReset(ctx, Event{})

	want := []struct {
		kind    string
		success bool
	}{
		{ledger.SecurityLoginFailure, false},
		{ledger.SecurityLockout, false},
		{ledger.SecurityRateLimit, false},
		{ledger.SecurityPasswordReset, true},
	}
	for i, w := range want {
		if store.events[i].Kind != w.kind || store.events[i].Success != w.success {
			t.Errorf("event %d = %s/%t, want %s/%t",
				i, store.events[i].Kind, store.events[i].Success, w.kind, w.success)
		}
	}
}
