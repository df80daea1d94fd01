package storage

import (
	"fmt"
	"gamewarden/internal/domain"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	store, err := NewGormStore(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewGormStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func result(id, server string, at time.Time) domain.Result {
	return domain.Result{
		ID:         id,
		Server:     server,
		Intent:     domain.IntentGracefulStop,
		Status:     domain.StatusDegraded,
		Endpoint:   "203.0.113.7",
		Error:      "rcon: connect refused",
		StartedAt:  at,
		FinishedAt: at.Add(time.Second),
	}
}

func TestRecordAndGetOperation(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := store.RecordOperation(result("op-1", "alpha", at)); err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}

	got, err := store.GetOperation("op-1")
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if got == nil {
		t.Fatal("GetOperation returned nil")
	}
	if got.Status != domain.StatusDegraded || got.Intent != domain.IntentGracefulStop || got.Endpoint != "203.0.113.7" {
		t.Errorf("got %+v", got)
	}
	if !got.StartedAt.Equal(at) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, at)
	}

	missing, err := store.GetOperation("nope")
	if err != nil || missing != nil {
		t.Errorf("GetOperation(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestListOperationsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := store.RecordOperation(result(fmt.Sprintf("a-%d", i), "alpha", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordOperation: %v", err)
		}
	}
	if err := store.RecordOperation(result("b-0", "beta", base)); err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}

	ops, err := store.ListOperations("alpha", 3)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d operations, want 3", len(ops))
	}
	for i, want := range []string{"a-4", "a-3", "a-2"} {
		if ops[i].ID != want {
			t.Errorf("ops[%d] = %s, want %s", i, ops[i].ID, want)
		}
	}

	all, err := store.ListOperations("alpha", 0)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("default limit returned %d, want 5", len(all))
	}
}

func TestHistoryPruning(t *testing.T) {
	store := newTestStore(t)
	store.Keep = 2
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if err := store.RecordOperation(result(fmt.Sprintf("a-%d", i), "alpha", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordOperation: %v", err)
		}
	}
	if err := store.RecordOperation(result("b-0", "beta", base)); err != nil {
		t.Fatalf("RecordOperation: %v", err)
	}

	ops, err := store.ListOperations("alpha", 10)
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(ops) != 2 || ops[0].ID != "a-3" || ops[1].ID != "a-2" {
		t.Errorf("kept %+v, want a-3 and a-2", ops)
	}

	beta, _ := store.ListOperations("beta", 10)
	if len(beta) != 1 {
		t.Errorf("pruning alpha touched beta: %d left", len(beta))
	}
}
