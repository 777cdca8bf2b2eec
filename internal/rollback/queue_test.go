package rollback

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/rollbot/internal/storage"
)

func openQueue(t *testing.T) *Queue {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "rollbot.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestQueueEnqueueAndGet(t *testing.T) {
	t.Parallel()

	q := openQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Request{Project: "myapp", UserID: "U1", ChannelID: "C1", Delivery: "1700000000:v0=abc"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	rec, err := q.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Project != "myapp" || rec.UserID != "U1" || rec.ChannelID != "C1" {
		t.Fatalf("unexpected record: %#v", rec)
	}
	if rec.Status != StatusRequested {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusRequested)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set")
	}
}

func TestQueueDuplicateDeliveryRecordedOnce(t *testing.T) {
	t.Parallel()

	q := openQueue(t)
	ctx := context.Background()
	req := Request{Project: "myapp", UserID: "U1", ChannelID: "C1", Delivery: "1700000000:v0=abc"}

	id1, err := q.Enqueue(ctx, req)
	if err != nil {
		t.Fatalf("Enqueue 1: %v", err)
	}
	id2, err := q.Enqueue(ctx, req)
	if err != nil {
		t.Fatalf("Enqueue 2: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("duplicate delivery got new id: %s vs %s", id1, id2)
	}

	recs, err := q.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
}

func TestQueueRequestsWithoutDeliveryNotDeduplicated(t *testing.T) {
	t.Parallel()

	q := openQueue(t)
	ctx := context.Background()
	req := Request{Project: "myapp", UserID: "U1", ChannelID: "C1"}

	if err := q.RequestRollback(ctx, req); err != nil {
		t.Fatalf("RequestRollback 1: %v", err)
	}
	if err := q.RequestRollback(ctx, req); err != nil {
		t.Fatalf("RequestRollback 2: %v", err)
	}

	recs, err := q.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestQueueListNewestFirst(t *testing.T) {
	t.Parallel()

	q := openQueue(t)
	ctx := context.Background()

	for i, p := range []string{"alpha", "beta", "gamma"} {
		if _, err := q.Enqueue(ctx, Request{Project: p, UserID: "U1", ChannelID: "C1", Delivery: p}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}

	recs, err := q.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Project != "gamma" || recs[1].Project != "beta" {
		t.Fatalf("unexpected order: %s, %s", recs[0].Project, recs[1].Project)
	}
}

func TestQueueGetNotFound(t *testing.T) {
	t.Parallel()

	q := openQueue(t)
	if _, err := q.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQueueEnqueueValidation(t *testing.T) {
	t.Parallel()

	q := openQueue(t)
	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing project", req: Request{UserID: "U1", ChannelID: "C1"}},
		{name: "missing user", req: Request{Project: "myapp", ChannelID: "C1"}},
		{name: "missing channel", req: Request{Project: "myapp", UserID: "U1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := q.Enqueue(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestDedupeKey(t *testing.T) {
	t.Parallel()

	a := DedupeKey("1700000000:v0=abc")
	b := DedupeKey("1700000000:v0=abd")
	if a == b {
		t.Fatal("different deliveries should hash differently")
	}
	if a != DedupeKey("1700000000:v0=abc") {
		t.Fatal("dedupe key should be deterministic")
	}
	if len(a) != len("blake3:")+64 {
		t.Fatalf("unexpected key length %d", len(a))
	}
}

func TestNoop(t *testing.T) {
	t.Parallel()

	if err := (Noop{}).RequestRollback(context.Background(), Request{Project: "myapp"}); err != nil {
		t.Fatalf("Noop: %v", err)
	}
}
