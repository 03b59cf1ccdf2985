package journal

import (
	"context"
	"testing"
	"time"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	j.Now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	return j
}

func TestAppendAndTail(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	for i, evt := range []string{"session.signed_in", "query.completed", "submission.accepted"} {
		if err := j.Append(ctx, evt, map[string]any{"seq": i}); err != nil {
			t.Fatalf("append %s: %v", evt, err)
		}
	}

	events, err := j.Tail(ctx, 2, "")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("tail = %d events, want 2", len(events))
	}
	// Newest first.
	if events[0].Type != "submission.accepted" || events[1].Type != "query.completed" {
		t.Fatalf("order wrong: %s, %s", events[0].Type, events[1].Type)
	}
	if events[0].TS != "2026-09-01T12:00:00Z" {
		t.Fatalf("ts = %s", events[0].TS)
	}
}

func TestTailTypeFilter(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()

	_ = j.Append(ctx, "scan.captured", map[string]any{"code": "880001"})
	_ = j.Append(ctx, "submission.failed", map[string]any{})
	_ = j.Append(ctx, "scan.captured", map[string]any{"code": "880002"})

	events, err := j.Tail(ctx, 10, "scan.captured")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("filtered tail = %d, want 2", len(events))
	}
	if events[0].Payload["code"] != "880002" {
		t.Fatalf("payload = %v", events[0].Payload)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	j1, err := Open(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := j1.Append(context.Background(), "session.signed_in", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	j1.Close()

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer j2.Close()
	events, err := j2.Tail(context.Background(), 5, "")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 surviving reopen", len(events))
	}
}
