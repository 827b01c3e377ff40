package state

import (
	"context"
	"strings"
	"testing"
)

func TestLedger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	s, err := Open(root, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	first, err := s.BeginRun(ctx, "apply", "eu-central-1", 2)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.RecordEvent(ctx, first, "SQS-Queue-orders-queue-Monitoring", "create", "stack created"); err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := s.RecordEvent(ctx, first, "SQS-Queue-billing-queue-Monitoring", "update", "no changes"); err != nil {
		t.Fatalf("event: %v", err)
	}
	if err := s.FinishRun(ctx, first, "succeeded", 2, 0); err != nil {
		t.Fatalf("finish: %v", err)
	}

	second, err := s.BeginRun(ctx, "delete", "eu-central-1", 1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.FinishRun(ctx, second, "failed", 0, 1); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs=%d", len(runs))
	}
	// Newest first.
	if runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("order=%s,%s want=%s,%s", runs[0].ID, runs[1].ID, second, first)
	}
	if runs[1].Command != "apply" || runs[1].Succeeded != 2 || runs[1].Failed != 0 || runs[1].Status != "succeeded" {
		t.Fatalf("run=%+v", runs[1])
	}
	if runs[1].FinishedAt.IsZero() || runs[1].StartedAt.IsZero() {
		t.Fatalf("timestamps missing: %+v", runs[1])
	}

	events, err := s.RunEvents(ctx, first)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events=%d", len(events))
	}
	if events[0].Type != "create" || events[1].Detail != "no changes" {
		t.Fatalf("events=%+v", events)
	}
}

func TestLedger_FinishUnknownRun(t *testing.T) {
	s, err := Open(t.TempDir(), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.FinishRun(context.Background(), "nope", "succeeded", 0, 0); err == nil || !strings.Contains(err.Error(), "unknown run id") {
		t.Fatalf("err=%v", err)
	}
}

func TestLedger_ReadOnlyRequiresExisting(t *testing.T) {
	if _, err := Open(t.TempDir(), true); err == nil {
		t.Fatalf("read-only open of a fresh root should fail")
	}
}
