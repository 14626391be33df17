package jobs

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docshift/internal/convert"
)

func TestJob_StateTransitions(t *testing.T) {
	job := newJob("test-1", convert.Request{Filename: "a.md"}, time.Now())

	transitions := []struct {
		status Status
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusConverting, "converting"},
		{StatusPublishing, "publishing"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		snap := job.Snapshot()
		if snap.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, snap.Status)
		}
		if snap.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, snap.Phase)
		}
		if !snap.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
	if !job.Snapshot().Status.Done() {
		t.Error("expected completed to be terminal")
	}
}

func TestStatus_Done(t *testing.T) {
	for s, want := range map[Status]bool{
		StatusQueued: false, StatusParsing: false, StatusPublishing: false,
		StatusCompleted: true, StatusFailed: true, StatusPartial: true,
	} {
		if s.Done() != want {
			t.Errorf("%s: Done() = %v, want %v", s, s.Done(), want)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("parse failed")
	job.AddError("publish failed")

	snap := job.Snapshot()
	if len(snap.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Errors))
	}
	if snap.Errors[0] != "parse failed" {
		t.Errorf("expected first error %q, got %q", "parse failed", snap.Errors[0])
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
}

func TestJob_ResultDropsInput(t *testing.T) {
	job := newJob("res", convert.Request{Filename: "a.md", Data: []byte("x")}, time.Now())
	if _, ok := job.Result(); ok {
		t.Fatal("expected no result before conversion")
	}
	job.setResult(&convert.Result{Output: "x\n", Title: "a", ContentHash: "h"})

	res, ok := job.Result()
	if !ok || res.Output != "x\n" {
		t.Fatalf("unexpected result %+v", res)
	}
	if job.takeRequest().Data != nil {
		t.Error("expected input data to be released")
	}
	if snap := job.Snapshot(); snap.Title != "a" || snap.ContentHash != "h" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestStore_PutGet(t *testing.T) {
	store := NewStore(time.Hour)
	store.Put(&Job{ID: "store-1", UpdatedAt: time.Now()})

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestStore_TTLCleanup(t *testing.T) {
	store := NewStore(time.Minute)
	store.Put(&Job{ID: "old", UpdatedAt: time.Now().Add(-2 * time.Minute)})
	store.Put(&Job{ID: "new", UpdatedAt: time.Now()})

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestNewID(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{newIDAt(at), newIDAt(at), newIDAt(at.Add(time.Millisecond)), NewID()}

	seen := map[string]bool{}
	for _, id := range ids {
		if len(id) != 26 {
			t.Errorf("expected 26 characters, got %q", id)
		}
		if strings.Trim(id, crockford) != "" {
			t.Errorf("unexpected characters in %q", id)
		}
		if seen[id] {
			t.Errorf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("expected ids to sort by creation: %v", ids)
	}
	if ids[0][:10] != ids[1][:10] {
		t.Errorf("expected shared timestamp prefix: %q %q", ids[0], ids[1])
	}
}

func TestEncodeBase32(t *testing.T) {
	var full [16]byte
	for i := range full {
		full[i] = 0xff
	}
	if got := encodeBase32(full); got != "7ZZZZZZZZZZZZZZZZZZZZZZZZZ" {
		t.Errorf("unexpected max encoding %q", got)
	}
	if got := encodeBase32([16]byte{}); got != strings.Repeat("0", 26) {
		t.Errorf("unexpected zero encoding %q", got)
	}
}
