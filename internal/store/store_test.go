package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSyncRunLifecycle(t *testing.T) {
	s := testStore(t)

	run := &SyncRun{StartTime: time.Now().UTC(), Status: "running"}
	if err := s.CreateSyncRun(run); err != nil {
		t.Fatalf("CreateSyncRun failed: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("run ID not set")
	}

	run.EndTime = time.Now().UTC()
	run.Downloaded = 7
	run.Skipped = 2
	run.Failed = 1
	run.BytesTransferred = 1 << 20
	run.Status = "partial"
	run.ErrorMessage = "1 artifact failed"
	if err := s.UpdateSyncRun(run); err != nil {
		t.Fatalf("UpdateSyncRun failed: %v", err)
	}

	runs, err := s.ListSyncRuns(10)
	if err != nil {
		t.Fatalf("ListSyncRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Downloaded != 7 || got.Skipped != 2 || got.Failed != 1 {
		t.Errorf("counters = %d/%d/%d", got.Downloaded, got.Skipped, got.Failed)
	}
	if got.Status != "partial" || got.ErrorMessage != "1 artifact failed" {
		t.Errorf("status = %q, message = %q", got.Status, got.ErrorMessage)
	}
}

func TestUpdateMissingSyncRun(t *testing.T) {
	s := testStore(t)
	err := s.UpdateSyncRun(&SyncRun{ID: 999, Status: "success"})
	if err == nil {
		t.Error("expected error for unknown run ID")
	}
}

func TestListSyncRunsNewestFirst(t *testing.T) {
	s := testStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		run := &SyncRun{StartTime: base.Add(time.Duration(i) * time.Hour), Status: "success"}
		if err := s.CreateSyncRun(run); err != nil {
			t.Fatalf("CreateSyncRun failed: %v", err)
		}
	}

	runs, err := s.ListSyncRuns(2)
	if err != nil {
		t.Fatalf("ListSyncRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	if !runs[0].StartTime.After(runs[1].StartTime) {
		t.Error("runs are not newest first")
	}
}

func TestUpsertArtifact(t *testing.T) {
	s := testStore(t)

	a := &Artifact{
		Path:      "bin/linux/x64/1.3/julia-1.3.1-linux-x86_64.tar.gz",
		Version:   "1.3.1",
		System:    "linux",
		Arch:      "x86_64",
		Upstream:  "Official",
		Size:      1024,
		SHA256:    "abc123",
		FetchedAt: time.Now().UTC(),
	}
	if err := s.UpsertArtifact(a); err != nil {
		t.Fatalf("UpsertArtifact failed: %v", err)
	}

	// Same path again replaces the record instead of growing the table.
	a.Upstream = "TUNA"
	a.Size = 2048
	if err := s.UpsertArtifact(a); err != nil {
		t.Fatalf("second UpsertArtifact failed: %v", err)
	}

	artifacts, err := s.ListArtifacts()
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(artifacts))
	}
	if artifacts[0].Upstream != "TUNA" || artifacts[0].Size != 2048 {
		t.Errorf("artifact not replaced: %+v", artifacts[0])
	}

	count, size, err := s.CountArtifacts()
	if err != nil {
		t.Fatalf("CountArtifacts failed: %v", err)
	}
	if count != 1 || size != 2048 {
		t.Errorf("count = %d, size = %d", count, size)
	}
}

func TestCountArtifactsEmpty(t *testing.T) {
	s := testStore(t)
	count, size, err := s.CountArtifacts()
	if err != nil {
		t.Fatalf("CountArtifacts failed: %v", err)
	}
	if count != 0 || size != 0 {
		t.Errorf("count = %d, size = %d, want zeros", count, size)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.UpsertArtifact(&Artifact{Path: "p", Version: "1.0.0", System: "linux", Arch: "x86_64"}); err != nil {
		t.Fatalf("UpsertArtifact failed: %v", err)
	}
	s.Close()

	// Reopening must not re-run migrations or lose data.
	s, err = New(path, logger)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	count, _, err := s.CountArtifacts()
	if err != nil {
		t.Fatalf("CountArtifacts failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after reopen, want 1", count)
	}
}
