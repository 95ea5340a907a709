package store

import (
	"errors"
	"testing"
	"time"

	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
)

// Both stores must satisfy the same contract; run the shared suite
// against each.
func stores(t *testing.T) map[string]ialib.TaskStore {
	t.Helper()
	sqlite, err := OpenSQLiteDSN(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]ialib.TaskStore{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func sampleTask(id string) *ialib.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &ialib.Task{
		ID:           id,
		Source:       "nasa-apollo-11",
		FileName:     id + ".mp4",
		URL:          "https://archive.test/download/nasa-apollo-11/" + id + ".mp4",
		TotalBytes:   1_000_000,
		PartialBytes: 0,
		Status:       ialib.StatusQueued,
		Priority:     ialib.PriorityNormal,
		Checksum:     "md5:0cc175b9c0f1b6a831c399e269772661",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleTask("t1")
			if err := s.Save(want); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := s.Get("t1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.ID != want.ID || got.URL != want.URL || got.FileName != want.FileName {
				t.Errorf("identity fields differ: got %+v", got)
			}
			if got.Status != ialib.StatusQueued || got.Priority != ialib.PriorityNormal {
				t.Errorf("state fields differ: %s/%s", got.Status, got.Priority)
			}
			if got.TotalBytes != 1_000_000 || got.PartialBytes != 0 {
				t.Errorf("byte counters differ: %d/%d", got.PartialBytes, got.TotalBytes)
			}
			if got.Checksum != want.Checksum {
				t.Errorf("checksum differs: %q", got.Checksum)
			}
			if !got.ScheduledAt.IsZero() {
				t.Errorf("expected zero ScheduledAt, got %v", got.ScheduledAt)
			}
		})
	}
}

func TestStore_SaveIsUpsert(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			task := sampleTask("t1")
			if err := s.Save(task); err != nil {
				t.Fatal(err)
			}

			task.Status = ialib.StatusDownloading
			task.PartialBytes = 400_000
			task.RetryCount = 2
			task.ErrorMessage = "connection reset"
			if err := s.Save(task); err != nil {
				t.Fatalf("second save: %v", err)
			}

			got, err := s.Get("t1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != ialib.StatusDownloading || got.PartialBytes != 400_000 {
				t.Errorf("expected updated record, got %s %d", got.Status, got.PartialBytes)
			}
			if got.RetryCount != 2 || got.ErrorMessage != "connection reset" {
				t.Errorf("expected retry fields, got %d %q", got.RetryCount, got.ErrorMessage)
			}

			all, err := s.All()
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 1 {
				t.Fatalf("upsert must not duplicate, got %d records", len(all))
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get("ghost"); !errors.Is(err, ialib.ErrTaskNotFound) {
				t.Fatalf("expected ErrTaskNotFound, got %v", err)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Save(sampleTask("t1")); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete("t1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get("t1"); !errors.Is(err, ialib.ErrTaskNotFound) {
				t.Fatal("expected record gone")
			}
			// Deleting an absent id is not an error.
			if err := s.Delete("t1"); err != nil {
				t.Fatalf("second delete: %v", err)
			}
		})
	}
}

func TestStore_ScheduledAtRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			task := sampleTask("later")
			task.ScheduledAt = time.Now().Add(time.Hour).UTC().Truncate(time.Second)
			if err := s.Save(task); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get("later")
			if err != nil {
				t.Fatal(err)
			}
			if !got.ScheduledAt.Equal(task.ScheduledAt) {
				t.Fatalf("expected ScheduledAt %v, got %v", task.ScheduledAt, got.ScheduledAt)
			}
		})
	}
}

func TestStore_DeleteCompletedBefore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			old := sampleTask("old")
			old.Status = ialib.StatusCompleted
			old.UpdatedAt = time.Now().Add(-48 * time.Hour)
			if err := s.Save(old); err != nil {
				t.Fatal(err)
			}

			recent := sampleTask("recent")
			recent.Status = ialib.StatusCompleted
			if err := s.Save(recent); err != nil {
				t.Fatal(err)
			}

			// Only completed records are flushed, regardless of age.
			failed := sampleTask("failed")
			failed.Status = ialib.StatusError
			failed.UpdatedAt = time.Now().Add(-48 * time.Hour)
			if err := s.Save(failed); err != nil {
				t.Fatal(err)
			}

			n, err := s.DeleteCompletedBefore(time.Now().Add(-24 * time.Hour))
			if err != nil {
				t.Fatalf("DeleteCompletedBefore: %v", err)
			}
			if n != 1 {
				t.Fatalf("expected 1 flushed record, got %d", n)
			}
			if _, err := s.Get("old"); !errors.Is(err, ialib.ErrTaskNotFound) {
				t.Error("expected old completed record gone")
			}
			if _, err := s.Get("recent"); err != nil {
				t.Error("expected recent completed record kept")
			}
			if _, err := s.Get("failed"); err != nil {
				t.Error("expected failed record kept")
			}
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	task := sampleTask("t1")
	task.Status = ialib.StatusDownloading
	task.PartialBytes = 400_000
	if err := s.Save(task); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// A fresh handle over the same file sees the same records, which is
	// what crash recovery depends on.
	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.Get("t1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ialib.StatusDownloading || got.PartialBytes != 400_000 {
		t.Fatalf("expected persisted mid-transfer state, got %s %d", got.Status, got.PartialBytes)
	}
}
