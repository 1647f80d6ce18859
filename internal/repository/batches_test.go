package repository_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"idmerge/internal/batch"
	"idmerge/internal/common"
	"idmerge/internal/recognize"
	"idmerge/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *repository.BatchRepository {
	t.Helper()
	db, err := repository.Open(context.Background(), common.DatabaseConfig{
		DSN: filepath.Join(t.TempDir(), "test.db"),
	}, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return repository.NewBatchRepository(db, testLogger())
}

func sampleRecord() batch.Record {
	return batch.Record{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC().Round(time.Millisecond),
		Outcomes: []batch.Outcome{
			{
				UnitName:      "alice",
				Success:       true,
				ExtractedName: "李雷",
				Fields:        &recognize.FrontFields{Name: "李雷", IDNumber: "11010119900101001X"},
				FrontRef:      "alice/1.jpg",
				BackRef:       "alice/2.jpg",
				ArtifactPath:  "/tmp/alice.pdf",
				Elapsed:       1500 * time.Millisecond,
			},
			{
				UnitName:     "bob",
				Success:      false,
				ErrorMessage: `unit "bob": found 1 image(s); at least 2 (front and back) are required`,
				Elapsed:      3 * time.Millisecond,
			},
		},
		Summary: batch.Summary{Total: 2, Succeeded: 1, Failed: 1, FailedUnitNames: []string{"bob"}},
	}
}

func TestSaveAndGetBatch(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()
	rec := sampleRecord()

	if err := repo.SaveBatch(ctx, rec); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	got, err := repo.GetBatch(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("id = %s, want %s", got.ID, rec.ID)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at = %s, want %s", got.CreatedAt, rec.CreatedAt)
	}
	if diff := cmp.Diff(rec.Outcomes, got.Outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(rec.Summary, got.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestGetBatchNotFound(t *testing.T) {
	repo := openTestDB(t)
	_, err := repo.GetBatch(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListBatchesNewestFirst(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	older := sampleRecord()
	older.CreatedAt = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	newer := sampleRecord()
	newer.ID = uuid.New()
	newer.CreatedAt = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	if err := repo.SaveBatch(ctx, older); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := repo.SaveBatch(ctx, newer); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}

	got, err := repo.ListBatches(ctx, 10)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("batches = %d, want 2", len(got))
	}
	if got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
}

func TestOpenInMemory(t *testing.T) {
	db, err := repository.Open(context.Background(), common.DatabaseConfig{DSN: "inmem"}, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := repository.NewBatchRepository(db, testLogger())
	rec := sampleRecord()
	if err := repo.SaveBatch(context.Background(), rec); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if _, err := repo.GetBatch(context.Background(), rec.ID); err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
}
