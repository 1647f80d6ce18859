package export_test

import (
	"bytes"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"idmerge/internal/batch"
	"idmerge/internal/export"
	"idmerge/internal/recognize"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBatchXLSX(t *testing.T) {
	rec := batch.Record{
		ID:        uuid.New(),
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Outcomes: []batch.Outcome{
			{
				UnitName:      "alice",
				Success:       true,
				ExtractedName: "李雷",
				Fields:        &recognize.FrontFields{Name: "李雷", IDNumber: "11010119900101001X"},
				FrontRef:      "alice/1.jpg",
				BackRef:       "alice/2.jpg",
				ArtifactPath:  "/artifacts/alice.pdf",
			},
			{
				UnitName:     "bob",
				ErrorMessage: "found 1 image(s); at least 2 (front and back) are required",
			},
		},
		Summary: batch.Summary{Total: 2, Succeeded: 1, Failed: 1, FailedUnitNames: []string{"bob"}},
	}

	bs, err := export.NewService(testLogger()).BatchXLSX(rec)
	if err != nil {
		t.Fatalf("BatchXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(bs))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	cell := func(ref string) string {
		t.Helper()
		v, err := f.GetCellValue("Outcomes", ref)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", ref, err)
		}
		return v
	}

	if got := cell("A1"); got != "Unit" {
		t.Errorf("A1 = %q, want Unit", got)
	}
	if got := cell("A2"); got != "alice" {
		t.Errorf("A2 = %q, want alice", got)
	}
	if got := cell("C2"); got != "李雷" {
		t.Errorf("C2 = %q, want 李雷", got)
	}
	if got := cell("D2"); got != "11010119900101001X" {
		t.Errorf("D2 = %q, want the id number", got)
	}
	if got := cell("I3"); got != rec.Outcomes[1].ErrorMessage {
		t.Errorf("I3 = %q, want the error message", got)
	}

	// summary block starts one blank row below the outcomes
	if got := cell("A5"); got != "Batch" {
		t.Errorf("A5 = %q, want Batch", got)
	}
	if got := cell("B7"); got != strconv.Itoa(rec.Summary.Total) {
		t.Errorf("B7 = %q, want total %d", got, rec.Summary.Total)
	}

	for _, name := range f.GetSheetList() {
		if name == "Sheet1" {
			t.Error("default Sheet1 should be removed")
		}
	}
}
