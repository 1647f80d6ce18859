// Package export renders a completed batch record into an XLSX report for
// operators.
package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"idmerge/internal/batch"
)

const sheet = "Outcomes"

// Service produces XLSX bytes for batch reports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchXLSX returns an XLSX workbook with one row per unit outcome plus a
// summary block.
func (s *Service) BatchXLSX(rec batch.Record) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Unit",
		"Success",
		"Extracted Name",
		"ID Number",
		"Front Image",
		"Back Image",
		"Best-Effort Back",
		"Artifact",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, out := range rec.Outcomes {
		idNumber := ""
		if out.Fields != nil {
			idNumber = out.Fields.IDNumber
		}
		values := []any{
			out.UnitName,
			out.Success,
			out.ExtractedName,
			idNumber,
			out.FrontRef,
			out.BackRef,
			out.BestEffortBack,
			out.ArtifactPath,
			out.ErrorMessage,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	row++ // blank line before the summary block
	summary := [][2]any{
		{"Batch", rec.ID.String()},
		{"Created", rec.CreatedAt.Format(time.RFC3339)},
		{"Total", rec.Summary.Total},
		{"Succeeded", rec.Summary.Succeeded},
		{"Failed", rec.Summary.Failed},
	}
	for _, kv := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(1, row)
		valCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, keyCell, kv[0])
		_ = f.SetCellValue(sheet, valCell, kv[1])
		row++
	}

	// drop the default sheet if it is not ours
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.batch_xlsx",
		"batch_id", rec.ID, "rows", len(rec.Outcomes),
		"bytes", buf.Len(), "elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
