package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"idmerge/internal/common"
	"idmerge/internal/export"
	"idmerge/internal/repository"
)

var exportFlags struct {
	batchID string
	out     string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored batch as an XLSX report",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.batchID, "batch", "", "batch id to export (required)")
	f.StringVar(&exportFlags.out, "out", "", "output XLSX path (required)")
	_ = exportCmd.MarkFlagRequired("batch")
	_ = exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	id, err := uuid.Parse(exportFlags.batchID)
	if err != nil {
		return fmt.Errorf("invalid batch id: %w", err)
	}

	cfg := common.LoadConfig()
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	rec, err := repository.NewBatchRepository(db, logger).GetBatch(ctx, id)
	if err != nil {
		return err
	}
	bs, err := export.NewService(logger).BatchXLSX(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportFlags.out, bs, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("report written", "batch_id", id, "path", exportFlags.out)
	return nil
}
