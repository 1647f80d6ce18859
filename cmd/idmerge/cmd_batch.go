package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"idmerge/constants"
	"idmerge/internal/batch"
	"idmerge/internal/common"
	"idmerge/internal/export"
	"idmerge/internal/repository"
)

var batchFlags struct {
	dir       string
	out       string
	artifacts string
	workers   int
	inmem     bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a directory of scan folders into merged documents",
	Long: `Process a directory where each subfolder holds the candidate images of one
document (front and back, in any order), e.g.:

  scans/
    alice/ IMG_0001.jpg IMG_0002.jpg
    bob/   card.jpg

Each subfolder becomes one unit; the batch summary and an XLSX report are
written when the run completes.`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.dir, "dir", "", "directory to process (required)")
	f.StringVar(&batchFlags.out, "out", "", "output XLSX report path (defaults to <dir>/../idmerge-report.xlsx)")
	f.StringVar(&batchFlags.artifacts, "artifacts", "", "artifact output directory (overrides ARTIFACT_DIR)")
	f.IntVar(&batchFlags.workers, "workers", 0, "concurrent unit workers, 1-8 (overrides BATCH_WORKERS)")
	f.BoolVar(&batchFlags.inmem, "inmem", false, "use an in-memory outcome store")
	_ = batchCmd.MarkFlagRequired("dir")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	cfg := common.LoadConfig()
	if batchFlags.workers > 0 {
		cfg.Batch.Workers = batchFlags.workers
	}
	if batchFlags.artifacts != "" {
		cfg.Batch.ArtifactDir = batchFlags.artifacts
	}
	if batchFlags.inmem {
		cfg.Database.DSN = "inmem"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	inputs, err := readScanDir(batchFlags.dir)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no images found under %s", batchFlags.dir)
	}

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()
	repo := repository.NewBatchRepository(db, logger)

	matcher, err := buildMatcher(cfg, logger)
	if err != nil {
		return err
	}
	orch := batch.NewOrchestrator(matcher, buildCompositor(cfg, logger), repo, batch.Options{
		Workers:     cfg.Batch.Workers,
		UnitTimeout: cfg.Batch.UnitTimeout,
		ArtifactDir: cfg.Batch.ArtifactDir,
	}, logger)

	units := batch.Group(nil, inputs)
	rec, err := orch.Run(ctx, units)
	if err != nil {
		return err
	}

	out := batchFlags.out
	if out == "" {
		out = filepath.Join(filepath.Dir(batchFlags.dir), "idmerge-report.xlsx")
	}
	report, err := export.NewService(logger).BatchXLSX(rec)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, report, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("batch complete",
		"batch_id", rec.ID,
		"total", rec.Summary.Total,
		"succeeded", rec.Summary.Succeeded,
		"failed", rec.Summary.Failed,
		"report", out,
	)
	if rec.Summary.Failed > 0 {
		logger.Warn("some units failed", "units", strings.Join(rec.Summary.FailedUnitNames, ", "))
	}
	return nil
}

// readScanDir collects image files under root; the path relative to root
// becomes the declared path, so subfolder names group into units.
func readScanDir(root string) ([]batch.RawInput, error) {
	var inputs []batch.RawInput
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if !constants.IsImagePath(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		inputs = append(inputs, batch.RawInput{Path: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return inputs, nil
}
