package main

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"idmerge/internal/batch"
	"idmerge/internal/common"
	"idmerge/internal/export"
	"idmerge/internal/repository"
	"idmerge/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON-over-HTTP batch API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
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

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(orch, repo, export.NewService(logger), logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
	return srv.ListenAndServe()
}
