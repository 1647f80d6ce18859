// Package server exposes the batch engine over JSON-over-HTTP. It is a thin
// transport layer: grouping, classification, and bookkeeping all live in the
// batch core.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"idmerge/constants"
	"idmerge/internal/batch"
	"idmerge/internal/common"
	"idmerge/internal/export"
)

const defaultMaxUploadBytes = 256 << 20

// BatchRunner executes one batch run.
type BatchRunner interface {
	Run(ctx context.Context, units []batch.Unit) (batch.Record, error)
}

// BatchLoader replays stored batch records.
type BatchLoader interface {
	GetBatch(ctx context.Context, id uuid.UUID) (batch.Record, error)
}

// Server handles the HTTP batch surface.
type Server struct {
	runner         BatchRunner
	loader         BatchLoader // nil disables replay routes
	export         *export.Service
	log            *slog.Logger
	maxUploadBytes int64
}

func New(runner BatchRunner, loader BatchLoader, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:         runner,
		loader:         loader,
		export:         exporter,
		log:            logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/batches", s.handleCreateBatch)
	mux.HandleFunc("GET /api/batches/{id}", s.handleGetBatch)
	mux.HandleFunc("GET /api/batches/{id}/report", s.handleBatchReport)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// handleCreateBatch accepts a multipart upload: image files under "files",
// plus an optional "structure" part declaring units as
// [{"unit_name": ..., "file_names": [...]}]. Without a structure, units are
// inferred from each file's declared path.
func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var declared []batch.DeclaredUnit
	if raw := r.FormValue("structure"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &declared); err != nil {
			s.writeError(w, http.StatusBadRequest, "parse structure: "+err.Error())
			return
		}
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var inputs []batch.RawInput
	for _, fh := range files {
		if !constants.IsImagePath(fh.Filename) {
			s.log.Warn("server.upload.skipped", "file", fh.Filename, "reason", "unsupported extension")
			continue
		}
		f, err := fh.Open()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "open upload "+fh.Filename+": "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "read upload "+fh.Filename+": "+err.Error())
			return
		}
		inputs = append(inputs, batch.RawInput{Path: fh.Filename, Data: data})
	}

	units := batch.Group(declared, inputs)
	s.log.Info("server.batch.request", "files", len(inputs), "units", len(units), "declared", len(declared) > 0)

	rec, err := s.runner.Run(r.Context(), units)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "batch run: "+err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadBatch(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleBatchReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadBatch(w, r)
	if !ok {
		return
	}
	bs, err := s.export.BatchXLSX(rec)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "build report: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="batch-`+rec.ID.String()+`.xlsx"`)
	_, _ = w.Write(bs)
}

func (s *Server) loadBatch(w http.ResponseWriter, r *http.Request) (batch.Record, bool) {
	if s.loader == nil {
		s.writeError(w, http.StatusNotFound, "batch storage is not configured")
		return batch.Record{}, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid batch id")
		return batch.Record{}, false
	}
	rec, err := s.loader.GetBatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "batch not found")
		} else {
			s.writeError(w, http.StatusInternalServerError, "load batch: "+err.Error())
		}
		return batch.Record{}, false
	}
	return rec, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server.write_response_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
