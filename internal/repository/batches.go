package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"idmerge/internal/batch"
	"idmerge/internal/common"
	"idmerge/internal/recognize"
)

// BatchRepository stores completed batch records. Implements batch.Store.
type BatchRepository struct {
	db  *sql.DB
	log *slog.Logger
}

func NewBatchRepository(db *sql.DB, logger *slog.Logger) *BatchRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRepository{db: db, log: logger}
}

// SaveBatch writes the batch header and all unit outcomes in one transaction.
func (r *BatchRepository) SaveBatch(ctx context.Context, rec batch.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, created_at, total, succeeded, failed) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID.String(),
		rec.CreatedAt.Format(time.RFC3339Nano),
		rec.Summary.Total,
		rec.Summary.Succeeded,
		rec.Summary.Failed,
	)
	if err != nil {
		return common.WrapError(err, "insert batch")
	}

	for i, out := range rec.Outcomes {
		fieldsJSON := ""
		if out.Fields != nil {
			bs, err := json.Marshal(out.Fields)
			if err != nil {
				return common.WrapError(err, "encode fields")
			}
			fieldsJSON = string(bs)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO unit_outcomes
				(batch_id, seq, unit_name, success, extracted_name, front_ref, back_ref,
				 best_effort_back, artifact_path, error_message, elapsed_ms, fields_json)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rec.ID.String(), i, out.UnitName, out.Success, out.ExtractedName,
			out.FrontRef, out.BackRef, out.BestEffortBack, out.ArtifactPath,
			out.ErrorMessage, out.Elapsed.Milliseconds(), fieldsJSON,
		)
		if err != nil {
			return common.WrapError(err, "insert outcome")
		}
	}

	if err := tx.Commit(); err != nil {
		return common.WrapError(err, "commit batch")
	}
	r.log.Info("batch.saved", "batch_id", rec.ID, "outcomes", len(rec.Outcomes))
	return nil
}

// GetBatch loads one record with its outcomes in stored order.
func (r *BatchRepository) GetBatch(ctx context.Context, id uuid.UUID) (batch.Record, error) {
	var rec batch.Record
	var createdAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, total, succeeded, failed FROM batches WHERE id = $1`,
		id.String(),
	).Scan(&rec.ID, &createdAt, &rec.Summary.Total, &rec.Summary.Succeeded, &rec.Summary.Failed)
	if err == sql.ErrNoRows {
		return batch.Record{}, common.NewAppError("BATCH_NOT_FOUND", fmt.Sprintf("batch %s", id), common.ErrNotFound)
	}
	if err != nil {
		return batch.Record{}, common.WrapError(err, "query batch")
	}
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return batch.Record{}, common.WrapError(err, "parse created_at")
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT unit_name, success, extracted_name, front_ref, back_ref,
		        best_effort_back, artifact_path, error_message, elapsed_ms, fields_json
		 FROM unit_outcomes WHERE batch_id = $1 ORDER BY seq`,
		id.String(),
	)
	if err != nil {
		return batch.Record{}, common.WrapError(err, "query outcomes")
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var out batch.Outcome
		var elapsedMS int64
		var fieldsJSON string
		if err := rows.Scan(&out.UnitName, &out.Success, &out.ExtractedName,
			&out.FrontRef, &out.BackRef, &out.BestEffortBack, &out.ArtifactPath,
			&out.ErrorMessage, &elapsedMS, &fieldsJSON); err != nil {
			return batch.Record{}, common.WrapError(err, "scan outcome")
		}
		out.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		if fieldsJSON != "" {
			var f recognize.FrontFields
			if err := json.Unmarshal([]byte(fieldsJSON), &f); err != nil {
				return batch.Record{}, common.WrapError(err, "decode fields")
			}
			out.Fields = &f
		}
		rec.Outcomes = append(rec.Outcomes, out)
	}
	if err := rows.Err(); err != nil {
		return batch.Record{}, common.WrapError(err, "iterate outcomes")
	}
	for _, out := range rec.Outcomes {
		if !out.Success {
			rec.Summary.FailedUnitNames = append(rec.Summary.FailedUnitNames, out.UnitName)
		}
	}
	return rec, nil
}

// ListBatches returns recent batch headers, newest first.
func (r *BatchRepository) ListBatches(ctx context.Context, limit int) ([]batch.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, total, succeeded, failed
		 FROM batches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, common.WrapError(err, "query batches")
	}
	defer func() {
		_ = rows.Close()
	}()

	var recs []batch.Record
	for rows.Next() {
		var rec batch.Record
		var createdAt string
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Summary.Total,
			&rec.Summary.Succeeded, &rec.Summary.Failed); err != nil {
			return nil, common.WrapError(err, "scan batch")
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, common.WrapError(err, "parse created_at")
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
