package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"idmerge/internal/common"
)

const inMemoryDSN = "file:idmerge?mode=memory&cache=shared"

// Open connects to the outcome store. A postgres:// DSN goes through the pgx
// stdlib driver; anything else (including empty, which means in-memory) is a
// sqlite database.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver, dsn := "sqlite", cfg.DSN
	switch {
	case dsn == "" || dsn == "inmem":
		dsn = inMemoryDSN
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver = "pgx"
	}

	logger.Info("connecting to database", "driver", driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, common.NewAppError("DB_OPEN", "open database", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.MaxConns))
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, common.NewAppError("DB_PING", "database unreachable", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, common.NewAppError("DB_MIGRATE", "apply schema", err)
	}

	logger.Info("successfully connected to database")
	return db, nil
}

// migrate applies the schema. Statements are written to the SQL subset both
// drivers accept.
func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			total INTEGER NOT NULL,
			succeeded INTEGER NOT NULL,
			failed INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS unit_outcomes (
			batch_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			unit_name TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			extracted_name TEXT NOT NULL DEFAULT '',
			front_ref TEXT NOT NULL DEFAULT '',
			back_ref TEXT NOT NULL DEFAULT '',
			best_effort_back BOOLEAN NOT NULL DEFAULT FALSE,
			artifact_path TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			fields_json TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (batch_id, seq)
		)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
