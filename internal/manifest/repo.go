package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/assetforge/internal/apperr"
	"github.com/starford/assetforge/internal/models"
)

// Run is one invocation of a tool.
type Run struct {
	ID         int64
	Tool       string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Artifacts  int
}

// Record stores a run and its artifacts in one transaction and returns
// the new run id.
func (db *DB) Record(ctx context.Context, run Run, artifacts []models.Artifact) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("manifest: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (tool, source, started_at, finished_at, artifacts)
		VALUES (?, ?, ?, ?, ?)
	`, run.Tool, run.Source, run.StartedAt.UTC(), run.FinishedAt.UTC(), len(artifacts))
	if err != nil {
		return 0, fmt.Errorf("manifest: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("manifest: run id: %w", err)
	}

	if len(artifacts) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO artifacts (run_id, kind, path, source, checksum, size)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("manifest: prepare artifact insert: %w", err)
		}
		defer stmt.Close()
		for _, a := range artifacts {
			if _, err := stmt.ExecContext(ctx, id, a.Kind, a.Path, a.Source, a.Checksum, a.Size); err != nil {
				return 0, fmt.Errorf("manifest: insert artifact: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("manifest: commit: %w", err)
	}
	return id, nil
}

// LatestRun returns the most recent run of tool, or apperr.ErrNotFound.
func (db *DB) LatestRun(ctx context.Context, tool string) (*Run, error) {
	var r Run
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, tool, source, started_at, finished_at, artifacts
		FROM runs
		WHERE tool = ?
		ORDER BY id DESC
		LIMIT 1
	`, tool).Scan(&r.ID, &r.Tool, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Artifacts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: latest run: %w", err)
	}
	return &r, nil
}

// Artifacts returns the artifacts of a run in insertion order.
func (db *DB) Artifacts(ctx context.Context, runID int64) ([]models.Artifact, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT kind, path, source, checksum, size
		FROM artifacts
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("manifest: artifacts: %w", err)
	}
	defer rows.Close()

	var out []models.Artifact
	for rows.Next() {
		var a models.Artifact
		if err := rows.Scan(&a.Kind, &a.Path, &a.Source, &a.Checksum, &a.Size); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
