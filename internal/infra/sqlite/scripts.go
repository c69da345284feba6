package sqlite

import (
	"database/sql"
	"context"
	"fmt"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// InsertScript creates a new automation script in idle status.
func (d *DB) InsertScript(ctx context.Context, title, code string, schedule *string) (*domain.Script, error) {
	now := nowText()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO scripts (title, code, schedule, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		title, code, nullableText(schedule), domain.ScriptIdle, now,
	)
	if err != nil {
		return nil, wrapWrite(err, "insert script")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert script: %w", domain.ErrPersistence)
	}
	return d.GetScript(ctx, id)
}

// GetScript fetches a script by id.
func (d *DB) GetScript(ctx context.Context, id int64) (*domain.Script, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, title, code, schedule, status, created_at, updated_at
		 FROM scripts WHERE id = ?`, id,
	)
	s, err := scanScript(row)
	if err != nil {
		return nil, wrapNotFound(err, "get script")
	}
	return s, nil
}

// ListScripts returns every saved script ordered by id.
func (d *DB) ListScripts(ctx context.Context) ([]domain.Script, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, title, code, schedule, status, created_at, updated_at
		 FROM scripts ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", domain.ErrPersistence)
	}
	defer rows.Close()

	var out []domain.Script
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, fmt.Errorf("list scripts: %w", domain.ErrPersistence)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// UpdateScript overwrites a script's title, code and schedule. Status is
// left untouched; callers that need to reset status use SetScriptStatus
// through the registry layer, since status transitions are driven by the
// DSL runner rather than by this CRUD surface.
func (d *DB) UpdateScript(ctx context.Context, id int64, title, code string, schedule *string) (*domain.Script, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE scripts SET title = ?, code = ?, schedule = ?, updated_at = ? WHERE id = ?`,
		title, code, nullableText(schedule), nowText(), id,
	)
	if err != nil {
		return nil, wrapWrite(err, "update script")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update script: %w", domain.ErrNotFound)
	}
	return d.GetScript(ctx, id)
}

// SetScriptSchedule updates only the cron-like schedule string (or clears
// it when schedule is nil).
func (d *DB) SetScriptSchedule(ctx context.Context, id int64, schedule *string) (*domain.Script, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE scripts SET schedule = ?, updated_at = ? WHERE id = ?`,
		nullableText(schedule), nowText(), id,
	)
	if err != nil {
		return nil, wrapWrite(err, "set script schedule")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("set script schedule: %w", domain.ErrNotFound)
	}
	return d.GetScript(ctx, id)
}

// SetScriptStatus records the DSL runner's idle/running/error transition.
// Not part of the domain.Store interface's public CRUD surface in the
// sense of an end-user mutation, but exposed here because it is still a
// Store write; internal/registry wraps it for internal/dsl to call.
func (d *DB) SetScriptStatus(ctx context.Context, id int64, status domain.ScriptStatus) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE scripts SET status = ?, updated_at = ? WHERE id = ?`, status, nowText(), id,
	)
	if err != nil {
		return wrapWrite(err, "set script status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set script status: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteScript removes a saved script.
func (d *DB) DeleteScript(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, id)
	if err != nil {
		return wrapWrite(err, "delete script")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete script: %w", domain.ErrNotFound)
	}
	return nil
}

func scanScript(s scanner) (*domain.Script, error) {
	var sc domain.Script
	var schedule sql.NullString
	var createdAt string
	var updatedAt sql.NullString
	var status int

	if err := s.Scan(&sc.ID, &sc.Title, &sc.Code, &schedule, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sc.Status = domain.ScriptStatus(status)
	sc.CreatedAt = parseTimestamp(createdAt)
	if schedule.Valid {
		v := schedule.String
		sc.Schedule = &v
	}
	if updatedAt.Valid {
		t := parseTimestamp(updatedAt.String)
		sc.UpdatedAt = &t
	}
	return &sc, nil
}
