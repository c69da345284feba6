package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// InsertActuator creates a new actuator row. Callers dedup on
// (ip_address, port, pulse) before calling this.
func (d *DB) InsertActuator(ctx context.Context, ip string, port uint16, pulse bool, name string) (*domain.Actuator, error) {
	now := nowText()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO actuators (name, ip_address, port, state, online, pulse, created_at)
		 VALUES (?, ?, ?, 0, 0, ?, ?)`,
		name, ip, port, pulse, now,
	)
	if err != nil {
		return nil, wrapWrite(err, "insert actuator")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert actuator: %w", domain.ErrPersistence)
	}
	return d.GetActuator(ctx, id)
}

// FindActuatorByIPPortPulse implements the (ip, port, pulse) dedup lookup.
// Returns (nil, nil) when no row matches.
func (d *DB) FindActuatorByIPPortPulse(ctx context.Context, ip string, port uint16, pulse bool) (*domain.Actuator, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, ip_address, port, state, online, pulse, created_at, updated_at
		 FROM actuators WHERE ip_address = ? AND port = ? AND pulse = ?`, ip, port, pulse,
	)
	a, err := scanActuator(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapNotFound(err, "find actuator")
	}
	return a, nil
}

// GetActuator fetches an actuator by id.
func (d *DB) GetActuator(ctx context.Context, id int64) (*domain.Actuator, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, ip_address, port, state, online, pulse, created_at, updated_at
		 FROM actuators WHERE id = ?`, id,
	)
	a, err := scanActuator(row)
	if err != nil {
		return nil, wrapNotFound(err, "get actuator")
	}
	return a, nil
}

// ListActuators returns every registered actuator ordered by id.
func (d *DB) ListActuators(ctx context.Context) ([]domain.Actuator, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, ip_address, port, state, online, pulse, created_at, updated_at
		 FROM actuators ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list actuators: %w", domain.ErrPersistence)
	}
	defer rows.Close()

	var out []domain.Actuator
	for rows.Next() {
		a, err := scanActuator(rows)
		if err != nil {
			return nil, fmt.Errorf("list actuators: %w", domain.ErrPersistence)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// RenameActuator updates an actuator's display name.
func (d *DB) RenameActuator(ctx context.Context, id int64, name string) (*domain.Actuator, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE actuators SET name = ?, updated_at = ? WHERE id = ?`, name, nowText(), id,
	)
	if err != nil {
		return nil, wrapWrite(err, "rename actuator")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("rename actuator: %w", domain.ErrNotFound)
	}
	return d.GetActuator(ctx, id)
}

// SetActuatorState updates the commanded ON/OFF state, returning the
// updated row so callers can publish it without a second round trip.
func (d *DB) SetActuatorState(ctx context.Context, id int64, state bool) (*domain.Actuator, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE actuators SET state = ?, updated_at = ? WHERE id = ?`, state, nowText(), id,
	)
	if err != nil {
		return nil, wrapWrite(err, "set actuator state")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("set actuator state: %w", domain.ErrNotFound)
	}
	return d.GetActuator(ctx, id)
}

// SetActuatorOnline updates the liveness flag; called only by the Prober.
func (d *DB) SetActuatorOnline(ctx context.Context, id int64, online bool) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE actuators SET online = ?, updated_at = ? WHERE id = ?`, online, nowText(), id,
	)
	if err != nil {
		return wrapWrite(err, "set actuator online")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set actuator online: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteActuator removes an actuator row.
func (d *DB) DeleteActuator(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM actuators WHERE id = ?`, id)
	if err != nil {
		return wrapWrite(err, "delete actuator")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete actuator: %w", domain.ErrNotFound)
	}
	return nil
}

func scanActuator(s scanner) (*domain.Actuator, error) {
	var a domain.Actuator
	var name sql.NullString
	var ip, createdAt string
	var updatedAt sql.NullString

	if err := s.Scan(&a.ID, &name, &ip, &a.Port, &a.State, &a.Online, &a.Pulse, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.IPAddress = ip
	a.CreatedAt = parseTimestamp(createdAt)
	if name.Valid {
		a.Name = name.String
	} else {
		a.Name = "Actuator"
	}
	if updatedAt.Valid {
		t := parseTimestamp(updatedAt.String)
		a.UpdatedAt = &t
	}
	return &a, nil
}
