package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// InsertSensor creates a new sensor row. Callers (internal/registry) are
// responsible for the (kind, ip) dedup check before calling this.
func (d *DB) InsertSensor(ctx context.Context, kind domain.SensorKind, ip string, port uint16, name string) (*domain.Sensor, error) {
	now := nowText()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO sensors (name, sensor_type, ip_address, port, online, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		name, string(kind), ip, port, now,
	)
	if err != nil {
		return nil, wrapWrite(err, "insert sensor")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert sensor: %w", domain.ErrPersistence)
	}
	return d.GetSensor(ctx, id)
}

// FindSensorByKindAndIP implements the (kind, ip_address) dedup lookup.
// Returns (nil, nil) when no row matches — not an error, per
// Registry.registerSensor's "return existing row or insert" contract.
func (d *DB) FindSensorByKindAndIP(ctx context.Context, kind domain.SensorKind, ip string) (*domain.Sensor, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, sensor_type, ip_address, port, online, created_at, updated_at
		 FROM sensors WHERE sensor_type = ? AND ip_address = ?`, string(kind), ip,
	)
	s, err := scanSensor(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapNotFound(err, "find sensor")
	}
	return s, nil
}

// GetSensor fetches a sensor by id.
func (d *DB) GetSensor(ctx context.Context, id int64) (*domain.Sensor, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, name, sensor_type, ip_address, port, online, created_at, updated_at
		 FROM sensors WHERE id = ?`, id,
	)
	s, err := scanSensor(row)
	if err != nil {
		return nil, wrapNotFound(err, "get sensor")
	}
	return s, nil
}

// ListSensors returns every registered sensor ordered by id.
func (d *DB) ListSensors(ctx context.Context) ([]domain.Sensor, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, name, sensor_type, ip_address, port, online, created_at, updated_at
		 FROM sensors ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", domain.ErrPersistence)
	}
	defer rows.Close()

	var out []domain.Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("list sensors: %w", domain.ErrPersistence)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// RenameSensor updates a sensor's display name.
func (d *DB) RenameSensor(ctx context.Context, id int64, name string) (*domain.Sensor, error) {
	now := nowText()
	res, err := d.db.ExecContext(ctx,
		`UPDATE sensors SET name = ?, updated_at = ? WHERE id = ?`, name, now, id,
	)
	if err != nil {
		return nil, wrapWrite(err, "rename sensor")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("rename sensor: %w", domain.ErrNotFound)
	}
	return d.GetSensor(ctx, id)
}

// SetSensorOnline updates the liveness flag; called only by the Prober
// and by ingestReading (a successful POST implies the sensor is reachable).
func (d *DB) SetSensorOnline(ctx context.Context, id int64, online bool) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE sensors SET online = ?, updated_at = ? WHERE id = ?`, online, nowText(), id,
	)
	if err != nil {
		return wrapWrite(err, "set sensor online")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set sensor online: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteSensor removes a sensor row. Its reads go with it through the
// sensor_reads foreign key's ON DELETE CASCADE; internal/registry's
// UnregisterSensor also deletes them explicitly first.
func (d *DB) DeleteSensor(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sensors WHERE id = ?`, id)
	if err != nil {
		return wrapWrite(err, "delete sensor")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete sensor: %w", domain.ErrNotFound)
	}
	return nil
}

// ─── Sensor reads ────────────────────────────────────────────────────────────

// InsertSensorRead appends one telemetry sample.
func (d *DB) InsertSensorRead(ctx context.Context, sensorID int64, value string) (*domain.SensorRead, error) {
	now := nowText()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO sensor_reads (sensor_id, sensor_value, created_at) VALUES (?, ?, ?)`,
		sensorID, value, now,
	)
	if err != nil {
		return nil, wrapWrite(err, "insert sensor read")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert sensor read: %w", domain.ErrPersistence)
	}
	return &domain.SensorRead{ID: id, SensorID: sensorID, Value: value, CreatedAt: parseTimestamp(now)}, nil
}

// DeleteSensorReadsBySensor cascades deletion ahead of a sensor unregister.
func (d *DB) DeleteSensorReadsBySensor(ctx context.Context, sensorID int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM sensor_reads WHERE sensor_id = ?`, sensorID)
	if err != nil {
		return wrapWrite(err, "delete sensor reads")
	}
	return nil
}

// ListLastReadingPerSensor returns, for every sensor, the read row with
// the maximum id (equivalently the most recent, given id's monotonicity).
func (d *DB) ListLastReadingPerSensor(ctx context.Context) ([]domain.SensorRead, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT sr.id, sr.sensor_id, sr.sensor_value, sr.created_at
		 FROM sensor_reads sr
		 JOIN (SELECT sensor_id, MAX(id) AS max_id FROM sensor_reads GROUP BY sensor_id) latest
		   ON sr.sensor_id = latest.sensor_id AND sr.id = latest.max_id
		 ORDER BY sr.sensor_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list last readings: %w", domain.ErrPersistence)
	}
	defer rows.Close()

	var out []domain.SensorRead
	for rows.Next() {
		r, err := scanSensorRead(rows)
		if err != nil {
			return nil, fmt.Errorf("list last readings: %w", domain.ErrPersistence)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ReadingsInWindow returns the 50 most recent reads for sensorID with
// from <= created_at <= to, newest id first.
func (d *DB) ReadingsInWindow(ctx context.Context, sensorID int64, from, to string) ([]domain.SensorRead, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, sensor_id, sensor_value, created_at
		 FROM sensor_reads
		 WHERE sensor_id = ? AND created_at >= ? AND created_at <= ?
		 ORDER BY id DESC
		 LIMIT 50`,
		sensorID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("readings in window: %w", domain.ErrPersistence)
	}
	defer rows.Close()

	var out []domain.SensorRead
	for rows.Next() {
		r, err := scanSensorRead(rows)
		if err != nil {
			return nil, fmt.Errorf("readings in window: %w", domain.ErrPersistence)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// DeleteReadsOlderThan removes every read with created_at < cutoff,
// returning the number of rows removed. Used by the Retention Sweeper.
func (d *DB) DeleteReadsOlderThan(ctx context.Context, cutoff string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sensor_reads WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, wrapWrite(err, "gc old readings")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("gc old readings: %w", domain.ErrPersistence)
	}
	return n, nil
}

// ─── Scanning helpers ────────────────────────────────────────────────────────

func scanSensor(s scanner) (*domain.Sensor, error) {
	var sn domain.Sensor
	var name sql.NullString
	var kind, ip, createdAt string
	var updatedAt sql.NullString

	if err := s.Scan(&sn.ID, &name, &kind, &ip, &sn.Port, &sn.Online, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sn.Kind = domain.SensorKind(kind)
	sn.IPAddress = ip
	sn.CreatedAt = parseTimestamp(createdAt)
	if name.Valid {
		sn.Name = name.String
	} else {
		sn.Name = domain.DefaultSensorName(sn.Kind)
	}
	if updatedAt.Valid {
		t := parseTimestamp(updatedAt.String)
		sn.UpdatedAt = &t
	}
	return &sn, nil
}

func scanSensorRead(s scanner) (*domain.SensorRead, error) {
	var r domain.SensorRead
	var createdAt string
	if err := s.Scan(&r.ID, &r.SensorID, &r.Value, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTimestamp(createdAt)
	return &r, nil
}
