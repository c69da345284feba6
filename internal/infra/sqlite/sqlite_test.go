package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "homesoil.db")
	d, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSensorDedupOnKindAndIP(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s1, err := d.InsertSensor(ctx, domain.SensorKindTemperature, "10.0.0.5", 5683, "")
	if err != nil {
		t.Fatalf("InsertSensor: %v", err)
	}

	found, err := d.FindSensorByKindAndIP(ctx, domain.SensorKindTemperature, "10.0.0.5")
	if err != nil {
		t.Fatalf("FindSensorByKindAndIP: %v", err)
	}
	if found == nil || found.ID != s1.ID {
		t.Fatalf("expected to find sensor %d, got %+v", s1.ID, found)
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO sensors (sensor_type, ip_address, port, online, created_at) VALUES (?, ?, ?, 0, ?)`,
		string(domain.SensorKindTemperature), "10.0.0.5", 5683, nowText(),
	)
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation on duplicate (kind, ip), got %v", err)
	}
}

func TestActuatorDedupOnIPPortPulse(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if _, err := d.InsertActuator(ctx, "10.0.0.9", 5683, false, "Relay"); err != nil {
		t.Fatalf("InsertActuator: %v", err)
	}

	found, err := d.FindActuatorByIPPortPulse(ctx, "10.0.0.9", 5683, false)
	if err != nil || found == nil {
		t.Fatalf("FindActuatorByIPPortPulse: %+v, %v", found, err)
	}

	// Same IP/port but pulse=true is a distinct actuator, not a collision.
	if _, err := d.InsertActuator(ctx, "10.0.0.9", 5683, true, "Relay pulse"); err != nil {
		t.Fatalf("InsertActuator with differing pulse flag should succeed: %v", err)
	}
}

func TestSensorCascadeDeletesReads(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s, err := d.InsertSensor(ctx, domain.SensorKindHumidity, "10.0.0.7", 5683, "")
	if err != nil {
		t.Fatalf("InsertSensor: %v", err)
	}
	if _, err := d.InsertSensorRead(ctx, s.ID, "42"); err != nil {
		t.Fatalf("InsertSensorRead: %v", err)
	}

	if err := d.DeleteSensor(ctx, s.ID); err != nil {
		t.Fatalf("DeleteSensor: %v", err)
	}

	reads, err := d.ReadingsInWindow(ctx, s.ID, "0000-01-01 00:00:00", "9999-01-01 00:00:00")
	if err != nil {
		t.Fatalf("ReadingsInWindow: %v", err)
	}
	if len(reads) != 0 {
		t.Fatalf("expected cascade delete to remove reads, got %d", len(reads))
	}
}

func TestGetSensorNotFound(t *testing.T) {
	d := openTestDB(t)
	_, err := d.GetSensor(context.Background(), 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadingsInWindowOrderedAndCapped(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s, err := d.InsertSensor(ctx, domain.SensorKindCurrent, "10.0.0.2", 5683, "")
	if err != nil {
		t.Fatalf("InsertSensor: %v", err)
	}

	for i := 0; i < 60; i++ {
		if _, err := d.InsertSensorRead(ctx, s.ID, "1"); err != nil {
			t.Fatalf("InsertSensorRead: %v", err)
		}
	}

	reads, err := d.ReadingsInWindow(ctx, s.ID, "0000-01-01 00:00:00", "9999-01-01 00:00:00")
	if err != nil {
		t.Fatalf("ReadingsInWindow: %v", err)
	}
	if len(reads) != 50 {
		t.Fatalf("expected window capped at 50 rows, got %d", len(reads))
	}
	for i := 1; i < len(reads); i++ {
		if reads[i].ID > reads[i-1].ID {
			t.Fatalf("expected reads ordered newest-first, got %d after %d", reads[i].ID, reads[i-1].ID)
		}
	}
}

func TestDeleteReadsOlderThan(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s, err := d.InsertSensor(ctx, domain.SensorKindPressure, "10.0.0.3", 5683, "")
	if err != nil {
		t.Fatalf("InsertSensor: %v", err)
	}
	if _, err := d.InsertSensorRead(ctx, s.ID, "1013"); err != nil {
		t.Fatalf("InsertSensorRead: %v", err)
	}

	n, err := d.DeleteReadsOlderThan(ctx, "9999-01-01 00:00:00")
	if err != nil {
		t.Fatalf("DeleteReadsOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected to delete 1 read, deleted %d", n)
	}
}

func TestScriptStatusTransition(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	s, err := d.InsertScript(ctx, "irrigate", "RUN\nACTIVATE 1\nSTOP", nil)
	if err != nil {
		t.Fatalf("InsertScript: %v", err)
	}
	if s.Status != domain.ScriptIdle {
		t.Fatalf("expected new script idle, got %v", s.Status)
	}

	if err := d.SetScriptStatus(ctx, s.ID, domain.ScriptRunning); err != nil {
		t.Fatalf("SetScriptStatus: %v", err)
	}
	got, err := d.GetScript(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetScript: %v", err)
	}
	if got.Status != domain.ScriptRunning {
		t.Fatalf("expected running status, got %v", got.Status)
	}
}
