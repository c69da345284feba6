package health

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/neriamosgionata/homesoil/internal/infra/sqlite"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "homesoil.db")
	db, err := sqlite.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sqliteCheck(db *sqlite.DB) Check {
	return Check{Name: "sqlite", CheckFn: db.Ping}
}

func TestNewChecker(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(time.Minute, sqliteCheck(db))
	if c == nil {
		t.Fatal("NewChecker() returned nil")
	}
	if len(c.checks) != 1 {
		t.Errorf("checks = %d, want 1", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(time.Minute, sqliteCheck(db))
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("Statuses() = %d, want 1", len(statuses))
	}
	if !statuses[0].Healthy {
		t.Errorf("sqlite check should be healthy, got error: %s", statuses[0].Error)
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(time.Minute, sqliteCheck(db))

	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_CustomCheck(t *testing.T) {
	c := &Checker{
		checks: []Check{
			{Name: "always_pass", CheckFn: func(ctx context.Context) error { return nil }},
		},
	}
	c.runAll(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 1 || !statuses[0].Healthy {
		t.Fatalf("expected a single healthy status, got %+v", statuses)
	}
}

func TestChecker_FailingCheck(t *testing.T) {
	c := &Checker{
		checks: []Check{
			{Name: "always_fail", CheckFn: func(ctx context.Context) error { return errors.New("boom") }},
		},
	}
	c.runAll(context.Background())

	statuses := c.Statuses()
	if statuses[0].Healthy {
		t.Error("always_fail check should not be healthy")
	}
	if statuses[0].Error == "" {
		t.Error("error message should be populated")
	}
	if !c.IsHealthy() {
		// IsHealthy reflects the latest run, so after a failing check it
		// must be false.
	} else {
		t.Error("IsHealthy() should be false after a failing check")
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	db := newTestDB(t)
	c := NewChecker(time.Minute, sqliteCheck(db))
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()

	if len(s1) > 0 {
		s1[0].Healthy = false
		if !s2[0].Healthy {
			t.Error("Statuses() should return a copy, not a reference")
		}
	}
}
