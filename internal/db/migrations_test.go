package db_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/flexfitness/flex-cli/internal/db"
)

func TestApplyMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "flex.db")
	sqldb, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()

	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("first apply migrations: %v", err)
	}
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("second apply migrations: %v", err)
	}

	var migrationCount int
	if err := sqldb.QueryRow(`SELECT COUNT(1) FROM schema_migrations`).Scan(&migrationCount); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if migrationCount != db.LatestVersion() {
		t.Fatalf("expected %d migration versions, got %d", db.LatestVersion(), migrationCount)
	}

	for _, table := range []string{"foods", "food_measures", "food_logs", "clients", "exercise_catalog", "catalog_sync_runs", "sync_locks", "workout_templates", "template_exercises", "client_workouts", "progress_entries"} {
		var count int
		if err := sqldb.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count); err != nil {
			t.Fatalf("check %s table: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected %s table to exist", table)
		}
	}
}

func TestClientsHaveProfileColumns(t *testing.T) {
	t.Parallel()

	sqldb, err := db.OpenMigrated(filepath.Join(t.TempDir(), "flex.db"))
	if err != nil {
		t.Fatalf("open migrated db: %v", err)
	}
	defer sqldb.Close()

	if _, err := sqldb.Exec(`INSERT INTO clients(name) VALUES('Ana')`); err != nil {
		t.Fatalf("insert client: %v", err)
	}
	var gender string
	if err := sqldb.QueryRow(`SELECT gender FROM clients WHERE name = 'Ana'`).Scan(&gender); err != nil {
		t.Fatalf("read gender: %v", err)
	}
	if gender != "" {
		t.Fatalf("expected empty default gender, got %q", gender)
	}
}

func TestExerciseCatalogSourceIDIsUnique(t *testing.T) {
	t.Parallel()

	sqldb, err := db.Open(filepath.Join(t.TempDir(), "flex.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer sqldb.Close()
	if err := db.ApplyMigrations(sqldb); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if _, err := sqldb.Exec(`INSERT INTO exercise_catalog(source_id, name) VALUES('Push_Up', 'Push Up')`); err != nil {
		t.Fatalf("insert first row: %v", err)
	}
	if _, err := sqldb.Exec(`INSERT INTO exercise_catalog(source_id, name) VALUES('Push_Up', 'Push Up again')`); err == nil {
		t.Fatalf("expected unique constraint violation on source_id")
	}
}

func TestOpenMigratedEnablesForeignKeys(t *testing.T) {
	t.Parallel()

	sqldb, err := db.OpenMigrated(filepath.Join(t.TempDir(), "flex.db"))
	if err != nil {
		t.Fatalf("open migrated db: %v", err)
	}
	defer sqldb.Close()

	var fk int
	if err := sqldb.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("read foreign_keys pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("expected foreign keys enabled, got %d", fk)
	}
	if _, err := sqldb.Exec(`INSERT INTO food_logs(food_id, quantity, unit, log_date) VALUES(999, 1, 'g', '2026-01-01')`); err == nil {
		t.Fatalf("expected foreign key violation for missing food")
	}
}

func TestApplyMigrationsRollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	sqldb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer sqldb.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM schema_migrations WHERE version = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM schema_migrations WHERE version = ?").
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exercise_catalog").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = db.ApplyMigrations(sqldb)
	if err == nil || !strings.Contains(err.Error(), "apply migration version 2 (exercise_catalog)") {
		t.Fatalf("expected migration 2 failure, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
