package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/flexfitness/flex-cli/internal/db"
	"github.com/flexfitness/flex-cli/internal/provider/freeexercisedb"
	"github.com/flexfitness/flex-cli/internal/service"
)

func TestRunDoctorFindsAndFixesProblems(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	imageDir := t.TempDir()

	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp(), barbellCurl()}}
	if _, err := service.SyncExerciseCatalog(context.Background(), sqldb, syncOptions(src, imageDir)); err != nil {
		t.Fatalf("sync catalog: %v", err)
	}
	templateID, err := service.CreateWorkoutTemplate(sqldb, service.WorkoutTemplateInput{Name: "Arms"})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if _, err := service.AddTemplateExercise(sqldb, service.TemplateExerciseInput{TemplateID: templateID, Sets: 3, Reps: 10, CatalogSourceID: "Barbell_Curl"}); err != nil {
		t.Fatalf("add template exercise: %v", err)
	}

	src.items = []freeexercisedb.Exercise{pushUp()}
	if _, err := service.SyncExerciseCatalog(context.Background(), sqldb, syncOptions(src, imageDir)); err != nil {
		t.Fatalf("resync catalog: %v", err)
	}
	if err := os.Remove(filepath.Join(imageDir, "push_up_main.jpg")); err != nil {
		t.Fatalf("remove image: %v", err)
	}

	if _, err := sqldb.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("disable foreign keys: %v", err)
	}
	if _, err := sqldb.Exec(`INSERT INTO food_logs(food_id, quantity, unit, log_date) VALUES(999, 100, 'g', '2026-01-02')`); err != nil {
		t.Fatalf("insert orphan log: %v", err)
	}
	if _, err := sqldb.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}

	report, err := service.RunDoctor(sqldb, imageDir, false)
	if err != nil {
		t.Fatalf("run doctor: %v", err)
	}
	if report.OrphanFoodLogs != 1 || report.DanglingCatalogRefs != 1 || len(report.MissingImages) != 1 {
		t.Fatalf("unexpected doctor report: %+v", report)
	}

	report, err = service.RunDoctor(sqldb, imageDir, true)
	if err != nil {
		t.Fatalf("run doctor fix: %v", err)
	}
	if report.RemovedFoodLogs != 1 || report.ClearedCatalogRefs != 1 || report.ClearedImages != 1 {
		t.Fatalf("unexpected fix counts: %+v", report)
	}

	report, err = service.RunDoctor(sqldb, imageDir, false)
	if err != nil {
		t.Fatalf("rerun doctor: %v", err)
	}
	if report.OrphanFoodLogs != 0 || report.DanglingCatalogRefs != 0 || len(report.MissingImages) != 0 {
		t.Fatalf("expected clean report after fix: %+v", report)
	}
}

func TestBackupCreateListRestore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sqldb := newTestDB(t)
	foodID, err := service.AddFood(sqldb, service.FoodInput{Name: "Oats", Calories: floatPtr(380)})
	if err != nil {
		t.Fatalf("add food: %v", err)
	}

	backupDir := filepath.Join(dir, "backups")
	info, err := service.CreateBackup(sqldb, filepath.Join(backupDir, "flex-1.db"))
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if info.Checksum == "" || info.SizeBytes == 0 {
		t.Fatalf("unexpected backup info: %+v", info)
	}
	if _, err := service.CreateBackup(sqldb, info.Path); err == nil {
		t.Fatalf("expected existing backup file to be refused")
	}

	backups, err := service.ListBackups(backupDir)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 || backups[0].Checksum != info.Checksum {
		t.Fatalf("unexpected backups: %+v", backups)
	}
	if missing, err := service.ListBackups(filepath.Join(dir, "none")); err != nil || len(missing) != 0 {
		t.Fatalf("expected empty list for missing dir, got %v %v", missing, err)
	}

	restored := filepath.Join(dir, "restored.db")
	if err := service.RestoreBackup(info.Path, restored, false); err != nil {
		t.Fatalf("restore backup: %v", err)
	}
	if err := service.RestoreBackup(info.Path, restored, false); err == nil {
		t.Fatalf("expected restore without --force to refuse overwrite")
	}
	restoredDB, err := db.OpenMigrated(restored)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restoredDB.Close()
	food, err := service.GetFood(restoredDB, foodID)
	if err != nil || food.Name != "Oats" {
		t.Fatalf("expected food in restored db, got %+v %v", food, err)
	}

	if err := os.WriteFile(info.Path+".sha256", []byte("bad\n"), 0o644); err != nil {
		t.Fatalf("corrupt checksum: %v", err)
	}
	if err := service.RestoreBackup(info.Path, restored, true); err == nil {
		t.Fatalf("expected checksum mismatch")
	}
	if err := os.Remove(info.Path + ".sha256"); err != nil {
		t.Fatalf("remove checksum: %v", err)
	}
	if err := service.RestoreBackup(info.Path, filepath.Join(dir, "other.db"), false); err == nil {
		t.Fatalf("expected restore without a checksum file to need --force")
	}
	if err := service.RestoreBackup(info.Path, filepath.Join(dir, "other.db"), true); err != nil {
		t.Fatalf("forced restore without checksum: %v", err)
	}
}
