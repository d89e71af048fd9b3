package service

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

// CatalogImagePrefix is the path prefix stored for downloaded catalog images.
const CatalogImagePrefix = "exercise_images"

type ListCatalogExercisesFilter struct {
	Query     string
	Muscle    string
	Equipment string
	Level     string
	Limit     int
}

type MissingCatalogImage struct {
	SourceID string `json:"source_id"`
	Slot     string `json:"slot"`
	Path     string `json:"path"`
}

type CatalogImageReport struct {
	Checked int                   `json:"checked"`
	Missing []MissingCatalogImage `json:"missing"`
	Cleared int                   `json:"cleared,omitempty"`
}

const catalogColumns = `id, source_id, name, force, level, mechanic, equipment, category,
  primary_muscles, secondary_muscles, instructions, image_main, image_secondary,
  local_image_main, local_image_secondary, created_at, updated_at`

func ListCatalogExercises(db *sql.DB, f ListCatalogExercisesFilter) ([]model.CatalogExercise, error) {
	query := `SELECT ` + catalogColumns + ` FROM exercise_catalog WHERE 1=1`
	args := make([]any, 0)
	if q := strings.TrimSpace(f.Query); q != "" {
		query += " AND (name LIKE ? OR source_id LIKE ?)"
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	if m := strings.TrimSpace(f.Muscle); m != "" {
		query += " AND (lower(IFNULL(primary_muscles,'')) LIKE ? OR lower(IFNULL(secondary_muscles,'')) LIKE ?)"
		like := "%" + strings.ToLower(m) + "%"
		args = append(args, like, like)
	}
	if e := strings.TrimSpace(f.Equipment); e != "" {
		query += " AND lower(IFNULL(equipment,'')) = ?"
		args = append(args, strings.ToLower(e))
	}
	if l := strings.TrimSpace(f.Level); l != "" {
		query += " AND lower(IFNULL(level,'')) = ?"
		args = append(args, strings.ToLower(l))
	}
	query += " ORDER BY name ASC, source_id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list catalog exercises: %w", err)
	}
	defer rows.Close()

	out := make([]model.CatalogExercise, 0)
	for rows.Next() {
		ex, err := scanCatalogExercise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog exercises: %w", err)
	}
	return out, nil
}

func GetCatalogExercise(db *sql.DB, sourceID string) (model.CatalogExercise, error) {
	if strings.TrimSpace(sourceID) == "" {
		return model.CatalogExercise{}, invalidf("catalog source id is required")
	}
	row := db.QueryRow(`SELECT `+catalogColumns+` FROM exercise_catalog WHERE source_id = ?`, sourceID)
	ex, err := scanCatalogExercise(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CatalogExercise{}, fmt.Errorf("catalog exercise %q: %w", sourceID, ErrNotFound)
	}
	if err != nil {
		return model.CatalogExercise{}, err
	}
	return ex, nil
}

func ListCatalogSyncRuns(db *sql.DB, limit int) ([]model.CatalogSyncRun, error) {
	query := `
SELECT id, status, created, updated, deleted, skipped, images_downloaded, images_failed, error, started_at, finished_at
FROM catalog_sync_runs
ORDER BY started_at DESC, rowid DESC`
	args := make([]any, 0)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list catalog sync runs: %w", err)
	}
	defer rows.Close()

	out := make([]model.CatalogSyncRun, 0)
	for rows.Next() {
		var run model.CatalogSyncRun
		var started, finished string
		if err := rows.Scan(&run.ID, &run.Status, &run.Created, &run.Updated, &run.Deleted, &run.Skipped,
			&run.ImagesDownloaded, &run.ImagesFailed, &run.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan catalog sync run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog sync runs: %w", err)
	}
	return out, nil
}

// CatalogImagePath resolves a stored local image path against the image directory.
func CatalogImagePath(imageDir, stored string) string {
	rel := strings.TrimPrefix(path.Clean(stored), CatalogImagePrefix+"/")
	return filepath.Join(imageDir, filepath.FromSlash(rel))
}

// CheckCatalogImages reports local image paths whose files are gone. With fix
// set, the dangling paths are cleared so the next sync downloads them again.
func CheckCatalogImages(db *sql.DB, imageDir string, fix bool) (CatalogImageReport, error) {
	report := CatalogImageReport{Missing: make([]MissingCatalogImage, 0)}
	rows, err := db.Query(`
SELECT source_id, IFNULL(local_image_main,''), IFNULL(local_image_secondary,'')
FROM exercise_catalog
WHERE local_image_main IS NOT NULL OR local_image_secondary IS NOT NULL
ORDER BY source_id ASC`)
	if err != nil {
		return report, fmt.Errorf("catalog image query: %w", err)
	}
	for rows.Next() {
		var sourceID, mainPath, secondaryPath string
		if err := rows.Scan(&sourceID, &mainPath, &secondaryPath); err != nil {
			_ = rows.Close()
			return report, fmt.Errorf("catalog image scan: %w", err)
		}
		for _, slot := range []struct{ name, path string }{{"main", mainPath}, {"secondary", secondaryPath}} {
			if slot.path == "" {
				continue
			}
			report.Checked++
			if _, err := os.Stat(CatalogImagePath(imageDir, slot.path)); err != nil {
				report.Missing = append(report.Missing, MissingCatalogImage{SourceID: sourceID, Slot: slot.name, Path: slot.path})
			}
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return report, fmt.Errorf("catalog image iterate: %w", err)
	}
	_ = rows.Close()

	if fix && len(report.Missing) > 0 {
		tx, err := db.Begin()
		if err != nil {
			return report, fmt.Errorf("catalog image fix begin tx: %w", err)
		}
		for _, m := range report.Missing {
			column := "local_image_main"
			if m.Slot == "secondary" {
				column = "local_image_secondary"
			}
			if _, err := tx.Exec(`UPDATE exercise_catalog SET `+column+` = NULL, updated_at = CURRENT_TIMESTAMP WHERE source_id = ?`, m.SourceID); err != nil {
				_ = tx.Rollback()
				return report, fmt.Errorf("catalog image fix %s: %w", m.SourceID, err)
			}
			report.Cleared++
		}
		if err := tx.Commit(); err != nil {
			return report, fmt.Errorf("catalog image fix commit: %w", err)
		}
	}
	return report, nil
}

func scanCatalogExercise(s rowScanner) (model.CatalogExercise, error) {
	var ex model.CatalogExercise
	var force, level, mechanic, equipment, category sql.NullString
	var primary, secondary, instructions sql.NullString
	var imageMain, imageSecondary, localMain, localSecondary sql.NullString
	var created, updated string
	if err := s.Scan(&ex.ID, &ex.SourceID, &ex.Name, &force, &level, &mechanic, &equipment, &category,
		&primary, &secondary, &instructions, &imageMain, &imageSecondary, &localMain, &localSecondary,
		&created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ex, err
		}
		return ex, fmt.Errorf("scan catalog exercise: %w", err)
	}
	ex.Force = nullStringPtr(force)
	ex.Level = nullStringPtr(level)
	ex.Mechanic = nullStringPtr(mechanic)
	ex.Equipment = nullStringPtr(equipment)
	ex.Category = nullStringPtr(category)
	ex.PrimaryMuscles = nullStringPtr(primary)
	ex.SecondaryMuscles = nullStringPtr(secondary)
	ex.Instructions = nullStringPtr(instructions)
	ex.ImageMain = nullStringPtr(imageMain)
	ex.ImageSecondary = nullStringPtr(imageSecondary)
	ex.LocalImageMain = nullStringPtr(localMain)
	ex.LocalImageSecondary = nullStringPtr(localSecondary)
	ex.CreatedAt = parseTimestamp(created)
	ex.UpdatedAt = parseTimestamp(updated)
	return ex, nil
}
