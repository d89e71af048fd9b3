package service

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const checksumSuffix = ".sha256"

type BackupInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

type DoctorReport struct {
	OrphanFoodLogs      int                   `json:"orphan_food_logs"`
	DanglingCatalogRefs int                   `json:"dangling_catalog_refs"`
	ImagesChecked       int                   `json:"images_checked"`
	MissingImages       []MissingCatalogImage `json:"missing_images"`
	RemovedFoodLogs     int                   `json:"removed_food_logs,omitempty"`
	ClearedCatalogRefs  int                   `json:"cleared_catalog_refs,omitempty"`
	ClearedImages       int                   `json:"cleared_images,omitempty"`
}

// CreateBackup snapshots the open database into outPath with VACUUM INTO, so
// the copy is consistent even while another connection writes. A sha256
// sidecar is written next to it.
func CreateBackup(db *sql.DB, outPath string) (BackupInfo, error) {
	outPath = strings.TrimSpace(outPath)
	if outPath == "" {
		return BackupInfo{}, invalidf("backup output path is required")
	}
	if _, err := os.Stat(outPath); err == nil {
		return BackupInfo{}, invalidf("backup %s already exists", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := db.Exec(`VACUUM INTO ?`, outPath); err != nil {
		return BackupInfo{}, fmt.Errorf("snapshot database: %w", err)
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+checksumSuffix, []byte(checksum+"\n"), 0o644); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	return backupInfo(outPath)
}

// RestoreBackup copies a snapshot over dbPath after verifying its sidecar
// checksum. A snapshot without a sidecar is refused unless force is set.
func RestoreBackup(backupPath, dbPath string, force bool) error {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return invalidf("backup path and db path are required")
	}
	if !force {
		if _, err := os.Stat(dbPath); err == nil {
			return invalidf("target db already exists; use --force to overwrite")
		}
	}
	expected, err := os.ReadFile(backupPath + checksumSuffix)
	switch {
	case err == nil:
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return invalidf("backup checksum mismatch")
		}
	case errors.Is(err, os.ErrNotExist) && force:
	case errors.Is(err, os.ErrNotExist):
		return invalidf("backup %s has no checksum file; use --force to restore anyway", backupPath)
	default:
		return fmt.Errorf("read checksum file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	// Stale WAL files would be replayed over the restored snapshot.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", dbPath+suffix, err)
		}
	}
	return copyFile(backupPath, dbPath)
}

// ListBackups returns the snapshots in dir, newest first.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []BackupInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".db" {
			continue
		}
		info, err := backupInfo(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func backupInfo(path string) (BackupInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	info := BackupInfo{Path: path, CreatedAt: st.ModTime(), SizeBytes: st.Size()}
	if b, err := os.ReadFile(path + checksumSuffix); err == nil {
		info.Checksum = strings.TrimSpace(string(b))
	}
	return info, nil
}

// RunDoctor checks food logs pointing at missing foods, template exercises
// pointing at catalog rows a sync has removed and catalog images missing from
// imageDir. With fix set, orphan logs are deleted and dangling references
// cleared.
func RunDoctor(db *sql.DB, imageDir string, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	rows, err := db.Query(`SELECT l.id FROM food_logs l LEFT JOIN foods f ON f.id = l.food_id WHERE f.id IS NULL`)
	if err != nil {
		return report, fmt.Errorf("doctor orphan check: %w", err)
	}
	orphanIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return report, fmt.Errorf("doctor orphan scan: %w", err)
		}
		orphanIDs = append(orphanIDs, id)
	}
	_ = rows.Close()
	report.OrphanFoodLogs = len(orphanIDs)

	if err := db.QueryRow(`
SELECT COUNT(1) FROM template_exercises t
LEFT JOIN exercise_catalog c ON c.source_id = t.catalog_source_id
WHERE t.catalog_source_id IS NOT NULL AND c.id IS NULL
`).Scan(&report.DanglingCatalogRefs); err != nil {
		return report, fmt.Errorf("doctor catalog reference check: %w", err)
	}

	if strings.TrimSpace(imageDir) != "" {
		images, err := CheckCatalogImages(db, imageDir, fix)
		if err != nil {
			return report, err
		}
		report.ImagesChecked = images.Checked
		report.MissingImages = images.Missing
		report.ClearedImages = images.Cleared
	}

	if fix && (len(orphanIDs) > 0 || report.DanglingCatalogRefs > 0) {
		tx, err := db.Begin()
		if err != nil {
			return report, fmt.Errorf("doctor fix begin tx: %w", err)
		}
		for _, id := range orphanIDs {
			if _, err := tx.Exec(`DELETE FROM food_logs WHERE id = ?`, id); err != nil {
				_ = tx.Rollback()
				return report, fmt.Errorf("doctor fix food log %d: %w", id, err)
			}
		}
		res, err := tx.Exec(`
UPDATE template_exercises SET catalog_source_id = NULL
WHERE catalog_source_id IS NOT NULL
  AND catalog_source_id NOT IN (SELECT source_id FROM exercise_catalog)
`)
		if err != nil {
			_ = tx.Rollback()
			return report, fmt.Errorf("doctor fix catalog references: %w", err)
		}
		cleared, _ := res.RowsAffected()
		if err := tx.Commit(); err != nil {
			return report, fmt.Errorf("doctor fix commit: %w", err)
		}
		report.RemovedFoodLogs = len(orphanIDs)
		report.ClearedCatalogRefs = int(cleared)
	}

	return report, nil
}

// copyFile writes src to a temporary file beside dst and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	tmp := dst + ".restore"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync destination file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close destination file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move restored file into place: %w", err)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
