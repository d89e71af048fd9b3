package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	"github.com/flexfitness/flex-cli/internal/logging"
	"github.com/flexfitness/flex-cli/internal/metrics"
	"github.com/flexfitness/flex-cli/internal/model"
	"github.com/flexfitness/flex-cli/internal/provider/freeexercisedb"
)

const (
	catalogLockName        = "catalog"
	defaultCatalogLockTTL  = 15 * time.Minute
	defaultDownloadWorkers = 4
)

var (
	// ErrSyncInProgress is returned when another run holds the catalog lock.
	ErrSyncInProgress = errors.New("catalog sync already in progress")
	// ErrSyncLockLost is returned when the lock expired or changed owner
	// before the run could commit. Nothing is applied.
	ErrSyncLockLost = errors.New("catalog sync lock lost")
)

// CatalogSource is the upstream exercise dataset. *freeexercisedb.Client
// implements it.
type CatalogSource interface {
	FetchExercises(ctx context.Context) ([]freeexercisedb.Exercise, error)
	DownloadFile(ctx context.Context, url, dest string) error
	BuildImageURLs(images []string, equipment, name string) (string, string)
}

type SyncOptions struct {
	Source CatalogSource
	// ImageDir receives downloaded images. Required unless SkipImages is set.
	ImageDir string
	// DeleteMissing removes local rows absent from the dataset.
	DeleteMissing bool
	// SkipImages derives image URLs but downloads nothing; existing local
	// paths are kept.
	SkipImages      bool
	DownloadWorkers int
	// Limiter paces image downloads. Nil means unlimited.
	Limiter *rate.Limiter
	LockTTL time.Duration
	Logger  *logrus.Logger
}

type SyncReport struct {
	RunID            string    `json:"run_id"`
	Created          int       `json:"created"`
	Updated          int       `json:"updated"`
	Deleted          int       `json:"deleted"`
	Skipped          int       `json:"skipped"`
	ImagesDownloaded int       `json:"images_downloaded"`
	ImagesFailed     int       `json:"images_failed"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// SyncExerciseCatalog mirrors the upstream dataset into exercise_catalog.
// All row changes are committed in one transaction; on any fatal error
// nothing is applied. Image download failures are logged and leave the
// local path empty.
func SyncExerciseCatalog(ctx context.Context, db *sql.DB, opts SyncOptions) (SyncReport, error) {
	if opts.Source == nil {
		return SyncReport{}, invalidf("catalog source is required")
	}
	if !opts.SkipImages && strings.TrimSpace(opts.ImageDir) == "" {
		return SyncReport{}, invalidf("image directory is required unless images are skipped")
	}
	log := logging.OrDiscard(opts.Logger)
	report := SyncReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	runLog := log.WithField("run_id", report.RunID)

	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = defaultCatalogLockTTL
	}
	lock := syncLock{name: catalogLockName, owner: report.RunID, ttl: ttl}
	if err := acquireSyncLock(ctx, db, lock); err != nil {
		return report, err
	}
	runLog.Debug("catalog lock acquired")
	renewCtx, stopRenew := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		renewSyncLock(renewCtx, db, lock, runLog)
	}()
	defer func() {
		stopRenew()
		<-renewDone
		if err := releaseSyncLock(db, lock); err != nil {
			runLog.WithError(err).Warn("release catalog lock")
			return
		}
		runLog.Debug("catalog lock released")
	}()

	runLog.WithFields(logrus.Fields{
		"delete_missing": opts.DeleteMissing,
		"skip_images":    opts.SkipImages,
	}).Info("catalog sync started")

	syncErr := runCatalogSync(ctx, db, lock, opts, &report, runLog)
	report.FinishedAt = time.Now().UTC()
	if syncErr != nil {
		report.Created, report.Updated, report.Deleted = 0, 0, 0
	}
	if err := recordSyncRun(db, report, syncErr); err != nil {
		runLog.WithError(err).Warn("record catalog sync run")
	}
	metrics.RecordCatalogSync(metrics.SyncResult{
		Succeeded:        syncErr == nil,
		Created:          report.Created,
		Updated:          report.Updated,
		Deleted:          report.Deleted,
		ImagesDownloaded: report.ImagesDownloaded,
		ImagesFailed:     report.ImagesFailed,
		Duration:         report.FinishedAt.Sub(report.StartedAt),
	})

	if syncErr != nil {
		runLog.WithError(syncErr).Error("catalog sync failed")
		return report, syncErr
	}
	runLog.WithFields(logrus.Fields{
		"created":           report.Created,
		"updated":           report.Updated,
		"deleted":           report.Deleted,
		"skipped":           report.Skipped,
		"images_downloaded": report.ImagesDownloaded,
		"images_failed":     report.ImagesFailed,
	}).Info("catalog sync finished")
	return report, nil
}

func runCatalogSync(ctx context.Context, db *sql.DB, lock syncLock, opts SyncOptions, report *SyncReport, log *logrus.Entry) error {
	items, err := opts.Source.FetchExercises(ctx)
	if err != nil {
		return fmt.Errorf("fetch exercise dataset: %w", err)
	}

	existing, err := loadCatalogIndex(ctx, db)
	if err != nil {
		return err
	}

	pending := make(map[string]*model.CatalogExercise, len(items))
	isNew := make(map[string]bool, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		sourceID := string(item.ID)
		if sourceID == "" {
			sourceID = item.Name
		}
		if sourceID == "" {
			report.Skipped++
			continue
		}

		row, seen := pending[sourceID]
		if !seen {
			if old, ok := existing[sourceID]; ok {
				cp := old
				row = &cp
				report.Updated++
			} else {
				row = &model.CatalogExercise{SourceID: sourceID}
				isNew[sourceID] = true
				report.Created++
			}
			pending[sourceID] = row
			order = append(order, sourceID)
		}
		applyCatalogFields(row, item, opts.Source)
	}

	if err := downloadCatalogImages(ctx, opts, pending, order, report, log); err != nil {
		return err
	}

	toDelete := make([]string, 0)
	if opts.DeleteMissing {
		for sourceID := range existing {
			if _, ok := pending[sourceID]; !ok {
				toDelete = append(toDelete, sourceID)
			}
		}
		sort.Strings(toDelete)
	}
	report.Deleted = len(toDelete)

	return commitCatalog(ctx, db, lock, pending, isNew, order, toDelete)
}

func applyCatalogFields(row *model.CatalogExercise, item freeexercisedb.Exercise, src CatalogSource) {
	row.Name = item.Name
	if row.Name == "" {
		row.Name = row.SourceID
	}
	row.Force = optionalText(item.Force)
	row.Level = optionalText(item.Level)
	row.Mechanic = optionalText(item.Mechanic)
	row.Equipment = optionalText(item.Equipment)
	row.Category = optionalText(item.Category)
	row.PrimaryMuscles = FlattenList(item.PrimaryMuscles)
	row.SecondaryMuscles = FlattenList(item.SecondaryMuscles)
	row.Instructions = FlattenInstructions(item.Instructions)

	imageMain, imageSecondary := src.BuildImageURLs(item.Images, item.Equipment, row.Name)
	row.ImageMain = optionalText(imageMain)
	row.ImageSecondary = optionalText(imageSecondary)
	if row.ImageMain == nil {
		row.LocalImageMain = nil
	}
	if row.ImageSecondary == nil {
		row.LocalImageSecondary = nil
	}
}

type imageJob struct {
	row  *model.CatalogExercise
	slot string
	url  string
	file string
	err  error
}

func downloadCatalogImages(ctx context.Context, opts SyncOptions, pending map[string]*model.CatalogExercise, order []string, report *SyncReport, log *logrus.Entry) error {
	if opts.SkipImages {
		return nil
	}
	jobs := make([]*imageJob, 0)
	for _, sourceID := range order {
		row := pending[sourceID]
		safeName := SecureFilename(strings.ReplaceAll(strings.ToLower(row.Name), " ", "_"))
		if safeName == "" {
			safeName = SecureFilename(strings.ToLower(row.SourceID))
		}
		row.LocalImageMain = nil
		row.LocalImageSecondary = nil
		if safeName == "" {
			continue
		}
		if row.ImageMain != nil {
			jobs = append(jobs, &imageJob{row: row, slot: "main", url: *row.ImageMain, file: safeName + "_main.jpg"})
		}
		if row.ImageSecondary != nil {
			jobs = append(jobs, &imageJob{row: row, slot: "secondary", url: *row.ImageSecondary, file: safeName + "_secondary.jpg"})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	workers := opts.DownloadWorkers
	if workers < 1 {
		workers = defaultDownloadWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		g.Go(func() error {
			if opts.Limiter != nil {
				if err := opts.Limiter.Wait(gctx); err != nil {
					return fmt.Errorf("wait for download slot: %w", err)
				}
			}
			job.err = opts.Source.DownloadFile(gctx, job.url, filepath.Join(opts.ImageDir, job.file))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("download catalog images: %w", err)
	}

	for _, job := range jobs {
		if job.err != nil {
			report.ImagesFailed++
			log.WithFields(logrus.Fields{
				"source_id": job.row.SourceID,
				"url":       job.url,
				"file":      job.file,
			}).WithError(job.err).Warn("image download failed")
			continue
		}
		report.ImagesDownloaded++
		local := CatalogImagePrefix + "/" + job.file
		if job.slot == "main" {
			job.row.LocalImageMain = &local
		} else {
			job.row.LocalImageSecondary = &local
		}
	}
	return nil
}

func commitCatalog(ctx context.Context, db *sql.DB, lock syncLock, pending map[string]*model.CatalogExercise, isNew map[string]bool, order, toDelete []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The extension is the first write, so it also takes SQLite's write lock
	// for the rest of the transaction.
	held, err := extendSyncLock(ctx, tx, lock)
	if err != nil {
		return err
	}
	if !held {
		return ErrSyncLockLost
	}

	for _, sourceID := range order {
		row := pending[sourceID]
		args := []any{
			row.Name, textArg(row.Force), textArg(row.Level), textArg(row.Mechanic), textArg(row.Equipment),
			textArg(row.Category), textArg(row.PrimaryMuscles), textArg(row.SecondaryMuscles), textArg(row.Instructions),
			textArg(row.ImageMain), textArg(row.ImageSecondary), textArg(row.LocalImageMain), textArg(row.LocalImageSecondary),
			sourceID,
		}
		if isNew[sourceID] {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO exercise_catalog(name, force, level, mechanic, equipment, category, primary_muscles, secondary_muscles,
  instructions, image_main, image_secondary, local_image_main, local_image_secondary, source_id)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, args...); err != nil {
				return fmt.Errorf("insert catalog exercise %q: %w", sourceID, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE exercise_catalog
SET name = ?, force = ?, level = ?, mechanic = ?, equipment = ?, category = ?, primary_muscles = ?,
  secondary_muscles = ?, instructions = ?, image_main = ?, image_secondary = ?, local_image_main = ?,
  local_image_secondary = ?, updated_at = CURRENT_TIMESTAMP
WHERE source_id = ?
`, args...); err != nil {
			return fmt.Errorf("update catalog exercise %q: %w", sourceID, err)
		}
	}

	for _, sourceID := range toDelete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM exercise_catalog WHERE source_id = ?`, sourceID); err != nil {
			return fmt.Errorf("delete catalog exercise %q: %w", sourceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

func loadCatalogIndex(ctx context.Context, db *sql.DB) (map[string]model.CatalogExercise, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+catalogColumns+` FROM exercise_catalog`)
	if err != nil {
		return nil, fmt.Errorf("load catalog index: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.CatalogExercise)
	for rows.Next() {
		ex, err := scanCatalogExercise(rows)
		if err != nil {
			return nil, err
		}
		out[ex.SourceID] = ex
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog index: %w", err)
	}
	return out, nil
}

func recordSyncRun(db *sql.DB, report SyncReport, syncErr error) error {
	status := "succeeded"
	errText := ""
	if syncErr != nil {
		status = "failed"
		errText = syncErr.Error()
	}
	_, err := db.Exec(`
INSERT INTO catalog_sync_runs(id, status, created, updated, deleted, skipped, images_downloaded, images_failed, error, started_at, finished_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, report.RunID, status, report.Created, report.Updated, report.Deleted, report.Skipped,
		report.ImagesDownloaded, report.ImagesFailed, errText,
		formatTimestamp(report.StartedAt), formatTimestamp(report.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert catalog sync run: %w", err)
	}
	return nil
}

type syncLock struct {
	name  string
	owner string
	ttl   time.Duration
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// acquireSyncLock takes the named lock for owner unless a live lock is held
// by someone else. An expired lock is taken over.
func acquireSyncLock(ctx context.Context, db *sql.DB, lock syncLock) error {
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx, `
INSERT INTO sync_locks(name, owner, acquired_at, expires_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET owner = excluded.owner, acquired_at = excluded.acquired_at, expires_at = excluded.expires_at
WHERE sync_locks.expires_at <= excluded.acquired_at
`, lock.name, lock.owner, formatTimestamp(now), formatTimestamp(now.Add(lock.ttl)))
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", lock.name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", lock.name, err)
	}
	if affected == 0 {
		return ErrSyncInProgress
	}
	return nil
}

// extendSyncLock pushes the expiry of a live lock owned by lock.owner one TTL
// ahead. It reports false when the lock has expired or changed hands.
func extendSyncLock(ctx context.Context, ex execer, lock syncLock) (bool, error) {
	now := time.Now().UTC()
	res, err := ex.ExecContext(ctx, `
UPDATE sync_locks SET expires_at = ?
WHERE name = ? AND owner = ? AND expires_at > ?
`, formatTimestamp(now.Add(lock.ttl)), lock.name, lock.owner, formatTimestamp(now))
	if err != nil {
		return false, fmt.Errorf("extend %s lock: %w", lock.name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("extend %s lock: %w", lock.name, err)
	}
	return affected > 0, nil
}

// renewSyncLock extends the lock every third of its TTL until ctx is done or
// the lock is lost.
func renewSyncLock(ctx context.Context, db *sql.DB, lock syncLock, log *logrus.Entry) {
	interval := lock.ttl / 3
	if interval <= 0 {
		interval = lock.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := extendSyncLock(ctx, db, lock)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("renew catalog lock")
				continue
			}
			if !held {
				log.Warn("catalog lock lost")
				return
			}
			log.Debug("catalog lock renewed")
		}
	}
}

func releaseSyncLock(db *sql.DB, lock syncLock) error {
	if _, err := db.Exec(`DELETE FROM sync_locks WHERE name = ? AND owner = ?`, lock.name, lock.owner); err != nil {
		return fmt.Errorf("release %s lock: %w", lock.name, err)
	}
	return nil
}

// FlattenList trims each value, drops blanks and joins the rest with ", ".
// It returns nil when nothing is left.
func FlattenList(values []string) *string {
	return flattenJoin(values, ", ")
}

// FlattenInstructions is FlattenList joined by newlines.
func FlattenInstructions(values []string) *string {
	return flattenJoin(values, "\n")
}

func flattenJoin(values []string, sep string) *string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	out := strings.Join(cleaned, sep)
	return &out
}

// SecureFilename reduces name to a portable ASCII file name: accents are
// folded, whitespace runs become "_", anything outside [A-Za-z0-9_.-] is
// dropped and leading or trailing dots and underscores are trimmed.
func SecureFilename(name string) string {
	var ascii strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r <= unicode.MaxASCII {
			ascii.WriteRune(r)
		}
	}
	cleaned := strings.NewReplacer("/", " ", `\`, " ").Replace(ascii.String())
	cleaned = strings.Join(strings.Fields(cleaned), "_")

	var out strings.Builder
	for _, r := range cleaned {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			out.WriteRune(r)
		}
	}
	return strings.Trim(out.String(), "._")
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func textArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
