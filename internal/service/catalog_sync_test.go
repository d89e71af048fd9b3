package service_test

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/flexfitness/flex-cli/internal/provider/freeexercisedb"
	"github.com/flexfitness/flex-cli/internal/service"
)

type fakeSource struct {
	items    []freeexercisedb.Exercise
	fetchErr error
	failURLs map[string]bool

	mu        sync.Mutex
	downloads []string
}

func (f *fakeSource) FetchExercises(context.Context) ([]freeexercisedb.Exercise, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.items, nil
}

func (f *fakeSource) DownloadFile(_ context.Context, url, dest string) error {
	f.mu.Lock()
	f.downloads = append(f.downloads, url)
	f.mu.Unlock()
	if f.failURLs[url] {
		return errors.New("image request failed with status 404")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("jpg"), 0o644)
}

func (f *fakeSource) BuildImageURLs(images []string, equipment, name string) (string, string) {
	c := &freeexercisedb.Client{ImageBaseURL: "https://img.test"}
	return c.BuildImageURLs(images, equipment, name)
}

func pushUp() freeexercisedb.Exercise {
	return freeexercisedb.Exercise{
		ID:             "Push_Up",
		Name:           "Push Up",
		Force:          "push",
		Level:          "beginner",
		Equipment:      "body only",
		Category:       "strength",
		PrimaryMuscles: []string{"chest", " triceps ", ""},
		Instructions:   []string{" Get down. ", "", "Push up."},
		Images:         []string{"0.jpg", "1.jpg"},
	}
}

func barbellCurl() freeexercisedb.Exercise {
	return freeexercisedb.Exercise{
		ID:             "Barbell_Curl",
		Name:           "Barbell Curl",
		Level:          "beginner",
		Equipment:      "barbell",
		PrimaryMuscles: []string{"biceps"},
	}
}

func syncOptions(src service.CatalogSource, imageDir string) service.SyncOptions {
	return service.SyncOptions{
		Source:          src,
		ImageDir:        imageDir,
		DeleteMissing:   true,
		DownloadWorkers: 2,
	}
}

func TestSyncExerciseCatalogCreatesThenUpdates(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	imageDir := t.TempDir()
	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp(), barbellCurl()}}

	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, syncOptions(src, imageDir))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 2, report.ImagesDownloaded)
	assert.NotEmpty(t, report.RunID)

	ex, err := service.GetCatalogExercise(sqldb, "Push_Up")
	require.NoError(t, err)
	assert.Equal(t, "Push Up", ex.Name)
	require.NotNil(t, ex.PrimaryMuscles)
	assert.Equal(t, "chest, triceps", *ex.PrimaryMuscles)
	assert.Nil(t, ex.SecondaryMuscles)
	assert.Nil(t, ex.Mechanic)
	require.NotNil(t, ex.Instructions)
	assert.Equal(t, "Get down.\nPush up.", *ex.Instructions)
	require.NotNil(t, ex.ImageMain)
	assert.Equal(t, "https://img.test/body-only/Push_Up/0.jpg", *ex.ImageMain)
	require.NotNil(t, ex.LocalImageMain)
	assert.Equal(t, "exercise_images/push_up_main.jpg", *ex.LocalImageMain)
	require.NotNil(t, ex.LocalImageSecondary)
	assert.Equal(t, "exercise_images/push_up_secondary.jpg", *ex.LocalImageSecondary)
	assert.FileExists(t, filepath.Join(imageDir, "push_up_main.jpg"))

	curl, err := service.GetCatalogExercise(sqldb, "Barbell_Curl")
	require.NoError(t, err)
	assert.Nil(t, curl.ImageMain)
	assert.Nil(t, curl.LocalImageMain)

	report, err = service.SyncExerciseCatalog(context.Background(), sqldb, syncOptions(src, imageDir))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 0, report.Deleted)

	rows, err := service.ListCatalogExercises(sqldb, service.ListCatalogExercisesFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	runs, err := service.ListCatalogSyncRuns(sqldb, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, "succeeded", run.Status)
		assert.False(t, run.StartedAt.IsZero())
	}
}

func TestSyncExerciseCatalogDeletionToggle(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp(), barbellCurl()}}
	opts := syncOptions(src, "")
	opts.SkipImages = true

	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)

	src.items = []freeexercisedb.Exercise{pushUp()}
	opts.DeleteMissing = false
	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Deleted)
	_, err = service.GetCatalogExercise(sqldb, "Barbell_Curl")
	require.NoError(t, err)

	opts.DeleteMissing = true
	report, err = service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Updated)
	_, err = service.GetCatalogExercise(sqldb, "Barbell_Curl")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSyncExerciseCatalogSourceIDRules(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	first := pushUp()
	second := pushUp()
	second.Level = "intermediate"
	src := &fakeSource{items: []freeexercisedb.Exercise{
		first,
		second,
		{ID: "42", Name: "Numbered"},
		{Name: "Name Only"},
		{Level: "beginner"},
	}}
	opts := syncOptions(src, "")
	opts.SkipImages = true

	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Skipped)

	ex, err := service.GetCatalogExercise(sqldb, "Push_Up")
	require.NoError(t, err)
	require.NotNil(t, ex.Level)
	assert.Equal(t, "intermediate", *ex.Level)

	_, err = service.GetCatalogExercise(sqldb, "42")
	require.NoError(t, err)
	named, err := service.GetCatalogExercise(sqldb, "Name Only")
	require.NoError(t, err)
	assert.Equal(t, "Name Only", named.Name)
}

func TestSyncExerciseCatalogImageFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := &fakeSource{
		items:    []freeexercisedb.Exercise{pushUp()},
		failURLs: map[string]bool{"https://img.test/body-only/Push_Up/1.jpg": true},
	}
	opts := syncOptions(src, t.TempDir())
	opts.Limiter = rate.NewLimiter(rate.Inf, 1)

	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ImagesDownloaded)
	assert.Equal(t, 1, report.ImagesFailed)

	ex, err := service.GetCatalogExercise(sqldb, "Push_Up")
	require.NoError(t, err)
	assert.NotNil(t, ex.LocalImageMain)
	assert.Nil(t, ex.LocalImageSecondary)
	assert.NotNil(t, ex.ImageSecondary)
}

func TestSyncExerciseCatalogSkipImagesKeepsLocalPaths(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp()}}

	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, syncOptions(src, t.TempDir()))
	require.NoError(t, err)
	downloaded := len(src.downloads)

	opts := syncOptions(src, "")
	opts.SkipImages = true
	_, err = service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)
	assert.Len(t, src.downloads, downloaded)

	ex, err := service.GetCatalogExercise(sqldb, "Push_Up")
	require.NoError(t, err)
	assert.NotNil(t, ex.LocalImageMain)
}

func TestSyncExerciseCatalogUnexpectedPayloadAppliesNothing(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp()}}
	opts := syncOptions(src, "")
	opts.SkipImages = true
	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"exercises": []}`))
	}))
	defer ts.Close()

	opts.Source = &freeexercisedb.Client{DatasetURL: ts.URL, HTTPClient: ts.Client()}
	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.ErrorIs(t, err, freeexercisedb.ErrUnexpectedPayload)
	assert.Equal(t, 0, report.Deleted)

	_, err = service.GetCatalogExercise(sqldb, "Push_Up")
	require.NoError(t, err)

	runs, err := service.ListCatalogSyncRuns(sqldb, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Contains(t, runs[0].Error, "unexpected payload")
}

func TestSyncExerciseCatalogLock(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp()}}
	opts := syncOptions(src, "")
	opts.SkipImages = true

	_, err := sqldb.Exec(`INSERT INTO sync_locks(name, owner, acquired_at, expires_at) VALUES('catalog', 'other', '2000-01-01 00:00:00.000', '2999-01-01 00:00:00.000')`)
	require.NoError(t, err)

	_, err = service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.ErrorIs(t, err, service.ErrSyncInProgress)
	runs, err := service.ListCatalogSyncRuns(sqldb, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = sqldb.Exec(`UPDATE sync_locks SET expires_at = '2000-01-01 00:05:00.000' WHERE name = 'catalog'`)
	require.NoError(t, err)

	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	var locks int
	require.NoError(t, sqldb.QueryRow(`SELECT COUNT(1) FROM sync_locks`).Scan(&locks))
	assert.Equal(t, 0, locks)
}

// slowSource delays every download and signals when the first one starts.
type slowSource struct {
	*fakeSource
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func newSlowSource(delay time.Duration, items ...freeexercisedb.Exercise) *slowSource {
	return &slowSource{fakeSource: &fakeSource{items: items}, delay: delay, started: make(chan struct{})}
}

func (s *slowSource) DownloadFile(ctx context.Context, url, dest string) error {
	s.once.Do(func() { close(s.started) })
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.fakeSource.DownloadFile(ctx, url, dest)
}

type syncResult struct {
	report service.SyncReport
	err    error
}

func startSync(sqldb *sql.DB, opts service.SyncOptions) <-chan syncResult {
	done := make(chan syncResult, 1)
	go func() {
		report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
		done <- syncResult{report: report, err: err}
	}()
	return done
}

func waitStarted(t *testing.T, src *slowSource) {
	t.Helper()
	select {
	case <-src.started:
	case <-time.After(5 * time.Second):
		t.Fatal("sync never started downloading")
	}
}

func TestSyncExerciseCatalogLockOutlivesTTLWhileRunning(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := newSlowSource(400*time.Millisecond, pushUp())
	opts := syncOptions(src, t.TempDir())
	opts.DownloadWorkers = 1
	opts.LockTTL = 150 * time.Millisecond

	first := startSync(sqldb, opts)
	waitStarted(t, src)
	time.Sleep(2 * opts.LockTTL)

	second := syncOptions(&fakeSource{items: []freeexercisedb.Exercise{pushUp()}}, "")
	second.SkipImages = true
	second.LockTTL = opts.LockTTL
	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, second)
	require.ErrorIs(t, err, service.ErrSyncInProgress)

	res := <-first
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.report.Created)
	assert.Equal(t, 2, res.report.ImagesDownloaded)

	runs, err := service.ListCatalogSyncRuns(sqldb, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "succeeded", runs[0].Status)
}

func TestSyncExerciseCatalogStolenLockAppliesNothing(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	src := newSlowSource(300*time.Millisecond, pushUp())
	opts := syncOptions(src, t.TempDir())
	opts.DownloadWorkers = 1
	opts.LockTTL = time.Minute

	done := startSync(sqldb, opts)
	waitStarted(t, src)
	_, err := sqldb.Exec(`UPDATE sync_locks SET owner = 'other' WHERE name = 'catalog'`)
	require.NoError(t, err)

	res := <-done
	require.ErrorIs(t, res.err, service.ErrSyncLockLost)
	_, err = service.GetCatalogExercise(sqldb, "Push_Up")
	assert.ErrorIs(t, err, service.ErrNotFound)

	var owner string
	require.NoError(t, sqldb.QueryRow(`SELECT owner FROM sync_locks WHERE name = 'catalog'`).Scan(&owner))
	assert.Equal(t, "other", owner)
}

func TestSyncExerciseCatalogRequiresImageDir(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, syncOptions(&fakeSource{}, ""))
	require.Error(t, err)
}

var catalogMockColumns = []string{
	"id", "source_id", "name", "force", "level", "mechanic", "equipment", "category",
	"primary_muscles", "secondary_muscles", "instructions", "image_main", "image_secondary",
	"local_image_main", "local_image_secondary", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb, mock
}

func TestSyncExerciseCatalogRollsBackOnWriteFailure(t *testing.T) {
	t.Parallel()
	sqldb, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM exercise_catalog").WillReturnRows(sqlmock.NewRows(catalogMockColumns))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO exercise_catalog").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO exercise_catalog").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO catalog_sync_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))

	src := &fakeSource{items: []freeexercisedb.Exercise{pushUp(), barbellCurl()}}
	opts := syncOptions(src, "")
	opts.SkipImages = true

	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, 0, report.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncExerciseCatalogCommitFailure(t *testing.T) {
	t.Parallel()
	sqldb, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM exercise_catalog").WillReturnRows(sqlmock.NewRows(catalogMockColumns))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO exercise_catalog").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("INSERT INTO catalog_sync_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))

	opts := syncOptions(&fakeSource{items: []freeexercisedb.Exercise{pushUp()}}, "")
	opts.SkipImages = true

	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit catalog tx")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncExerciseCatalogLockLostBeforeCommit(t *testing.T) {
	t.Parallel()
	sqldb, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .+ FROM exercise_catalog").WillReturnRows(sqlmock.NewRows(catalogMockColumns))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sync_locks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO catalog_sync_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sync_locks").WillReturnResult(sqlmock.NewResult(0, 0))

	opts := syncOptions(&fakeSource{items: []freeexercisedb.Exercise{pushUp()}}, "")
	opts.SkipImages = true

	report, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.ErrorIs(t, err, service.ErrSyncLockLost)
	assert.Equal(t, 0, report.Created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncExerciseCatalogFetchFailureTouchesNoRows(t *testing.T) {
	t.Parallel()
	sqldb, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO catalog_sync_runs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sync_locks").WillReturnResult(sqlmock.NewResult(0, 1))

	fetchErr := errors.New("connection refused")
	opts := syncOptions(&fakeSource{fetchErr: fetchErr}, "")
	opts.SkipImages = true

	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.ErrorIs(t, err, fetchErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncExerciseCatalogLockHeldRunsNothingElse(t *testing.T) {
	t.Parallel()
	sqldb, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO sync_locks").WillReturnResult(sqlmock.NewResult(0, 0))

	opts := syncOptions(&fakeSource{items: []freeexercisedb.Exercise{pushUp()}}, "")
	opts.SkipImages = true
	opts.LockTTL = time.Minute

	_, err := service.SyncExerciseCatalog(context.Background(), sqldb, opts)
	require.ErrorIs(t, err, service.ErrSyncInProgress)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFlattenHelpers(t *testing.T) {
	t.Parallel()
	got := service.FlattenList([]string{"chest", " triceps ", "  "})
	require.NotNil(t, got)
	assert.Equal(t, "chest, triceps", *got)
	assert.Nil(t, service.FlattenList(nil))
	assert.Nil(t, service.FlattenList([]string{" ", ""}))

	steps := service.FlattenInstructions([]string{"a", " b "})
	require.NotNil(t, steps)
	assert.Equal(t, "a\nb", *steps)
}

func TestSecureFilename(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"push_up":                "push_up",
		"3/4_sit-up":             "3_4_sit-up",
		"_.hidden._":             "hidden",
		"café_crème":             "cafe_creme",
		"../../etc/passwd":       "etc_passwd",
		"dumbbell_(alternating)": "dumbbell_alternating",
		"  spaced   name ":       "spaced_name",
	}
	for in, want := range cases {
		assert.Equal(t, want, service.SecureFilename(in), in)
	}
}
