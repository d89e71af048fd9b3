package flex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/flexfitness/flex-cli/internal/config"
	"github.com/flexfitness/flex-cli/internal/metrics"
	"github.com/flexfitness/flex-cli/internal/provider/freeexercisedb"
	"github.com/flexfitness/flex-cli/internal/service"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Sync and browse the local exercise catalog",
}

var (
	catalogNoDelete    bool
	catalogSkipImages  bool
	catalogMetricsFile string
	catalogSchedule    string
	catalogQuery       string
	catalogMuscle      string
	catalogEquipment   string
	catalogLevel       string
	catalogLimit       int
	catalogRunsLimit   int
	catalogJSON        bool
	catalogFix         bool
)

var catalogSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror the Free Exercise DB into the local catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			opts := catalogSyncOptions(e)
			if catalogSchedule != "" {
				return runScheduledCatalogSync(cmd, sqldb, opts, e)
			}
			return runCatalogSyncOnce(cmd.Context(), cmd, sqldb, opts)
		})
	},
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog exercises",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListCatalogExercises(sqldb, service.ListCatalogExercisesFilter{
				Query:     catalogQuery,
				Muscle:    catalogMuscle,
				Equipment: catalogEquipment,
				Level:     catalogLevel,
				Limit:     catalogLimit,
			})
			if err != nil {
				return err
			}
			if catalogJSON {
				return printJSON(cmd, "catalog list", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "SOURCE_ID\tNAME\tLEVEL\tEQUIPMENT\tPRIMARY")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", it.SourceID, it.Name, derefString(it.Level), derefString(it.Equipment), derefString(it.PrimaryMuscles))
			}
			return nil
		})
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <source-id>",
	Short: "Show one catalog exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			ex, err := service.GetCatalogExercise(sqldb, args[0])
			if err != nil {
				return err
			}
			if catalogJSON {
				return printJSON(cmd, "catalog exercise", ex)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source ID: %s\nName: %s\n", ex.SourceID, ex.Name)
			fmt.Fprintf(out, "Level: %s\nForce: %s\nMechanic: %s\nEquipment: %s\nCategory: %s\n", derefString(ex.Level), derefString(ex.Force), derefString(ex.Mechanic), derefString(ex.Equipment), derefString(ex.Category))
			fmt.Fprintf(out, "Primary muscles: %s\nSecondary muscles: %s\n", derefString(ex.PrimaryMuscles), derefString(ex.SecondaryMuscles))
			fmt.Fprintf(out, "Image: %s\nLocal image: %s\n", derefString(ex.ImageMain), derefString(ex.LocalImageMain))
			if ex.Instructions != nil {
				fmt.Fprintf(out, "Instructions:\n%s\n", *ex.Instructions)
			}
			return nil
		})
	},
}

var catalogRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent catalog sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			runs, err := service.ListCatalogSyncRuns(sqldb, catalogRunsLimit)
			if err != nil {
				return err
			}
			if catalogJSON {
				return printJSON(cmd, "catalog runs", runs)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "STARTED\tSTATUS\tCREATED\tUPDATED\tDELETED\tSKIPPED\tIMAGES\tERROR")
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%d\t%d\t%d\t%d/%d\t%s\n", r.StartedAt.Format(time.RFC3339), r.Status, r.Created, r.Updated, r.Deleted, r.Skipped, r.ImagesDownloaded, r.ImagesDownloaded+r.ImagesFailed, r.Error)
			}
			return nil
		})
	},
}

var catalogDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that downloaded catalog images still exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			report, err := service.CheckCatalogImages(sqldb, e.cfg.ImageDir, catalogFix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Images checked: %d\nMissing images: %d\n", report.Checked, len(report.Missing))
			for _, m := range report.Missing {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s): %s\n", m.SourceID, m.Slot, m.Path)
			}
			if catalogFix {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared image paths: %d\n", report.Cleared)
				return nil
			}
			if len(report.Missing) > 0 {
				return fmt.Errorf("catalog doctor found missing images; rerun with --fix or sync again")
			}
			return nil
		})
	},
}

func catalogSyncOptions(e env) service.SyncOptions {
	return service.SyncOptions{
		Source: &freeexercisedb.Client{
			DatasetURL:   e.cfg.DatasetURL,
			ImageBaseURL: e.cfg.ImageBaseURL,
			Timeout:      e.cfg.HTTPTimeout,
		},
		ImageDir:        e.cfg.ImageDir,
		DeleteMissing:   !catalogNoDelete,
		SkipImages:      catalogSkipImages,
		DownloadWorkers: e.cfg.DownloadWorkers,
		Limiter:         downloadLimiter(e.cfg),
		LockTTL:         e.cfg.LockTTL,
		Logger:          e.log,
	}
}

// downloadLimiter returns nil (unlimited) unless a positive rate is configured.
func downloadLimiter(cfg config.Config) *rate.Limiter {
	if cfg.DownloadsPerSecond <= 0 {
		return nil
	}
	burst := cfg.DownloadWorkers
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.DownloadsPerSecond), burst)
}

func runCatalogSyncOnce(ctx context.Context, cmd *cobra.Command, sqldb *sql.DB, opts service.SyncOptions) error {
	report, syncErr := service.SyncExerciseCatalog(ctx, sqldb, opts)
	if catalogMetricsFile != "" {
		if err := metrics.WriteTextfile(catalogMetricsFile); err != nil {
			return errors.Join(syncErr, err)
		}
	}
	if syncErr != nil {
		return syncErr
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exercises created: %d\n", report.Created)
	fmt.Fprintf(out, "Exercises updated: %d\n", report.Updated)
	if opts.DeleteMissing {
		fmt.Fprintf(out, "Exercises deleted: %d\n", report.Deleted)
	}
	if report.Skipped > 0 {
		fmt.Fprintf(out, "Records skipped: %d\n", report.Skipped)
	}
	if !opts.SkipImages && report.ImagesFailed > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d image downloads failed\n", report.ImagesFailed)
	}
	return nil
}

// runScheduledCatalogSync runs the sync on the cron spec until interrupted.
// A run still in progress when the next one is due is skipped.
func runScheduledCatalogSync(cmd *cobra.Command, sqldb *sql.DB, opts service.SyncOptions, e env) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := cron.PrintfLogger(e.log)
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	_, err := c.AddFunc(catalogSchedule, func() {
		if err := runCatalogSyncOnce(ctx, cmd, sqldb, opts); err != nil {
			if errors.Is(err, service.ErrSyncInProgress) {
				e.log.Warn("scheduled catalog sync skipped: lock held")
				return
			}
			e.log.WithError(err).Error("scheduled catalog sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid --schedule %q: %w", catalogSchedule, err)
	}
	e.log.WithField("schedule", catalogSchedule).Info("catalog sync scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	e.log.Info("catalog sync scheduler stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogSyncCmd, catalogListCmd, catalogShowCmd, catalogRunsCmd, catalogDoctorCmd)

	catalogSyncCmd.Flags().BoolVar(&catalogNoDelete, "no-delete", false, "Keep local exercises missing from the dataset")
	catalogSyncCmd.Flags().BoolVar(&catalogSkipImages, "skip-images", false, "Do not download images")
	catalogSyncCmd.Flags().StringVar(&catalogMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after each run")
	catalogSyncCmd.Flags().StringVar(&catalogSchedule, "schedule", "", "Cron spec (e.g. \"0 3 * * *\" or \"@daily\"); runs until interrupted")

	catalogListCmd.Flags().StringVar(&catalogQuery, "query", "", "Filter by name or source id")
	catalogListCmd.Flags().StringVar(&catalogMuscle, "muscle", "", "Filter by primary or secondary muscle")
	catalogListCmd.Flags().StringVar(&catalogEquipment, "equipment", "", "Filter by equipment")
	catalogListCmd.Flags().StringVar(&catalogLevel, "level", "", "Filter by level")
	catalogListCmd.Flags().IntVar(&catalogLimit, "limit", 50, "Max rows")
	catalogListCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output JSON")
	catalogShowCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output JSON")
	catalogRunsCmd.Flags().IntVar(&catalogRunsLimit, "limit", 10, "Max runs")
	catalogRunsCmd.Flags().BoolVar(&catalogJSON, "json", false, "Output JSON")
	catalogDoctorCmd.Flags().BoolVar(&catalogFix, "fix", false, "Clear local paths whose files are missing")
}
