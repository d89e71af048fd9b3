package flex

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/service"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run data integrity checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			report, err := service.RunDoctor(sqldb, e.cfg.ImageDir, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Orphan food logs: %d\n", report.OrphanFoodLogs)
			fmt.Fprintf(out, "Dangling catalog references: %d\n", report.DanglingCatalogRefs)
			fmt.Fprintf(out, "Catalog images checked: %d\n", report.ImagesChecked)
			fmt.Fprintf(out, "Missing catalog images: %d\n", len(report.MissingImages))
			if doctorFix {
				fmt.Fprintf(out, "Removed food logs: %d\nCleared catalog references: %d\nCleared image paths: %d\n", report.RemovedFoodLogs, report.ClearedCatalogRefs, report.ClearedImages)
				// Re-check after fixes so exit status reflects final state.
				report, err = service.RunDoctor(sqldb, e.cfg.ImageDir, false)
				if err != nil {
					return err
				}
			}
			if report.OrphanFoodLogs > 0 || report.DanglingCatalogRefs > 0 || len(report.MissingImages) > 0 {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Attempt safe auto-fixes")
}
