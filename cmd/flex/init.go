package flex

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/app"
	"github.com/flexfitness/flex-cli/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize local flex database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.EnsureDBDir(cfg.DBPath); err != nil {
			return err
		}
		sqldb, err := db.OpenMigrated(cfg.DBPath)
		if err != nil {
			return err
		}
		defer sqldb.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized flex database at %s (schema v%d)\n", cfg.DBPath, db.LatestVersion())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
