package flex

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/service"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Track client body weight",
}

var (
	progressClientID int64
	progressTrainer  string
	progressWeight   float64
	progressUnit     string
	progressDate     string
	progressNotes    string
	progressLimit    int
	progressJSON     bool
)

var progressAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a weight for a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.AddProgress(sqldb, service.ProgressInput{
				ClientID:   progressClientID,
				Weight:     progressWeight,
				Unit:       progressUnit,
				RecordedOn: progressDate,
				Notes:      progressNotes,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded progress entry %d\n", id)
			return nil
		})
	},
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a client's progress entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListProgress(sqldb, progressClientID, progressTrainer, progressLimit)
			if err != nil {
				return err
			}
			if progressJSON {
				return printJSON(cmd, "progress list", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDATE\tWEIGHT_KG\tNOTES")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%.2f\t%s\n", it.ID, it.RecordedOn, it.WeightKg, it.Notes)
			}
			return nil
		})
	},
}

var progressDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one of a client's progress entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("progress id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteProgress(sqldb, progressClientID, progressTrainer, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted progress entry %d\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
	progressCmd.AddCommand(progressAddCmd, progressListCmd, progressDeleteCmd)

	for _, c := range []*cobra.Command{progressAddCmd, progressListCmd, progressDeleteCmd} {
		c.Flags().Int64Var(&progressClientID, "client", 0, "Client id")
		_ = c.MarkFlagRequired("client")
	}
	for _, c := range []*cobra.Command{progressListCmd, progressDeleteCmd} {
		c.Flags().StringVar(&progressTrainer, "trainer", "", "Require the client to belong to this trainer")
	}
	progressAddCmd.Flags().Float64Var(&progressWeight, "weight", 0, "Body weight")
	progressAddCmd.Flags().StringVar(&progressUnit, "unit", "kg", "Weight unit (kg|lb)")
	progressAddCmd.Flags().StringVar(&progressDate, "date", "", "Date YYYY-MM-DD (default today)")
	progressAddCmd.Flags().StringVar(&progressNotes, "notes", "", "Notes")
	_ = progressAddCmd.MarkFlagRequired("weight")
	progressListCmd.Flags().IntVar(&progressLimit, "limit", 50, "Max rows")
	progressListCmd.Flags().BoolVar(&progressJSON, "json", false, "Output JSON")
}
