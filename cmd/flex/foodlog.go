package flex

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/service"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log food intake; nutrition is scaled when read",
}

var (
	logFoodID   int64
	logClientID int64
	logQuantity float64
	logUnit     string
	logDate     string
	logFromDate string
	logToDate   string
	logNotes    string
	logLimit    int
	logJSON     bool
)

var logAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log a quantity of a food",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := optionalClientID(logClientID)
		if err != nil {
			return err
		}
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			id, err := service.AddFoodLog(sqldb, service.FoodLogInput{
				FoodID:   logFoodID,
				ClientID: clientID,
				Quantity: logQuantity,
				Unit:     logUnit,
				LogDate:  logDate,
				Notes:    logNotes,
			})
			if err != nil {
				return err
			}
			food, err := service.GetFood(sqldb, logFoodID)
			if err != nil {
				return err
			}
			n := service.ComputeScaledNutrition(service.ScaleEntry{Quantity: logQuantity, Unit: logUnit}, food, service.NewMeasureLookup(sqldb), e.cfg.UnitTable())
			fmt.Fprintf(cmd.OutOrStdout(), "Logged entry %d: %.1f kcal (P %.1fg C %.1fg F %.1fg)\n", id, n.Calories, n.Protein, n.Carbs, n.Fats)
			warnAssumedUnit(cmd, n)
			return nil
		})
	},
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List log entries with scaled nutrition",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := optionalClientID(logClientID)
		if err != nil {
			return err
		}
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			items, err := service.ListFoodLogs(sqldb, service.ListFoodLogsFilter{
				Date:     logDate,
				FromDate: logFromDate,
				ToDate:   logToDate,
				ClientID: clientID,
				Limit:    logLimit,
			}, e.cfg.UnitTable())
			if err != nil {
				return err
			}
			if logJSON {
				return printJSON(cmd, "log list", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tDATE\tFOOD\tQTY\tKCAL\tP\tC\tF")
			for _, it := range items {
				unit := it.Unit
				if it.Nutrition.UnitSource == service.UnitSourceAssumed {
					unit += "?"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%g %s\t%.1f\t%.1f\t%.1f\t%.1f\n", it.ID, it.LogDate, it.FoodName, it.Quantity, unit, it.Nutrition.Calories, it.Nutrition.Protein, it.Nutrition.Carbs, it.Nutrition.Fats)
			}
			return nil
		})
	},
}

var logDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteFoodLog(sqldb, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted log entry %d\n", id)
			return nil
		})
	},
}

var logSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show nutrition totals for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := optionalClientID(logClientID)
		if err != nil {
			return err
		}
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			totals, err := service.DailyNutritionTotals(sqldb, logDate, clientID, e.cfg.UnitTable())
			if err != nil {
				return err
			}
			if logJSON {
				return printJSON(cmd, "log summary", totals)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Date: %s\nEntries: %d\n", totals.Date, totals.Entries)
			fmt.Fprintf(cmd.OutOrStdout(), "Calories: %.1f\nProtein: %.1fg\nCarbs: %.1fg\nFats: %.1fg\n", totals.Calories, totals.Protein, totals.Carbs, totals.Fats)
			if totals.AssumedUnits > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d entries use unknown units scaled as grams\n", totals.AssumedUnits)
			}
			return nil
		})
	},
}

func warnAssumedUnit(cmd *cobra.Command, n service.ScaledNutrition) {
	if n.UnitSource != service.UnitSourceAssumed {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: unit %q is not known; scaled as 1 g per unit\n", n.Unit)
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logAddCmd, logListCmd, logDeleteCmd, logSummaryCmd)

	logAddCmd.Flags().Int64Var(&logFoodID, "food", 0, "Food id")
	logAddCmd.Flags().Float64Var(&logQuantity, "qty", 0, "Quantity in --unit")
	logAddCmd.Flags().StringVar(&logUnit, "unit", "g", "Unit (g, cup, tbsp, a food measure, ...)")
	logAddCmd.Flags().StringVar(&logDate, "date", "", "Log date YYYY-MM-DD (default today)")
	logAddCmd.Flags().StringVar(&logNotes, "notes", "", "Notes")
	logAddCmd.Flags().Int64Var(&logClientID, "client", 0, "Client id")
	_ = logAddCmd.MarkFlagRequired("food")
	_ = logAddCmd.MarkFlagRequired("qty")

	logListCmd.Flags().StringVar(&logDate, "date", "", "Exact date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&logFromDate, "from", "", "From date YYYY-MM-DD")
	logListCmd.Flags().StringVar(&logToDate, "to", "", "To date YYYY-MM-DD")
	logListCmd.Flags().Int64Var(&logClientID, "client", 0, "Client id")
	logListCmd.Flags().IntVar(&logLimit, "limit", 100, "Max rows")
	logListCmd.Flags().BoolVar(&logJSON, "json", false, "Output JSON")

	logSummaryCmd.Flags().StringVar(&logDate, "date", "", "Date YYYY-MM-DD (default today)")
	logSummaryCmd.Flags().Int64Var(&logClientID, "client", 0, "Client id")
	logSummaryCmd.Flags().BoolVar(&logJSON, "json", false, "Output JSON")
}
