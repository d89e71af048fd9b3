package flex

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/model"
	"github.com/flexfitness/flex-cli/internal/service"
)

var foodCmd = &cobra.Command{
	Use:   "food",
	Short: "Manage the food reference table",
}

var (
	foodName        string
	foodCalories    float64
	foodProtein     float64
	foodCarbs       float64
	foodFats        float64
	foodServingSize float64
	foodServingUnit string
	foodSourceID    string
	foodQuery       string
	foodLimit       int
	foodJSON        bool
	measureGrams    float64
)

var foodAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a food",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := service.FoodInput{
			Name:        foodName,
			Calories:    optionalFloat(cmd, "calories", foodCalories),
			ProteinG:    optionalFloat(cmd, "protein", foodProtein),
			CarbsG:      optionalFloat(cmd, "carbs", foodCarbs),
			FatsG:       optionalFloat(cmd, "fats", foodFats),
			ServingSize: optionalFloat(cmd, "serving-size", foodServingSize),
			ServingUnit: foodServingUnit,
			SourceID:    foodSourceID,
		}
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.AddFood(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added food %d\n", id)
			return nil
		})
	},
}

var foodListCmd = &cobra.Command{
	Use:   "list",
	Short: "List foods",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListFoods(sqldb, service.ListFoodsFilter{Query: foodQuery, Limit: foodLimit})
			if err != nil {
				return err
			}
			if foodJSON {
				return printJSON(cmd, "food list", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tSERVING\tKCAL\tP\tC\tF")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s %s\t%s\t%s\t%s\t%s\n", it.ID, it.Name, formatOptional(it.ServingSize), it.ServingUnit, formatOptional(it.Calories), formatOptional(it.ProteinG), formatOptional(it.CarbsG), formatOptional(it.FatsG))
			}
			return nil
		})
	},
}

var foodShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a food and its measures",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("food id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			food, err := service.GetFood(sqldb, id)
			if err != nil {
				return err
			}
			measures, err := service.ListFoodMeasures(sqldb, id)
			if err != nil {
				return err
			}
			if foodJSON {
				return printJSON(cmd, "food", struct {
					model.Food
					Measures []model.FoodMeasure `json:"measures"`
				}{food, measures})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ID: %d\nName: %s\nServing: %s %s\n", food.ID, food.Name, formatOptional(food.ServingSize), food.ServingUnit)
			fmt.Fprintf(cmd.OutOrStdout(), "Calories: %s\nProtein: %sg\nCarbs: %sg\nFats: %sg\n", formatOptional(food.Calories), formatOptional(food.ProteinG), formatOptional(food.CarbsG), formatOptional(food.FatsG))
			if food.SourceID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Source: %s\n", food.SourceID)
			}
			for _, m := range measures {
				fmt.Fprintf(cmd.OutOrStdout(), "Measure: 1 %s = %.1fg\n", m.Name, m.Grams)
			}
			return nil
		})
	},
}

var foodUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a food",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("food id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			food, err := service.GetFood(sqldb, id)
			if err != nil {
				return err
			}
			in := service.UpdateFoodInput{ID: id, FoodInput: service.FoodInput{
				Name:        food.Name,
				Calories:    food.Calories,
				ProteinG:    food.ProteinG,
				CarbsG:      food.CarbsG,
				FatsG:       food.FatsG,
				ServingSize: food.ServingSize,
				ServingUnit: food.ServingUnit,
				SourceID:    food.SourceID,
			}}
			if cmd.Flags().Changed("name") {
				in.Name = foodName
			}
			if v := optionalFloat(cmd, "calories", foodCalories); v != nil {
				in.Calories = v
			}
			if v := optionalFloat(cmd, "protein", foodProtein); v != nil {
				in.ProteinG = v
			}
			if v := optionalFloat(cmd, "carbs", foodCarbs); v != nil {
				in.CarbsG = v
			}
			if v := optionalFloat(cmd, "fats", foodFats); v != nil {
				in.FatsG = v
			}
			if v := optionalFloat(cmd, "serving-size", foodServingSize); v != nil {
				in.ServingSize = v
			}
			if cmd.Flags().Changed("serving-unit") {
				in.ServingUnit = foodServingUnit
			}
			if cmd.Flags().Changed("source-id") {
				in.SourceID = foodSourceID
			}
			if err := service.UpdateFood(sqldb, in); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated food %d\n", id)
			return nil
		})
	},
}

var foodDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a food that has no log entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("food id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteFood(sqldb, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted food %d\n", id)
			return nil
		})
	},
}

var foodMeasureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Manage food-specific unit measures",
}

var foodMeasureSetCmd = &cobra.Command{
	Use:   "set <food-id> <unit>",
	Short: "Set grams per unit for one food",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("food id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.SetFoodMeasure(sqldb, id, args[1], measureGrams); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set measure %s = %.1fg for food %d\n", args[1], measureGrams, id)
			return nil
		})
	},
}

var foodMeasureListCmd = &cobra.Command{
	Use:   "list <food-id>",
	Short: "List measures of a food",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("food id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListFoodMeasures(sqldb, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "UNIT\tGRAMS")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.1f\n", it.Name, it.Grams)
			}
			return nil
		})
	},
}

var foodMeasureDeleteCmd = &cobra.Command{
	Use:   "delete <food-id> <unit>",
	Short: "Delete a measure of a food",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("food id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteFoodMeasure(sqldb, id, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted measure %s for food %d\n", args[1], id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(foodCmd)
	foodCmd.AddCommand(foodAddCmd, foodListCmd, foodShowCmd, foodUpdateCmd, foodDeleteCmd, foodMeasureCmd)
	foodMeasureCmd.AddCommand(foodMeasureSetCmd, foodMeasureListCmd, foodMeasureDeleteCmd)

	for _, c := range []*cobra.Command{foodAddCmd, foodUpdateCmd} {
		c.Flags().StringVar(&foodName, "name", "", "Food name")
		c.Flags().Float64Var(&foodCalories, "calories", 0, "Calories per serving")
		c.Flags().Float64Var(&foodProtein, "protein", 0, "Protein grams per serving")
		c.Flags().Float64Var(&foodCarbs, "carbs", 0, "Carb grams per serving")
		c.Flags().Float64Var(&foodFats, "fats", 0, "Fat grams per serving")
		c.Flags().Float64Var(&foodServingSize, "serving-size", 0, "Reference serving size (default 100)")
		c.Flags().StringVar(&foodServingUnit, "serving-unit", "g", "Reference serving unit")
		c.Flags().StringVar(&foodSourceID, "source-id", "", "External source identifier")
	}
	foodListCmd.Flags().StringVar(&foodQuery, "query", "", "Filter by name")
	foodListCmd.Flags().IntVar(&foodLimit, "limit", 50, "Max rows")
	foodListCmd.Flags().BoolVar(&foodJSON, "json", false, "Output JSON")
	foodShowCmd.Flags().BoolVar(&foodJSON, "json", false, "Output JSON")
	foodMeasureSetCmd.Flags().Float64Var(&measureGrams, "grams", 0, "Grams per one unit")
	_ = foodMeasureSetCmd.MarkFlagRequired("grams")
}
