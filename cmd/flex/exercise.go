package flex

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/provider/apininjas"
)

var exerciseCmd = &cobra.Command{
	Use:   "exercise",
	Short: "Look up exercises from API Ninjas",
}

var (
	exerciseMuscle string
	exerciseAPIKey string
	exerciseJSON   bool
)

var exerciseSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search exercises by muscle group",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		key := strings.TrimSpace(exerciseAPIKey)
		if key == "" {
			key = cfg.APINinjasKey
		}
		if key == "" {
			return fmt.Errorf("missing API Ninjas key (set API_NINJAS_KEY or pass --api-key)")
		}
		client := &apininjas.Client{APIKey: key, BaseURL: cfg.APINinjasBaseURL}
		items, err := client.SearchExercises(cmd.Context(), exerciseMuscle)
		if err != nil {
			return err
		}
		if exerciseJSON {
			return printJSON(cmd, "exercise search", items)
		}
		if len(items) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No exercises found for %s\n", exerciseMuscle)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "NAME\tTYPE\tEQUIPMENT\tDIFFICULTY")
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", it.Name, it.Type, it.Equipment, it.Difficulty)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exerciseCmd)
	exerciseCmd.AddCommand(exerciseSearchCmd)

	exerciseSearchCmd.Flags().StringVar(&exerciseMuscle, "muscle", "", "Muscle group (e.g. biceps, chest)")
	exerciseSearchCmd.Flags().StringVar(&exerciseAPIKey, "api-key", "", "API Ninjas key (overrides API_NINJAS_KEY)")
	exerciseSearchCmd.Flags().BoolVar(&exerciseJSON, "json", false, "Output JSON")
	_ = exerciseSearchCmd.MarkFlagRequired("muscle")
}
