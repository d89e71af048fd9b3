package flex

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/service"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage workout templates and client assignments",
}

var (
	templateName        string
	templateDescription string
	templateTrainer     string
	templateExercise    string
	templateSets        int
	templateReps        int
	templateCatalogID   string
	templateClientID    int64
	templateJSON        bool
)

var templateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workout template",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.CreateWorkoutTemplate(sqldb, service.WorkoutTemplateInput{
				Name:        templateName,
				Description: templateDescription,
				Trainer:     templateTrainer,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created template %d\n", id)
			return nil
		})
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workout templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListWorkoutTemplates(sqldb, templateTrainer)
			if err != nil {
				return err
			}
			if templateJSON {
				return printJSON(cmd, "template list", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tTRAINER\tDESCRIPTION")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", it.ID, it.Name, it.Trainer, it.Description)
			}
			return nil
		})
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a template with its exercises",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("template id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			tmpl, err := service.GetWorkoutTemplate(sqldb, id)
			if err != nil {
				return err
			}
			if templateJSON {
				return printJSON(cmd, "template", tmpl)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %d: %s\n", tmpl.ID, tmpl.Name)
			if tmpl.Trainer != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Trainer: %s\n", tmpl.Trainer)
			}
			if tmpl.Description != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Description: %s\n", tmpl.Description)
			}
			for _, ex := range tmpl.Exercises {
				line := fmt.Sprintf("%d. %s %dx%d", ex.Position, ex.ExerciseName, ex.Sets, ex.Reps)
				if ex.CatalogSourceID != "" {
					line += " [" + ex.CatalogSourceID + "]"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		})
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workout template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("template id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteWorkoutTemplate(sqldb, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %d\n", id)
			return nil
		})
	},
}

var templateAddExerciseCmd = &cobra.Command{
	Use:   "add-exercise <template-id>",
	Short: "Append an exercise to a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("template id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			exID, err := service.AddTemplateExercise(sqldb, service.TemplateExerciseInput{
				TemplateID:      id,
				ExerciseName:    templateExercise,
				Sets:            templateSets,
				Reps:            templateReps,
				CatalogSourceID: templateCatalogID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added exercise %d to template %d\n", exID, id)
			return nil
		})
	},
}

var templateAssignCmd = &cobra.Command{
	Use:   "assign <template-id>",
	Short: "Assign a template to a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("template id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if _, err := service.AssignTemplate(sqldb, templateClientID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned template %d to client %d\n", id, templateClientID)
			return nil
		})
	},
}

var templateUnassignCmd = &cobra.Command{
	Use:   "unassign <template-id>",
	Short: "Remove a template from a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("template id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.UnassignTemplate(sqldb, templateClientID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unassigned template %d from client %d\n", id, templateClientID)
			return nil
		})
	},
}

var templateAssignmentsCmd = &cobra.Command{
	Use:   "assignments",
	Short: "List templates assigned to a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			if _, err := service.GetClient(sqldb, templateClientID); err != nil {
				return err
			}
			items, err := service.ListAssignments(sqldb, templateClientID)
			if err != nil {
				return err
			}
			if templateJSON {
				return printJSON(cmd, "assignments", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "TEMPLATE\tNAME\tASSIGNED")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", it.TemplateID, it.TemplateName, it.AssignedAt.Format("2006-01-02"))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateCreateCmd, templateListCmd, templateShowCmd, templateDeleteCmd, templateAddExerciseCmd, templateAssignCmd, templateUnassignCmd, templateAssignmentsCmd)

	templateCreateCmd.Flags().StringVar(&templateName, "name", "", "Template name")
	templateCreateCmd.Flags().StringVar(&templateDescription, "description", "", "Description")
	templateCreateCmd.Flags().StringVar(&templateTrainer, "trainer", "", "Owning trainer")
	_ = templateCreateCmd.MarkFlagRequired("name")
	templateListCmd.Flags().StringVar(&templateTrainer, "trainer", "", "Only this trainer's templates")
	templateListCmd.Flags().BoolVar(&templateJSON, "json", false, "Output JSON")
	templateShowCmd.Flags().BoolVar(&templateJSON, "json", false, "Output JSON")

	templateAddExerciseCmd.Flags().StringVar(&templateExercise, "name", "", "Exercise name (defaults to the catalog name)")
	templateAddExerciseCmd.Flags().IntVar(&templateSets, "sets", 3, "Sets")
	templateAddExerciseCmd.Flags().IntVar(&templateReps, "reps", 10, "Reps per set")
	templateAddExerciseCmd.Flags().StringVar(&templateCatalogID, "catalog", "", "Catalog source id")

	for _, c := range []*cobra.Command{templateAssignCmd, templateUnassignCmd, templateAssignmentsCmd} {
		c.Flags().Int64Var(&templateClientID, "client", 0, "Client id")
		_ = c.MarkFlagRequired("client")
	}
	templateAssignmentsCmd.Flags().BoolVar(&templateJSON, "json", false, "Output JSON")
}
