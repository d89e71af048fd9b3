package flex

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/model"
	"github.com/flexfitness/flex-cli/internal/service"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage clients",
}

var (
	clientName    string
	clientEmail   string
	clientGender  string
	clientTrainer string
	clientJSON    bool
)

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			id, err := service.AddClient(sqldb, service.ClientInput{Name: clientName, Email: clientEmail, Gender: clientGender, Trainer: clientTrainer})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added client %d\n", id)
			return nil
		})
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			items, err := service.ListClients(sqldb, clientTrainer)
			if err != nil {
				return err
			}
			if clientJSON {
				return printJSON(cmd, "client list", items)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tNAME\tEMAIL\tTRAINER")
			for _, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", it.ID, it.Name, it.Email, it.Trainer)
			}
			return nil
		})
	},
}

var clientShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a client's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("client id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			c, err := service.ClientForTrainer(sqldb, id, clientTrainer)
			if err != nil {
				return err
			}
			if clientJSON {
				return printJSON(cmd, "client", c)
			}
			printClient(cmd, c)
			return nil
		})
	},
}

var clientUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Edit a client's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("client id", args[0])
		if err != nil {
			return err
		}
		var in service.ClientUpdate
		if cmd.Flags().Changed("name") {
			in.Name = &clientName
		}
		if cmd.Flags().Changed("email") {
			in.Email = &clientEmail
		}
		if cmd.Flags().Changed("gender") {
			in.Gender = &clientGender
		}
		return withDB(func(sqldb *sql.DB) error {
			c, err := service.UpdateClient(sqldb, id, clientTrainer, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated client %d\n", c.ID)
			printClient(cmd, c)
			return nil
		})
	},
}

var clientDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a client with their progress and assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("client id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteClient(sqldb, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted client %d\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(clientCmd)
	clientCmd.AddCommand(clientAddCmd, clientListCmd, clientShowCmd, clientUpdateCmd, clientDeleteCmd)

	for _, c := range []*cobra.Command{clientAddCmd, clientUpdateCmd} {
		c.Flags().StringVar(&clientName, "name", "", "Client name")
		c.Flags().StringVar(&clientEmail, "email", "", "Client email")
		c.Flags().StringVar(&clientGender, "gender", "", "Client gender")
	}
	clientAddCmd.Flags().StringVar(&clientTrainer, "trainer", "", "Trainer name")
	_ = clientAddCmd.MarkFlagRequired("name")
	clientListCmd.Flags().StringVar(&clientTrainer, "trainer", "", "Only this trainer's clients")
	clientShowCmd.Flags().StringVar(&clientTrainer, "trainer", "", "Require the client to belong to this trainer")
	clientUpdateCmd.Flags().StringVar(&clientTrainer, "trainer", "", "Require the client to belong to this trainer")
	clientListCmd.Flags().BoolVar(&clientJSON, "json", false, "Output JSON")
	clientShowCmd.Flags().BoolVar(&clientJSON, "json", false, "Output JSON")
}

func printClient(cmd *cobra.Command, c model.Client) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Client %d: %s\n", c.ID, c.Name)
	fmt.Fprintf(out, "Email: %s\n", c.Email)
	fmt.Fprintf(out, "Gender: %s\n", c.Gender)
	fmt.Fprintf(out, "Trainer: %s\n", c.Trainer)
	fmt.Fprintf(out, "Since: %s\n", c.CreatedAt.Format("2006-01-02"))
}
