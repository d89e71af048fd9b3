package flex

import (
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only JSON API and Prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(sqldb *sql.DB, e env) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srv := server.New(sqldb, e.cfg.UnitTable(), e.log)
			return srv.ListenAndServe(ctx, serveAddr)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}
