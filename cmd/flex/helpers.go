package flex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/app"
	"github.com/flexfitness/flex-cli/internal/config"
	"github.com/flexfitness/flex-cli/internal/db"
)

// env is what a command needs besides the database.
type env struct {
	cfg config.Config
	log *logrus.Logger
}

func withDB(run func(*sql.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return openAndRun(cfg.DBPath, run)
}

func withEnv(cmd *cobra.Command, run func(*sql.DB, env) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	return openAndRun(cfg.DBPath, func(sqldb *sql.DB) error {
		return run(sqldb, env{cfg: cfg, log: log})
	})
}

func openAndRun(path string, run func(*sql.DB) error) error {
	if err := app.EnsureDBDir(path); err != nil {
		return err
	}
	sqldb, err := db.OpenMigrated(path)
	if err != nil {
		return err
	}
	defer sqldb.Close()
	return run(sqldb)
}

func parseInt64Arg(name, value string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0", name)
	}
	return v, nil
}

// optionalFloat returns nil unless the flag was set on cmd.
func optionalFloat(cmd *cobra.Command, name string, value float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v := value
	return &v
}

// optionalClientID returns nil when --client was not given.
func optionalClientID(id int64) (*int64, error) {
	if id == 0 {
		return nil, nil
	}
	if id < 0 {
		return nil, fmt.Errorf("client id must be > 0")
	}
	return &id, nil
}

func printJSON(cmd *cobra.Command, what string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s json: %w", what, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
