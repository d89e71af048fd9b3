package flex

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flexfitness/flex-cli/internal/app"
	"github.com/flexfitness/flex-cli/internal/config"
	"github.com/flexfitness/flex-cli/internal/logging"
)

var (
	dbPath     string
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "flex",
	Short: "flex is a coaching toolkit for trainers",
	Long:  "flex tracks client nutrition, workout templates and progress, and keeps a local copy of the Free Exercise DB catalog.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error; append ,json for JSON output)")
}

// loadConfig resolves settings and applies the persistent flag overrides. An
// explicit --db also moves the default image directory next to it.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		if p, err := app.DefaultConfigPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		if cfg.ImageDir == config.Default().ImageDir {
			cfg.ImageDir = filepath.Join(filepath.Dir(dbPath), app.ImageDirName())
		}
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cfg.DBPath == "" {
		return config.Config{}, fmt.Errorf("database path could not be resolved; pass --db")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*logrus.Logger, error) {
	return logging.New(cfg.LogLevel, cmd.ErrOrStderr())
}
