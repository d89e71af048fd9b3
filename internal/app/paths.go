package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	appDirName     = "flex"
	dbFileName     = "flex.db"
	configFileName = "config.yaml"
	imageDirName   = "exercise_images"
)

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, appDirName), nil
}

func DefaultDBPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFileName), nil
}

func DefaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// DefaultImageDir is where downloaded catalog images live. Stored paths are
// relative to its parent, e.g. "exercise_images/barbell_curl_main.jpg".
func DefaultImageDir() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, imageDirName), nil
}

// ImageDirName is the path prefix stored for downloaded catalog images.
func ImageDirName() string {
	return imageDirName
}

func EnsureDBDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	return nil
}
