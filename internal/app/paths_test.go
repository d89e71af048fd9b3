package app

import (
	"path/filepath"
	"testing"
)

func TestDefaultPathsShareAppDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	dbPath, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("db path: %v", err)
	}
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	imgDir, err := DefaultImageDir()
	if err != nil {
		t.Fatalf("image dir: %v", err)
	}
	if filepath.Dir(dbPath) != filepath.Dir(cfgPath) || filepath.Dir(dbPath) != filepath.Dir(imgDir) {
		t.Fatalf("expected shared dir, got %s %s %s", dbPath, cfgPath, imgDir)
	}
	if filepath.Base(imgDir) != ImageDirName() {
		t.Fatalf("unexpected image dir %s", imgDir)
	}
}

func TestEnsureDBDirCreatesParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "flex.db")
	if err := EnsureDBDir(path); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if err := EnsureDBDir(path); err != nil {
		t.Fatalf("ensure dir twice: %v", err)
	}
}
