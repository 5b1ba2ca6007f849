package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitQuadmartDirCreatesStructure(t *testing.T) {
	home := t.TempDir()

	if err := InitQuadmartDir(home); err != nil {
		t.Fatalf("InitQuadmartDir: %v", err)
	}

	for _, rel := range []string{
		filepath.Join(QuadmartDir, "data"),
		filepath.Join(QuadmartDir, "logs"),
	} {
		info, err := os.Stat(filepath.Join(home, rel))
		if err != nil {
			t.Fatalf("expected %s to exist: %v", rel, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", rel)
		}
	}

	settings := filepath.Join(home, QuadmartDir, "config.yaml")
	if _, err := os.Stat(settings); err != nil {
		t.Fatalf("expected settings file: %v", err)
	}
}

func TestInitQuadmartDirKeepsExistingSettings(t *testing.T) {
	home := t.TempDir()
	if err := InitQuadmartDir(home); err != nil {
		t.Fatalf("InitQuadmartDir: %v", err)
	}

	path := filepath.Join(home, QuadmartDir, "config.yaml")
	custom := []byte("version: 1\nmarket:\n  return_window_days: 14\n")
	if err := os.WriteFile(path, custom, 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if err := InitQuadmartDir(home); err != nil {
		t.Fatalf("second InitQuadmartDir: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read settings: %v", err)
	}
	if string(data) != string(custom) {
		t.Fatalf("settings were overwritten")
	}
}

func TestNewLoadsDefaultsWhenSettingsMissing(t *testing.T) {
	home := t.TempDir()

	cfg, err := New(home)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := cfg.Settings.Market.ReturnWindowDays; got != 30 {
		t.Fatalf("expected 30 day return window, got %d", got)
	}
	if got := cfg.Settings.Market.ReviewRewardPoints; got != 5 {
		t.Fatalf("expected 5 review reward points, got %d", got)
	}
	if want := filepath.Join(home, QuadmartDir, "data"); cfg.DataDir() != want {
		t.Fatalf("expected data dir %s, got %s", want, cfg.DataDir())
	}
}

func TestNewParsesSettingsFile(t *testing.T) {
	home := t.TempDir()
	if err := InitQuadmartDir(home); err != nil {
		t.Fatalf("InitQuadmartDir: %v", err)
	}

	yaml := "version: 1\nmarket:\n  return_window_days: 14\n  review_reward_points: 10\n"
	path := filepath.Join(home, QuadmartDir, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	cfg, err := New(home)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := cfg.Settings.Market.ReturnWindowDays; got != 14 {
		t.Fatalf("expected 14 day return window, got %d", got)
	}
	if got := cfg.Settings.Market.ReviewRewardPoints; got != 10 {
		t.Fatalf("expected 10 review reward points, got %d", got)
	}
}

func TestNewRejectsEmptyHome(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty home directory")
	}
}
