package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/waystation-dev/gitq/internal/config"
)

func TestLoadMissingReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	c, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Editor != "" || c.NoTUI {
		t.Fatalf("expected zero-value Config, got %+v", c)
	}
}

func TestLoadReadsGitDirConfig(t *testing.T) {
	dir := t.TempDir()
	content := "editor = \"nano\"\ndefault_remote = \"origin\"\nno_tui = true\n"
	if err := os.WriteFile(filepath.Join(dir, "gitq.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Editor != "nano" || c.DefaultRemote != "origin" || !c.NoTUI {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestEditorFallsBackToEnv(t *testing.T) {
	c := &config.Config{}
	t.Setenv("GIT_EDITOR", "")
	t.Setenv("EDITOR", "emacs")
	if got := c.ResolveEditor(); got != "emacs" {
		t.Errorf("ResolveEditor() = %q, want emacs", got)
	}
}
