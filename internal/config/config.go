// Package config loads the optional TOML configuration file these tools
// read at startup: per-repository settings at $GIT_DIR/gitq.toml, falling
// back to a per-user default at ~/.config/gitq/config.toml. Absence of
// either file is not an error — every field has a documented zero-value
// behavior.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the small set of user-overridable knobs these tools
// support.
type Config struct {
	// Editor overrides $GIT_EDITOR/$EDITOR for the squash/fixup
	// commit-message editor.
	Editor string `toml:"editor"`
	// DefaultRemote is read from the config file but not consulted
	// anywhere: queue.RefreshBaseline re-resolves a baseline with no
	// recorded remote from its local ref only.
	DefaultRemote string `toml:"default_remote"`
	// QueueFile overrides the ".git-queue" filename.
	QueueFile string `toml:"queue_file"`
	// NoTUI forces the plain-text progress renderer even when stdout is
	// a terminal.
	NoTUI bool `toml:"no_tui"`
}

// Load checks gitDir/gitq.toml, then ~/.config/gitq/config.toml, loading
// the first one found. It returns a zero-value Config, not an error, if
// neither exists.
func Load(gitDir string) (*Config, error) {
	candidates := []string{filepath.Join(gitDir, "gitq.toml")}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "gitq", "config.toml"))
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var c Config
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return &c, nil
	}
	return &Config{}, nil
}

// ResolveEditor resolves the commit-message editor to use: the config's
// Editor if set, else $GIT_EDITOR, else $EDITOR, else "vi".
func (c *Config) ResolveEditor() string {
	if c != nil && c.Editor != "" {
		return c.Editor
	}
	if e := os.Getenv("GIT_EDITOR"); e != "" {
		return e
	}
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	return "vi"
}
