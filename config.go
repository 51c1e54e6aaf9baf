package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config mirrors the optional JSON config file. Zero values mean "not set"
// and lose against flags and environment variables.
type Config struct {
	Depth   int      `json:"depth"`
	Workers int      `json:"workers"`
	Skip    []string `json:"skip"`
}

// resolveConfigPath picks the config file to use. An explicit path always
// wins; otherwise the first existing candidate is taken, checking the scan
// root before the user-level locations. The bool reports whether anything
// was found.
func resolveConfigPath(root, explicit string) (string, bool, error) {
	if explicit != "" {
		return explicit, true, nil
	}

	var candidates []string
	if root != "" {
		candidates = append(candidates, filepath.Join(root, ".nodekill.json"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "nodekill", "config.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "nodekill", "config.json"))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		return candidate, true, nil
	}
	return "", false, nil
}

// loadConfig reads and validates a config file.
func loadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Depth < 0 {
		return Config{}, fmt.Errorf("config %s: depth must be >= 0", path)
	}
	if cfg.Workers < 0 {
		return Config{}, fmt.Errorf("config %s: workers must be >= 0", path)
	}
	return cfg, nil
}

// mergeSkipDirs folds extra names into the skip set, ignoring blanks. The
// base map may be nil.
func mergeSkipDirs(base map[string]struct{}, extra []string) map[string]struct{} {
	merged := make(map[string]struct{}, len(base)+len(extra))
	for name := range base {
		merged[name] = struct{}{}
	}
	for _, name := range extra {
		if name = strings.TrimSpace(name); name != "" {
			merged[name] = struct{}{}
		}
	}
	return merged
}
