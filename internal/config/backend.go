package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// settingsStore holds persisted settings keyed by dotted names such as
// "ollama.chat_model". Values keep their JSON types.
type settingsStore interface {
	lookup(key string) (any, bool)
	set(key string, val any) error
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "paris-data"
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "paris")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join("paris", "config.json")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "paris", "config.json")
}

// jsonSettings is a settingsStore backed by one flat JSON object on disk.
// An unreadable or malformed file reads as empty.
type jsonSettings struct {
	path   string
	values map[string]any
}

func openJSONSettings(path string) *jsonSettings {
	js := &jsonSettings{path: path, values: map[string]any{}}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Using default values.\n", path, err)
	default:
		if err := json.Unmarshal(raw, &js.values); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Using default values.\n", path, err)
			js.values = map[string]any{}
		}
	}
	return js
}

func (js *jsonSettings) lookup(key string) (any, bool) {
	v, ok := js.values[key]
	return v, ok
}

func (js *jsonSettings) set(key string, val any) error {
	js.values[key] = val
	if err := os.MkdirAll(filepath.Dir(js.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	out, err := json.MarshalIndent(js.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(js.path, out, 0o600)
}
