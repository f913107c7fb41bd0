package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	cfg, err := loadWith(openJSONSettings(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "mistral" {
		t.Errorf("Ollama.ChatModel = %q, want mistral", cfg.Ollama.ChatModel)
	}
	if d, _ := cfg.Ollama.TimeoutDuration(); d != 60*time.Second {
		t.Errorf("Ollama timeout = %v, want 60s", d)
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Session.Mode != ModeServer {
		t.Errorf("Session.Mode = %q, want server", cfg.Session.Mode)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if got := cfg.Server.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", got)
	}
}

// TestFileParsing verifies that all fields are correctly read from the JSON file.
func TestFileParsing(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server.port": 8080,
  "server.cors_origins": "http://localhost:3000, https://paris.example",
  "ollama.base_url": "http://gpu-box:11434",
  "ollama.chat_model": "mistral-nemo",
  "ollama.timeout": "2m",
  "ollama.temperature": "0.4",
  "storage.backend": "file",
  "storage.data_dir": "/tmp/paris-test",
  "session.mode": "stateless",
  "log.level": "debug"
}`)

	cfg, err := loadWith(openJSONSettings(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if got := cfg.Server.AllowedOrigins(); len(got) != 2 || got[1] != "https://paris.example" {
		t.Errorf("AllowedOrigins = %v", got)
	}
	if cfg.Ollama.BaseURL != "http://gpu-box:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "mistral-nemo" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if d, _ := cfg.Ollama.TimeoutDuration(); d != 2*time.Minute {
		t.Errorf("timeout = %v", d)
	}
	if cfg.Ollama.Temperature != 0.4 {
		t.Errorf("Ollama.Temperature = %v", cfg.Ollama.Temperature)
	}
	if cfg.Storage.Backend != BackendFile || cfg.Storage.DataDir != "/tmp/paris-test" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Session.Mode != ModeStateless {
		t.Errorf("Session.Mode = %q", cfg.Session.Mode)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"ollama.chat_model": "file-model", "server.port": 6000}`)

	t.Setenv("PARIS_OLLAMA_CHAT_MODEL", "env-model")
	t.Setenv("PARIS_SERVER_PORT", "7000")
	t.Setenv("PARIS_STORAGE_BACKEND", "memory")

	cfg, err := loadWith(openJSONSettings(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.ChatModel != "env-model" {
		t.Errorf("ChatModel = %q, want env-model", cfg.Ollama.ChatModel)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Storage.Backend != BackendMemory {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
}

func TestInvalidEnvIntKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARIS_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(openJSONSettings(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Port = %d, want default 5000", cfg.Server.Port)
	}
}

func TestCorruptFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{not json`)

	cfg, err := loadWith(openJSONSettings(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.ChatModel != "mistral" {
		t.Errorf("ChatModel = %q, want default", cfg.Ollama.ChatModel)
	}
}

func TestMistypedFileValueFailsLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{"quoted port", `{"server.port": "5000"}`, "server.port"},
		{"fractional port", `{"server.port": 50.5}`, "server.port"},
		{"numeric mode", `{"session.mode": 3}`, "session.mode"},
		{"bool temperature", `{"ollama.temperature": true}`, "ollama.temperature"},
		{"word temperature", `{"ollama.temperature": "warm"}`, "ollama.temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadWith(openJSONSettings(writeTempConfig(t, tt.content)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error = %q, want it to mention %q", err, tt.key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend"},
		{"bad mode", func(c *Config) { c.Session.Mode = "hybrid" }, "session.mode"},
		{"bad timeout", func(c *Config) { c.Ollama.Timeout = "soon" }, "ollama.timeout"},
		{"negative timeout", func(c *Config) { c.Ollama.Timeout = "-1s" }, "ollama.timeout"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty model", func(c *Config) { c.Ollama.ChatModel = "" }, "ollama.chat_model"},
		{"negative temperature", func(c *Config) { c.Ollama.Temperature = -0.5 }, "ollama.temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}

	if err := defaults().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paris", "config.json")
	b := openJSONSettings(path)

	if err := setKey(b, "server.port", "9000"); err != nil {
		t.Fatalf("setKey port: %v", err)
	}
	if err := setKey(b, "ollama.temperature", "0.2"); err != nil {
		t.Fatalf("setKey temperature: %v", err)
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "ollama.temperature", "warm"); err == nil {
		t.Error("expected error for non-float temperature")
	}
	if err := setKey(b, "nope.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	clearEnv(t)
	cfg, err := loadWith(openJSONSettings(path))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ollama.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", cfg.Ollama.Temperature)
	}
}

func TestSetKeyUsesXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := SetKey("session.mode", "stateless"); err != nil {
		t.Fatalf("SetKey: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "paris", "config.json"))
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if !strings.Contains(string(data), `"session.mode": "stateless"`) {
		t.Errorf("config file = %s", data)
	}
}

func TestShowAllCoversValidKeys(t *testing.T) {
	infos := ShowAll(defaults())
	keys := ValidKeys()
	if len(infos) != len(keys) {
		t.Fatalf("ShowAll = %d entries, ValidKeys = %d", len(infos), len(keys))
	}
	for i, info := range infos {
		if info.Key != keys[i] {
			t.Errorf("entry %d key = %q, want %q", i, info.Key, keys[i])
		}
		if !strings.HasPrefix(info.EnvVar, "PARIS_") {
			t.Errorf("%s env = %q", info.Key, info.EnvVar)
		}
	}
}
