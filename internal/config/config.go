package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Ollama  OllamaConfig
	Storage StorageConfig
	Session SessionConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port        int
	CORSOrigins string
}

type OllamaConfig struct {
	BaseURL     string
	ChatModel   string
	Timeout     string
	Temperature float64
}

type StorageConfig struct {
	Backend string
	DataDir string
}

type SessionConfig struct {
	Mode string
}

type LogConfig struct {
	Level string
}

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Session modes.
const (
	ModeServer    = "server"
	ModeStateless = "stateless"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:        5000,
			CORSOrigins: "*",
		},
		Ollama: OllamaConfig{
			BaseURL:   "http://localhost:11434",
			ChatModel: "mistral",
			Timeout:   "60s",
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			Mode: ModeServer,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/paris/config.json and applies PARIS_* environment
// overrides on top of it.
func Load() (Config, error) {
	return loadWith(openJSONSettings(configFilePath()))
}

func loadWith(st settingsStore) (Config, error) {
	cfg := defaults()

	if err := applySettings(&cfg, st); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid value in cfg.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		return fmt.Errorf("invalid config: storage.backend %q (want sqlite, file or memory)", c.Storage.Backend)
	}
	switch c.Session.Mode {
	case ModeServer, ModeStateless:
	default:
		return fmt.Errorf("invalid config: session.mode %q (want server or stateless)", c.Session.Mode)
	}
	if _, err := c.Ollama.TimeoutDuration(); err != nil {
		return err
	}
	if c.Ollama.Temperature < 0 {
		return fmt.Errorf("invalid config: ollama.temperature %v is negative", c.Ollama.Temperature)
	}
	if c.Ollama.ChatModel == "" {
		return fmt.Errorf("invalid config: ollama.chat_model is empty")
	}
	return nil
}

// TimeoutDuration parses the model call timeout. Zero disables it.
func (o OllamaConfig) TimeoutDuration() (time.Duration, error) {
	if o.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(o.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid config: ollama.timeout %q: %w", o.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid config: ollama.timeout %q is negative", o.Timeout)
	}
	return d, nil
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (s ServerConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(s.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
