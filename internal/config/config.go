package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server and client configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	GenAI   GenAIConfig   `yaml:"genai"`
	Session SessionConfig `yaml:"session"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	// TokenSecret signs session tokens. The default is only suitable
	// for local development.
	TokenSecret string        `yaml:"token_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
}

type GenAIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	// SnapshotPath is the fixed location of the persisted identity
	// snapshot shared by all clients on this machine.
	SnapshotPath string `yaml:"snapshot_path"`
	// BackendURL is the base URL of the auth/profile backend.
	BackendURL string `yaml:"backend_url"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "vbastudio.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			TokenSecret: "dev-only-secret",
			TokenTTL:    24 * time.Hour,
		},
		GenAI: GenAIConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-pro",
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{
			SnapshotPath: defaultSnapshotPath(),
			BackendURL:   "http://localhost:8080",
		},
	}

	if path := os.Getenv("VBASTUDIO_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("VBASTUDIO_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("VBASTUDIO_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid VBASTUDIO_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("VBASTUDIO_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("VBASTUDIO_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if secret := os.Getenv("VBASTUDIO_TOKEN_SECRET"); secret != "" {
		cfg.Auth.TokenSecret = secret
	}
	if baseURL := os.Getenv("VBASTUDIO_GENAI_BASE_URL"); baseURL != "" {
		cfg.GenAI.BaseURL = baseURL
	}
	if backendURL := os.Getenv("VBASTUDIO_BACKEND_URL"); backendURL != "" {
		cfg.Session.BackendURL = backendURL
	}
	if snapshotPath := os.Getenv("VBASTUDIO_SNAPSHOT_PATH"); snapshotPath != "" {
		cfg.Session.SnapshotPath = snapshotPath
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func defaultSnapshotPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vbastudio", "session.json")
	}
	return filepath.Join(home, ".vbastudio", "session.json")
}
