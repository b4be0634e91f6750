package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds device-level settings. Values come from the YAML config
// file when present; environment variables fill anything the file leaves
// empty, and hard defaults cover the rest.
type Config struct {
	// DBPath is the local SQLite database location.
	DBPath string `yaml:"db_path"`

	// Owner scopes all remote data. Typically the authenticated user ID.
	Owner string `yaml:"owner"`

	// TranscribeCmd is an external speech-to-text command, e.g.
	// "whisper-cli --model small". It is run per voice note with the
	// recording path appended; empty disables transcription.
	TranscribeCmd string `yaml:"transcribe_cmd"`

	AWS AWSConfig `yaml:"aws"`
}

// AWSConfig names the remote backend resources.
type AWSConfig struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
	Table  string `yaml:"table"`
}

// DefaultConfigPath returns ~/.sitevar/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".sitevar", "config.yaml")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sitevar.db"
	}
	return filepath.Join(home, ".sitevar", "sitevar.db")
}

// LoadConfig reads the config file at path. A missing file is not an
// error; env vars and defaults still apply.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.DBPath == "" {
		cfg.DBPath = envOr("SITEVAR_DB", defaultDBPath())
	}
	if cfg.Owner == "" {
		cfg.Owner = os.Getenv("SITEVAR_OWNER")
	}
	if cfg.TranscribeCmd == "" {
		cfg.TranscribeCmd = os.Getenv("SITEVAR_TRANSCRIBE_CMD")
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = envOr("AWS_REGION", "us-east-1")
	}
	if cfg.AWS.Bucket == "" {
		cfg.AWS.Bucket = os.Getenv("SITEVAR_BUCKET")
	}
	if cfg.AWS.Table == "" {
		cfg.AWS.Table = os.Getenv("SITEVAR_TABLE")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// requireRemote validates the settings the sync path needs.
func (c Config) requireRemote() error {
	if c.Owner == "" {
		return errors.New("owner is not configured (set owner in config or SITEVAR_OWNER)")
	}
	if c.AWS.Bucket == "" {
		return errors.New("bucket is not configured (set aws.bucket in config or SITEVAR_BUCKET)")
	}
	if c.AWS.Table == "" {
		return errors.New("table is not configured (set aws.table in config or SITEVAR_TABLE)")
	}
	return nil
}
