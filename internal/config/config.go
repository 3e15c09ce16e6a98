// Package config loads, validates, and persists the YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"casgate/internal/constants"
	"casgate/internal/logger"
)

// AuthConfig holds user-configurable capability settings.
type AuthConfig struct {
	// BootstrapSecret signs/verifies the HS256 bootstrap identity JWT.
	// Overridable via CASGATE_BOOTSTRAP_SECRET.
	BootstrapSecret string `yaml:"bootstrap_secret"`
	// AdminSubjects are identity subjects seeded with the admin role.
	AdminSubjects []string `yaml:"admin_subjects"`
	// AccessTokenTTLMins is the access-token lifetime in minutes.
	AccessTokenTTLMins int `yaml:"access_token_ttl_mins"`
}

// AccessTokenTTL returns the access-token lifetime as a duration.
func (c *AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMins) * time.Minute
}

// AuditConfig holds user-configurable audit log settings.
type AuditConfig struct {
	MaxLogSizeBytes int64 `yaml:"max_log_size_bytes"`
	PurgePercentage int   `yaml:"purge_percentage"`
}

// Config holds all application configuration.
type Config struct {
	DataDirectory string      `yaml:"data_directory"`
	Port          int         `yaml:"port"`
	LogLevel      string      `yaml:"log_level"`
	Auth          AuthConfig  `yaml:"auth"`
	Audit         AuditConfig `yaml:"audit"`
}

// ApplyDefaults fills zero-valued fields with constant defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = constants.DefaultDataDir
	}
	if cfg.Port == 0 {
		cfg.Port = constants.DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = constants.DefaultLogLevel
	}
	if cfg.Auth.AccessTokenTTLMins == 0 {
		cfg.Auth.AccessTokenTTLMins = int(constants.AccessTokenTTL.Minutes())
	}
	if cfg.Audit.MaxLogSizeBytes == 0 {
		cfg.Audit.MaxLogSizeBytes = 64 * 1024 * 1024
	}
	if cfg.Audit.PurgePercentage == 0 {
		cfg.Audit.PurgePercentage = 20
	}
}

// ApplyEnv overrides secrets from the environment (loaded via godotenv in cmd).
func (cfg *Config) ApplyEnv() {
	if secret := os.Getenv("CASGATE_BOOTSTRAP_SECRET"); secret != "" {
		cfg.Auth.BootstrapSecret = secret
	}
	if dir := os.Getenv("CASGATE_DATA_DIR"); dir != "" {
		cfg.DataDirectory = dir
	}
}

// validate checks that all configurable values are within acceptable ranges.
func (cfg *Config) validate() error {
	var errs []string

	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if cfg.Auth.AccessTokenTTLMins < 1 {
		errs = append(errs, "auth.access_token_ttl_mins must be >= 1")
	}
	if cfg.Audit.MaxLogSizeBytes < 1048576 {
		errs = append(errs, "audit.max_log_size_bytes must be >= 1048576 (1MB)")
	}
	if cfg.Audit.PurgePercentage < 1 || cfg.Audit.PurgePercentage > 100 {
		errs = append(errs, "audit.purge_percentage must be between 1 and 100")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogEffectiveValues logs all effective configuration values at startup.
// The bootstrap secret is never logged.
func (cfg *Config) LogEffectiveValues(log *logger.Logger) {
	log.Info("config: port=%d", cfg.Port)
	log.Info("config: data_directory=%s", cfg.DataDirectory)
	log.Info("config: log_level=%s", cfg.LogLevel)
	log.Info("config: auth.access_token_ttl_mins=%d", cfg.Auth.AccessTokenTTLMins)
	log.Info("config: auth.admin_subjects=%d entries", len(cfg.Auth.AdminSubjects))
	log.Info("config: audit.max_log_size_bytes=%d", cfg.Audit.MaxLogSizeBytes)
	log.Info("config: audit.purge_percentage=%d", cfg.Audit.PurgePercentage)
}

func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, constants.ConfigDir)
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), constants.ConfigFile)
}

func EnsureConfigDir() error {
	return os.MkdirAll(GetConfigDir(), constants.DirPermissions)
}

// Load reads the config file, creating it with defaults when absent.
func Load() (*Config, error) {
	if err := EnsureConfigDir(); err != nil {
		return nil, err
	}

	configPath := GetConfigPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		cfg.ApplyEnv()
		if err := Save(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.ApplyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config file.
func Save(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(GetConfigPath(), data, constants.FilePermissions)
}
