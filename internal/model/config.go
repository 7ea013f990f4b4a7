package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig selects the logger mode ("dev" or "prod").
type LogConfig struct {
	Mode string `mapstructure:"mode" yaml:"mode"`
}

// HTTPConfig holds settings for the REST server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AuthConfig names the keyring entry holding the REST API token.
type AuthConfig struct {
	TokenKey string `mapstructure:"token_key" yaml:"token_key"`
}

// FeatureConfig toggles optional issue-tracker features.
type FeatureConfig struct {
	IssueLinking bool `mapstructure:"issue_linking" yaml:"issue_linking"`
	Subtasks     bool `mapstructure:"subtasks" yaml:"subtasks"`
	RemoteLinks  bool `mapstructure:"remote_links" yaml:"remote_links"`
	TimeTracking bool `mapstructure:"time_tracking" yaml:"time_tracking"`
}

// LicenseConfig describes the installed license. Dates use the
// 2006-01-02 layout; empty means "never".
type LicenseConfig struct {
	Type              string `mapstructure:"type" yaml:"type"`
	Evaluation        bool   `mapstructure:"evaluation" yaml:"evaluation"`
	ExpiresAt         string `mapstructure:"expires_at" yaml:"expires_at"`
	MaintenanceExpiry string `mapstructure:"maintenance_expiry" yaml:"maintenance_expiry"`
}

// RemoteImportConfig points at the instance a project import reads from.
type RemoteImportConfig struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	TokenKey string `mapstructure:"token_key" yaml:"token_key"`
}

// ImportConfig holds project-import settings.
type ImportConfig struct {
	Remote RemoteImportConfig `mapstructure:"remote" yaml:"remote"`
}

// BitbucketConfig points at a Bitbucket Server whose pull requests are
// mirrored as remote issue links. Repos are "PROJECT/slug" pairs.
type BitbucketConfig struct {
	BaseURL  string   `mapstructure:"base_url" yaml:"base_url"`
	TokenKey string   `mapstructure:"token_key" yaml:"token_key"`
	Repos    []string `mapstructure:"repos" yaml:"repos"`
}

// DevLinksConfig controls the background sync of development links.
type DevLinksConfig struct {
	IntervalSec int             `mapstructure:"interval_sec" yaml:"interval_sec"`
	User        string          `mapstructure:"user" yaml:"user"`
	Bitbucket   BitbucketConfig `mapstructure:"bitbucket" yaml:"bitbucket"`
}

// Enabled reports whether any link source is configured.
func (c DevLinksConfig) Enabled() bool {
	return c.Bitbucket.BaseURL != "" && len(c.Bitbucket.Repos) > 0
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Features FeatureConfig  `mapstructure:"features" yaml:"features"`
	License  LicenseConfig  `mapstructure:"license" yaml:"license"`
	Import   ImportConfig   `mapstructure:"import" yaml:"import"`
	DevLinks DevLinksConfig `mapstructure:"devlinks" yaml:"devlinks"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/tracker/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "tracker", "config.yaml")
}

// defaultDatabasePath places the database next to the default config.
func defaultDatabasePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "tracker.db")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		Log:      LogConfig{Mode: "dev"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Auth:     AuthConfig{TokenKey: "tracker-api-token"},
		Features: FeatureConfig{
			IssueLinking: true,
			Subtasks:     true,
			RemoteLinks:  true,
			TimeTracking: true,
		},
		License: LicenseConfig{Type: "commercial"},
		Import: ImportConfig{
			Remote: RemoteImportConfig{TokenKey: "tracker-import-token"},
		},
		DevLinks: DevLinksConfig{
			IntervalSec: 300,
			User:        "admin",
			Bitbucket:   BitbucketConfig{TokenKey: "tracker-bitbucket-token"},
		},
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("auth.token_key", d.Auth.TokenKey)
	v.SetDefault("features.issue_linking", d.Features.IssueLinking)
	v.SetDefault("features.subtasks", d.Features.Subtasks)
	v.SetDefault("features.remote_links", d.Features.RemoteLinks)
	v.SetDefault("features.time_tracking", d.Features.TimeTracking)
	v.SetDefault("license.type", d.License.Type)
	v.SetDefault("import.remote.token_key", d.Import.Remote.TokenKey)
	v.SetDefault("devlinks.interval_sec", d.DevLinks.IntervalSec)
	v.SetDefault("devlinks.user", d.DevLinks.User)
	v.SetDefault("devlinks.bitbucket.token_key", d.DevLinks.Bitbucket.TokenKey)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// Environment variables prefixed with TRACKER_ override file values
// (e.g. TRACKER_HTTP_ADDR).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("tracker")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("http", cfg.HTTP)
	v.Set("auth", cfg.Auth)
	v.Set("features", cfg.Features)
	v.Set("license", cfg.License)
	v.Set("import", cfg.Import)
	v.Set("devlinks", cfg.DevLinks)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
