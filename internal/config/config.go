// Package config loads jobsheet settings from a TOML file, JOBSHEET_*
// environment variables and command-line flags, in rising precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
)

// EnvPrefix is prepended to every environment variable, e.g.
// JOBSHEET_REMOTE_SPREADSHEET_ID.
const EnvPrefix = "JOBSHEET"

// DirName is the per-user directory holding the config file and cache.
const DirName = ".jobsheet"

// Config is the full settings tree.
type Config struct {
	DataDir   string          `toml:"data_dir" mapstructure:"data_dir"`
	Goal      int             `toml:"goal" mapstructure:"goal"`
	Remote    RemoteConfig    `toml:"remote" mapstructure:"remote"`
	Auth      AuthConfig      `toml:"auth" mapstructure:"auth"`
	Sync      SyncConfig      `toml:"sync" mapstructure:"sync"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
	Dashboard DashboardConfig `toml:"dashboard" mapstructure:"dashboard"`
}

// RemoteConfig addresses the spreadsheet.
type RemoteConfig struct {
	SpreadsheetID string `toml:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	Range         string `toml:"range" mapstructure:"range"`
	APIKey        string `toml:"api_key" mapstructure:"api_key"`
	Endpoint      string `toml:"endpoint" mapstructure:"endpoint"`
}

// AuthConfig locates the bearer token.
type AuthConfig struct {
	Token     string `toml:"token" mapstructure:"token"`
	TokenFile string `toml:"token_file" mapstructure:"token_file"`
}

// SyncConfig tunes the coordinator and the connectivity probe.
type SyncConfig struct {
	Timeout         time.Duration `toml:"timeout" mapstructure:"timeout"`
	Offline         bool          `toml:"offline" mapstructure:"offline"`
	ProbeAddr       string        `toml:"probe_addr" mapstructure:"probe_addr"`
	ProbeInterval   time.Duration `toml:"probe_interval" mapstructure:"probe_interval"`
	PushOnReconnect bool          `toml:"push_on_reconnect" mapstructure:"push_on_reconnect"`
}

// LogConfig configures the log file. An empty File logs to stderr.
type LogConfig struct {
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// DashboardConfig configures the daemon's status server.
type DashboardConfig struct {
	Port int `toml:"port" mapstructure:"port"`
}

// RemoteTarget returns the part of the config the remote adapter needs.
func (c *Config) RemoteTarget() remote.Config {
	return remote.Config{
		SpreadsheetID: c.Remote.SpreadsheetID,
		Range:         c.Remote.Range,
		APIKey:        c.Remote.APIKey,
	}
}

// CachePath is the SQLite cache file.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "jobsheet.db")
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Remote.APIKey = mask(out.Remote.APIKey)
	out.Auth.Token = mask(out.Auth.Token)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// DefaultDir returns ~/.jobsheet.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// defaults maps every known key to its default value. The type of each
// default also decides how "config set" parses a value for that key.
func defaults() map[string]interface{} {
	probe := connectivity.DefaultProberConfig()
	return map[string]interface{}{
		"data_dir":               DefaultDir(),
		"goal":                   record.DefaultGoal,
		"remote.spreadsheet_id":  "",
		"remote.range":           remote.DefaultRange,
		"remote.api_key":         "",
		"remote.endpoint":        "",
		"auth.token":             "",
		"auth.token_file":        "",
		"sync.timeout":           30 * time.Second,
		"sync.offline":           false,
		"sync.probe_addr":        probe.Addr,
		"sync.probe_interval":    probe.Interval,
		"sync.push_on_reconnect": false,
		"log.file":               "",
		"log.max_size_mb":        10,
		"log.max_backups":        3,
		"log.max_age_days":       28,
		"log.compress":           false,
		"dashboard.port":         8420,
	}
}

// Keys returns every known configuration key.
func Keys() []string {
	d := defaults()
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	_, ok := defaults()[key]
	return ok
}

// Loader reads configuration. Flags are bound through Viper before Load.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader returns a loader for the file at path. An empty path uses
// DefaultPath.
func NewLoader(path string) *Loader {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath()
	}
	return &Loader{v: v, path: path}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads the file, if present, and returns the merged settings.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); err == nil {
		l.v.SetConfigFile(l.path)
		l.v.SetConfigType("toml")
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", l.path, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDir()
	}
	if cfg.Goal <= 0 {
		cfg.Goal = record.DefaultGoal
	}
	return &cfg, nil
}

// Load is NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}
