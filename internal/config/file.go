package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// WriteFile writes cfg to path as TOML. The file may hold credentials, so
// it is created with mode 0600.
func WriteFile(path string, cfg *Config) error {
	return writeTree(path, toTree(cfg))
}

// Encode writes cfg to w in the same layout as WriteFile.
func Encode(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(toTree(cfg))
}

// Set changes one key in the file at path, creating the file if needed.
// The value is parsed according to the key's type.
func Set(path, key, value string) error {
	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	parsed, err := parseValue(def, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	tree := map[string]interface{}{}
	if _, err := toml.DecodeFile(path, &tree); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	parts := strings.Split(key, ".")
	node := tree
	for _, section := range parts[:len(parts)-1] {
		child, ok := node[section].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[section] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = parsed

	return writeTree(path, tree)
}

func parseValue(def interface{}, value string) (interface{}, error) {
	value = strings.TrimSpace(value)
	switch def.(type) {
	case bool:
		return strconv.ParseBool(value)
	case int:
		n, err := strconv.Atoi(value)
		return int64(n), err
	case time.Duration:
		if _, err := time.ParseDuration(value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return value, nil
	}
}

func writeTree(path string, tree map[string]interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tree); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// toTree lays cfg out as TOML tables. Durations are written as strings
// such as "30s".
func toTree(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"data_dir": cfg.DataDir,
		"goal":     cfg.Goal,
		"remote": map[string]interface{}{
			"spreadsheet_id": cfg.Remote.SpreadsheetID,
			"range":          cfg.Remote.Range,
			"api_key":        cfg.Remote.APIKey,
			"endpoint":       cfg.Remote.Endpoint,
		},
		"auth": map[string]interface{}{
			"token":      cfg.Auth.Token,
			"token_file": cfg.Auth.TokenFile,
		},
		"sync": map[string]interface{}{
			"timeout":           cfg.Sync.Timeout.String(),
			"offline":           cfg.Sync.Offline,
			"probe_addr":        cfg.Sync.ProbeAddr,
			"probe_interval":    cfg.Sync.ProbeInterval.String(),
			"push_on_reconnect": cfg.Sync.PushOnReconnect,
		},
		"log": map[string]interface{}{
			"file":         cfg.Log.File,
			"max_size_mb":  cfg.Log.MaxSizeMB,
			"max_backups":  cfg.Log.MaxBackups,
			"max_age_days": cfg.Log.MaxAgeDays,
			"compress":     cfg.Log.Compress,
		},
		"dashboard": map[string]interface{}{
			"port": cfg.Dashboard.Port,
		},
	}
}
