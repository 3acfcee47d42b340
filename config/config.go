// Package config loads project settings for the persistence layer. Settings
// are layered: built-in defaults, then an optional fabrica.yaml file, then
// FABRICA_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// File names probed by LoadFromDir, in order.
const (
	FileName    = "fabrica.yaml"
	FileNameAlt = "fabrica.yml"
)

// EnvPrefix is the prefix of environment variables that override file
// settings. A double underscore nests: FABRICA_FEATURES__ANSI_JOINS sets
// features.ansi_joins.
const EnvPrefix = "FABRICA_"

// Default values applied below the file and environment layers.
const (
	DefaultTableNaming   = "alpha-scheme"
	DefaultSlowQuery     = 100 * time.Millisecond
	DefaultStmtCacheSize = 256
)

// Settings are the project-level knobs of the persistence layer.
type Settings struct {
	// Dialect is the default SQL dialect of the store.
	Dialect string `koanf:"dialect"`
	// TableNaming selects the table alias naming strategy.
	TableNaming string `koanf:"table_naming"`
	// SlowQuery is the duration above which a query is reported as slow.
	SlowQuery time.Duration `koanf:"slow_query"`
	// StmtCacheSize bounds the prepared-statement cache.
	StmtCacheSize int `koanf:"stmt_cache_size"`
	// Features enables or disables dialect capabilities by name, overriding
	// the dialect's defaults.
	Features map[string]bool `koanf:"features"`
	// Options seeds statement extensions, such as lock-for-update.
	Options map[string]string `koanf:"options"`
}

// ApplyDefaults fills zero-valued fields with the built-in defaults.
func (s *Settings) ApplyDefaults() {
	if s.TableNaming == "" {
		s.TableNaming = DefaultTableNaming
	}
	if s.SlowQuery == 0 {
		s.SlowQuery = DefaultSlowQuery
	}
	if s.StmtCacheSize == 0 {
		s.StmtCacheSize = DefaultStmtCacheSize
	}
}

// Load reads settings from the given YAML file, overlaying them with
// FABRICA_-prefixed environment variables. An empty path loads defaults and
// environment only.
func Load(path string) (*Settings, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]any{
		"table_naming":    DefaultTableNaming,
		"slow_query":      DefaultSlowQuery.String(),
		"stmt_cache_size": DefaultStmtCacheSize,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &s, nil
}

// LoadFromDir loads settings from the directory's fabrica.yaml or
// fabrica.yml. It returns nil settings and no error when neither file
// exists.
func LoadFromDir(dir string) (*Settings, error) {
	for _, name := range []string{FileName, FileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, nil
}

// envKey maps an environment variable name to a settings key:
// FABRICA_TABLE_NAMING becomes table_naming, FABRICA_FEATURES__X nests to
// features.x.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
