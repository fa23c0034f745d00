// Package config loads schemals settings from .schemals.yaml, the
// environment and built-in defaults, in that order of precedence after
// explicit flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in a workspace root.
const FileName = ".schemals.yaml"

// EnvPrefix prefixes environment overrides, e.g. SCHEMALS_LOGGING_LEVEL.
const EnvPrefix = "SCHEMALS"

// Config is the complete schemals configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Rules    RulesConfig    `yaml:"rules" mapstructure:"rules"`
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig locates the SQLite snapshot. A relative path is taken
// relative to the workspace root.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RulesConfig locates the Risor rule scripts. An empty Dir disables rules.
type RulesConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

type AnalysisConfig struct {
	// ReportDirty reports every dirty leaf as a syntax error in addition
	// to the parser's own errors.
	ReportDirty bool `yaml:"reportDirty" mapstructure:"reportDirty"`
	// ResolveDependents re-resolves the files inheriting from an edited
	// file when its signature changes.
	ResolveDependents bool `yaml:"resolveDependents" mapstructure:"resolveDependents"`
	// ExpressionGrammar and IndexingGrammar name tree-sitter grammars used
	// to parse embedded regions. Empty leaves the regions unparsed.
	ExpressionGrammar string `yaml:"expressionGrammar" mapstructure:"expressionGrammar"`
	IndexingGrammar   string `yaml:"indexingGrammar" mapstructure:"indexingGrammar"`
	// Workers bounds parallel parsing. Zero means one per CPU.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Path: ".schemals/index.db",
		},
		Rules: RulesConfig{
			Dir: ".schemals/rules",
		},
		Analysis: AnalysisConfig{
			ResolveDependents: true,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("rules.dir", d.Rules.Dir)
	v.SetDefault("analysis.reportDirty", d.Analysis.ReportDirty)
	v.SetDefault("analysis.resolveDependents", d.Analysis.ResolveDependents)
	v.SetDefault("analysis.expressionGrammar", d.Analysis.ExpressionGrammar)
	v.SetDefault("analysis.indexingGrammar", d.Analysis.IndexingGrammar)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads FileName from dir. A missing file is not an error: defaults
// and environment overrides still apply.
func Load(dir string) (*Config, error) {
	v := newViper()
	v.SetConfigName(strings.TrimSuffix(FileName, ".yaml"))
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", filepath.Join(dir, FileName), err)
		}
	}
	return unmarshal(v)
}

// LoadFile reads an explicit configuration file, which must exist.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	if c.Analysis.Workers < 0 {
		return &ConfigError{Field: "analysis.workers", Message: "must not be negative"}
	}
	return nil
}

// ResolvePath returns p joined to root unless it is already absolute.
func ResolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
