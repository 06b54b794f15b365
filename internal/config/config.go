package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/schaermu/shelf/internal/asset"
)

const (
	// DirName is the metadata directory at the inventory root.
	DirName = ".shelf"

	// FileName is the configuration file inside DirName.
	FileName = "config.yaml"

	// TemplatesDir holds asset templates inside DirName.
	TemplatesDir = "templates"

	// EnvPrefix prefixes environment overrides, e.g. SHELF_ASSETS_FILENAME.
	EnvPrefix = "SHELF"
)

// Well-known configuration keys.
const (
	KeyAssetFilename   = "assets.filename"
	KeyDefaultTemplate = "templates.default"
	KeyHistoryCommand  = "history.non_interactive"
)

// Defaults written by init.
const (
	DefaultAssetFilename  = "{type}_{make}_{model}.{serial}"
	DefaultTemplate       = "empty"
	DefaultHistoryCommand = "git --no-pager log --follow"
)

// ErrNoConfig is returned when the configuration file does not exist.
var ErrNoConfig = errors.New("configuration file not found")

// Config represents the repository configuration stored in .shelf/config.yaml
type Config struct {
	Assets    AssetsConfig    `mapstructure:"assets"`
	Templates TemplatesConfig `mapstructure:"templates"`
	History   HistoryConfig   `mapstructure:"history"`

	path string
	v    *viper.Viper
}

// AssetsConfig configures asset naming
type AssetsConfig struct {
	Filename string `mapstructure:"filename"`
}

// TemplatesConfig configures templates for new assets
type TemplatesConfig struct {
	Default string `mapstructure:"default"`
}

// HistoryConfig configures the history command
type HistoryConfig struct {
	NonInteractive string `mapstructure:"non_interactive"`
}

// Path returns the config file location for an inventory root.
func Path(root string) string {
	return filepath.Join(root, DirName, FileName)
}

// Load reads and parses the configuration of the inventory at root
func Load(root string) (*Config, error) {
	path := Path(root)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfig, path)
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{path: path, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault(KeyDefaultTemplate, DefaultTemplate)
	v.SetDefault(KeyHistoryCommand, DefaultHistoryCommand)
	return v
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Templates.Default == "" {
		c.Templates.Default = DefaultTemplate
	}
	if c.History.NonInteractive == "" {
		c.History.NonInteractive = DefaultHistoryCommand
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Assets.Filename != "" {
		if strings.TrimSpace(c.Assets.Filename) == "" {
			return fmt.Errorf("%s must not be blank", KeyAssetFilename)
		}
		if strings.ContainsRune(c.Assets.Filename, filepath.Separator) {
			return fmt.Errorf("%s must be a file name, not a path: %s", KeyAssetFilename, c.Assets.Filename)
		}
		if !strings.Contains(c.Assets.Filename, "{") {
			return fmt.Errorf("%s must reference at least one key: %s", KeyAssetFilename, c.Assets.Filename)
		}
	}

	if strings.ContainsRune(c.Templates.Default, filepath.Separator) {
		return fmt.Errorf("%s must be a template name, not a path: %s", KeyDefaultTemplate, c.Templates.Default)
	}

	return nil
}

// Get returns the value of a dotted configuration key. Environment overrides
// take precedence over the file.
func (c *Config) Get(key string) (string, bool) {
	if c == nil || c.v == nil {
		return "", false
	}
	if !c.v.IsSet(key) {
		return "", false
	}
	value := c.v.GetString(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// Keys lists every key present in the file, environment and defaults.
func (c *Config) Keys() []string {
	if c == nil || c.v == nil {
		return nil
	}
	keys := c.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Set writes key=value to the configuration file and reloads it.
func (c *Config) Set(key, value string) error {
	return c.edit(func(doc *asset.Asset) {
		doc.Set(key, value)
	})
}

// Unset removes key from the configuration file and reloads it.
func (c *Config) Unset(key string) error {
	return c.edit(func(doc *asset.Asset) {
		doc.Delete(key)
	})
}

// edit rewrites the file through an ordered document so user ordering is kept.
// The previous content is restored when the result does not load.
func (c *Config) edit(fn func(doc *asset.Asset)) error {
	orig, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	doc, err := asset.Unmarshal(orig)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	fn(doc)

	data, err := asset.Marshal(doc, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	reloaded, err := Load(filepath.Dir(filepath.Dir(c.path)))
	if err != nil {
		if restoreErr := os.WriteFile(c.path, orig, 0644); restoreErr != nil {
			return fmt.Errorf("%w (restoring previous config failed: %v)", err, restoreErr)
		}
		return err
	}
	*c = *reloaded
	return nil
}

// WriteDefault creates the metadata directory with a default configuration.
// It refuses to overwrite an existing file.
func WriteDefault(root string) (string, error) {
	path := Path(root)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", DirName, err)
	}

	doc := asset.New()
	doc.Set(KeyAssetFilename, DefaultAssetFilename)
	doc.Set(KeyDefaultTemplate, DefaultTemplate)
	data, err := asset.Marshal(doc, nil)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
