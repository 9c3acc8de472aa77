// Package config loads service configuration from an optional YAML file
// and POPIS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/erazemk/popis/internal/blob"
)

// Settings are the values that may change while the service runs.
type Settings struct {
	ItemsPerPage   int   `mapstructure:"items_per_page" json:"items_per_page"`
	MaxImportBytes int64 `mapstructure:"max_import_bytes" json:"max_import_bytes"`
}

// Validate checks settings bounds.
func (s Settings) Validate() error {
	if s.ItemsPerPage < 1 || s.ItemsPerPage > 1000 {
		return fmt.Errorf("settings.items_per_page must be between 1 and 1000, got %d", s.ItemsPerPage)
	}
	if s.MaxImportBytes < 1 {
		return fmt.Errorf("settings.max_import_bytes must be positive, got %d", s.MaxImportBytes)
	}
	return nil
}

// Config is the full service configuration.
type Config struct {
	App struct {
		Env     string
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	DB struct {
		Driver string
		DSN    string
	} `mapstructure:"db"`

	Log struct {
		File   string
		Format string
	} `mapstructure:"log"`

	Auth struct {
		Secret string
	} `mapstructure:"auth"`

	Settings Settings `mapstructure:"settings"`

	Blob blob.Config `mapstructure:"blob"`

	Images struct {
		MaxDimension int `mapstructure:"max_dimension"`
		Quality      int
	} `mapstructure:"images"`

	Receipt struct {
		OpenAIAPIKey string `mapstructure:"openai_api_key"`
		Model        string
	} `mapstructure:"receipt"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

var defaults = map[string]any{
	"app.env":                   "production",
	"app.base_url":              "",
	"http.addr":                 ":8080",
	"db.driver":                 "sqlite",
	"db.dsn":                    "popis.sqlite3",
	"log.file":                  "",
	"log.format":                "text",
	"auth.secret":               "",
	"settings.items_per_page":   50,
	"settings.max_import_bytes": 10 << 20,
	"blob.driver":               "fs",
	"blob.dir":                  "./media",
	"blob.s3.bucket":            "",
	"blob.s3.region":            "",
	"blob.s3.endpoint":          "",
	"blob.s3.access_key_id":     "",
	"blob.s3.secret_access_key": "",
	"blob.s3.path_style":        false,
	"blob.s3.prefix":            "",
	"images.max_dimension":      1600,
	"images.quality":            85,
	"receipt.openai_api_key":    "",
	"receipt.model":             "gpt-4o-mini",
	"metrics.enabled":           true,
}

// Load reads path (skipped when empty), overlays POPIS_* environment
// variables such as POPIS_DB_DSN, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("POPIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := c.Settings.Validate(); err != nil {
		return nil, err
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("db.driver must be sqlite or postgres, got %q", c.DB.Driver)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return &c, nil
}

// Live holds the current Settings and swaps them atomically on Reload.
type Live struct {
	path    string
	current atomic.Pointer[Settings]
}

// NewLive returns live settings starting at initial and reloading from path.
func NewLive(path string, initial Settings) *Live {
	l := &Live{path: path}
	l.current.Store(&initial)
	return l
}

// Settings returns the current settings.
func (l *Live) Settings() Settings {
	return *l.current.Load()
}

// ItemsPerPage returns the current listing page size.
func (l *Live) ItemsPerPage() int {
	return l.current.Load().ItemsPerPage
}

// MaxImportBytes returns the current import upload limit.
func (l *Live) MaxImportBytes() int64 {
	return l.current.Load().MaxImportBytes
}

// Reload re-reads the configuration and replaces the settings. On error the
// previous settings stay in effect.
func (l *Live) Reload() (Settings, error) {
	c, err := Load(l.path)
	if err != nil {
		return l.Settings(), err
	}
	l.current.Store(&c.Settings)
	return c.Settings, nil
}
