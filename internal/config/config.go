package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LUZTEDI_DATA_PATH.
const EnvPrefix = "LUZTEDI"

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID names the run summary (ics-<id>) and the cache entry.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// Config is the top-level application configuration.
type Config struct {
	// DataPath is the committed calendar document.
	DataPath string `yaml:"data_path" json:"data_path" split_words:"true"`

	// OverridePath holds the local edits made through the web API. When it
	// exists it wins over DataPath for reads.
	OverridePath string `yaml:"override_path" json:"override_path" split_words:"true"`

	// SummaryDir receives one <source>.json report per import run.
	SummaryDir string `yaml:"summary_dir" json:"summary_dir" split_words:"true"`

	// CacheDir keeps the last good body of every subscribed feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir" split_words:"true"`

	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" split_words:"true"`

	// Timezone is the IANA zone record wall times are written in.
	Timezone string `yaml:"timezone" json:"timezone" split_words:"true"`

	// RefreshCron is the cron schedule for `watch` (env LUZTEDI_REFRESH_CRON).
	RefreshCron string `yaml:"refresh" json:"refresh" split_words:"true"`

	// HorizonDays is how far ahead feeds are expanded.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days" split_words:"true"`

	// LogLevel is DEBUG, INFO or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level" split_words:"true"`

	// SummarySample caps the audit entries kept in each run summary, keyed
	// by source name. Sources not listed keep everything.
	SummarySample map[string]int `yaml:"summary_sample" json:"summary_sample" split_words:"true"`

	// ICS is the list of subscribed ICS sources.
	ICS []ICSConfig `yaml:"ics" json:"ics" ignored:"true"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataPath:     filepath.Join("data", "schedule.json"),
		OverridePath: filepath.Join("data", "local-override.json"),
		SummaryDir:   "data",
		CacheDir:     filepath.Join("data", "ics-cache"),
		Listen:       "127.0.0.1:8080",
		Timezone:     "Asia/Jerusalem",
		RefreshCron:  "*/30 * * * *",
		HorizonDays:  180,
		LogLevel:     "INFO",
		SummarySample: map[string]int{
			"sheet-xlsx": 100,
			"word-docx":  50,
		},
		ICS: []ICSConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.DataPath == "" {
		c.DataPath = d.DataPath
	}
	if c.OverridePath == "" {
		c.OverridePath = d.OverridePath
	}
	if c.SummaryDir == "" {
		c.SummaryDir = filepath.Dir(c.DataPath)
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.SummarySample == nil {
		c.SummarySample = d.SummarySample
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SampleLimit is the audit cap for source; 0 keeps everything.
func (c *Config) SampleLimit(source string) int {
	return c.SummarySample[source]
}

// Feed looks up a subscription by id.
func (c *Config) Feed(id string) (ICSConfig, bool) {
	for _, f := range c.ICS {
		if f.ID == id {
			return f, true
		}
	}
	return ICSConfig{}, false
}

// Load loads configuration from the given YAML path, then applies
// LUZTEDI_* environment overrides.
//
// A missing file is not an error: defaults are returned and nothing is
// written (`config init` does that).
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".luztedi-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
