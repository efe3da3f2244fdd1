package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/threadharvest/internal/model"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".threadharvest"

// ErrConfigNotFound is returned when the configuration file does not
// exist. Callers handle it based on whether the path was explicit.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .threadharvest configuration file.
type File struct {
	// Community is the forum community to crawl.
	Community string `yaml:"community,omitempty"`

	// Flair overrides the flair filter for discovery queries.
	Flair string `yaml:"flair,omitempty"`

	// BaseURL overrides the platform root URL.
	BaseURL string `yaml:"base_url,omitempty"`

	// DataDir overrides the archive directory.
	DataDir string `yaml:"data_dir,omitempty"`

	// Overrides maps a date ("2006-01-02") to one or more thread URLs
	// that discovery must force-include.
	Overrides map[string]URLList `yaml:"overrides,omitempty"`
}

// URLList accepts either a single URL scalar or a sequence of URLs, so
// the common one-thread-per-day case stays terse in the file.
type URLList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (u *URLList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*u = URLList{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*u = URLList(list)
		return nil
	default:
		return fmt.Errorf("override value must be a URL or list of URLs (line %d)", value.Line)
	}
}

// LoadConfigFile loads the crawler configuration from a YAML file.
// A missing file returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cf, nil
}

// OverrideList converts the file's override mapping into model
// overrides sorted by date. Invalid date keys are a configuration
// error: overrides are curated by hand and a typo should fail loudly
// rather than silently drop a thread.
func (cf *File) OverrideList() ([]model.Override, error) {
	var overrides []model.Override
	for dateStr, urls := range cf.Overrides {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid override date %q (want YYYY-MM-DD): %w", dateStr, err)
		}
		for _, u := range urls {
			overrides = append(overrides, model.Override{Date: date.UTC(), URL: u})
		}
	}
	sort.Slice(overrides, func(i, j int) bool {
		if !overrides[i].Date.Equal(overrides[j].Date) {
			return overrides[i].Date.Before(overrides[j].Date)
		}
		return overrides[i].URL < overrides[j].URL
	})
	return overrides, nil
}

// FindConfigFile searches for the configuration file:
// an explicit path first, then the current directory, then the home
// directory. Returns empty when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply folds the file's settings into cfg. Flag-provided values win:
// only unset cfg fields are filled in.
func (cf *File) Apply(cfg *Config) error {
	if cfg.Community == "" {
		cfg.Community = cf.Community
	}
	if cfg.Flair == "" || cfg.Flair == DefaultFlair {
		if cf.Flair != "" {
			cfg.Flair = cf.Flair
		}
	}
	if cfg.BaseURL == "" || cfg.BaseURL == DefaultBaseURL {
		if cf.BaseURL != "" {
			cfg.BaseURL = cf.BaseURL
		}
	}
	if cfg.DataDir == "" {
		cfg.DataDir = cf.DataDir
	}

	overrides, err := cf.OverrideList()
	if err != nil {
		return err
	}
	cfg.Overrides = overrides
	return nil
}
