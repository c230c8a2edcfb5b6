package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v2"

	"press_archive/internal/extract"
	"press_archive/internal/logger"
)

const DefaultPath = "config.yaml"

const (
	EnvMongoURI = "PRESS_ARCHIVE_MONGO_URI"
	EnvLogLevel = "PRESS_ARCHIVE_LOG_LEVEL"
)

var (
	ErrNoTickers       = errors.New("at least one ticker is required")
	ErrBadTicker       = errors.New("ticker must be uppercase letters, digits, '.' or '-'")
	ErrNegativeDelay   = errors.New("fetch.delay_ms must be non-negative")
	ErrBadTimeout      = errors.New("fetch.timeout_sec must be at least 1")
	ErrNoBaseDir       = errors.New("archive.base_dir is required")
	ErrBadOrigin       = errors.New("listing.origin must be an absolute http(s) URL")
	ErrNoDBConnection  = errors.New("db.connection is required when db.enabled is set")
	ErrMissingSelector = errors.New("selector must not be empty")
)

var reTicker = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]*$`)

type ListingConfig struct {
	Dir       string                   `yaml:"dir"`
	Ext       string                   `yaml:"ext"`
	Origin    string                   `yaml:"origin"`
	Selectors extract.ListingSelectors `yaml:"selectors"`
}

type ArchiveConfig struct {
	BaseDir string `yaml:"base_dir"`
	Ext     string `yaml:"ext"`
	Output  string `yaml:"output"`
}

type ValidateConfig struct {
	List      string                   `yaml:"list"`
	Output    string                   `yaml:"output"`
	Selectors extract.ArticleSelectors `yaml:"selectors"`
}

type FetchConfig struct {
	DelayMS       int    `yaml:"delay_ms"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	UserAgent     string `yaml:"user_agent"`
	RespectRobots bool   `yaml:"respect_robots"`
	MaxBodyKB     int    `yaml:"max_body_kb"`
}

type DBConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Articles    string `yaml:"articles"`
		Validations string `yaml:"validations"`
	} `yaml:"collections"`
}

type Config struct {
	Tickers    []string       `yaml:"tickers"`
	Listing    ListingConfig  `yaml:"listing"`
	Archive    ArchiveConfig  `yaml:"archive"`
	Validation ValidateConfig `yaml:"validate"`
	Fetch      FetchConfig    `yaml:"fetch"`
	DB         DBConfig       `yaml:"db"`
	Log        logger.Config  `yaml:"log"`
}

// Default targets the Yahoo Finance press-release pages for the stock ticker set.
func Default() *Config {
	cfg := &Config{
		Tickers: []string{"AAPL", "AMZN", "ARTW", "EVGN", "FB", "GOOG", "MSFT"},
		Listing: ListingConfig{
			Dir:       ".",
			Ext:       "html",
			Origin:    "https://finance.yahoo.com",
			Selectors: extract.DefaultListingSelectors(),
		},
		Archive: ArchiveConfig{
			BaseDir: ".",
			Ext:     "html",
			Output:  "yahoo_main.csv",
		},
		Validation: ValidateConfig{
			List:      "article_list.txt",
			Output:    "yahoo_dates.csv",
			Selectors: extract.DefaultArticleSelectors(),
		},
		Fetch: FetchConfig{
			DelayMS:    3000,
			TimeoutSec: 30,
		},
		DB: DBConfig{
			Database: "press_archive",
		},
		Log: logger.Config{Level: "info"},
	}
	cfg.DB.Collections.Articles = "articles"
	cfg.DB.Collections.Validations = "validations"

	return cfg
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Load reads path if it exists. A missing file is only an error when the
// caller named it explicitly; otherwise defaults are used.
func Load(path string, explicit bool) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv lets the environment override secrets and verbosity.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.DB.Connection = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return ErrNoTickers
	}
	for _, t := range c.Tickers {
		if !reTicker.MatchString(t) {
			return fmt.Errorf("%w: %q", ErrBadTicker, t)
		}
	}

	if c.Fetch.DelayMS < 0 {
		return ErrNegativeDelay
	}
	if c.Fetch.TimeoutSec < 1 {
		return ErrBadTimeout
	}
	if c.Archive.BaseDir == "" {
		return ErrNoBaseDir
	}

	u, err := url.Parse(c.Listing.Origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrBadOrigin, c.Listing.Origin)
	}

	sel := c.Listing.Selectors
	for name, v := range map[string]string{
		"listing.selectors.container":   sel.Container,
		"listing.selectors.entry":       sel.Entry,
		"listing.selectors.headline":    sel.Headline,
		"listing.selectors.link":        sel.Link,
		"listing.selectors.meta_anchor": sel.MetaAnchor,
		"validate.selectors.headline":   c.Validation.Selectors.Headline,
		"validate.selectors.time":       c.Validation.Selectors.Time,
		"validate.selectors.time_attr":  c.Validation.Selectors.TimeAttr,
	} {
		if v == "" {
			return fmt.Errorf("%w: %s", ErrMissingSelector, name)
		}
	}

	if c.DB.Enabled && c.DB.Connection == "" {
		return ErrNoDBConnection
	}

	return nil
}

func (c *Config) Delay() time.Duration {
	return time.Duration(c.Fetch.DelayMS) * time.Millisecond
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSec) * time.Second
}

// ListingPath is where the saved listing document for ticker lives.
func (c *Config) ListingPath(ticker string) string {
	ext := c.Listing.Ext
	if ext == "" {
		ext = "html"
	}
	return filepath.Join(c.Listing.Dir, ticker+"."+ext)
}
