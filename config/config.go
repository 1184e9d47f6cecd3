// Package config loads the TOML site configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jonwraymond/sitesearch/highlight"
	"github.com/jonwraymond/sitesearch/index"
	"github.com/jonwraymond/sitesearch/readiness"
	"github.com/jonwraymond/sitesearch/results"
	"github.com/jonwraymond/sitesearch/search"
	"github.com/jonwraymond/sitesearch/session"
	"github.com/jonwraymond/sitesearch/storage"
)

//go:embed config.toml.sample
var configTemplate string

// ErrInvalidConfig is returned for configurations that fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// Result presentation modes.
const (
	ModePanel      = "panel"
	ModeSuggestion = "suggestion"
)

// Config is the sitesearch.toml file: where the index lives and how the
// search, highlighting, readiness and storage layers are tuned.
type Config struct {
	BaseURI    string `toml:"base_uri"`
	RelBaseURI string `toml:"rel_base_uri"`
	IndexFile  string `toml:"index_file"`
	IndexURL   string `toml:"index_url"`

	Search    SearchConfig    `toml:"search"`
	Highlight HighlightConfig `toml:"highlight"`
	Readiness ReadinessConfig `toml:"readiness"`
	Messages  MessagesConfig  `toml:"messages"`
	Storage   StorageConfig   `toml:"storage"`
}

// SearchConfig tunes field boosts and result presentation.
type SearchConfig struct {
	TitleBoost    float64 `toml:"title_boost"`
	TagsBoost     float64 `toml:"tags_boost"`
	ContentBoost  float64 `toml:"content_boost"`
	ResultLimit   int     `toml:"result_limit"`
	Mode          string  `toml:"mode"`
	ContextWords  int     `toml:"context_words"`
	MaxContentLen int     `toml:"max_content_len"`
}

// HighlightConfig selects the mark element and the containers it is applied in.
type HighlightConfig struct {
	Element       string `toml:"element"`
	ClassName     string `toml:"class_name"`
	CaseSensitive bool   `toml:"case_sensitive"`
	WordsOnly     bool   `toml:"words_only"`
	Containers    string `toml:"containers"`
}

// ReadinessConfig bounds how long a search waits for the index to load.
type ReadinessConfig struct {
	PollInterval Duration `toml:"poll_interval"`
	// MaxAttempts bounds polling; 0 polls until loaded.
	MaxAttempts int `toml:"max_attempts"`
}

// MessagesConfig overrides the hint templates: {0} is replaced by the query
// and {1} by the number of results.
type MessagesConfig struct {
	ResultsFound   string `toml:"results_found"`
	NoResultsFound string `toml:"no_results_found"`
}

// StorageConfig selects the backend that persists the session-tier term.
type StorageConfig struct {
	Backend   string   `toml:"backend"`
	Path      string   `toml:"path,omitempty"`
	RedisAddr string   `toml:"redis_addr,omitempty"`
	RedisURL  string   `toml:"redis_url,omitempty"`
	TTL       Duration `toml:"ttl"`
	SessionID string   `toml:"session_id"`
}

// Duration is a time.Duration written as a string such as "25ms" in TOML.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	msgs := results.DefaultMessages()
	hl := highlight.SearchOptions()
	return &Config{
		Search: SearchConfig{
			TitleBoost:   15,
			TagsBoost:    10,
			ContentBoost: 5,
			Mode:         ModePanel,
		},
		Highlight: HighlightConfig{
			Element:    hl.Element,
			ClassName:  hl.ClassName,
			Containers: highlight.DefaultContainers,
		},
		Readiness: ReadinessConfig{
			PollInterval: Duration{readiness.DefaultPollInterval},
		},
		Messages: MessagesConfig{
			ResultsFound:   msgs.ResultsFound,
			NoResultsFound: msgs.NoResultsFound,
		},
		Storage: StorageConfig{
			Backend: storage.BackendMemory,
		},
	}
}

// Load reads the configuration at path. A missing file yields Default.
// Omitted settings take their default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults restores defaults for settings set to their zero value.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Search.Mode == "" {
		c.Search.Mode = d.Search.Mode
	}
	if c.Highlight.Element == "" {
		c.Highlight.Element = d.Highlight.Element
	}
	if c.Highlight.ClassName == "" {
		c.Highlight.ClassName = d.Highlight.ClassName
	}
	if c.Highlight.Containers == "" {
		c.Highlight.Containers = d.Highlight.Containers
	}
	if c.Readiness.PollInterval.Duration == 0 {
		c.Readiness.PollInterval = d.Readiness.PollInterval
	}
	if c.Messages.ResultsFound == "" {
		c.Messages.ResultsFound = d.Messages.ResultsFound
	}
	if c.Messages.NoResultsFound == "" {
		c.Messages.NoResultsFound = d.Messages.NoResultsFound
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs []error
	if c.Search.TitleBoost < 0 || c.Search.TagsBoost < 0 || c.Search.ContentBoost < 0 {
		errs = append(errs, errors.New("search boosts must not be negative"))
	}
	if c.Search.ResultLimit < 0 {
		errs = append(errs, fmt.Errorf("result_limit %d is negative", c.Search.ResultLimit))
	}
	if c.Search.ContextWords < 0 {
		errs = append(errs, fmt.Errorf("context_words %d is negative", c.Search.ContextWords))
	}
	switch c.Search.Mode {
	case ModePanel, ModeSuggestion:
	default:
		errs = append(errs, fmt.Errorf("unknown search mode %q", c.Search.Mode))
	}
	if c.Readiness.PollInterval.Duration < 0 || c.Readiness.MaxAttempts < 0 {
		errs = append(errs, errors.New("readiness settings must not be negative"))
	}
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendBadger:
	case storage.BackendRedis:
		if c.Storage.RedisAddr == "" && c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("redis storage needs redis_addr or redis_url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}
	if c.Storage.TTL.Duration < 0 {
		errs = append(errs, errors.New("storage ttl must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// SaveTemplate writes the commented sample configuration to path.
func SaveTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}

// Source returns the payload source configured by index_file or index_url,
// the file taking precedence. It is nil when neither is set.
func (c *Config) Source(client *http.Client) index.Source {
	switch {
	case c.IndexFile != "":
		return index.FileSource(c.IndexFile)
	case c.IndexURL != "":
		return index.URLSource(client, c.IndexURL)
	default:
		return nil
	}
}

// StoreConfig converts the [storage] section for storage.Open.
func (c *Config) StoreConfig(logger *slog.Logger) storage.Config {
	return storage.Config{
		Backend:   c.Storage.Backend,
		Path:      c.Storage.Path,
		RedisAddr: c.Storage.RedisAddr,
		RedisURL:  c.Storage.RedisURL,
		TTL:       c.Storage.TTL.Duration,
		SessionID: c.Storage.SessionID,
		Logger:    logger,
	}
}

// SessionOptions converts the configuration into session options. The
// store is opened separately, see StoreConfig.
func (c *Config) SessionOptions(store storage.Store, logger *slog.Logger) session.Options {
	mode := results.ModePanel
	if c.Search.Mode == ModeSuggestion {
		mode = results.ModeSuggestion
	}
	return session.Options{
		AbsBaseURI: c.BaseURI,
		Bleve: search.BleveConfig{
			TitleBoost:    c.Search.TitleBoost,
			TagsBoost:     c.Search.TagsBoost,
			ContentBoost:  c.Search.ContentBoost,
			MaxContentLen: c.Search.MaxContentLen,
		},
		ResultLimit: c.Search.ResultLimit,
		Presenter: results.Options{
			Mode:         mode,
			RelBaseURI:   c.RelBaseURI,
			ContextWords: c.Search.ContextWords,
			Messages: results.Messages{
				ResultsFound:   c.Messages.ResultsFound,
				NoResultsFound: c.Messages.NoResultsFound,
			},
			Logger: logger,
		},
		Highlight: highlight.EngineOptions{
			Options: highlight.Options{
				Element:       c.Highlight.Element,
				ClassName:     c.Highlight.ClassName,
				CaseSensitive: c.Highlight.CaseSensitive,
				WordsOnly:     c.Highlight.WordsOnly,
			},
			Containers: c.Highlight.Containers,
			Logger:     logger,
		},
		Readiness: readiness.Options{
			PollInterval: c.Readiness.PollInterval.Duration,
			MaxAttempts:  c.Readiness.MaxAttempts,
			Logger:       logger,
		},
		Store:  store,
		Logger: logger,
	}
}
