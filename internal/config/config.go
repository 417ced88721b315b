package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brogergvhs/showscrape/internal/cache"
	"github.com/brogergvhs/showscrape/internal/fetch"
	"github.com/brogergvhs/showscrape/internal/sources"
	"github.com/brogergvhs/showscrape/internal/util"
)

type Config struct {
	DefaultSource string `yaml:"default_source"`
	Debug         bool   `yaml:"debug"`

	Log            LogConfig                      `yaml:"log"`
	HTTP           HTTPConfig                     `yaml:"http"`
	HeaderProfiles map[string]fetch.HeaderProfile `yaml:"header_profiles"`
	Sources        map[string]SourceConfig        `yaml:"sources"`
	Cache          CacheConfig                    `yaml:"cache"`
	Server         ServerConfig                   `yaml:"server"`
	Crawl          CrawlConfig                    `yaml:"crawl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RateConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	Proxy      string        `yaml:"proxy"`
	Cloudflare bool          `yaml:"cloudflare"`
	UserAgent  string        `yaml:"user_agent"`
	// Delay is the minimum gap between two requests to the same host.
	Delay   time.Duration `yaml:"delay"`
	Rate    RateConfig    `yaml:"rate"`
	Retries int           `yaml:"retries"`
}

// SourceConfig overrides the built-in definition of one source.
type SourceConfig struct {
	BaseURL       string      `yaml:"base_url,omitempty"`
	HeaderProfile string      `yaml:"header_profile,omitempty"`
	Rate          *RateConfig `yaml:"rate,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
	// Freshness overrides the per-kind defaults, keyed by endpoint kind.
	Freshness map[string]cache.Freshness `yaml:"freshness,omitempty"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type CrawlConfig struct {
	Workers    int    `yaml:"workers"`
	Output     string `yaml:"output"`
	SkipBroken bool   `yaml:"skip_broken"`
	Details    bool   `yaml:"details"`
}

// Options are the command-line values merged over the file.
type Options struct {
	IgnoreConfig bool
	// Path loads this file instead of the active labeled config.
	Path          string
	Debug         bool
	DefaultSource string
	Addr          string
	CacheBackend  string
	RedisAddr     string
	Workers       int
	Output        string
	SkipBroken    bool
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func DefaultConfig() *Config {
	ua := util.PickUserAgent("")
	return &Config{
		DefaultSource: "drama",
		Log:           LogConfig{Level: "info", Format: "console"},
		HTTP: HTTPConfig{
			Timeout: fetch.DefaultTimeout,
			Delay:   250 * time.Millisecond,
			Rate:    RateConfig{Requests: 4, Window: time.Second},
			Retries: 1,
		},
		HeaderProfiles: map[string]fetch.HeaderProfile{
			"drama": {
				UserAgent:      ua,
				Referer:        "https://drama.example/",
				AcceptLanguage: "en-US,en;q=0.9",
			},
			"drama-ajax": {
				UserAgent: ua,
				Referer:   "https://drama.example/",
				Accept:    "application/json, text/javascript, */*; q=0.01",
				XHR:       true,
			},
			"manga": {
				UserAgent:      ua,
				Referer:        "https://manga.example/",
				AcceptLanguage: "en-US,en;q=0.9",
			},
		},
		Sources: map[string]SourceConfig{},
		Cache: CacheConfig{
			Backend: BackendMemory,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "showscrape:"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Crawl: CrawlConfig{Workers: 4, Output: "."},
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	f, err := util.CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return err
	}
	return f.Commit()
}

// loadYAML decodes path over the defaults, so a file only needs the keys
// it changes. Header profiles from the file are added to the built-in ones.
func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	defaults := c.HeaderProfiles
	c.HeaderProfiles = nil
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	for name, p := range defaults {
		if _, ok := c.HeaderProfiles[name]; !ok {
			if c.HeaderProfiles == nil {
				c.HeaderProfiles = map[string]fetch.HeaderProfile{}
			}
			c.HeaderProfiles[name] = p
		}
	}

	return c, nil
}

// LoadMerged resolves the config file, applies the environment and then
// the command-line options. The second return names where the values came
// from.
func LoadMerged(opts Options) (*Config, string, error) {
	loadDotEnv()

	cfg, used, err := loadBase(opts)
	if err != nil {
		return nil, "", err
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, used, nil
}

func loadBase(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		return DefaultConfig(), "(ignored config)", nil
	}

	if opts.Path != "" {
		cfg, err := loadYAML(opts.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config %s: %w", opts.Path, err)
		}
		return cfg, opts.Path, nil
	}

	activePath, err := ActiveConfigPath()
	if errors.Is(err, ErrNoConfig) || activePath == "" {
		return DefaultConfig(), "(default config in memory)\nRun `showscrape config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}
	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultSource != "" {
		c.DefaultSource = o.DefaultSource
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.CacheBackend != "" {
		c.Cache.Backend = o.CacheBackend
	}
	if o.RedisAddr != "" {
		c.Cache.Redis.Addr = o.RedisAddr
	}
	if o.Workers != 0 {
		c.Crawl.Workers = o.Workers
	}
	if o.Output != "" {
		c.Crawl.Output = o.Output
	}
	if o.SkipBroken {
		c.Crawl.SkipBroken = true
	}
}

func normalizeDefaults(c *Config) {
	if c.Debug {
		c.Log.Level = "debug"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = fetch.DefaultTimeout
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendMemory
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Crawl.Workers == 0 {
		c.Crawl.Workers = 4
	}
	if c.Crawl.Output == "" {
		c.Crawl.Output = "."
	}
	if c.Sources == nil {
		c.Sources = map[string]SourceConfig{}
	}
}

// FreshnessByKind converts the freshness overrides to engine keys.
func (c *Config) FreshnessByKind() map[sources.Kind]cache.Freshness {
	out := make(map[sources.Kind]cache.Freshness, len(c.Cache.Freshness))
	for k, v := range c.Cache.Freshness {
		out[sources.Kind(k)] = v
	}
	return out
}

// Print writes a short human summary. Secrets are masked.
func (c *Config) Print(w io.Writer) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p(" -default_source: %s\n", c.DefaultSource)
	if c.Debug {
		p(" -debug: %t\n", c.Debug)
	}
	p(" -log: %s (%s)\n", c.Log.Level, c.Log.Format)
	p(" -http.timeout: %s\n", c.HTTP.Timeout)
	if c.HTTP.Proxy != "" {
		p(" -http.proxy: %s\n", c.HTTP.Proxy)
	}
	if c.HTTP.Cloudflare {
		p(" -http.cloudflare: %t\n", c.HTTP.Cloudflare)
	}
	if c.HTTP.Rate.Requests > 0 {
		p(" -http.rate: %d per %s\n", c.HTTP.Rate.Requests, c.HTTP.Rate.Window)
	}
	p(" -cache.backend: %s\n", c.Cache.Backend)
	if c.Cache.Backend == BackendRedis {
		p(" -cache.redis: %s db=%d password=%s\n", c.Cache.Redis.Addr, c.Cache.Redis.DB, mask(c.Cache.Redis.Password))
	}
	p(" -server.addr: %s\n", c.Server.Addr)
	p(" -crawl.workers: %d\n", c.Crawl.Workers)

	for _, name := range sortedKeys(c.HeaderProfiles) {
		p(" -header_profile: %s\n", name)
	}
	for _, id := range sortedKeys(c.Sources) {
		s := c.Sources[id]
		p(" -source %s: base_url=%s header_profile=%s\n", id, orDash(s.BaseURL), orDash(s.HeaderProfile))
	}
}

func mask(s string) string {
	if s == "" {
		return "-"
	}
	return "****"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
