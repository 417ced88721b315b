package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/brogergvhs/showscrape/internal/sources"
)

var validLevels = []string{"debug", "info", "warn", "error"}

// Validate reports every problem at once. known lists the registered
// source ids.
func (c *Config) Validate(known []string) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.DefaultSource != "" && !slices.Contains(known, c.DefaultSource) {
		add("default_source %q is not a known source (have %s)", c.DefaultSource, strings.Join(known, ", "))
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Log.Level)) {
		add("log.level %q must be one of %s", c.Log.Level, strings.Join(validLevels, ", "))
	}
	if f := strings.ToLower(c.Log.Format); f != "console" && f != "json" {
		add("log.format %q must be console or json", c.Log.Format)
	}

	if c.HTTP.Timeout < 0 {
		add("http.timeout must not be negative")
	}
	if c.HTTP.Proxy != "" {
		if u, err := url.Parse(c.HTTP.Proxy); err != nil || u.Host == "" {
			add("http.proxy %q is not a valid URL", c.HTTP.Proxy)
		}
	}
	if err := validateRate("http.rate", c.HTTP.Rate); err != nil {
		errs = append(errs, err)
	}

	for id, s := range c.Sources {
		if !slices.Contains(known, id) {
			add("sources.%s: unknown source", id)
		}
		if s.BaseURL != "" {
			u, err := url.Parse(s.BaseURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				add("sources.%s.base_url %q must be an absolute http(s) URL", id, s.BaseURL)
			}
		}
		if s.HeaderProfile != "" {
			if _, ok := c.HeaderProfiles[s.HeaderProfile]; !ok {
				add("sources.%s.header_profile %q is not defined in header_profiles", id, s.HeaderProfile)
			}
		}
		if s.Rate != nil {
			if err := validateRate("sources."+id+".rate", *s.Rate); err != nil {
				errs = append(errs, err)
			}
		}
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			add("cache.redis.addr is required with the redis backend")
		}
	default:
		add("cache.backend %q must be memory or redis", c.Cache.Backend)
	}
	for kind, fr := range c.Cache.Freshness {
		if !slices.Contains(sources.Kinds, sources.Kind(kind)) {
			add("cache.freshness.%s: unknown endpoint kind", kind)
			continue
		}
		if fr.MaxAge <= 0 {
			add("cache.freshness.%s.max_age must be positive", kind)
		}
		if fr.StaleWhileRevalidate < 0 {
			add("cache.freshness.%s.stale_while_revalidate must not be negative", kind)
		}
	}

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Crawl.Workers < 1 {
		add("crawl.workers must be at least 1")
	}

	return errors.Join(errs...)
}

func validateRate(field string, r RateConfig) error {
	if r.Requests < 0 {
		return fmt.Errorf("%s.requests must not be negative", field)
	}
	if r.Requests > 0 && r.Window <= 0 {
		return fmt.Errorf("%s.window must be positive when requests is set", field)
	}
	return nil
}
