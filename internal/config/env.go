package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvPrefix = "SHOWSCRAPE_"

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides file values with SHOWSCRAPE_* variables.
func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("DEFAULT_SOURCE", &c.DefaultSource)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("HTTP_PROXY", &c.HTTP.Proxy)
	str("CACHE_BACKEND", &c.Cache.Backend)
	str("REDIS_ADDR", &c.Cache.Redis.Addr)
	str("REDIS_PASSWORD", &c.Cache.Redis.Password)
	str("REDIS_PREFIX", &c.Cache.Redis.Prefix)
	str("SERVER_ADDR", &c.Server.Addr)

	if err := envBool(lookup, "DEBUG", &c.Debug); err != nil {
		return err
	}
	if err := envBool(lookup, "HTTP_CLOUDFLARE", &c.HTTP.Cloudflare); err != nil {
		return err
	}
	if err := envInt(lookup, "REDIS_DB", &c.Cache.Redis.DB); err != nil {
		return err
	}
	if err := envInt(lookup, "CRAWL_WORKERS", &c.Crawl.Workers); err != nil {
		return err
	}
	if err := envDuration(lookup, "HTTP_TIMEOUT", &c.HTTP.Timeout); err != nil {
		return err
	}
	return nil
}

func envBool(lookup lookupFunc, name string, dst *bool) error {
	v, ok := lookup(EnvPrefix + name)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = b
	return nil
}

func envInt(lookup lookupFunc, name string, dst *int) error {
	v, ok := lookup(EnvPrefix + name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = n
	return nil
}

func envDuration(lookup lookupFunc, name string, dst *time.Duration) error {
	v, ok := lookup(EnvPrefix + name)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
	}
	*dst = d
	return nil
}
