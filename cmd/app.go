package cmd

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/brogergvhs/showscrape/internal/cache"
	"github.com/brogergvhs/showscrape/internal/config"
	"github.com/brogergvhs/showscrape/internal/engine"
	"github.com/brogergvhs/showscrape/internal/fetch"
	"github.com/brogergvhs/showscrape/internal/metrics"
	"github.com/brogergvhs/showscrape/internal/sources"
	"github.com/brogergvhs/showscrape/internal/ui"
	"github.com/brogergvhs/showscrape/internal/util"
)

const memorySweepInterval = 5 * time.Minute

// app is everything a command needs once the config is resolved.
type app struct {
	cfg     *config.Config
	used    string
	log     *ui.Logger
	reg     *sources.Registry
	eng     *engine.Engine
	metrics *metrics.Metrics
	closers []func() error
}

func loadConfig(opts config.Options) (*config.Config, string, error) {
	opts.IgnoreConfig = flagIgnoreConfig
	opts.Path = flagConfigPath
	opts.Debug = opts.Debug || flagDebug
	if opts.DefaultSource == "" && flagSource != pickMarker {
		opts.DefaultSource = flagSource
	}
	return config.LoadMerged(opts)
}

// newApp loads and validates the config, then builds the engine.
func newApp(ctx context.Context, opts config.Options) (*app, error) {
	cfg, used, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	reg := sources.Builtin()
	if err := cfg.Validate(reg.IDs()); err != nil {
		return nil, fmt.Errorf("invalid config (%s):\n%w", used, err)
	}

	log, err := ui.NewLoggerWith(ui.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, used: used, log: log, reg: reg, metrics: metrics.New()}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	limiter := fetch.NewDomainLimiter(cfg.HTTP.Delay, fetch.RateLimiterSettings{
		Requests: cfg.HTTP.Rate.Requests,
		Window:   cfg.HTTP.Rate.Window,
	})
	for id, sc := range cfg.Sources {
		src, _ := a.reg.Get(id)
		if sc.BaseURL != "" {
			src.BaseURL = sc.BaseURL
		}
		if sc.HeaderProfile != "" {
			src.HeaderProfile = sc.HeaderProfile
		}
		if sc.Rate != nil {
			if u, err := url.Parse(src.BaseURL); err == nil {
				limiter.SetHostRate(u.Hostname(), fetch.RateLimiterSettings{Requests: sc.Rate.Requests, Window: sc.Rate.Window})
			}
		}
	}

	hc, err := util.NewHTTPClient(util.HTTPClientOptions{
		UserAgent:        cfg.HTTP.UserAgent,
		Proxy:            cfg.HTTP.Proxy,
		CloudflareBypass: cfg.HTTP.Cloudflare,
		DebugLogger:      a.log,
	})
	if err != nil {
		return fmt.Errorf("http client: %w", err)
	}
	client := fetch.New(hc, fetch.Options{
		Timeout:  cfg.HTTP.Timeout,
		Profiles: cfg.HeaderProfiles,
		Limiter:  limiter,
		Logger:   a.log,
	})

	volatile, catalog, err := a.stores(ctx)
	if err != nil {
		return err
	}

	retry := engine.RetryOptions{Retries: cfg.HTTP.Retries}
	if retry.Retries <= 0 {
		retry.Retries = -1
	}

	a.eng, err = engine.New(engine.Options{
		Registry:      a.reg,
		Fetcher:       client,
		VolatileStore: volatile,
		CatalogStore:  catalog,
		Freshness:     cfg.FreshnessByKind(),
		Retry:         retry,
		Metrics:       a.metrics,
		Logger:        a.log,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { a.eng.Close(); return nil })
	return nil
}

func (a *app) stores(ctx context.Context) (cache.Store, cache.Store, error) {
	if a.cfg.Cache.Backend != config.BackendRedis {
		volatile, catalog := cache.NewMemoryStore(), cache.NewMemoryStore()
		ctx, cancel := context.WithCancel(ctx)
		a.closers = append(a.closers, func() error { cancel(); return nil })
		for name, st := range map[string]*cache.MemoryStore{engine.TierVolatile: volatile, engine.TierCatalog: catalog} {
			go st.SweepEvery(ctx, memorySweepInterval, func(removed, left int) {
				if removed > 0 {
					a.log.Debugf("%s cache: swept %d expired, %d left", name, removed, left)
				}
			})
		}
		return volatile, catalog, nil
	}

	rc := a.cfg.Cache.Redis
	open := func(tier string) (*cache.RedisStore, error) {
		st, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix + tier + ":",
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	}

	volatile, err := open(engine.TierVolatile)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := open(engine.TierCatalog)
	if err != nil {
		return nil, nil, err
	}
	a.log.Debugf("redis cache at %s (db %d)", rc.Addr, rc.DB)
	return volatile, catalog, nil
}

// Close stops the engine and releases backends, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnf("close: %v", err)
		}
	}
	a.closers = nil
	a.log.Sync()
}

// sourceID resolves the source for a command: the --source flag, then the
// configured default. "--source ?" or an empty default asks interactively.
func (a *app) sourceID() (string, error) {
	if flagSource != pickMarker && a.cfg.DefaultSource != "" {
		if _, ok := a.reg.Get(a.cfg.DefaultSource); !ok {
			return "", fmt.Errorf("unknown source %q", a.cfg.DefaultSource)
		}
		return a.cfg.DefaultSource, nil
	}
	return pickSource(a.eng.Sources())
}
