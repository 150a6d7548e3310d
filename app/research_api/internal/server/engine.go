package server

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/engine"
	drLogger "github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/research"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/storage"
	"github.com/iWorld-y/deep_research/app/research_api/internal/conf"
)

// NewResearchEngine 初始化调研引擎及其画像存储
func NewResearchEngine(ctx context.Context, c *conf.Research, logger log.Logger) (*engine.Engine, storage.ProfileStore, func(), error) {
	helper := log.NewHelper(logger)
	if c == nil {
		return nil, nil, nil, fmt.Errorf("research config is missing")
	}

	drCfg, err := ToConfig(c)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := drLogger.InitLogger(drCfg.Log.Level, drCfg.Log.File); err != nil {
		helper.Errorf("Failed to init research logger: %v", err)
		_ = drLogger.InitLogger("info", "") // 降级处理
	}

	store, closeStore, err := newProfileStore(drCfg.DB, c.Profiles)
	if err != nil {
		helper.Errorf("Failed to init profile store: %v", err)
		return nil, nil, nil, err
	}

	eng, err := engine.NewEngine(ctx, drCfg, store, research.WithStateHook(func(runID string, from, to research.State) {
		helper.Debugf("run %s: %s -> %s", runID, from, to)
	}))
	if err != nil {
		closeStore()
		helper.Errorf("Failed to init engine: %v", err)
		return nil, nil, nil, err
	}

	cleanup := func() {
		helper.Info("Cleaning up research engine")
		closeStore()
	}
	return eng, store, cleanup, nil
}

func newProfileStore(db config.DBConfig, seed map[string]map[string]string) (storage.ProfileStore, func(), error) {
	if db.Host != "" {
		pg, err := storage.NewPostgresStore(db)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	}
	mem := storage.NewMemoryStore()
	for session, profile := range seed {
		mem.Put(session, model.BusinessContext(profile))
	}
	return mem, func() {}, nil
}

// ToConfig 将 conf.Research 转换为引擎使用的 config.Config
func ToConfig(c *conf.Research) (*config.Config, error) {
	cfg := &config.Config{}

	if l := c.Llm; l != nil {
		timeout, err := parseDuration("llm.timeout", l.Timeout)
		if err != nil {
			return nil, err
		}
		cfg.LLM = config.LLMConfig{BaseURL: l.BaseUrl, APIKey: l.ApiKey, Model: l.Model, Timeout: timeout}
	}

	if s := c.Search; s != nil {
		cfg.Search.Provider = s.Provider
		if s.Tavily != nil {
			cfg.Search.Tavily = config.TavilyConfig{APIKey: s.Tavily.ApiKey, BaseURL: s.Tavily.BaseUrl}
		}
		if s.Searxng != nil {
			cfg.Search.SearXNG = config.SearXNGConfig{BaseURL: s.Searxng.BaseUrl, Timeout: int(s.Searxng.Timeout)}
		}
		if s.Cache != nil {
			ttl, err := parseDuration("search.cache.ttl", s.Cache.Ttl)
			if err != nil {
				return nil, err
			}
			cfg.Search.Cache = config.CacheConfig{Addr: s.Cache.Addr, Password: s.Cache.Password, DB: int(s.Cache.Db), TTL: ttl}
		}
	}

	if e := c.Engine; e != nil {
		rc := config.ResearchConfig{
			MinQueries:       int(e.MinQueries),
			MaxQueries:       int(e.MaxQueries),
			MinQueryLength:   int(e.MinQueryLength),
			MaxQueryLength:   int(e.MaxQueryLength),
			UseGenerator:     e.UseGenerator,
			MaxResults:       int(e.MaxResults),
			SearchDepth:      e.SearchDepth,
			SearchTopic:      e.SearchTopic,
			MaxInFlight:      int(e.MaxInFlight),
			MinContentLength: int(e.MinContentLength),
			MaxContentLength: int(e.MaxContentLength),
			FetchFullContent: e.FetchFullContent,
			EnrichBelow:      int(e.EnrichBelow),
			MaxPromptChars:   int(e.MaxPromptChars),
			DocsPerQuery:     int(e.DocsPerQuery),
			ExcerptChars:     int(e.ExcerptChars),
		}
		if e.MaxRetries != nil {
			retries := int(*e.MaxRetries)
			rc.MaxRetries = &retries
		}
		durations := []struct {
			name string
			raw  string
			dst  *time.Duration
		}{
			{"engine.backoff_base", e.BackoffBase, &rc.BackoffBase},
			{"engine.backoff_max", e.BackoffMax, &rc.BackoffMax},
			{"engine.attempt_timeout", e.AttemptTimeout, &rc.AttemptTimeout},
			{"engine.batch_deadline", e.BatchDeadline, &rc.BatchDeadline},
		}
		for _, d := range durations {
			v, err := parseDuration(d.name, d.raw)
			if err != nil {
				return nil, err
			}
			*d.dst = v
		}
		cfg.Research = rc
	}
	cfg.Research = cfg.Research.WithDefaults()
	if err := cfg.Research.Validate(); err != nil {
		return nil, err
	}

	if l := c.Log; l != nil {
		cfg.Log = config.LogConfig{Level: l.Level, File: l.File}
	}
	if cc := c.Concurrency; cc != nil {
		cfg.Concurrency = config.ConcurrencyConfig{QPS: int(cc.Qps), RPM: int(cc.Rpm), SearchRPS: cc.SearchRps}
	}
	if db := c.Db; db != nil {
		cfg.DB = config.DBConfig{Host: db.Host, Port: int(db.Port), User: db.User, Password: db.Password, Name: db.Name}
	}
	return cfg, nil
}

func parseDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return d, nil
}
