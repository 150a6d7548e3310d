package factory

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search/cache"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/searxng"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例，配置了 search.cache.addr 时包一层 Redis 缓存
func NewSearcher(cfg *config.Config) (search.Searcher, error) {
	base, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	cc := cfg.Search.Cache
	if cc.Addr == "" {
		return base, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cc.Addr,
		Password:    cc.Password,
		DB:          cc.DB,
		DialTimeout: 2 * time.Second,
	})
	logger.Log.Infof("搜索结果缓存已启用: %s", cc.Addr)
	return cache.New(base, rdb, cc.TTL), nil
}

func newProvider(cfg *config.Config) (search.Searcher, error) {
	provider := cfg.Search.Provider
	if provider == "" {
		// 默认回退逻辑：如果有 tavily key，则使用 tavily
		if cfg.Search.Tavily.APIKey != "" {
			provider = "tavily"
		} else {
			return nil, fmt.Errorf("search provider not configured")
		}
	}

	switch provider {
	case "tavily":
		if cfg.Search.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		return tavily.NewClient(cfg.Search.Tavily.APIKey, tavily.WithBaseURL(cfg.Search.Tavily.BaseURL)), nil

	case "searxng":
		baseURL := cfg.Search.SearXNG.BaseURL
		if baseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		return searxng.NewClient(baseURL, cfg.Search.SearXNG.Timeout), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s", provider)
	}
}
