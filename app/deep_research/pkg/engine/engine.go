package engine

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/extract"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/research"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search/factory"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/storage"
)

// Engine 按配置装配好的调研引擎
type Engine struct {
	*research.Orchestrator
	cfg *config.Config
}

// NewEngine 创建引擎实例：LLM、搜索客户端、限流器和正文抓取都在这里初始化
func NewEngine(ctx context.Context, cfg *config.Config, store storage.ProfileStore, opts ...research.Option) (*Engine, error) {
	var gen llm.Generator
	if cfg.LLM.Model != "" {
		g, err := llm.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		gen = g
	} else {
		logger.Log.Warn("未配置 LLM 模型，规划和报告只使用确定性模板")
	}

	// 初始化搜索客户端
	searcher, err := factory.NewSearcher(cfg)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	var poolOpts []research.PoolOption
	if cfg.Research.FetchFullContent {
		poolOpts = append(poolOpts, research.WithFetcher(extract.NewReadabilityFetcher(cfg.Research.AttemptTimeout)))
	}
	if cfg.Concurrency.SearchRPS > 0 {
		burst := int(cfg.Concurrency.SearchRPS)
		if burst < 1 {
			burst = 1
		}
		poolOpts = append(poolOpts, research.WithSearchLimiter(rate.NewLimiter(rate.Limit(cfg.Concurrency.SearchRPS), burst)))
	}

	opts = append([]research.Option{research.WithPoolOptions(poolOpts...)}, opts...)
	return &Engine{
		Orchestrator: research.NewOrchestrator(cfg.Research, store, searcher, gen, opts...),
		cfg:          cfg,
	}, nil
}

// Config 返回引擎使用的配置
func (e *Engine) Config() *config.Config {
	return e.cfg
}
