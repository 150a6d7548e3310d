package research

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/extract"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/metrics"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
)

// Pool 有界并发地执行查询计划
type Pool struct {
	cfg      config.ResearchConfig
	searcher search.Searcher
	fetcher  extract.Fetcher
	limiter  *rate.Limiter
}

// PoolOption Pool 选项
type PoolOption func(*Pool)

// WithFetcher 启用短文档的正文抓取（还需 fetch_full_content=true）
func WithFetcher(f extract.Fetcher) PoolOption {
	return func(p *Pool) { p.fetcher = f }
}

// WithSearchLimiter 每次搜索前等待限流器
func WithSearchLimiter(l *rate.Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

func NewPool(cfg config.ResearchConfig, searcher search.Searcher, opts ...PoolOption) *Pool {
	p := &Pool{cfg: cfg.WithDefaults(), searcher: searcher}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute 执行全部查询，返回顺序与 queries 一致。
// deadline 覆盖整批查询；到期时未完成的查询记为 timeout，父 ctx 取消时记为 cancelled。
func (p *Pool) Execute(ctx context.Context, queries []string, deadline time.Duration) []model.QueryResult {
	ctx, span := tracer.Start(ctx, "research.batch", trace.WithAttributes(attribute.Int("batch.size", len(queries))))
	defer span.End()

	n := len(queries)
	results := make([]model.QueryResult, n)
	if n == 0 {
		return results
	}
	if deadline <= 0 {
		deadline = p.cfg.BatchDeadline
	}
	batchCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	workers := p.cfg.MaxInFlight
	if workers <= 0 || workers > n {
		workers = n
	}

	tasks := make(chan int, n)
	for i := range queries {
		tasks <- i
	}
	close(tasks)

	// 容量为 n，截止后迟到的写入不会阻塞 worker
	out := make(chan model.QueryResult, n)
	start := time.Now()
	for w := 0; w < workers; w++ {
		go func() {
			for i := range tasks {
				if batchCtx.Err() != nil {
					return
				}
				out <- p.runOne(batchCtx, i, queries[i])
			}
		}()
	}

	filled := make([]bool, n)
	remaining := n
	store := func(r model.QueryResult) {
		if !filled[r.Index] {
			results[r.Index] = r
			filled[r.Index] = true
			remaining--
		}
	}

	for remaining > 0 {
		select {
		case r := <-out:
			store(r)
		case <-batchCtx.Done():
			for drained := false; !drained; {
				select {
				case r := <-out:
					store(r)
				default:
					drained = true
				}
			}
			kind := ctxKind(batchCtx)
			for i := range results {
				if !filled[i] {
					results[i] = model.QueryResult{
						Index:   i,
						Query:   queries[i],
						Status:  model.StatusFailed,
						Err:     kind,
						Elapsed: time.Since(start),
					}
				}
			}
			remaining = 0
			logger.Log.Warnf("批次在 %v 后提前结束 (%s)，未完成的查询已标记失败", time.Since(start).Round(time.Millisecond), kind)
			span.SetStatus(codes.Error, string(kind))
		}
	}

	succeeded := 0
	for _, r := range results {
		metrics.RecordQuery(r)
		if r.Succeeded() {
			succeeded++
		}
	}
	span.SetAttributes(attribute.Int("batch.succeeded", succeeded))
	return results
}

func (p *Pool) runOne(ctx context.Context, index int, query string) model.QueryResult {
	ctx, span := tracer.Start(ctx, "research.query", trace.WithAttributes(
		attribute.Int("query.index", index),
		attribute.String("query.text", query),
	))
	defer span.End()

	start := time.Now()
	res := model.QueryResult{Index: index, Query: query, Status: model.StatusFailed}
	req := &search.Request{
		Query:      query,
		Depth:      p.cfg.SearchDepth,
		Topic:      p.cfg.SearchTopic,
		MaxResults: p.cfg.MaxResults,
	}
	log := logger.Log.WithFields(logrus.Fields{"query": query, "index": index})

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				// Wait 在令牌到达前就会超过截止时间时直接返回错误
				res.Err = model.ErrorTimeout
				if ctx.Err() != nil {
					res.Err = ctxKind(ctx)
				}
				break
			}
		}

		resp, err := p.search(ctx, req)
		if err == nil {
			res.Status = model.StatusSuccess
			res.Err = model.ErrorNone
			res.Documents = p.documents(ctx, resp.Results)
			break
		}

		if ctx.Err() != nil {
			res.Err = ctxKind(ctx)
			span.RecordError(err)
			break
		}
		res.Err = search.KindOf(err)
		if !res.Err.Transient() || attempt >= p.cfg.Retries() {
			log.WithFields(logrus.Fields{"error": err, "attempts": res.Attempts}).Warn("查询失败")
			span.RecordError(err)
			break
		}

		delay := p.backoff(attempt)
		log.WithFields(logrus.Fields{"error": err, "delay": delay}).Debug("查询失败，准备重试")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			res.Err = ctxKind(ctx)
			break
		}
	}

	res.Elapsed = time.Since(start)
	if !res.Succeeded() {
		span.SetStatus(codes.Error, string(res.Err))
	}
	span.SetAttributes(attribute.Int("query.documents", len(res.Documents)), attribute.Int("query.attempts", res.Attempts))
	return res
}

func (p *Pool) search(ctx context.Context, req *search.Request) (*search.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()
	resp, err := p.searcher.Search(attemptCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &search.Response{}, nil
	}
	return resp, nil
}

// backoff 指数退避：base * 2^attempt，不超过 BackoffMax
func (p *Pool) backoff(attempt int) time.Duration {
	d := p.cfg.BackoffBase
	for i := 0; i < attempt && d < p.cfg.BackoffMax; i++ {
		d *= 2
	}
	if d > p.cfg.BackoffMax {
		d = p.cfg.BackoffMax
	}
	return d
}

// documents 先按去空白后的字符数过滤，再截断
func (p *Pool) documents(ctx context.Context, results []search.Result) []model.Document {
	docs := make([]model.Document, 0, len(results))
	for _, r := range results {
		content := strings.TrimSpace(r.RawContent)
		if content == "" {
			content = strings.TrimSpace(r.Content)
		}

		if p.fetcher != nil && p.cfg.FetchFullContent && r.URL != "" && runeLen(content) < p.cfg.EnrichBelow {
			full, err := p.fetcher.Fetch(ctx, r.URL)
			if err != nil {
				logger.Log.WithFields(logrus.Fields{"url": r.URL, "error": err}).Debug("正文抓取失败，保留摘要")
			} else if full = strings.TrimSpace(full); runeLen(full) > runeLen(content) {
				content = full
			}
		}

		if runeLen(content) < p.cfg.MinContentLength {
			continue
		}
		docs = append(docs, model.Document{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: truncateRunes(strings.TrimSpace(r.Content), p.cfg.MaxContentLength),
			Content: truncateRunes(content, p.cfg.MaxContentLength),
			Score:   r.Score,
		})
	}
	return docs
}

func ctxKind(ctx context.Context) model.ErrorKind {
	if errors.Is(ctx.Err(), context.Canceled) {
		return model.ErrorCancelled
	}
	return model.ErrorTimeout
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
