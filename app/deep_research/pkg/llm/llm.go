package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
)

// Generator 文本生成能力，规划与综合都只依赖这一个方法
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

var (
	ErrTimeout         = errors.New("llm timeout")
	ErrQuotaExceeded   = errors.New("llm quota exceeded")
	ErrInvalidResponse = errors.New("llm invalid response")
)

// ChatGenerator 基于 eino ChatModel 的 Generator 实现
type ChatGenerator struct {
	cm         model.BaseChatModel
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

// Option ChatGenerator 选项
type Option func(*ChatGenerator)

// WithLimiter 每次调用前等待限流器
func WithLimiter(l *rate.Limiter) Option {
	return func(g *ChatGenerator) { g.limiter = l }
}

// WithRetry 配额错误（429）的重试次数与退避基数
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(g *ChatGenerator) {
		if maxRetries >= 0 {
			g.maxRetries = maxRetries
		}
		if baseDelay > 0 {
			g.baseDelay = baseDelay
		}
	}
}

// NewChatGenerator 包装一个已创建的 ChatModel
func NewChatGenerator(cm model.BaseChatModel, opts ...Option) *ChatGenerator {
	g := &ChatGenerator{cm: cm, maxRetries: 2, baseDelay: 2 * time.Second}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig 按配置初始化 OpenAI 兼容模型和限流器
func NewFromConfig(ctx context.Context, cfg *config.Config) (*ChatGenerator, error) {
	temperature := float32(0.3)
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	var opts []Option
	if cfg.Concurrency.RPM > 0 {
		burst := cfg.Concurrency.QPS
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, WithLimiter(rate.NewLimiter(rate.Limit(float64(cfg.Concurrency.RPM)/60.0), burst)))
	}
	return NewChatGenerator(chatModel, opts...), nil
}

// Generate 发送 system + user 消息并返回清理后的文本
func (g *ChatGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]*schema.Message, 0, 2)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(prompt))

	var lastErr error
	for i := 0; i <= g.maxRetries; i++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", classify(ctx, err)
			}
		}

		resp, err := g.cm.Generate(ctx, messages)
		if err != nil {
			lastErr = classify(ctx, err)
			if errors.Is(lastErr, ErrQuotaExceeded) && i < g.maxRetries {
				delay := g.baseDelay * time.Duration(1<<i)
				logger.Log.Warnf("LLM 触发限流，%v 后重试 (%d/%d)", delay, i+1, g.maxRetries)
				select {
				case <-time.After(delay):
					continue
				case <-ctx.Done():
					return "", classify(ctx, ctx.Err())
				}
			}
			return "", lastErr
		}

		content := CleanFences(resp.Content)
		if content == "" {
			return "", fmt.Errorf("%w: empty content", ErrInvalidResponse)
		}
		return content, nil
	}
	return "", lastErr
}

// CleanFences 去掉 ```json / ``` 包裹
func CleanFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " \t") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrInvalidResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"), strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
