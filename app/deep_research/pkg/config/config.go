package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Research    ResearchConfig    `yaml:"research"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// DBConfig 数据库相关配置，Host 为空表示不使用 PostgreSQL 画像存储
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN 返回 lib/pq 连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider string        `yaml:"provider"`
	Tavily   TavilyConfig  `yaml:"tavily"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
	Cache    CacheConfig   `yaml:"cache"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// CacheConfig 搜索结果 Redis 缓存，Addr 为空表示不启用
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ResearchConfig 调研引擎参数
type ResearchConfig struct {
	MinQueries     int    `yaml:"min_queries"`
	MaxQueries     int    `yaml:"max_queries"`
	MinQueryLength int    `yaml:"min_query_length"`
	MaxQueryLength int    `yaml:"max_query_length"`
	UseGenerator   *bool  `yaml:"use_generator"` // nil 视为 true
	MaxResults     int    `yaml:"max_results"`
	SearchDepth    string `yaml:"search_depth"`
	SearchTopic    string `yaml:"search_topic"`

	MaxRetries     *int          `yaml:"max_retries"` // nil 取默认值 2，0 表示不重试
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	BatchDeadline  time.Duration `yaml:"batch_deadline"`
	MaxInFlight    int           `yaml:"max_in_flight"`

	MinContentLength int  `yaml:"min_content_length"`
	MaxContentLength int  `yaml:"max_content_length"`
	FetchFullContent bool `yaml:"fetch_full_content"`
	EnrichBelow      int  `yaml:"enrich_below"`

	MaxPromptChars int `yaml:"max_prompt_chars"`
	DocsPerQuery   int `yaml:"docs_per_query"`
	ExcerptChars   int `yaml:"excerpt_chars"`
}

const defaultMaxRetries = 2

// Retries 瞬时错误的最大重试次数
func (c ResearchConfig) Retries() int {
	if c.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *c.MaxRetries
}

// GeneratorEnabled 是否允许用 LLM 生成查询
func (c ResearchConfig) GeneratorEnabled() bool {
	return c.UseGenerator == nil || *c.UseGenerator
}

// WithDefaults 为零值字段填充默认值
func (c ResearchConfig) WithDefaults() ResearchConfig {
	if c.MinQueries <= 0 {
		c.MinQueries = 4
	}
	if c.MaxQueries <= 0 {
		c.MaxQueries = 6
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = 10
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = 200
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 4
	}
	if c.SearchDepth == "" {
		c.SearchDepth = "advanced"
	}
	if c.SearchTopic == "" {
		c.SearchTopic = "general"
	}
	if c.MaxRetries == nil {
		retries := defaultMaxRetries
		c.MaxRetries = &retries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 4 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	if c.BatchDeadline <= 0 {
		c.BatchDeadline = 60 * time.Second
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = 50
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 800
	}
	if c.EnrichBelow <= 0 {
		c.EnrichBelow = 500
	}
	if c.MaxPromptChars <= 0 {
		c.MaxPromptChars = 6000
	}
	if c.DocsPerQuery <= 0 {
		c.DocsPerQuery = 2
	}
	if c.ExcerptChars <= 0 {
		c.ExcerptChars = 200
	}
	return c
}

// Validate 检查参数之间的一致性，需在 WithDefaults 之后调用
func (c ResearchConfig) Validate() error {
	if c.MinQueries > c.MaxQueries {
		return fmt.Errorf("research.min_queries (%d) > research.max_queries (%d)", c.MinQueries, c.MaxQueries)
	}
	if c.MinQueryLength > c.MaxQueryLength {
		return fmt.Errorf("research.min_query_length (%d) > research.max_query_length (%d)", c.MinQueryLength, c.MaxQueryLength)
	}
	if c.MinContentLength > c.MaxContentLength {
		return fmt.Errorf("research.min_content_length (%d) > research.max_content_length (%d)", c.MinContentLength, c.MaxContentLength)
	}
	if c.Retries() < 0 {
		return fmt.Errorf("research.max_retries must not be negative")
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("research.max_in_flight must not be negative")
	}
	if c.SearchDepth != "basic" && c.SearchDepth != "advanced" {
		return fmt.Errorf("research.search_depth must be basic or advanced, got %q", c.SearchDepth)
	}
	return nil
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS       int     `yaml:"qps"`
	RPM       int     `yaml:"rpm"`
	SearchRPS float64 `yaml:"search_rps"` // 0 表示搜索不限流
}

// LoadConfig 从指定路径加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Research = cfg.Research.WithDefaults()
	if err := cfg.Research.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
