package conf

type Bootstrap struct {
	Server   *Server   `json:"server"`
	Research *Research `json:"research"`
}

type Server struct {
	Http *HTTP `json:"http"`
}

type HTTP struct {
	Addr    string `json:"addr"`
	Timeout string `json:"timeout"`
}

// Research 调研引擎配置，时间字段使用 time.ParseDuration 格式
type Research struct {
	Llm         *LLM                         `json:"llm"`
	Search      *Search                      `json:"search"`
	Engine      *Engine                      `json:"engine"`
	Log         *Log                         `json:"log"`
	Concurrency *Concurrency                 `json:"concurrency"`
	Db          *DB                          `json:"db"`
	Profiles    map[string]map[string]string `json:"profiles"` // Db 未配置时预置到内存存储
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
	Timeout string `json:"timeout"`
}

type Search struct {
	Provider string   `json:"provider"`
	Tavily   *Tavily  `json:"tavily"`
	Searxng  *SearXNG `json:"searxng"`
	Cache    *Cache   `json:"cache"`
}

type Tavily struct {
	ApiKey  string `json:"api_key"`
	BaseUrl string `json:"base_url"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type Cache struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	Db       int32  `json:"db"`
	Ttl      string `json:"ttl"`
}

type Engine struct {
	MinQueries       int32  `json:"min_queries"`
	MaxQueries       int32  `json:"max_queries"`
	MinQueryLength   int32  `json:"min_query_length"`
	MaxQueryLength   int32  `json:"max_query_length"`
	UseGenerator     *bool  `json:"use_generator"`
	MaxResults       int32  `json:"max_results"`
	SearchDepth      string `json:"search_depth"`
	SearchTopic      string `json:"search_topic"`
	MaxRetries       *int32 `json:"max_retries"` // 不填取默认值，0 表示不重试
	BackoffBase      string `json:"backoff_base"`
	BackoffMax       string `json:"backoff_max"`
	AttemptTimeout   string `json:"attempt_timeout"`
	BatchDeadline    string `json:"batch_deadline"`
	MaxInFlight      int32  `json:"max_in_flight"`
	MinContentLength int32  `json:"min_content_length"`
	MaxContentLength int32  `json:"max_content_length"`
	FetchFullContent bool   `json:"fetch_full_content"`
	EnrichBelow      int32  `json:"enrich_below"`
	MaxPromptChars   int32  `json:"max_prompt_chars"`
	DocsPerQuery     int32  `json:"docs_per_query"`
	ExcerptChars     int32  `json:"excerpt_chars"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps       int32   `json:"qps"`
	Rpm       int32   `json:"rpm"`
	SearchRps float64 `json:"search_rps"`
}

type DB struct {
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}
