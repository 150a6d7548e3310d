package search

import (
	"context"
	"errors"
	"net"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

// Searcher 定义通用的搜索接口，实现需支持并发调用
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 通用搜索请求
type Request struct {
	Query             string
	Depth             string // "basic" or "advanced"
	Topic             string // "news" or "general"
	MaxResults        int
	IncludeRawContent bool
	IncludeAnswer     bool
	StartDate         string // Format: YYYY-MM-DD
	EndDate           string // Format: YYYY-MM-DD
}

// Response 通用搜索响应
type Response struct {
	Answer  string
	Results []Result
}

// Result 单条搜索结果
type Result struct {
	Title         string
	URL           string
	Content       string
	RawContent    string
	Score         float64
	PublishedDate string
}

// 搜索失败分类，适配器返回时用 %w 包装
var (
	ErrTimeout      = errors.New("search timeout")
	ErrRateLimited  = errors.New("search rate limited")
	ErrTransport    = errors.New("search transport error")
	ErrInvalidQuery = errors.New("invalid search query")
)

// KindOf 将错误归类为 model.ErrorKind
func KindOf(err error) model.ErrorKind {
	if err == nil {
		return model.ErrorNone
	}
	switch {
	case errors.Is(err, context.Canceled):
		return model.ErrorCancelled
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return model.ErrorTimeout
	case errors.Is(err, ErrRateLimited):
		return model.ErrorRateLimited
	case errors.Is(err, ErrInvalidQuery):
		return model.ErrorInvalidQuery
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorTimeout
	}
	return model.ErrorTransport
}
