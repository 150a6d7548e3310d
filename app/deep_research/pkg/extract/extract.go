package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// Fetcher 抓取网页正文
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// ReadabilityFetcher 使用 readability 提取正文
type ReadabilityFetcher struct {
	client *http.Client
}

// NewReadabilityFetcher timeout 为 0 时默认 30 秒，这里的超时设置很重要，防止挂起
func NewReadabilityFetcher(timeout time.Duration) *ReadabilityFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReadabilityFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch 抓取 URL 并提取核心文本
func (f *ReadabilityFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; deep-research/1.0)")

	res, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, res.StatusCode)
	}

	article, err := readability.FromReader(res.Body, u)
	if err != nil {
		return "", fmt.Errorf("readability parse failed: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
