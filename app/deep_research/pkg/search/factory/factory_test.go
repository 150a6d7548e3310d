package factory

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search/cache"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/searxng"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/tavily"
)

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		want    any
		wantErr string
	}{
		{
			name: "implicit tavily",
			cfg:  config.Config{Search: config.SearchConfig{Tavily: config.TavilyConfig{APIKey: "k"}}},
			want: &tavily.Client{},
		},
		{
			name: "searxng",
			cfg: config.Config{Search: config.SearchConfig{
				Provider: "searxng",
				SearXNG:  config.SearXNGConfig{BaseURL: "http://localhost:8888"},
			}},
			want: &searxng.Client{},
		},
		{
			name:    "nothing configured",
			wantErr: "search provider not configured",
		},
		{
			name:    "tavily without key",
			cfg:     config.Config{Search: config.SearchConfig{Provider: "tavily"}},
			wantErr: "tavily api key is missing",
		},
		{
			name:    "searxng without url",
			cfg:     config.Config{Search: config.SearchConfig{Provider: "searxng"}},
			wantErr: "searxng base url is missing",
		},
		{
			name:    "unknown",
			cfg:     config.Config{Search: config.SearchConfig{Provider: "bing"}},
			wantErr: "unknown search provider: bing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSearcher(&tt.cfg)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestNewSearcher_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{Search: config.SearchConfig{
		Provider: "tavily",
		Tavily:   config.TavilyConfig{APIKey: "k"},
		Cache:    config.CacheConfig{Addr: mr.Addr()},
	}}

	s, err := NewSearcher(&cfg)
	require.NoError(t, err)
	assert.IsType(t, &cache.Searcher{}, s)
}
