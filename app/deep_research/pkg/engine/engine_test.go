package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/storage"
)

func TestNewEngine_RequiresSearchProvider(t *testing.T) {
	_, err := NewEngine(context.Background(), &config.Config{}, nil)
	assert.ErrorContains(t, err, "搜索客户端初始化失败")
}

// 不配置 LLM 时走模板路径，搜索请求打到本地 Tavily 兼容服务
func TestEngine_EndToEndWithoutLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		q, _ := body["query"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": q, "url": "https://example.com/" + strings.ReplaceAll(q, " ", "-"), "content": strings.Repeat("dato relevante ", 10), "score": 0.9},
				{"title": "corto", "url": "https://example.com/corto", "content": "muy corto", "score": 0.1},
			},
		})
	}))
	defer srv.Close()

	cfg := &config.Config{Search: config.SearchConfig{
		Provider: "tavily",
		Tavily:   config.TavilyConfig{APIKey: "test", BaseURL: srv.URL},
	}}
	cfg.Research = cfg.Research.WithDefaults()

	store := storage.NewMemoryStore()
	store.Put("s-1", model.BusinessContext{
		model.FieldCompanyName: "Café Andino",
		model.FieldLocation:    "Cusco",
		model.FieldProducts:    "café de especialidad, postres",
		model.FieldDescription: "Cafetería para turistas en el centro histórico",
	})

	e, err := NewEngine(context.Background(), cfg, store)
	require.NoError(t, err)
	assert.Same(t, cfg, e.Config())

	res, err := e.RunDeepResearch(context.Background(), "s-1", "tendencias")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, len(res.Plan), res.TotalSources)
	require.NotNil(t, res.Report)
	assert.True(t, res.Report.Degraded)
	assert.Contains(t, res.Report.Render(), "**OPORTUNIDADES IDENTIFICADAS**")
}
