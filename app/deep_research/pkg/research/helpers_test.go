package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
)

func fullContext() model.BusinessContext {
	return model.BusinessContext{
		model.FieldCompanyName: "Pollería Don Tito",
		model.FieldLocation:    "Lima Norte",
		model.FieldProducts:    "pollo a la brasa, parrillas, delivery, bebidas",
		model.FieldDescription: "Restaurante familiar de pollo a la brasa con 10 años en el barrio",
		model.FieldChallenges:  "competencia de cadenas grandes, costos de insumos",
	}
}

// fastConfig 测试用的短退避配置
func fastConfig() config.ResearchConfig {
	return config.ResearchConfig{
		BackoffBase:    time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		AttemptTimeout: time.Second,
		BatchDeadline:  5 * time.Second,
	}.WithDefaults()
}

// stubSearcher 用函数模拟搜索服务并统计调用次数
type stubSearcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req *search.Request) (*search.Response, error)
}

func (s *stubSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	s.calls.Add(1)
	return s.fn(ctx, req)
}

// docsResponse 返回 n 条内容长度为 size 的结果
func docsResponse(query string, n, size int) *search.Response {
	resp := &search.Response{}
	for i := 0; i < n; i++ {
		resp.Results = append(resp.Results, search.Result{
			Title:   query + " " + string(rune('A'+i)),
			URL:     "https://example.com/" + strings.ReplaceAll(query, " ", "-") + "/" + string(rune('a'+i)),
			Content: strings.Repeat("x", size),
			Score:   1 - float64(i)/10,
		})
	}
	return resp
}

// stubGenerator 按系统提示区分规划和综合
type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	plan    func() (string, error)
	report  func(prompt string) (string, error)
}

func (g *stubGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if system == planningSystemPrompt {
		if g.plan == nil {
			return "", errGenerationDown
		}
		return g.plan()
	}
	if g.report == nil {
		return "", errGenerationDown
	}
	return g.report(prompt)
}

func (g *stubGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

var errGenerationDown = errors.New("generation service unavailable")

const wellFormedReport = `**RESUMEN EJECUTIVO**
El delivery crece en Lima Norte.

**OPORTUNIDADES IDENTIFICADAS**
- Combos familiares por aplicación

**RECOMENDACIONES PRIORITARIAS**
- Negociar comisiones con agregadores

**PRÓXIMOS PASOS**
- Medir ticket promedio semanal`
