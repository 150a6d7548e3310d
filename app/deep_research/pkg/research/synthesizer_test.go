package research

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

func doc(title, content string) model.Document {
	return model.Document{Title: title, URL: "https://example.com/" + title, Content: content}
}

// partialResults 5 条查询中 2 条失败，成功的共 6 条文档
func partialResults() []model.QueryResult {
	return []model.QueryResult{
		{Index: 0, Query: "q0", Status: model.StatusSuccess, Documents: []model.Document{doc("a", "contenido a"), doc("b", "contenido b")}},
		{Index: 1, Query: "q1", Status: model.StatusFailed, Err: model.ErrorTimeout},
		{Index: 2, Query: "q2", Status: model.StatusSuccess, Documents: []model.Document{doc("c", "contenido c")}},
		{Index: 3, Query: "q3", Status: model.StatusFailed, Err: model.ErrorRateLimited},
		{Index: 4, Query: "q4", Status: model.StatusSuccess, Documents: []model.Document{doc("d", "d"), doc("e", "e"), doc("f", "f")}},
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(partialResults())
	assert.Equal(t, Stats{Attempted: 5, Succeeded: 3, TotalSources: 6}, stats)
	assert.Equal(t, "3/5 búsquedas exitosas", stats.ExecutionSummary())

	// 失败记录即使带了文档也不计入来源
	withStray := append(partialResults(), model.QueryResult{Status: model.StatusFailed, Documents: []model.Document{doc("x", "x")}})
	assert.Equal(t, 6, ComputeStats(withStray).TotalSources)
}

func TestSynthesize_PartialFailure(t *testing.T) {
	gen := &stubGenerator{report: func(prompt string) (string, error) { return wellFormedReport, nil }}
	report := NewSynthesizer(fastConfig(), gen).Synthesize(context.Background(), "tendencias para Pollería Don Tito", fullContext(), partialResults())

	assert.False(t, report.Degraded)
	assert.False(t, report.DataUnavailable)
	assert.Equal(t, "El delivery crece en Lima Norte.", report.ExecutiveSummary)
	assert.Equal(t, "- Combos familiares por aplicación", report.Opportunities)
	assert.Equal(t, "- Negociar comisiones con agregadores", report.Recommendations)
	assert.Equal(t, "- Medir ticket promedio semanal", report.NextSteps)
	assert.Equal(t, 6, report.SourcesAnalyzed)
	assert.Contains(t, report.Render(), "5 consultas ejecutadas, 6 fuentes analizadas, 3/5 búsquedas exitosas")

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Pollería Don Tito")
	assert.Contains(t, gen.prompts[0], "(6 fuentes consultadas)")
	assert.NotContains(t, gen.prompts[0], "**q1:**")
}

func TestSynthesize_ZeroSuccess(t *testing.T) {
	results := []model.QueryResult{
		{Index: 0, Query: "q0", Status: model.StatusFailed, Err: model.ErrorTimeout},
		{Index: 1, Query: "q1", Status: model.StatusFailed, Err: model.ErrorTransport},
	}
	gen := &stubGenerator{report: func(prompt string) (string, error) { return wellFormedReport, nil }}
	report := NewSynthesizer(fastConfig(), gen).Synthesize(context.Background(), "t", fullContext(), results)

	assert.True(t, report.DataUnavailable)
	assert.True(t, strings.HasPrefix(report.ExecutiveSummary, DataUnavailableNotice))
	assert.Equal(t, 0, report.SourcesAnalyzed)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "no se pudo obtener información actualizada")
}

func TestSynthesize_SuccessWithoutSourcesIsDataUnavailable(t *testing.T) {
	results := []model.QueryResult{{Query: "q0", Status: model.StatusSuccess}}
	report := NewSynthesizer(fastConfig(), nil).Synthesize(context.Background(), "t", fullContext(), results)
	assert.True(t, report.DataUnavailable)
	assert.True(t, report.Degraded)
	assert.Contains(t, report.Render(), "1/1 búsquedas exitosas")
}

func TestSynthesize_GenerationFailureUsesTemplate(t *testing.T) {
	gen := &stubGenerator{}
	report := NewSynthesizer(fastConfig(), gen).Synthesize(context.Background(), "t", fullContext(), partialResults())

	assert.True(t, report.Degraded)
	assert.False(t, report.DataUnavailable)
	assert.Contains(t, report.ExecutiveSummary, "no fue posible redactar el análisis final")
	assert.Contains(t, report.Opportunities, "- a (https://example.com/a)")
	assert.Contains(t, report.Recommendations, "- Profundizar en: q0")
	assert.NotContains(t, report.Recommendations, "q1")
	assert.NotEmpty(t, report.NextSteps)
	assert.Contains(t, report.Render(), "3/5 búsquedas exitosas")
}

func TestSynthesize_MissingSectionsAreFilled(t *testing.T) {
	gen := &stubGenerator{report: func(string) (string, error) {
		return "```markdown\n**RESUMEN EJECUTIVO**\nresumen\n\n**PRÓXIMOS PASOS**\npasos\n```", nil
	}}
	report := NewSynthesizer(fastConfig(), gen).Synthesize(context.Background(), "t", fullContext(), partialResults())

	assert.False(t, report.Degraded)
	assert.Equal(t, "resumen", report.ExecutiveSummary)
	assert.Equal(t, "pasos", report.NextSteps)
	assert.NotEmpty(t, report.Opportunities)
	assert.NotEmpty(t, report.Recommendations)
}

func TestSynthesize_UnheadedReplyBecomesSummary(t *testing.T) {
	gen := &stubGenerator{report: func(string) (string, error) { return "Texto libre sin títulos.", nil }}
	report := NewSynthesizer(fastConfig(), gen).Synthesize(context.Background(), "t", fullContext(), partialResults())
	assert.Equal(t, "Texto libre sin títulos.", report.ExecutiveSummary)
	assert.NotEmpty(t, report.Opportunities)
}

func TestParseSections(t *testing.T) {
	text := `Introducción breve.
## Resumen Ejecutivo
línea uno
1. **OPORTUNIDADES IDENTIFICADAS** (3-4 puntos específicos)
* Oportunidades de delivery nocturno
- Combos
**Recomendaciones prioritarias:** Invertir en redes
PROXIMOS PASOS:
- Paso 1`

	sections, preamble := ParseSections(text)
	assert.Equal(t, "Introducción breve.", preamble)
	assert.Equal(t, "línea uno", sections[model.SectionExecutiveSummary])
	assert.Equal(t, "* Oportunidades de delivery nocturno\n- Combos", sections[model.SectionOpportunities])
	assert.Equal(t, "Invertir en redes", sections[model.SectionRecommendations])
	assert.Equal(t, "- Paso 1", sections[model.SectionNextSteps])
}

func TestParseSections_BodyLinesWithSectionWords(t *testing.T) {
	text := `**RESUMEN EJECUTIVO**
El mercado crece.
Oportunidades: delivery nocturno con 20% de demanda.
resumen
Recomendaciones
**OPORTUNIDADES IDENTIFICADAS**
- Combos
Oportunidades:
- Catering
**RECOMENDACIONES PRIORITARIAS**
- Redes
**PRÓXIMOS PASOS**
- Medir`

	sections, preamble := ParseSections(text)
	assert.Empty(t, preamble)
	assert.Equal(t, "El mercado crece.\nOportunidades: delivery nocturno con 20% de demanda.\nresumen\nRecomendaciones", sections[model.SectionExecutiveSummary])
	assert.Equal(t, "- Combos\n- Catering", sections[model.SectionOpportunities])
	assert.Equal(t, "- Redes", sections[model.SectionRecommendations])
	assert.Equal(t, "- Medir", sections[model.SectionNextSteps])
}

func TestFindings_RoundRobinWithinBudget(t *testing.T) {
	results := []model.QueryResult{
		{Query: "q1", Status: model.StatusSuccess, Documents: []model.Document{doc("1a", "uno-primero-xxxxxxxx"), doc("1b", "uno-segundo-xxxxxxxx")}},
		{Query: "q2", Status: model.StatusSuccess, Documents: []model.Document{doc("2a", "dos-primero-xxxxxxxx"), doc("2b", "dos-segundo-xxxxxxxx")}},
		{Query: "q3", Status: model.StatusFailed},
		{Query: "q4", Status: model.StatusSuccess, Documents: []model.Document{doc("4a", "cua-primero-xxxxxxxx"), doc("4b", "cua-segundo-xxxxxxxx")}},
	}
	cfg := config.ResearchConfig{MaxPromptChars: 120}.WithDefaults()
	out := NewSynthesizer(cfg, nil).findings(results)

	assert.Contains(t, out, "uno-primero")
	assert.Contains(t, out, "dos-primero")
	assert.Contains(t, out, "cua-primero")
	assert.Contains(t, out, "uno-segundo")
	assert.NotContains(t, out, "dos-segundo")
	assert.NotContains(t, out, "cua-segundo")
	assert.NotContains(t, out, "q3")
}

func TestFindings_Excerpt(t *testing.T) {
	long := strings.Repeat("é", 300)
	results := []model.QueryResult{{Query: "q", Status: model.StatusSuccess, Documents: []model.Document{doc("a", long)}}}
	out := NewSynthesizer(fastConfig(), nil).findings(results)
	assert.Contains(t, out, "- "+strings.Repeat("é", 200)+"...")
}
