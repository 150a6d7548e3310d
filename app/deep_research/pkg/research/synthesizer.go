package research

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/metrics"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

// DataUnavailableNotice 没有任何实时数据时放在执行摘要最前面
const DataUnavailableNotice = "Aviso: no fue posible obtener datos actualizados de fuentes externas para esta investigación. " +
	"El siguiente análisis se basa únicamente en la información de tu negocio y debe tomarse como orientación cualitativa."

const synthesisSystemPrompt = "Eres un Consultor Senior especializado en análisis de investigación empresarial para PYMEs."

const synthesisPrompt = `EMPRESA: %s
UBICACIÓN: %s
PRODUCTOS/SERVICIOS: %s
DESAFÍOS: %s
SOLICITUD ORIGINAL: %s

%s

TU TAREA: Crear un informe ejecutivo conciso y accionable.

ESTRUCTURA DEL INFORME (usa exactamente estos títulos):
1. **RESUMEN EJECUTIVO** (2-3 líneas clave)
2. **OPORTUNIDADES IDENTIFICADAS** (3-4 puntos específicos)
3. **RECOMENDACIONES PRIORITARIAS** (3-4 acciones concretas)
4. **PRÓXIMOS PASOS** (2-3 acciones inmediatas)

CRITERIOS:
- Enfoque en insights accionables para %s
- Recomendaciones específicas y prácticas
- Priorizar por impacto potencial
- Incluir métricas o KPIs cuando sea posible
- Tono profesional pero accesible

LÍMITES:
- Máximo 400 palabras
- Usar viñetas para mayor claridad
- Evitar jerga técnica excesiva`

// Stats 由查询结果确定性计算的执行指标
type Stats struct {
	Attempted    int
	Succeeded    int
	TotalSources int
}

// ComputeStats 只统计成功查询的文档数
func ComputeStats(results []model.QueryResult) Stats {
	s := Stats{Attempted: len(results)}
	for _, r := range results {
		if r.Succeeded() {
			s.Succeeded++
			s.TotalSources += len(r.Documents)
		}
	}
	return s
}

// ExecutionSummary 形如 "3/5 búsquedas exitosas"
func (s Stats) ExecutionSummary() string {
	return fmt.Sprintf("%d/%d búsquedas exitosas", s.Succeeded, s.Attempted)
}

// Synthesizer 把各查询结果归并成一份报告
type Synthesizer struct {
	cfg config.ResearchConfig
	gen llm.Generator
}

// NewSynthesizer gen 为 nil 时总是使用确定性模板
func NewSynthesizer(cfg config.ResearchConfig, gen llm.Generator) *Synthesizer {
	return &Synthesizer{cfg: cfg.WithDefaults(), gen: gen}
}

// Synthesize 生成报告，从不返回错误
func (s *Synthesizer) Synthesize(ctx context.Context, topic string, bc model.BusinessContext, results []model.QueryResult) *model.ResearchReport {
	ctx, span := tracer.Start(ctx, "research.synthesize")
	defer span.End()

	stats := ComputeStats(results)
	report := &model.ResearchReport{
		Topic:            topic,
		QueriesExecuted:  stats.Attempted,
		QueriesSucceeded: stats.Succeeded,
		SourcesAnalyzed:  stats.TotalSources,
		DataUnavailable:  stats.Succeeded == 0 || stats.TotalSources == 0,
	}
	span.SetAttributes(
		attribute.Int("synthesis.sources", stats.TotalSources),
		attribute.Bool("synthesis.data_unavailable", report.DataUnavailable),
	)
	log := logger.Log.WithFields(logrus.Fields{"topic": topic, "sources": stats.TotalSources})

	if report.DataUnavailable {
		metrics.SynthesisDegraded.WithLabelValues(metrics.ReasonNoData).Inc()
		log.Warn("没有可用的实时数据，仅基于企业画像生成报告")
	}

	fallback := s.template(topic, bc, results, report.DataUnavailable)

	var reply string
	var err error
	if s.gen == nil {
		err = fmt.Errorf("no text generator configured")
	} else {
		reply, err = s.gen.Generate(ctx, synthesisSystemPrompt, s.prompt(topic, bc, results, stats, report.DataUnavailable))
	}
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("%w: empty report", llm.ErrInvalidResponse)
	}

	if err != nil {
		log.WithField("error", err).Warn("报告生成失败，使用确定性模板")
		metrics.SynthesisDegraded.WithLabelValues(metrics.ReasonGenerationFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis degraded")
		report.Degraded = true
		report.ExecutiveSummary = fallback[model.SectionExecutiveSummary]
		report.Opportunities = fallback[model.SectionOpportunities]
		report.Recommendations = fallback[model.SectionRecommendations]
		report.NextSteps = fallback[model.SectionNextSteps]
	} else {
		sections, preamble := ParseSections(llm.CleanFences(reply))
		if sections[model.SectionExecutiveSummary] == "" && preamble != "" {
			sections[model.SectionExecutiveSummary] = preamble
		}
		filled := 0
		for _, name := range []string{model.SectionExecutiveSummary, model.SectionOpportunities, model.SectionRecommendations, model.SectionNextSteps} {
			if sections[name] == "" {
				sections[name] = fallback[name]
				filled++
			}
		}
		if filled > 0 {
			log.WithField("filled", filled).Warn("报告缺少章节，已用模板补齐")
			metrics.SynthesisDegraded.WithLabelValues(metrics.ReasonSectionsIncomplete).Inc()
		}
		report.ExecutiveSummary = sections[model.SectionExecutiveSummary]
		report.Opportunities = sections[model.SectionOpportunities]
		report.Recommendations = sections[model.SectionRecommendations]
		report.NextSteps = sections[model.SectionNextSteps]
	}

	if report.DataUnavailable && !strings.HasPrefix(report.ExecutiveSummary, DataUnavailableNotice) {
		report.ExecutiveSummary = DataUnavailableNotice + "\n\n" + report.ExecutiveSummary
	}
	log.Infof("报告已生成: %s", stats.ExecutionSummary())
	return report
}

func (s *Synthesizer) prompt(topic string, bc model.BusinessContext, results []model.QueryResult, stats Stats, dataUnavailable bool) string {
	var evidence string
	if dataUnavailable {
		evidence = "HALLAZGOS DE INVESTIGACIÓN: no se pudo obtener información actualizada de fuentes externas.\n" +
			"Elabora orientación cualitativa basada únicamente en el contexto empresarial y acláralo en el resumen."
	} else {
		evidence = fmt.Sprintf("HALLAZGOS DE INVESTIGACIÓN (%d fuentes consultadas):\n%s", stats.TotalSources, s.findings(results))
	}
	empresa := companyOrDefault(bc)
	return fmt.Sprintf(synthesisPrompt,
		empresa, orDash(bc.Get(model.FieldLocation)), orDash(bc.Get(model.FieldProducts)),
		orDash(bc.Get(model.FieldChallenges)), topic, evidence, empresa)
}

// findings 按排名轮转取各查询的文档，直到字符预算用尽；排名靠后、计划靠后的内容先被丢弃
func (s *Synthesizer) findings(results []model.QueryResult) string {
	picked := make([][]string, len(results))
	used := 0
	budget := s.cfg.MaxPromptChars

rounds:
	for rank := 0; rank < s.cfg.DocsPerQuery; rank++ {
		for i, r := range results {
			if !r.Succeeded() || rank >= len(r.Documents) {
				continue
			}
			line := "- " + excerpt(r.Documents[rank].Content, s.cfg.ExcerptChars)
			cost := runeLen(line) + 1
			if len(picked[i]) == 0 {
				cost += runeLen(r.Query) + 6
			}
			if used+cost > budget {
				break rounds
			}
			used += cost
			picked[i] = append(picked[i], line)
		}
	}

	var sb strings.Builder
	for i, lines := range picked {
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "**%s:**\n", results[i].Query)
		for _, l := range lines {
			sb.WriteString(l)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// template 确定性报告，只罗列原始文档，不做改写
func (s *Synthesizer) template(topic string, bc model.BusinessContext, results []model.QueryResult, dataUnavailable bool) map[string]string {
	empresa := companyOrDefault(bc)
	stats := ComputeStats(results)
	out := make(map[string]string, 4)

	if dataUnavailable {
		out[model.SectionExecutiveSummary] = fmt.Sprintf("No se encontraron fuentes externas para \"%s\". Las sugerencias siguientes se basan en el perfil de %s.", topic, empresa)
	} else {
		out[model.SectionExecutiveSummary] = fmt.Sprintf("La investigación sobre \"%s\" encontró %d fuentes relevantes en %s, pero no fue posible redactar el análisis final. Se recomienda revisar los hallazgos individualmente.",
			topic, stats.TotalSources, stats.ExecutionSummary())
	}

	var opps []string
	for rank := 0; rank < s.cfg.DocsPerQuery && len(opps) < 4; rank++ {
		for _, r := range results {
			if len(opps) >= 4 {
				break
			}
			if r.Succeeded() && rank < len(r.Documents) {
				d := r.Documents[rank]
				title := d.Title
				if title == "" {
					title = r.Query
				}
				opps = append(opps, fmt.Sprintf("- %s (%s)", title, d.URL))
			}
		}
	}
	if len(opps) == 0 {
		if p := bc.Get(model.FieldProducts); p != "" {
			opps = append(opps, fmt.Sprintf("- Evaluar la demanda actual de %s en %s.", p, orDefault(bc.Get(model.FieldLocation), "tu zona")))
		}
		opps = append(opps, "- Identificar segmentos de clientes poco atendidos por la competencia local.")
	}
	out[model.SectionOpportunities] = strings.Join(opps, "\n")

	var recs []string
	for _, r := range results {
		if len(recs) >= 4 {
			break
		}
		if r.Succeeded() && len(r.Documents) > 0 {
			recs = append(recs, "- Profundizar en: "+r.Query)
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "- Definir una oportunidad prioritaria y validarla con clientes actuales.")
		if c := bc.Get(model.FieldChallenges); c != "" {
			recs = append(recs, "- Elaborar un plan concreto para enfrentar: "+c+".")
		}
	}
	out[model.SectionRecommendations] = strings.Join(recs, "\n")

	steps := []string{
		fmt.Sprintf("- Revisar las fuentes listadas y validar su aplicabilidad a %s.", empresa),
		"- Elegir un indicador (ventas, clientes nuevos o ticket promedio) para medir el avance.",
	}
	if dataUnavailable {
		steps = append(steps, "- Repetir la investigación más tarde para incorporar datos actualizados.")
	}
	out[model.SectionNextSteps] = strings.Join(steps, "\n")
	return out
}

var sectionKeys = []struct {
	name  string
	full  string
	short string
}{
	{model.SectionExecutiveSummary, "resumen ejecutivo", "resumen"},
	{model.SectionOpportunities, "oportunidades identificadas", "oportunidades"},
	{model.SectionRecommendations, "recomendaciones prioritarias", "recomendaciones"},
	{model.SectionNextSteps, "proximos pasos", "siguientes pasos"},
}

// ParseSections 按标题（忽略大小写和重音）拆出四个章节；第一个标题之前的文本作为 preamble 返回
func ParseSections(text string) (map[string]string, string) {
	sections := make(map[string]string, 4)
	bodies := make(map[string][]string, 4)
	var preamble []string
	current := ""

	for _, line := range strings.Split(text, "\n") {
		if name, rest, ok := matchHeader(line); ok {
			current = name
			if rest != "" {
				bodies[current] = append(bodies[current], rest)
			}
			continue
		}
		if current == "" {
			preamble = append(preamble, line)
		} else {
			bodies[current] = append(bodies[current], line)
		}
	}
	for name, lines := range bodies {
		sections[name] = strings.TrimSpace(strings.Join(lines, "\n"))
	}
	return sections, strings.TrimSpace(strings.Join(preamble, "\n"))
}

func matchHeader(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || runeLen(trimmed) > 80 {
		return "", "", false
	}
	// 只有 "#" 或加粗（可带编号）算强标记，"* " 开头的是列表项
	unnumbered := strings.TrimLeft(trimmed, "0123456789.) \t")
	strong := strings.HasPrefix(unnumbered, "#") || strings.HasPrefix(unnumbered, "**")

	head, rest := trimmed, ""
	if i := strings.Index(trimmed, ":"); i >= 0 {
		head, rest = trimmed[:i], trimmed[i+1:]
	}
	bare := normalize(strings.Trim(head, "#*0123456789.) \t"))
	rest = strings.TrimSpace(strings.Trim(rest, "* "))

	// 无强标记的行只接受独占一行的完整标题或 "关键词:"，正文里的 "Oportunidades: ..." 不切换章节
	hasColon := strings.Contains(trimmed, ":")
	for _, sk := range sectionKeys {
		full := hasKey(bare, sk.full)
		switch {
		case strong && (full || hasKey(bare, sk.short)):
		case !strong && rest == "" && (full || (hasColon && bare == sk.short)):
		default:
			continue
		}
		return sk.name, rest, true
	}
	return "", "", false
}

// hasKey bare 以 key 开头且 key 之后不是字母
func hasKey(bare, key string) bool {
	return strings.HasPrefix(bare, key) && !startsWithLetter(bare[len(key):])
}

func startsWithLetter(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	return size > 0 && unicode.IsLetter(r)
}

func excerpt(s string, max int) string {
	if runeLen(s) <= max {
		return s
	}
	return strings.TrimSpace(truncateRunes(s, max)) + "..."
}

func companyOrDefault(bc model.BusinessContext) string {
	return orDefault(bc.Get(model.FieldCompanyName), "la empresa")
}

func orDash(s string) string {
	return orDefault(s, "-")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
