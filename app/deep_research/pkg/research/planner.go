package research

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/metrics"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

// DefaultTopic 未给出主题时使用
const DefaultTopic = "análisis general de mercado"

// intentKeywords 按优先级排列，先命中者生效；关键字已去掉重音
var intentKeywords = []struct {
	intent   model.Intent
	keywords []string
}{
	{model.IntentCompetitive, []string{"competencia", "competidor", "competitiv", "rival", "benchmark", "comparativ", "posicionamiento"}},
	{model.IntentOpportunity, []string{"oportunidad", "crecimiento", "expansion", "expandir", "nicho", "nuevos mercados", "potencial"}},
	{model.IntentTrend, []string{"tendencia", "futuro", "innovacion", "evolucion", "proyeccion", "novedades"}},
}

// Classify 按关键字判断调研意图，仅用于选择模板
func Classify(topic string) model.Intent {
	t := normalize(topic)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(t, kw) {
				return group.intent
			}
		}
	}
	return model.IntentGeneral
}

// normalize 小写并去掉变音符号
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// 模板占位符：{sector} {productos} {ubicacion} {empresa} {desafios} {anio}
var intentTemplates = map[model.Intent][]string{
	model.IntentCompetitive: {
		"competidores {sector} {ubicacion} análisis {anio}",
		"principales competidores de {productos} en {ubicacion}",
		"estrategias de precios {sector} {ubicacion}",
		"ventajas competitivas PYMES {sector} casos de éxito",
		"cómo diferenciarse frente a {desafios} en {sector}",
	},
	model.IntentOpportunity: {
		"oportunidades crecimiento {sector} {ubicacion} {anio}",
		"nichos de mercado {productos} {ubicacion}",
		"canales de venta digitales {sector} PYMES {ubicacion}",
		"soluciones para {desafios} en {sector}",
		"demanda de {productos} mercado emergente",
	},
	model.IntentTrend: {
		"tendencias {sector} {ubicacion} {anio}",
		"tendencias consumidor {productos} mercado actual",
		"innovación y tecnología en {sector} {anio}",
		"cambios en hábitos de compra {sector} {ubicacion}",
		"impacto de {desafios} en el futuro de {sector}",
	},
	model.IntentGeneral: {
		"análisis de mercado {sector} {ubicacion} {anio}",
		"tendencias consumidor {productos} mercado actual",
		"oportunidades crecimiento {sector} {ubicacion}",
		"estrategias exitosas PYMES {sector} casos estudio",
		"cómo enfrentar {desafios} en {sector}",
	},
}

// genericQueries 不依赖任何画像字段的兜底查询
var genericQueries = map[model.Intent][]string{
	model.IntentCompetitive: {"análisis de competencia para pequeñas empresas {anio}", "cómo estudiar a la competencia directa de un negocio local"},
	model.IntentOpportunity: {"oportunidades de negocio para PYMES {anio}", "nuevos canales de venta para pequeños negocios"},
	model.IntentTrend:       {"tendencias de consumo en Latinoamérica {anio}", "innovaciones que están cambiando a las pequeñas empresas"},
	model.IntentGeneral:     {"panorama económico para PYMES en Latinoamérica {anio}", "claves de rentabilidad para pequeños negocios"},
}

var commonGenericQueries = []string{
	"estrategias exitosas PYMES casos de estudio {anio}",
	"marketing digital para pequeñas empresas mejores prácticas",
	"financiamiento y apoyo para PYMES {anio}",
	"cómo aumentar ventas en pequeños negocios",
	"indicadores clave de desempeño para PYMES",
	"fidelización de clientes en negocios locales",
}

const planningSystemPrompt = "Eres un Estratega de Investigación Empresarial experto en PYMEs. Respondes solo con consultas de búsqueda, una por línea."

const planningPrompt = `CONTEXTO EMPRESARIAL:
- Empresa: %s
- Sector: %s
- Ubicación: %s
- Productos/Servicios: %s
- Desafíos principales: %s

SOLICITUD DE INVESTIGACIÓN: %s
ENFOQUE: %s

TU TAREA: Crear un plan de investigación de %d-%d consultas de búsqueda específicas y estratégicas.

CRITERIOS PARA LAS CONSULTAS:
1. Específicas al sector y ubicación de la empresa
2. Orientadas a resultados accionables
3. Balanceadas entre oportunidades y desafíos
4. Incluir análisis competitivo cuando sea relevante
5. Considerar tendencias actuales del mercado

FORMATO DE RESPUESTA:
Devuelve SOLAMENTE una lista de consultas, una por línea, sin numeración ni viñetas.

EJEMPLO:
tendencias mercado restaurantes Lima %d post pandemia
competidores directos pollerías zona Lima Norte análisis
oportunidades delivery comida peruana mercado emergente
estrategias marketing digital restaurantes familiares éxito`

// Planner 把主题拆成一组搜索查询
type Planner struct {
	cfg config.ResearchConfig
	gen llm.Generator
	now func() time.Time
}

// NewPlanner gen 可以为 nil，此时只走模板路径
func NewPlanner(cfg config.ResearchConfig, gen llm.Generator) *Planner {
	return &Planner{cfg: cfg.WithDefaults(), gen: gen, now: time.Now}
}

// Plan 生成查询计划，不返回错误；生成失败时退回模板
func (p *Planner) Plan(ctx context.Context, topic string, bc model.BusinessContext) model.ResearchPlan {
	ctx, span := tracer.Start(ctx, "research.plan")
	defer span.End()

	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}
	intent := Classify(topic)
	fields := p.fields(bc)

	plan := model.ResearchPlan{Topic: topic, Intent: intent, Source: model.PlanSourceTemplate}
	seen := make(map[string]struct{})
	add := func(q string) bool {
		if len(plan.Queries) >= p.cfg.MaxQueries {
			return false
		}
		q = collapse(q)
		n := utf8.RuneCountInString(q)
		if n < p.cfg.MinQueryLength || n > p.cfg.MaxQueryLength {
			return false
		}
		key := strings.ToLower(q)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		plan.Queries = append(plan.Queries, q)
		return true
	}

	if p.gen != nil && p.cfg.GeneratorEnabled() {
		generated, err := p.generate(ctx, topic, intent, fields)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"topic": topic, "error": err}).Warn("查询生成失败，使用模板计划")
			metrics.PlannerFallbacks.Inc()
			span.RecordError(err)
		}
		for _, q := range generated {
			if add(q) {
				plan.Source = model.PlanSourceGenerated
			}
		}
	}

	for _, tpl := range intentTemplates[intent] {
		if q, ok := p.instantiate(tpl, fields); ok {
			add(q)
		}
	}

	generics := append(append([]string{}, genericQueries[intent]...), commonGenericQueries...)
	for _, tpl := range generics {
		if len(plan.Queries) >= p.cfg.MinQueries {
			break
		}
		if q, ok := p.instantiate(tpl, fields); ok {
			add(q)
		}
	}

	if len(plan.Queries) == 0 {
		span.SetStatus(codes.Error, "empty plan")
		plan.Queries = []string{DefaultTopic}
	}

	span.SetAttributes(
		attribute.String("plan.intent", intent.String()),
		attribute.String("plan.source", string(plan.Source)),
		attribute.Int("plan.query_count", len(plan.Queries)),
	)
	logger.Log.Infof("调研计划已生成: %d 条查询 (意图=%s, 来源=%s)", len(plan.Queries), intent, plan.Source)
	for i, q := range plan.Queries {
		logger.Log.Debugf("  %d. %s", i+1, q)
	}
	return plan
}

func (p *Planner) generate(ctx context.Context, topic string, intent model.Intent, fields map[string]string) ([]string, error) {
	empresa := fields["empresa"]
	if empresa == "" {
		empresa = "la empresa"
	}
	prompt := fmt.Sprintf(planningPrompt,
		empresa, fields["sector"], fields["ubicacion"], fields["productos"], fields["desafios"],
		topic, intent, p.cfg.MinQueries, p.cfg.MaxQueries, p.now().Year())

	reply, err := p.gen.Generate(ctx, planningSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(reply, "\n") {
		// 跳过 "Aquí están las consultas:" 这类引导句
		if q := cleanLine(line); q != "" && !strings.HasSuffix(q, ":") {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no queries in reply", llm.ErrInvalidResponse)
	}
	return out, nil
}

// fields 从画像中提取模板用到的字段
func (p *Planner) fields(bc model.BusinessContext) map[string]string {
	products := splitList(bc.Get(model.FieldProducts))
	sector := bc.Get(model.FieldSector)
	if sector == "" && len(products) > 0 {
		sector = products[0]
	}
	if len(products) > 3 {
		products = products[:3]
	}
	challenges := splitList(bc.Get(model.FieldChallenges))
	desafio := ""
	if len(challenges) > 0 {
		desafio = challenges[0]
	}
	return map[string]string{
		"sector":    sector,
		"productos": strings.Join(products, " "),
		"ubicacion": bc.Get(model.FieldLocation),
		"empresa":   bc.Get(model.FieldCompanyName),
		"desafios":  desafio,
		"anio":      strconv.Itoa(p.now().Year()),
	}
}

var placeholderKeys = []string{"sector", "productos", "ubicacion", "empresa", "desafios", "anio"}

// instantiate 填充模板，任一占位符为空则跳过；过长时按词截断。
// 替换只扫描模板一遍，画像值里出现的 "{...}" 原样保留
func (p *Planner) instantiate(tpl string, fields map[string]string) (string, bool) {
	pairs := make([]string, 0, 2*len(placeholderKeys))
	for _, k := range placeholderKeys {
		ph := "{" + k + "}"
		if !strings.Contains(tpl, ph) {
			continue
		}
		v := fields[k]
		if v == "" {
			return "", false
		}
		pairs = append(pairs, ph, v)
	}
	out := clipWords(collapse(strings.NewReplacer(pairs...).Replace(tpl)), p.cfg.MaxQueryLength)
	return out, out != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// cleanLine 去掉编号、项目符号和引号
func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "0123456789.-)•▪▫*#> \t")
	line = strings.Trim(line, "\"'`“”«» ")
	return collapse(line)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clipWords 按词截断到 max 个字符以内
func clipWords(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var sb strings.Builder
	n := 0
	for i, w := range strings.Fields(s) {
		wl := utf8.RuneCountInString(w)
		if i > 0 {
			wl++
		}
		if n+wl > max {
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w)
		n += wl
	}
	return sb.String()
}
