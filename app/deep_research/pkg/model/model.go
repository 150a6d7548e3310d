package model

import (
	"fmt"
	"strings"
	"time"
)

// 企业画像字段名，与画像存储中的键保持一致
const (
	FieldCompanyName = "nombre_empresa"
	FieldLocation    = "ubicacion"
	FieldProducts    = "productos_servicios_principales"
	FieldDescription = "descripcion_negocio"
	FieldSector      = "sector"
	FieldChallenges  = "desafios_principales"
	FieldYears       = "anos_operacion"
	FieldEmployees   = "num_empleados"
)

// CriticalFields 开始调研前必须非空的字段，顺序即缺失字段的返回顺序
var CriticalFields = []string{FieldCompanyName, FieldLocation, FieldProducts, FieldDescription}

// OptionalFields 可选字段，仅用于完整度报告
var OptionalFields = []string{FieldSector, FieldChallenges, FieldYears, FieldEmployees}

// BusinessContext 企业画像
type BusinessContext map[string]string

// Get 返回去除首尾空白后的字段值
func (b BusinessContext) Get(field string) string {
	if b == nil {
		return ""
	}
	return strings.TrimSpace(b[field])
}

// Clone 复制一份画像，保证一次调研过程中输入不被修改
func (b BusinessContext) Clone() BusinessContext {
	out := make(BusinessContext, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Intent 调研意图分类
type Intent int

const (
	IntentGeneral Intent = iota
	IntentCompetitive
	IntentOpportunity
	IntentTrend
)

func (i Intent) String() string {
	switch i {
	case IntentCompetitive:
		return "competencia"
	case IntentOpportunity:
		return "oportunidades"
	case IntentTrend:
		return "tendencias"
	default:
		return "general"
	}
}

// MarshalText 以 String() 的文本序列化
func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText 接受 String() 产生的文本
func (i *Intent) UnmarshalText(text []byte) error {
	for _, v := range []Intent{IntentGeneral, IntentCompetitive, IntentOpportunity, IntentTrend} {
		if v.String() == string(text) {
			*i = v
			return nil
		}
	}
	return fmt.Errorf("unknown intent %q", text)
}

// PlanSource 计划来源
type PlanSource string

const (
	PlanSourceGenerated PlanSource = "generated"
	PlanSourceTemplate  PlanSource = "template"
)

// ResearchPlan 一次调研的查询计划
type ResearchPlan struct {
	Topic   string     `json:"topic"`
	Intent  Intent     `json:"intent"`
	Queries []string   `json:"queries"`
	Source  PlanSource `json:"source"`
}

// Document 过滤、截断后的搜索文档
type Document struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// QueryStatus 单条查询的执行状态
type QueryStatus int

const (
	StatusFailed QueryStatus = iota
	StatusSuccess
)

func (s QueryStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

func (s QueryStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *QueryStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "success":
		*s = StatusSuccess
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown query status %q", text)
	}
	return nil
}

// ErrorKind 查询失败原因
type ErrorKind string

const (
	ErrorNone         ErrorKind = ""
	ErrorTimeout      ErrorKind = "timeout"
	ErrorRateLimited  ErrorKind = "rate_limited"
	ErrorTransport    ErrorKind = "transport"
	ErrorInvalidQuery ErrorKind = "invalid_query"
	ErrorCancelled    ErrorKind = "cancelled"
)

// Transient 是否值得重试
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorTimeout, ErrorRateLimited, ErrorTransport:
		return true
	default:
		return false
	}
}

// QueryResult 单条查询的结果记录，由 worker 产生后不再修改
type QueryResult struct {
	Index     int           `json:"index"`
	Query     string        `json:"query"`
	Status    QueryStatus   `json:"status"`
	Documents []Document    `json:"documents"`
	Err       ErrorKind     `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Succeeded 查询是否成功
func (r QueryResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// 报告固定章节标题
const (
	SectionExecutiveSummary = "RESUMEN EJECUTIVO"
	SectionOpportunities    = "OPORTUNIDADES IDENTIFICADAS"
	SectionRecommendations  = "RECOMENDACIONES PRIORITARIAS"
	SectionNextSteps        = "PRÓXIMOS PASOS"
)

// ResearchReport 最终调研报告
type ResearchReport struct {
	Topic            string `json:"topic"`
	ExecutiveSummary string `json:"executive_summary"`
	Opportunities    string `json:"opportunities"`
	Recommendations  string `json:"recommendations"`
	NextSteps        string `json:"next_steps"`
	DataUnavailable  bool   `json:"data_unavailable"` // 没有任何实时数据
	Degraded         bool   `json:"degraded"`         // 使用了确定性模板
	QueriesExecuted  int    `json:"queries_executed"`
	QueriesSucceeded int    `json:"queries_succeeded"`
	SourcesAnalyzed  int    `json:"sources_analyzed"`
}

// SuccessRatio 成功查询占比
func (r *ResearchReport) SuccessRatio() float64 {
	if r.QueriesExecuted == 0 {
		return 0
	}
	return float64(r.QueriesSucceeded) / float64(r.QueriesExecuted)
}

// Footer 指标页脚
func (r *ResearchReport) Footer() string {
	return fmt.Sprintf("*Investigación completada: %d consultas ejecutadas, %d fuentes analizadas, %d/%d búsquedas exitosas (%.0f%%)*",
		r.QueriesExecuted, r.SourcesAnalyzed, r.QueriesSucceeded, r.QueriesExecuted, r.SuccessRatio()*100)
}

// Render 输出带四个章节和指标页脚的报告文本
func (r *ResearchReport) Render() string {
	var sb strings.Builder
	sections := []struct{ title, body string }{
		{SectionExecutiveSummary, r.ExecutiveSummary},
		{SectionOpportunities, r.Opportunities},
		{SectionRecommendations, r.Recommendations},
		{SectionNextSteps, r.NextSteps},
	}
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "**%s**\n%s", s.title, strings.TrimSpace(s.body))
	}
	sb.WriteString("\n\n---\n")
	sb.WriteString(r.Footer())
	return sb.String()
}

// ResearchRunResult 返回给调用方的结果信封
type ResearchRunResult struct {
	RunID            string          `json:"run_id"`
	Success          bool            `json:"success"`
	Plan             []string        `json:"plan"`
	Report           *ResearchReport `json:"report,omitempty"`
	TotalSources     int             `json:"total_sources"`
	ExecutionSummary string          `json:"execution_summary"`
	MissingFields    []string        `json:"missing_fields,omitempty"`
	Message          string          `json:"message,omitempty"` // 面向终端用户的提示，缺字段时填写
}
