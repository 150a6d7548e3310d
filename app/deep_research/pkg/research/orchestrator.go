package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/llm"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/metrics"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/search"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/storage"
)

// State 一次调研的状态
type State int

const (
	StateIdle State = iota
	StateValidatingPreconditions
	StatePlanning
	StateDispatching
	StateAggregating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidatingPreconditions:
		return "validating_preconditions"
	case StatePlanning:
		return "planning"
	case StateDispatching:
		return "dispatching"
	case StateAggregating:
		return "aggregating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const validationFailedSummary = "Validación fallida - información incompleta"

// Orchestrator 串起前置校验、规划、并发检索和综合
type Orchestrator struct {
	cfg           config.ResearchConfig
	store         storage.ProfileStore
	planner       *Planner
	pool          *Pool
	synth         *Synthesizer
	onStateChange func(runID string, from, to State)
}

// Option Orchestrator 选项
type Option func(*Orchestrator)

// WithStateHook 每次状态迁移时回调
func WithStateHook(fn func(runID string, from, to State)) Option {
	return func(o *Orchestrator) { o.onStateChange = fn }
}

// WithPoolOptions 透传给 Pool
func WithPoolOptions(opts ...PoolOption) Option {
	return func(o *Orchestrator) {
		for _, opt := range opts {
			opt(o.pool)
		}
	}
}

// NewOrchestrator gen 可为 nil（只用模板）；store 仅 RunDeepResearch 需要
func NewOrchestrator(cfg config.ResearchConfig, store storage.ProfileStore, searcher search.Searcher, gen llm.Generator, opts ...Option) *Orchestrator {
	cfg = cfg.WithDefaults()
	o := &Orchestrator{
		cfg:     cfg,
		store:   store,
		planner: NewPlanner(cfg, gen),
		pool:    NewPool(cfg, searcher),
		synth:   NewSynthesizer(cfg, gen),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Planner 返回内部使用的规划器
func (o *Orchestrator) Planner() *Planner {
	return o.planner
}

// RunDeepResearch 读取会话画像后执行调研。
// 画像不存在时按空画像处理（返回全部缺失字段）；其他存储错误直接返回。
func (o *Orchestrator) RunDeepResearch(ctx context.Context, sessionID, topic string) (*model.ResearchRunResult, error) {
	if o.store == nil {
		return nil, fmt.Errorf("profile store not configured")
	}
	bc, err := o.store.GetBusinessContext(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load business profile for session %s: %w", sessionID, err)
		}
		logger.Log.WithField("session_id", sessionID).Info("会话没有企业画像")
		bc = model.BusinessContext{}
	}
	return o.Run(ctx, topic, bc), nil
}

// Run 对给定画像执行一次完整调研，总会返回缺失字段或一份报告
func (o *Orchestrator) Run(ctx context.Context, topic string, bc model.BusinessContext) *model.ResearchRunResult {
	runID := uuid.NewString()
	start := time.Now()
	bc = bc.Clone()
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = DefaultTopic
	}

	ctx, span := tracer.Start(ctx, "research.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.topic", topic),
	))
	defer span.End()

	log := logger.Log.WithFields(logrus.Fields{"run_id": runID})
	state := StateIdle
	transition := func(to State) {
		from := state
		state = to
		log.Debugf("状态迁移 %s -> %s", from, to)
		if o.onStateChange != nil {
			o.onStateChange(runID, from, to)
		}
	}

	transition(StateValidatingPreconditions)
	if missing := Validate(bc); len(missing) > 0 {
		transition(StateFailed)
		log.WithField("missing_fields", missing).Warn("企业画像缺少关键字段，调研未执行")
		metrics.RunsTotal.WithLabelValues(metrics.OutcomeMissingFields).Inc()
		span.SetStatus(codes.Error, "missing critical fields")
		return &model.ResearchRunResult{
			RunID:            runID,
			Success:          false,
			Plan:             []string{},
			ExecutionSummary: validationFailedSummary,
			MissingFields:    missing,
			Message:          missingFieldsMessage(missing),
		}
	}

	empresa := bc.Get(model.FieldCompanyName)
	contextualTopic := fmt.Sprintf("%s para %s", topic, empresa)
	log.Infof("开始调研: %s", contextualTopic)

	transition(StatePlanning)
	plan := o.planner.Plan(ctx, topic, bc)

	transition(StateDispatching)
	results := o.pool.Execute(ctx, plan.Queries, o.cfg.BatchDeadline)

	transition(StateAggregating)
	report := o.synth.Synthesize(ctx, contextualTopic, bc, results)
	stats := ComputeStats(results)

	transition(StateDone)
	elapsed := time.Since(start)
	metrics.RunsTotal.WithLabelValues(metrics.OutcomeDone).Inc()
	metrics.RunDuration.Observe(elapsed.Seconds())
	metrics.SourcesPerRun.Observe(float64(stats.TotalSources))
	span.SetAttributes(
		attribute.Int("run.sources", stats.TotalSources),
		attribute.String("run.execution_summary", stats.ExecutionSummary()),
	)
	log.Infof("调研完成: %s, %d 条来源, 耗时 %v", stats.ExecutionSummary(), stats.TotalSources, elapsed.Round(time.Millisecond))

	return &model.ResearchRunResult{
		RunID:            runID,
		Success:          true,
		Plan:             plan.Queries,
		Report:           report,
		TotalSources:     stats.TotalSources,
		ExecutionSummary: stats.ExecutionSummary(),
	}
}
