package usecase

import (
	"context"
	"errors"
	"strings"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/research"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/storage"
	"github.com/iWorld-y/deep_research/app/research_api/internal/repo"
)

const (
	reasonSessionRequired = "SESSION_REQUIRED"
	reasonProfileNotFound = "PROFILE_NOT_FOUND"
	reasonProfileStore    = "PROFILE_STORE_ERROR"
)

// ResearchUseCase 调研业务逻辑
type ResearchUseCase struct {
	profiles repo.ProfileRepo
	runner   repo.ResearchRunner
	planner  repo.QueryPlanner
	log      *log.Helper
}

// NewResearchUseCase 创建调研业务逻辑实例
func NewResearchUseCase(profiles repo.ProfileRepo, runner repo.ResearchRunner, planner repo.QueryPlanner, logger log.Logger) *ResearchUseCase {
	return &ResearchUseCase{profiles: profiles, runner: runner, planner: planner, log: log.NewHelper(logger)}
}

// Run 执行深度调研；画像缺失关键字段时返回 Success=false 的结果而不是错误
func (uc *ResearchUseCase) Run(ctx context.Context, sessionID, topic string) (*model.ResearchRunResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	res, err := uc.runner.RunDeepResearch(ctx, sessionID, topic)
	if err != nil {
		uc.log.WithContext(ctx).Errorf("research run for session %s failed: %v", sessionID, err)
		return nil, kerrors.InternalServer(reasonProfileStore, "无法读取企业画像").WithCause(err)
	}
	uc.log.WithContext(ctx).Infof("research run for session %s: success=%v %s", sessionID, res.Success, res.ExecutionSummary)
	return res, nil
}

// Plan 只生成查询计划；画像不存在时按空画像处理
func (uc *ResearchUseCase) Plan(ctx context.Context, sessionID, topic string) (model.ResearchPlan, error) {
	bc, err := uc.load(ctx, sessionID, true)
	if err != nil {
		return model.ResearchPlan{}, err
	}
	return uc.planner.Plan(ctx, topic, bc), nil
}

// Completeness 计算画像完整度
func (uc *ResearchUseCase) Completeness(ctx context.Context, sessionID string) (research.CompletenessReport, error) {
	bc, err := uc.load(ctx, sessionID, false)
	if err != nil {
		return research.CompletenessReport{}, err
	}
	return research.Completeness(bc), nil
}

func (uc *ResearchUseCase) load(ctx context.Context, sessionID string, allowMissing bool) (model.BusinessContext, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	bc, err := uc.profiles.GetBusinessContext(ctx, sessionID)
	switch {
	case err == nil:
		return bc, nil
	case errors.Is(err, storage.ErrNotFound):
		if allowMissing {
			return model.BusinessContext{}, nil
		}
		return nil, kerrors.NotFound(reasonProfileNotFound, "未找到会话 "+sessionID+" 的企业画像")
	default:
		uc.log.WithContext(ctx).Errorf("load profile %s: %v", sessionID, err)
		return nil, kerrors.InternalServer(reasonProfileStore, "无法读取企业画像").WithCause(err)
	}
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return kerrors.BadRequest(reasonSessionRequired, "session_id is required")
	}
	return nil
}
