package repo

import (
	"context"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
)

// ProfileRepo 企业画像仓库接口
type ProfileRepo interface {
	// GetBusinessContext 按会话读取画像，不存在时返回 storage.ErrNotFound
	GetBusinessContext(ctx context.Context, sessionID string) (model.BusinessContext, error)
}

// ResearchRunner 执行完整调研流程
type ResearchRunner interface {
	RunDeepResearch(ctx context.Context, sessionID, topic string) (*model.ResearchRunResult, error)
}

// QueryPlanner 只生成查询计划，不执行搜索
type QueryPlanner interface {
	Plan(ctx context.Context, topic string, bc model.BusinessContext) model.ResearchPlan
}
