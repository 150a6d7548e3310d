package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	pb "github.com/iWorld-y/deep_research/app/research_api/api/research/v1"
	"github.com/iWorld-y/deep_research/app/research_api/internal/usecase"
)

type ResearchService struct {
	uc  *usecase.ResearchUseCase
	log *log.Helper
}

func NewResearchService(uc *usecase.ResearchUseCase, logger log.Logger) *ResearchService {
	return &ResearchService{uc: uc, log: log.NewHelper(logger)}
}

func (s *ResearchService) Run(ctx context.Context, req *pb.ResearchRequest) (*pb.ResearchReply, error) {
	res, err := s.uc.Run(ctx, req.SessionId, req.Topic)
	if err != nil {
		return nil, err
	}
	reply := &pb.ResearchReply{ResearchRunResult: res}
	if res.Report != nil {
		reply.Markdown = res.Report.Render()
	}
	return reply, nil
}

func (s *ResearchService) Plan(ctx context.Context, req *pb.PlanRequest) (*pb.PlanReply, error) {
	plan, err := s.uc.Plan(ctx, req.SessionId, req.Topic)
	if err != nil {
		return nil, err
	}
	return &pb.PlanReply{
		Topic:   plan.Topic,
		Intent:  plan.Intent.String(),
		Source:  string(plan.Source),
		Queries: plan.Queries,
	}, nil
}

func (s *ResearchService) Completeness(ctx context.Context, req *pb.CompletenessRequest) (*pb.CompletenessReply, error) {
	r, err := s.uc.Completeness(ctx, req.SessionId)
	if err != nil {
		return nil, err
	}
	return &pb.CompletenessReply{CompletenessReport: r, Message: r.StatusMessage()}, nil
}
