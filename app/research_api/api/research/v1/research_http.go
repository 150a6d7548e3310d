package v1

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationResearchRun          = "/research.v1.Research/Run"
	OperationResearchPlan         = "/research.v1.Research/Plan"
	OperationResearchCompleteness = "/research.v1.Research/Completeness"
)

type ResearchHTTPServer interface {
	Run(context.Context, *ResearchRequest) (*ResearchReply, error)
	Plan(context.Context, *PlanRequest) (*PlanReply, error)
	Completeness(context.Context, *CompletenessRequest) (*CompletenessReply, error)
}

func RegisterResearchHTTPServer(s *http.Server, srv ResearchHTTPServer) {
	r := s.Route("/")
	r.POST("/v1/research", _Research_Run0_HTTP_Handler(srv))
	r.POST("/v1/plan", _Research_Plan0_HTTP_Handler(srv))
	r.GET("/v1/profiles/{session_id}/completeness", _Research_Completeness0_HTTP_Handler(srv))
}

func _Research_Run0_HTTP_Handler(srv ResearchHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ResearchRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationResearchRun)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Run(ctx, req.(*ResearchRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*ResearchReply)
		return ctx.Result(200, reply)
	}
}

func _Research_Plan0_HTTP_Handler(srv ResearchHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in PlanRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationResearchPlan)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Plan(ctx, req.(*PlanRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*PlanReply)
		return ctx.Result(200, reply)
	}
}

func _Research_Completeness0_HTTP_Handler(srv ResearchHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := CompletenessRequest{SessionId: ctx.Vars().Get("session_id")}
		http.SetOperation(ctx, OperationResearchCompleteness)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.Completeness(ctx, req.(*CompletenessRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CompletenessReply)
		return ctx.Result(200, reply)
	}
}
