// Package v1 定义调研服务的 HTTP 请求与响应
package v1

import (
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/research"
)

type ResearchRequest struct {
	SessionId string `json:"session_id"`
	Topic     string `json:"topic"`
}

// ResearchReply 调研结果信封，Markdown 为渲染后的报告
type ResearchReply struct {
	*model.ResearchRunResult
	Markdown string `json:"markdown,omitempty"`
}

type PlanRequest struct {
	SessionId string `json:"session_id"`
	Topic     string `json:"topic"`
}

type PlanReply struct {
	Topic   string   `json:"topic"`
	Intent  string   `json:"intent"`
	Source  string   `json:"source"`
	Queries []string `json:"queries"`
}

type CompletenessRequest struct {
	SessionId string `json:"session_id"`
}

type CompletenessReply struct {
	research.CompletenessReport
	Message string `json:"message"`
}
