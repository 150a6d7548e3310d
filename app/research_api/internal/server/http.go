package server

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pb "github.com/iWorld-y/deep_research/app/research_api/api/research/v1"
	"github.com/iWorld-y/deep_research/app/research_api/internal/conf"
	"github.com/iWorld-y/deep_research/app/research_api/internal/service"
)

// defaultTimeout 需大于 research.engine.batch_deadline 加上报告生成耗时
const defaultTimeout = 2 * time.Minute

func NewHTTPServer(c *conf.Server, s *service.ResearchService, logger log.Logger) *http.Server {
	timeout := defaultTimeout
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			logging.Server(logger),
		),
	}
	if c != nil && c.Http != nil {
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != "" {
			if d, err := time.ParseDuration(c.Http.Timeout); err == nil {
				timeout = d
			}
		}
	}
	opts = append(opts, http.Timeout(timeout))

	srv := http.NewServer(opts...)
	pb.RegisterResearchHTTPServer(srv, s)
	srv.Handle("/metrics", promhttp.Handler())
	return srv
}
