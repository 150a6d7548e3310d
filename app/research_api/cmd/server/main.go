package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/iWorld-y/deep_research/app/research_api/internal/conf"
	"github.com/iWorld-y/deep_research/app/research_api/internal/server"
	"github.com/iWorld-y/deep_research/app/research_api/internal/service"
	"github.com/iWorld-y/deep_research/app/research_api/internal/usecase"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name 是服务的名称
	Name string = "research_api"
	// Version 是服务的版本号
	Version string
	// flagconf 是配置文件的路径命令行参数
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/research_api/configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	app, cleanup, err := initApp(context.Background(), bc.Server, bc.Research, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	if err := app.Run(); err != nil {
		panic(err)
	}
}

// initApp 手动装配 引擎 -> usecase -> service -> HTTP server
func initApp(ctx context.Context, cs *conf.Server, cr *conf.Research, logger log.Logger) (*kratos.App, func(), error) {
	eng, store, cleanup, err := server.NewResearchEngine(ctx, cr, logger)
	if err != nil {
		return nil, nil, err
	}
	uc := usecase.NewResearchUseCase(store, eng, eng.Planner(), logger)
	svc := service.NewResearchService(uc, logger)
	hs := server.NewHTTPServer(cs, svc, logger)
	return newApp(logger, hs), cleanup, nil
}

func newApp(logger log.Logger, hs *http.Server) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(hs),
	)
}
