package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iWorld-y/deep_research/app/deep_research/pkg/config"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/logger"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/model"
	"github.com/iWorld-y/deep_research/app/deep_research/pkg/storage"
)

// cliSession --profile 模式下使用的会话 ID
const cliSession = "cli"

type rootOptions struct {
	cfgPath     string
	profilePath string
	sessionID   string
	cfg         *config.Config
}

func main() {
	if err := newRootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCMD() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "deep_research",
		Short:        "Multi-query market research for SME business profiles",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}
	root.PersistentFlags().StringVarP(&opts.cfgPath, "config", "c", "configs/config.yaml", "config file")
	root.PersistentFlags().StringVar(&opts.profilePath, "profile", "", "business profile YAML file (instead of the database)")
	root.PersistentFlags().StringVar(&opts.sessionID, "session", "", "session ID used to load the business profile")

	root.AddCommand(runCMD(opts), planCMD(opts), checkCMD(opts))
	return root
}

func (o *rootOptions) load() error {
	cfg, err := config.LoadConfig(o.cfgPath)
	if err != nil {
		return fmt.Errorf("无法加载配置文件: %w", err)
	}
	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		return fmt.Errorf("无法初始化日志: %w", err)
	}
	o.cfg = cfg
	return nil
}

// openStore 优先使用 --profile 文件，否则连接配置中的 PostgreSQL
func (o *rootOptions) openStore() (storage.ProfileStore, string, func(), error) {
	if o.profilePath != "" {
		bc, err := storage.LoadProfileFile(o.profilePath)
		if err != nil {
			return nil, "", nil, fmt.Errorf("无法读取画像文件: %w", err)
		}
		session := o.sessionID
		if session == "" {
			session = cliSession
		}
		mem := storage.NewMemoryStore()
		mem.Put(session, bc)
		return mem, session, func() {}, nil
	}

	if o.sessionID == "" {
		return nil, "", nil, fmt.Errorf("either --profile or --session is required")
	}
	if o.cfg.DB.Host == "" {
		return nil, "", nil, fmt.Errorf("--session requires db settings in %s", o.cfgPath)
	}
	pg, err := storage.NewPostgresStore(o.cfg.DB)
	if err != nil {
		return nil, "", nil, err
	}
	logger.Log.Info("已成功连接到数据库")
	return pg, o.sessionID, func() { _ = pg.Close() }, nil
}

// loadContext 只读取画像（plan / check 使用）
func (o *rootOptions) loadContext(cmd *cobra.Command) (model.BusinessContext, error) {
	store, session, closeFn, err := o.openStore()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	bc, err := store.GetBusinessContext(cmd.Context(), session)
	if err == nil {
		return bc, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return model.BusinessContext{}, nil
	}
	return nil, err
}
