package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lolmeida/kstack/internal/config"
	"github.com/lolmeida/kstack/internal/deploy"
	"github.com/lolmeida/kstack/internal/events"
	"github.com/lolmeida/kstack/internal/logging"
	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/model"
	"github.com/lolmeida/kstack/internal/service"
	"github.com/lolmeida/kstack/internal/store"
)

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagDB != "" {
		cfg.DB = flagDB
	}
	if flagCatalog != "" {
		cfg.Catalog = flagCatalog
	}
	if flagStateDir != "" {
		cfg.StateDir = flagStateDir
	}
	return cfg, nil
}

// openStore opens the SQLite store when a database is configured and the
// catalog file otherwise. The returned func releases the store.
func openStore(cfg *config.Config) (store.ConfigStore, func() error, error) {
	if cfg.DB != "" {
		s, err := store.OpenSQLite(cfg.DB, true)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, nil, fmt.Errorf("database %s does not exist (run 'kstack seed' first)", cfg.DB)
			}
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return s, s.Close, nil
	}

	c, err := store.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}
	return store.NewMemoryStore(c), func() error { return nil }, nil
}

// newLogger returns a no-op logger unless --verbose is set.
func newLogger(level string) (*zap.Logger, error) {
	if !flagVerbose {
		return zap.NewNop(), nil
	}
	if level == "" || level == "info" {
		level = "debug"
	}
	return logging.NewLogger("kstack", level)
}

// app bundles what the commands need.
type app struct {
	cfg     *config.Config
	store   store.ConfigStore
	builder *manifest.Builder
	service *service.Service
	log     *zap.Logger
	close   func() error
}

type appOptions struct {
	runner     deploy.CommandRunner
	noSecrets  bool
	withStates bool
}

// newApp wires store, builder, orchestrator and service from config.
func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	s, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	builder := manifest.NewBuilder(s, nil)

	runner := opts.runner
	if runner == nil {
		runner = deploy.ExecRunner{}
	}
	var secrets deploy.SecretsDecryptor
	if !opts.noSecrets && len(cfg.SecretsFiles) > 0 {
		secrets = deploy.NewSOPSOps(deploy.ExecRunner{})
	}
	strategies := deploy.DefaultStrategies(deployConfig(cfg), builder, runner, secrets)
	orch := deploy.NewOrchestrator(s, strategies, deploy.WithLogger(log))

	em := events.NewManager()
	em.AddSink(events.NewLogSink(log))
	em.AddSink(events.NewWebhookSink(cfg.WebhookURL, cfg.WebhookFormat))

	svcOpts := []service.Option{service.WithEvents(em), service.WithLogger(log)}
	if opts.withStates {
		svcOpts = append(svcOpts, service.WithStateDir(cfg.StateDir))
	}

	return &app{
		cfg:     cfg,
		store:   s,
		builder: builder,
		service: service.New(s, builder, orch, svcOpts...),
		log:     log,
		close: func() error {
			_ = log.Sync()
			return closeStore()
		},
	}, nil
}

func deployConfig(cfg *config.Config) deploy.Config {
	dc := deploy.DefaultConfig()
	dc.HelmBin = cfg.HelmBin
	dc.ProjectRoot = cfg.Root
	dc.StagingContext = cfg.StagingContext
	dc.ProdContext = cfg.ProdContext
	dc.ProdNamespace = cfg.ProdNamespace
	dc.DevDelay = cfg.DevDelay
	dc.StagingTimeout = cfg.StagingTimeout
	dc.ProdTimeout = cfg.ProdTimeout
	dc.SecretsFiles = cfg.SecretsFiles
	return dc
}

// resolveEnvironment accepts an environment id or a case-insensitive name.
func resolveEnvironment(ctx context.Context, s store.ConfigStore, arg string) (*model.Environment, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return s.GetEnvironment(ctx, id)
	}
	envs, err := s.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}
	for _, env := range envs {
		if strings.EqualFold(env.Name, arg) {
			env := env
			return &env, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", model.ErrEnvironmentNotFound, arg)
}

// withApp runs fn with a wired app and closes it afterwards.
func withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}
