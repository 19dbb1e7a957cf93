package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/model"
	"github.com/lolmeida/kstack/internal/store"
)

// Config selects the strategy settings per environment.
type Config struct {
	HelmBin        string
	ProjectRoot    string
	ChartsDir      string
	StagingContext string
	ProdContext    string
	ProdNamespace  string
	DevDelay       time.Duration
	StagingTimeout time.Duration
	ProdTimeout    time.Duration
	TempDir        string
	SecretsFiles   []string
}

// DefaultConfig returns the built-in strategy settings.
func DefaultConfig() Config {
	return Config{
		HelmBin:        "helm",
		ChartsDir:      "charts",
		StagingContext: "staging",
		ProdContext:    "prod",
		ProdNamespace:  manifest.ProdNamespace,
		DevDelay:       2 * time.Second,
		StagingTimeout: 5 * time.Minute,
		ProdTimeout:    10 * time.Minute,
	}
}

// DefaultStrategies builds the dev, staging and prod strategies. Staging
// and prod share runner and builder.
func DefaultStrategies(cfg Config, builder ValuesBuilder, runner CommandRunner, secrets SecretsDecryptor) map[string]Strategy {
	if runner == nil {
		runner = ExecRunner{}
	}
	helm := func(kubeContext string, timeout time.Duration) *HelmStrategy {
		return &HelmStrategy{
			Bin:          cfg.HelmBin,
			ProjectRoot:  cfg.ProjectRoot,
			ChartsDir:    cfg.ChartsDir,
			KubeContext:  kubeContext,
			Timeout:      timeout,
			TempDir:      cfg.TempDir,
			Builder:      builder,
			Runner:       runner,
			Secrets:      secrets,
			SecretsFiles: cfg.SecretsFiles,
		}
	}

	prod := helm(cfg.ProdContext, cfg.ProdTimeout)
	prod.Namespace = cfg.ProdNamespace
	prod.CreateNamespace = true
	prod.Atomic = true

	return map[string]Strategy{
		"dev":     SimulatedStrategy{Delay: cfg.DevDelay},
		"staging": helm(cfg.StagingContext, cfg.StagingTimeout),
		"prod":    prod,
	}
}

// Orchestrator validates deploy requests and runs the strategy registered
// for the target environment.
type Orchestrator struct {
	store      store.ConfigStore
	strategies map[string]Strategy
	now        func() time.Time
	log        *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStrategy registers s for the environment name (case-insensitive).
func WithStrategy(envName string, s Strategy) Option {
	return func(o *Orchestrator) {
		o.strategies[strings.ToLower(envName)] = s
	}
}

// WithClock sets the clock used for DeployedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.log = l
	}
}

// NewOrchestrator creates an orchestrator over s with the given strategies.
func NewOrchestrator(s store.ConfigStore, strategies map[string]Strategy, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      s,
		strategies: make(map[string]Strategy, len(strategies)),
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for name, st := range strategies {
		o.strategies[strings.ToLower(name)] = st
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Strategy returns the strategy registered for envName.
func (o *Orchestrator) Strategy(envName string) (Strategy, bool) {
	s, ok := o.strategies[strings.ToLower(envName)]
	return s, ok
}

// Deploy runs one deployment to completion. It never returns an error;
// every failure is reported in the Result with a terminal state.
func (o *Orchestrator) Deploy(ctx context.Context, environmentID int64, stackName string) Result {
	m := newMachine()
	log := o.log.With(zap.Int64("environment_id", environmentID), zap.String("stack", stackName))

	target, strategy, err := o.prepare(ctx, environmentID, stackName)
	if err != nil {
		log.Warn("deploy rejected", zap.Error(err))
		return o.finish(m, StateFailed, Outcome{}, err)
	}

	if err := m.transition(StateRunning); err != nil {
		return o.finish(m, StateFailed, Outcome{}, err)
	}
	log = log.With(zap.String("environment", target.Environment.Name), zap.String("strategy", strategy.Name()))
	log.Info("deploy started")

	start := o.now()
	out, err := strategy.Deploy(ctx, target)
	elapsed := o.now().Sub(start)

	switch {
	case err == nil:
		log.Info("deploy succeeded", zap.String("deployment_id", out.DeploymentID), zap.Duration("elapsed", elapsed))
		return o.finish(m, StateSucceeded, out, nil)
	case errors.Is(err, model.ErrTimeout):
		log.Error("deploy timed out", zap.Error(err), zap.Duration("elapsed", elapsed))
		return o.finish(m, StateTimedOut, Outcome{}, err)
	default:
		log.Error("deploy failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		return o.finish(m, StateFailed, Outcome{}, err)
	}
}

// prepare checks the request preconditions without touching any strategy.
func (o *Orchestrator) prepare(ctx context.Context, environmentID int64, stackName string) (Target, Strategy, error) {
	if environmentID <= 0 {
		return Target{}, nil, fmt.Errorf("%w: environment id must be positive", model.ErrBadRequest)
	}
	if strings.TrimSpace(stackName) == "" {
		return Target{}, nil, fmt.Errorf("%w: stack name is required", model.ErrBadRequest)
	}

	env, err := o.store.GetEnvironment(ctx, environmentID)
	if err != nil {
		return Target{}, nil, fmt.Errorf("load environment %d: %w", environmentID, err)
	}
	st, err := o.store.GetStack(ctx, environmentID, stackName)
	if err != nil {
		return Target{}, nil, fmt.Errorf("load stack %q: %w", stackName, err)
	}
	if !st.Enabled {
		return Target{}, nil, fmt.Errorf("%w: stack %q is disabled in %s", model.ErrBadRequest, st.Name, env.Name)
	}

	strategy, ok := o.Strategy(env.Name)
	if !ok {
		return Target{}, nil, fmt.Errorf("%w: %q", model.ErrUnknownEnvironment, env.Name)
	}
	return Target{Environment: *env, Stack: *st}, strategy, nil
}

func (o *Orchestrator) finish(m *machine, state State, out Outcome, err error) Result {
	if tErr := m.transition(state); tErr != nil {
		err = errors.Join(err, tErr)
	}
	res := Result{
		Success:      state == StateSucceeded,
		DeploymentID: out.DeploymentID,
		DeployedAt:   o.now(),
		State:        m.current(),
		Err:          err,
		History:      append([]State(nil), m.history...),
	}
	if err != nil {
		res.Message = err.Error()
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			res.ExitCode = toolErr.ExitCode
		}
	} else {
		res.Message = out.Message
	}
	return res
}
