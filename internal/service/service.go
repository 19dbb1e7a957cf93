// Package service is the caller layer over the values builder and the
// deploy orchestrator. It serializes deploys per stack, records metrics
// and emits events.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lolmeida/kstack/internal/deploy"
	"github.com/lolmeida/kstack/internal/events"
	"github.com/lolmeida/kstack/internal/lock"
	"github.com/lolmeida/kstack/internal/manifest"
	"github.com/lolmeida/kstack/internal/metrics"
	"github.com/lolmeida/kstack/internal/model"
	"github.com/lolmeida/kstack/internal/store"
)

// Deployer runs one deployment to a terminal state.
type Deployer interface {
	Deploy(ctx context.Context, environmentID int64, stackName string) deploy.Result
}

// Service builds values documents and deploys stacks.
type Service struct {
	store    store.ConfigStore
	builder  *manifest.Builder
	deployer Deployer

	locks    *lock.KeyedMutex
	stateDir string

	events  *events.Manager
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEvents sets the event manager.
func WithEvents(m *events.Manager) Option {
	return func(s *Service) {
		s.events = m
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithStateDir enables the cross-process lock file per stack under dir.
func WithStateDir(dir string) Option {
	return func(s *Service) {
		s.stateDir = dir
	}
}

// WithClock sets the clock used for rejected results.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a service.
func New(s store.ConfigStore, b *manifest.Builder, d Deployer, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		builder:  b,
		deployer: d,
		locks:    lock.NewKeyedMutex(),
		events:   events.NewManager(),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Environments lists the known environments.
func (s *Service) Environments(ctx context.Context) ([]model.Environment, error) {
	return s.store.ListEnvironments(ctx)
}

// Values builds the values document of a stack.
func (s *Service) Values(ctx context.Context, environmentID int64, stackName string) (model.Document, error) {
	doc, err := s.builder.BuildStackValues(ctx, environmentID, stackName)
	env := s.environmentName(ctx, environmentID)
	if s.metrics != nil {
		s.metrics.ValuesBuilt(env, err)
	}
	if err != nil {
		return nil, fmt.Errorf("build values for %s/%s: %w", env, stackName, err)
	}

	s.emit(ctx, &events.Event{
		Type:     events.ValuesBuilt,
		Title:    "Values built",
		Message:  fmt.Sprintf("Built values for stack %s in %s", stackName, env),
		Metadata: map[string]string{"environment": env, "stack": stackName},
	})
	return doc, nil
}

// Deploy deploys a stack. A deploy of a stack that is already being
// deployed fails immediately with model.ErrDeployInProgress.
func (s *Service) Deploy(ctx context.Context, environmentID int64, stackName string) deploy.Result {
	env := s.environmentName(ctx, environmentID)
	key := lock.StackKey(environmentID, stackName)

	release, ok := s.locks.TryLock(key)
	if !ok {
		return s.reject(env, fmt.Errorf("%w: stack %s in %s", model.ErrDeployInProgress, stackName, env))
	}
	defer release()

	if s.stateDir != "" {
		fl := lock.ForStack(s.stateDir, environmentID, stackName)
		if err := fl.Acquire(); err != nil {
			if errors.Is(err, lock.ErrLocked) {
				err = fmt.Errorf("%w: %w", model.ErrDeployInProgress, err)
			}
			return s.reject(env, err)
		}
		defer func() {
			if err := fl.Release(); err != nil {
				s.log.Warn("release deploy lock", zap.String("path", fl.Path()), zap.Error(err))
			}
		}()
	}

	var done func(string)
	if s.metrics != nil {
		done = s.metrics.DeployStarted(env)
	}
	res := s.deployer.Deploy(ctx, environmentID, stackName)
	if done != nil {
		done(string(res.State))
	}

	s.emit(ctx, deployEvent(env, stackName, res))
	return res
}

// ClearCache drops every cached category.
func (s *Service) ClearCache(ctx context.Context) {
	s.builder.Resolver().ClearCache()
	if s.metrics != nil {
		s.metrics.CacheCleared()
	}
	s.emit(ctx, &events.Event{
		Type:    events.CacheCleared,
		Title:   "Defaults cache cleared",
		Message: "All cached category defaults were dropped",
	})
}

// InvalidateCategory drops one category from the cache.
func (s *Service) InvalidateCategory(ctx context.Context, category string) {
	s.builder.Resolver().Invalidate(category)
	if s.metrics != nil {
		s.metrics.CacheCleared()
	}
	s.emit(ctx, &events.Event{
		Type:     events.CategoryInvalidated,
		Title:    "Category invalidated",
		Message:  fmt.Sprintf("Cached defaults for category %s were dropped", category),
		Metadata: map[string]string{"category": category},
	})
}

func (s *Service) reject(env string, err error) deploy.Result {
	s.log.Warn("deploy rejected", zap.String("environment", env), zap.Error(err))
	if s.metrics != nil {
		s.metrics.DeployRejected(env, string(deploy.StateFailed))
	}
	return deploy.Rejected(err, s.now())
}

// environmentName resolves a metrics and event label for an environment id.
func (s *Service) environmentName(ctx context.Context, id int64) string {
	env, err := s.store.GetEnvironment(ctx, id)
	if err != nil {
		return "unknown"
	}
	return env.Name
}

func (s *Service) emit(ctx context.Context, e *events.Event) {
	if err := s.events.Emit(ctx, e); err != nil {
		s.log.Warn("emit event", zap.String("event", string(e.Type)), zap.Error(err))
	}
}

func deployEvent(env, stack string, res deploy.Result) *events.Event {
	meta := map[string]string{
		"environment":  env,
		"stack":        stack,
		"state":        string(res.State),
		"deploymentId": res.DeploymentID,
	}
	switch res.State {
	case deploy.StateSucceeded:
		return &events.Event{
			Type: events.DeploySucceeded, Title: "Deployment succeeded",
			Message: res.Message, Severity: events.SeverityInfo, Metadata: meta,
		}
	case deploy.StateTimedOut:
		return &events.Event{
			Type: events.DeployTimedOut, Title: "Deployment timed out",
			Message: res.Message, Severity: events.SeverityError, Metadata: meta,
		}
	default:
		return &events.Event{
			Type: events.DeployFailed, Title: "Deployment failed",
			Message: res.Message, Severity: events.SeverityError, Metadata: meta,
		}
	}
}
