// Package events fans deployment and resolution events out to sinks.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Type names an event.
type Type string

const (
	ValuesBuilt         Type = "values.built"
	DeploySucceeded     Type = "deploy.succeeded"
	DeployFailed        Type = "deploy.failed"
	DeployTimedOut      Type = "deploy.timed_out"
	CacheCleared        Type = "cache.cleared"
	CategoryInvalidated Type = "cache.category_invalidated"
)

// Severity levels for events.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one notification.
type Event struct {
	Type     Type              `json:"type"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Severity Severity          `json:"severity"`
	Time     time.Time         `json:"time"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sink is an event backend.
type Sink interface {
	Name() string
	Send(ctx context.Context, e *Event) error
	IsConfigured() bool
}

// Manager delivers events to every configured sink.
type Manager struct {
	mu    sync.RWMutex
	sinks []Sink
	now   func() time.Time
}

// NewManager creates a manager with no sinks.
func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// AddSink adds a sink if it is configured.
func (m *Manager) AddSink(s Sink) {
	if s == nil || !s.IsConfigured() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// SinkNames returns the names of all configured sinks.
func (m *Manager) SinkNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return names
}

// Emit sends e to all sinks and returns the joined sink errors.
func (m *Manager) Emit(ctx context.Context, e *Event) error {
	if e.Time.IsZero() {
		e.Time = m.now()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}

	m.mu.RLock()
	sinks := append([]Sink(nil), m.sinks...)
	m.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("event errors: %w", errors.Join(errs...))
	}
	return nil
}
