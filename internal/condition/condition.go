// Package condition evaluates the creation conditions that gate optional
// manifest kinds.
//
// A condition is either empty (always true), a registered named predicate,
// or a dotted path such as "metrics.serviceMonitor.enabled" that must lead
// to a boolean true in the document.
package condition

import (
	"strings"
	"sync"
)

// Predicate decides a condition against a partially built document.
// Predicates must not mutate the document.
type Predicate func(doc map[string]any) bool

// Built-in condition names.
const (
	AuthEnabled          = "auth.enabled"
	PersistenceEnabled   = "persistence.enabled"
	IngressEnabled       = "ingress.enabled"
	HPAEnabled           = "hpa.enabled"
	ServiceAccountCreate = "serviceAccount.create"
)

// Evaluator holds a registry of named predicates. The zero value has no
// predicates and treats every condition as a dotted path.
type Evaluator struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
}

// New returns an evaluator with an empty registry.
func New() *Evaluator {
	return &Evaluator{predicates: make(map[string]Predicate)}
}

// Default returns an evaluator with the built-in toggles registered. Only
// ingress is assumed on when the flag is absent.
func Default() *Evaluator {
	e := New()
	e.Register(AuthEnabled, Flag(AuthEnabled, false))
	e.Register(PersistenceEnabled, Flag(PersistenceEnabled, false))
	e.Register(IngressEnabled, Flag(IngressEnabled, true))
	e.Register(HPAEnabled, Flag(HPAEnabled, false))
	e.Register(ServiceAccountCreate, Flag(ServiceAccountCreate, false))
	return e
}

// Register adds or replaces a named predicate.
func (e *Evaluator) Register(name string, p Predicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.predicates == nil {
		e.predicates = make(map[string]Predicate)
	}
	e.predicates[strings.TrimSpace(name)] = p
}

// Names returns the registered predicate names.
func (e *Evaluator) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.predicates))
	for name := range e.predicates {
		names = append(names, name)
	}
	return names
}

// Evaluate reports whether condition holds for doc.
func (e *Evaluator) Evaluate(condition string, doc map[string]any) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}

	e.mu.RLock()
	p, ok := e.predicates[condition]
	e.mu.RUnlock()
	if ok {
		return p(doc)
	}

	v, found := Lookup(doc, condition)
	if !found {
		return false
	}
	b, isBool := v.(bool)
	return isBool && b
}

// Flag returns a predicate reading a boolean at path, using def when the
// path is absent. A present non-boolean value is false.
func Flag(path string, def bool) Predicate {
	return func(doc map[string]any) bool {
		v, found := Lookup(doc, path)
		if !found {
			return def
		}
		b, ok := v.(bool)
		return ok && b
	}
}

// Lookup walks a dotted path through nested maps.
func Lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
