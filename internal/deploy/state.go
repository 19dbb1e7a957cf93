package deploy

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle state of one deployment request.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

var transitions = map[State][]State{
	StatePending: {StateRunning, StateFailed},
	StateRunning: {StateSucceeded, StateFailed, StateTimedOut},
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine tracks the states a deployment passed through.
type machine struct {
	history []State
}

func newMachine() *machine {
	return &machine{history: []State{StatePending}}
}

func (m *machine) current() State {
	return m.history[len(m.history)-1]
}

func (m *machine) transition(next State) error {
	cur := m.current()
	if !cur.CanTransition(next) {
		return fmt.Errorf("invalid deployment transition %s -> %s", cur, next)
	}
	m.history = append(m.history, next)
	return nil
}

// Result is the outcome of a deploy. Failures are carried in Err rather
// than returned, so callers always get exactly one terminal outcome.
type Result struct {
	Success      bool
	Message      string
	DeploymentID string
	DeployedAt   time.Time
	State        State
	ExitCode     int
	Err          error

	// History lists every state the deployment passed through.
	History []State
}

// Status is SUCCESS or ERROR.
func (r Result) Status() string {
	if r.Success {
		return "SUCCESS"
	}
	return "ERROR"
}

type resultJSON struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	DeploymentID string `json:"deploymentId"`
	DeployedAt   string `json:"deployedAt"`
	State        State  `json:"state"`
	ExitCode     int    `json:"exitCode,omitempty"`
}

// MarshalJSON renders the wire form with an RFC 3339 deployedAt.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		Status:       r.Status(),
		Message:      r.Message,
		DeploymentID: r.DeploymentID,
		DeployedAt:   r.DeployedAt.UTC().Format(time.RFC3339),
		State:        r.State,
		ExitCode:     r.ExitCode,
	})
}

// Rejected is the result of a request refused before it reached the
// orchestrator, such as a second deploy of a stack that is already running.
func Rejected(err error, at time.Time) Result {
	return Result{
		Message:    err.Error(),
		DeployedAt: at,
		State:      StateFailed,
		Err:        err,
		History:    []State{StatePending, StateFailed},
	}
}
