package api

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"github.com/Paintersrp/intthread/internal/registry"
	"github.com/Paintersrp/intthread/internal/thread"
)

// Errors surfaced by controllers. Domain sentinels are re-exported so that
// servers classify them without importing the core packages.
var (
	ErrUnknownThread  = registry.ErrNotFound
	ErrRegistryClosed = registry.ErrClosed
	ErrNotStarted     = thread.ErrNotStarted
	ErrThreadRunning  = thread.ErrDestroyedWhileRunning
	ErrSpawnFailed    = thread.ErrSpawnFailure
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidID      = errors.New("invalid thread id")
)

// Action is a control operation addressed to one thread.
type Action string

const (
	ActionStart     Action = "start"
	ActionInterrupt Action = "interrupt"
	ActionSuspend   Action = "suspend"
	ActionResume    Action = "resume"
	ActionJoin      Action = "join"
)

// Actions lists the supported actions.
func Actions() []Action {
	return []Action{ActionStart, ActionInterrupt, ActionSuspend, ActionResume, ActionJoin}
}

// ParseAction validates a textual action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAction, s)
}

// ThreadReport describes one registered thread.
type ThreadReport struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	State       string `json:"state"`
	Owned       bool   `json:"owned"`
	NativeID    int64  `json:"native_id"`
	RunID       string `json:"run_id"`
	Interrupted bool   `json:"interrupted"`
	StatusCode  int    `json:"status_code"`
	Error       string `json:"error,omitempty"`
}

// NewThreadReport converts a registry snapshot entry.
func NewThreadReport(info registry.Info) ThreadReport {
	report := ThreadReport{
		ID:          uint64(info.ID),
		Name:        info.Name,
		Backend:     info.Backend,
		State:       info.State.String(),
		Owned:       info.Owned,
		NativeID:    info.NativeID,
		RunID:       info.RunID,
		Interrupted: info.Interrupted,
		StatusCode:  info.StatusCode,
	}
	if info.Err != nil {
		report.Error = info.Err.Error()
	}
	return report
}

// StatusReport aggregates every registered thread.
type StatusReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Threads     []ThreadReport `json:"threads"`
}

// ActionResult captures the outcome of a control action.
type ActionResult struct {
	Action      Action       `json:"action"`
	Thread      ThreadReport `json:"thread"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Controller exposes registry operations required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	Thread(stdcontext.Context, uint64) (*ThreadReport, error)
	Apply(stdcontext.Context, uint64, Action) (*ActionResult, error)
}
