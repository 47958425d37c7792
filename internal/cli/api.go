package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"time"

	"github.com/Paintersrp/intthread/internal/api"
	"github.com/Paintersrp/intthread/internal/registry"
)

// ControlAPI exposes the active registry to the HTTP control plane.
type ControlAPI struct {
	ctx *context
}

// NewControlAPI constructs a ControlAPI wrapper around the shared CLI context.
func NewControlAPI(ctx *context) *ControlAPI {
	if ctx == nil {
		return nil
	}
	return &ControlAPI{ctx: ctx}
}

func (apiCtrl *ControlAPI) registry(ctx stdcontext.Context) (*registry.Registry, error) {
	if apiCtrl == nil || apiCtrl.ctx == nil {
		return nil, api.ErrRegistryClosed
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	reg := apiCtrl.ctx.currentRegistry()
	if reg == nil {
		return nil, fmt.Errorf("%w: no active deployment", api.ErrRegistryClosed)
	}
	return reg, nil
}

// Status returns a report for every registered thread.
func (apiCtrl *ControlAPI) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	reg, err := apiCtrl.registry(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := reg.Snapshot()
	report := &api.StatusReport{
		GeneratedAt: time.Now(),
		Threads:     make([]api.ThreadReport, 0, len(snapshot)),
	}
	for _, info := range snapshot {
		report.Threads = append(report.Threads, api.NewThreadReport(info))
	}
	return report, nil
}

// Thread returns the report for one thread.
func (apiCtrl *ControlAPI) Thread(ctx stdcontext.Context, id uint64) (*api.ThreadReport, error) {
	reg, err := apiCtrl.registry(ctx)
	if err != nil {
		return nil, err
	}
	info, err := reg.Info(registry.ID(id))
	if err != nil {
		return nil, err
	}
	report := api.NewThreadReport(info)
	return &report, nil
}

// Apply runs action against one thread. Join waits for the thread to exit
// or for ctx to be cancelled, whichever comes first; a cancelled join leaves
// the thread running.
func (apiCtrl *ControlAPI) Apply(ctx stdcontext.Context, id uint64, action api.Action) (*api.ActionResult, error) {
	reg, err := apiCtrl.registry(ctx)
	if err != nil {
		return nil, err
	}
	rid := registry.ID(id)

	switch action {
	case api.ActionStart:
		err = reg.Start(rid)
	case api.ActionInterrupt:
		err = reg.Interrupt(rid)
	case api.ActionSuspend:
		err = reg.Suspend(rid)
	case api.ActionResume:
		err = reg.Resume(rid)
	case api.ActionJoin:
		err = joinContext(ctx, reg, rid)
	default:
		err = fmt.Errorf("%w %q", api.ErrUnknownAction, action)
	}
	if err != nil {
		return nil, err
	}

	info, err := reg.Info(rid)
	if err != nil {
		return nil, err
	}
	return &api.ActionResult{
		Action:      action,
		Thread:      api.NewThreadReport(info),
		CompletedAt: time.Now(),
	}, nil
}

func joinContext(ctx stdcontext.Context, reg *registry.Registry, id registry.ID) error {
	ctrl, err := reg.Lookup(id)
	if err != nil {
		return err
	}
	done := ctrl.Done()
	if done == nil {
		return fmt.Errorf("join %s: %w", id, api.ErrNotStarted)
	}
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	// The body has returned, so this only clears the handle.
	if err := reg.Join(id); err != nil && !errors.Is(err, api.ErrNotStarted) {
		return err
	}
	return nil
}

// Ensure interface compliance at compile time.
var _ api.Controller = (*ControlAPI)(nil)
