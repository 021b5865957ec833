package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
)

// Config describes how to construct an Executor.
type Config struct {
	Hooks api.Hooks
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Executor walks a step tree depth-first, one step at a time, and records
// the outcome in an InstallationState.
type Executor struct {
	hooks api.Hooks
	clock func() time.Time
}

// NewExecutor creates an Executor from cfg.
func NewExecutor(cfg Config) *Executor {
	hooks := cfg.Hooks
	if hooks == nil {
		hooks = api.NoopHooks{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Executor{hooks: hooks, clock: clock}
}

func (e *Executor) now() time.Time {
	return e.clock().UTC()
}

// run holds the mutable state of a single execution.
type run struct {
	*Executor
	cfg   *config.AppConfig
	state *api.InstallationState
}

// Execute runs root as described by plan and returns the terminal state.
//
// A failing step does not produce an error: it is recorded in the returned
// state. An error is returned when the plan does not match root or a hook
// fails; in the latter case the state reflects progress up to that point.
func (e *Executor) Execute(
	ctx context.Context,
	root api.Step,
	plan *api.InstallationPlan,
	cfg *config.AppConfig,
	ec api.ExecutionContext,
) (*api.InstallationState, error) {
	status, err := api.RunStatus(root, plan)
	if err != nil {
		return nil, err
	}

	state := &api.InstallationState{
		ID:     plan.ID,
		Status: api.InstallationPending,
		Step:   status,
		Data:   map[string]any{},
	}
	state.Start(e.now())

	r := &run{Executor: e, cfg: cfg, state: state}
	if err := r.execute(ctx, root, ec); err != nil {
		api.NotifyAborted(context.WithoutCancel(ctx), e.hooks, state.Clone(), err)
		return state, err
	}
	return state, nil
}

// execute drives the run from start to its terminal hook. A returned error
// is a hook failure.
func (r *run) execute(ctx context.Context, root api.Step, ec api.ExecutionContext) error {
	if err := r.call(ctx, api.HookInstallationStart, nil); err != nil {
		return err
	}

	failure, err := r.step(ctx, root, r.state.Step, ec)
	if err != nil {
		return err
	}

	if failure != nil {
		r.state.Fail(r.now(), failure)
		return r.call(ctx, api.HookInstallationFailure, nil)
	}
	r.state.Succeed(r.now())
	return r.call(ctx, api.HookInstallationSuccess, nil)
}

// call dispatches a hook with a snapshot of the current state. Hooks see ctx
// without its cancellation so that a cancelled run can still record its
// failure.
func (r *run) call(ctx context.Context, name api.HookName, ev *api.StepEvent) error {
	return api.CallHook(context.WithoutCancel(ctx), r.hooks, name, ev, r.state.Clone())
}

// step executes a single node. It returns the failure that aborts the run, if
// any, and a non-nil error only when a hook fails.
func (r *run) step(ctx context.Context, s api.Step, node *api.StepStatus, ec api.ExecutionContext) (*api.InstallationError, error) {
	if node == nil {
		return nil, fmt.Errorf("%w: no status for step %q", api.ErrPlanMismatch, s.Name())
	}

	// Steps left out of the plan stay skipped even if their guard would now
	// accept cfg.
	if node.Status == api.StepSkipped || !s.Enabled(r.cfg) {
		node.SetSubtree(api.StepSkipped)
		return nil, nil
	}

	ev := api.StepEvent{
		Path:     node.Path,
		StepName: s.Name(),
		IsLeaf:   api.IsLeafStep(s),
	}

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, node, ev, api.NewInstallationError(err, node.Path, api.ErrKeyInstallationCancelled))
	}

	node.Status = api.StepInProgress
	if err := r.call(ctx, api.HookStepStart, &ev); err != nil {
		return nil, err
	}

	switch s := s.(type) {
	case *api.LeafStep:
		return r.leaf(ctx, s, node, ev, ec)
	case *api.BranchStep:
		return r.branch(ctx, s, node, ev, ec)
	default:
		return nil, fmt.Errorf("unsupported step type %T", s)
	}
}

func (r *run) leaf(ctx context.Context, s *api.LeafStep, node *api.StepStatus, ev api.StepEvent, ec api.ExecutionContext) (*api.InstallationError, error) {
	result, err := invoke(ctx, s, r.cfg, ec)
	if err != nil {
		return r.fail(ctx, node, ev, toInstallationError(err, node.Path))
	}
	result, err = api.NormalizeResult(result)
	if err != nil {
		return r.fail(ctx, node, ev, api.ToInstallationError(err, node.Path))
	}

	if result != nil {
		api.SetAtPath(r.state.Data, node.Path, result)
	}
	node.Status = api.StepSucceeded
	ev.Result = result
	return nil, r.call(ctx, api.HookStepSuccess, &ev)
}

func (r *run) branch(ctx context.Context, s *api.BranchStep, node *api.StepStatus, ev api.StepEvent, ec api.ExecutionContext) (*api.InstallationError, error) {
	childCtx, err := s.DeriveContext(r.cfg, ec)
	if err != nil {
		return r.fail(ctx, node, ev, api.ToInstallationError(err, node.Path))
	}

	for _, child := range s.Children() {
		failure, err := r.step(ctx, child, node.Child(child.Name()), childCtx)
		if err != nil {
			return nil, err
		}
		if failure != nil {
			node.Status = api.StepFailed
			return failure, nil
		}
	}

	node.Status = api.StepSucceeded
	return nil, r.call(ctx, api.HookStepSuccess, &ev)
}

func (r *run) fail(ctx context.Context, node *api.StepStatus, ev api.StepEvent, failure *api.InstallationError) (*api.InstallationError, error) {
	node.Status = api.StepFailed
	ev.Error = failure
	if err := r.call(ctx, api.HookStepFailure, &ev); err != nil {
		return nil, err
	}
	return failure, nil
}

// panicError carries a value recovered from a panicking leaf.
type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func invoke(ctx context.Context, s *api.LeafStep, cfg *config.AppConfig, ec api.ExecutionContext) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = &panicError{value: rec}
		}
	}()
	return s.Run(ctx, cfg, ec)
}

func toInstallationError(err error, path []string) *api.InstallationError {
	if p, ok := err.(*panicError); ok {
		return api.NewInstallationError(p.value, path)
	}
	return api.ToInstallationError(err, path)
}
