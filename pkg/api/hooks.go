package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// StepEvent describes a step-level lifecycle transition.
type StepEvent struct {
	Path     []string
	StepName string
	IsLeaf   bool

	// Result is set on success of a leaf step, in the same normalized form
	// stored in the run data.
	Result any
	// Error is set on failure.
	Error *InstallationError
}

// Hooks receives callbacks at lifecycle transitions of an installation run.
//
// Every state passed to a hook is a snapshot; hooks may keep or persist it.
// A hook that returns an error aborts the run and the error is returned from
// the runner unchanged.
type Hooks interface {
	OnInstallationStart(ctx context.Context, state *InstallationState) error
	OnInstallationSuccess(ctx context.Context, state *InstallationState) error
	OnInstallationFailure(ctx context.Context, state *InstallationState) error

	OnStepStart(ctx context.Context, ev StepEvent, state *InstallationState) error
	OnStepSuccess(ctx context.Context, ev StepEvent, state *InstallationState) error
	OnStepFailure(ctx context.Context, ev StepEvent, state *InstallationState) error
}

// HookName names one of the six Hooks callbacks.
type HookName string

const (
	HookInstallationStart   HookName = "onInstallationStart"
	HookInstallationSuccess HookName = "onInstallationSuccess"
	HookInstallationFailure HookName = "onInstallationFailure"
	HookStepStart           HookName = "onStepStart"
	HookStepSuccess         HookName = "onStepSuccess"
	HookStepFailure         HookName = "onStepFailure"
)

// CallHook dispatches to the named hook. A nil hooks value is a no-op.
// ev is required for step-level hooks and ignored otherwise.
func CallHook(ctx context.Context, hooks Hooks, name HookName, ev *StepEvent, state *InstallationState) error {
	if hooks == nil {
		return nil
	}
	switch name {
	case HookInstallationStart:
		return hooks.OnInstallationStart(ctx, state)
	case HookInstallationSuccess:
		return hooks.OnInstallationSuccess(ctx, state)
	case HookInstallationFailure:
		return hooks.OnInstallationFailure(ctx, state)
	}

	if ev == nil {
		return fmt.Errorf("hook %s requires a step event", name)
	}
	switch name {
	case HookStepStart:
		return hooks.OnStepStart(ctx, *ev, state)
	case HookStepSuccess:
		return hooks.OnStepSuccess(ctx, *ev, state)
	case HookStepFailure:
		return hooks.OnStepFailure(ctx, *ev, state)
	default:
		return fmt.Errorf("unknown hook %q", name)
	}
}

// HookFuncs adapts plain functions to Hooks. Nil fields are no-ops.
type HookFuncs struct {
	InstallationStart   func(ctx context.Context, state *InstallationState) error
	InstallationSuccess func(ctx context.Context, state *InstallationState) error
	InstallationFailure func(ctx context.Context, state *InstallationState) error

	StepStart   func(ctx context.Context, ev StepEvent, state *InstallationState) error
	StepSuccess func(ctx context.Context, ev StepEvent, state *InstallationState) error
	StepFailure func(ctx context.Context, ev StepEvent, state *InstallationState) error
}

var _ Hooks = HookFuncs{}

func (h HookFuncs) OnInstallationStart(ctx context.Context, state *InstallationState) error {
	if h.InstallationStart == nil {
		return nil
	}
	return h.InstallationStart(ctx, state)
}

func (h HookFuncs) OnInstallationSuccess(ctx context.Context, state *InstallationState) error {
	if h.InstallationSuccess == nil {
		return nil
	}
	return h.InstallationSuccess(ctx, state)
}

func (h HookFuncs) OnInstallationFailure(ctx context.Context, state *InstallationState) error {
	if h.InstallationFailure == nil {
		return nil
	}
	return h.InstallationFailure(ctx, state)
}

func (h HookFuncs) OnStepStart(ctx context.Context, ev StepEvent, state *InstallationState) error {
	if h.StepStart == nil {
		return nil
	}
	return h.StepStart(ctx, ev, state)
}

func (h HookFuncs) OnStepSuccess(ctx context.Context, ev StepEvent, state *InstallationState) error {
	if h.StepSuccess == nil {
		return nil
	}
	return h.StepSuccess(ctx, ev, state)
}

func (h HookFuncs) OnStepFailure(ctx context.Context, ev StepEvent, state *InstallationState) error {
	if h.StepFailure == nil {
		return nil
	}
	return h.StepFailure(ctx, ev, state)
}

// NoopHooks ignores every callback.
type NoopHooks struct{}

func (NoopHooks) OnInstallationStart(context.Context, *InstallationState) error   { return nil }
func (NoopHooks) OnInstallationSuccess(context.Context, *InstallationState) error { return nil }
func (NoopHooks) OnInstallationFailure(context.Context, *InstallationState) error { return nil }
func (NoopHooks) OnStepStart(context.Context, StepEvent, *InstallationState) error {
	return nil
}
func (NoopHooks) OnStepSuccess(context.Context, StepEvent, *InstallationState) error {
	return nil
}
func (NoopHooks) OnStepFailure(context.Context, StepEvent, *InstallationState) error {
	return nil
}

// CompositeHooks fans out callbacks to several Hooks in order, stopping at the
// first error.
type CompositeHooks struct {
	hooks []Hooks
}

// NewCompositeHooks combines the non-nil hooks in hs.
func NewCompositeHooks(hs ...Hooks) Hooks {
	filtered := make([]Hooks, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) == 0 {
		return NoopHooks{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeHooks{hooks: filtered}
}

func (c *CompositeHooks) each(fn func(Hooks) error) error {
	for _, h := range c.hooks {
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}

func (c *CompositeHooks) OnInstallationStart(ctx context.Context, state *InstallationState) error {
	return c.each(func(h Hooks) error { return h.OnInstallationStart(ctx, state) })
}

func (c *CompositeHooks) OnInstallationSuccess(ctx context.Context, state *InstallationState) error {
	return c.each(func(h Hooks) error { return h.OnInstallationSuccess(ctx, state) })
}

func (c *CompositeHooks) OnInstallationFailure(ctx context.Context, state *InstallationState) error {
	return c.each(func(h Hooks) error { return h.OnInstallationFailure(ctx, state) })
}

func (c *CompositeHooks) OnStepStart(ctx context.Context, ev StepEvent, state *InstallationState) error {
	return c.each(func(h Hooks) error { return h.OnStepStart(ctx, ev, state) })
}

func (c *CompositeHooks) OnStepSuccess(ctx context.Context, ev StepEvent, state *InstallationState) error {
	return c.each(func(h Hooks) error { return h.OnStepSuccess(ctx, ev, state) })
}

func (c *CompositeHooks) OnStepFailure(ctx context.Context, ev StepEvent, state *InstallationState) error {
	return c.each(func(h Hooks) error { return h.OnStepFailure(ctx, ev, state) })
}

var _ AbortHooks = (*CompositeHooks)(nil)

// OnInstallationAborted forwards to every member implementing AbortHooks.
func (c *CompositeHooks) OnInstallationAborted(ctx context.Context, state *InstallationState, cause error) {
	for _, h := range c.hooks {
		NotifyAborted(ctx, h, state, cause)
	}
}

// AbortHooks is implemented by hooks that keep per-run resources. A run that
// stops because a hook failed never reaches OnInstallationSuccess or
// OnInstallationFailure; OnInstallationAborted is called instead, with the
// hook error as cause.
type AbortHooks interface {
	OnInstallationAborted(ctx context.Context, state *InstallationState, cause error)
}

// NotifyAborted calls OnInstallationAborted if hooks implements AbortHooks.
func NotifyAborted(ctx context.Context, hooks Hooks, state *InstallationState, cause error) {
	if a, ok := hooks.(AbortHooks); ok {
		a.OnInstallationAborted(ctx, state, cause)
	}
}

// LoggingHooks writes structured logs using log/slog.
type LoggingHooks struct {
	Logger *slog.Logger
}

// NewLoggingHooks creates Hooks that log lifecycle events. If logger is nil,
// slog.Default() is used.
func NewLoggingHooks(logger *slog.Logger) Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHooks{Logger: logger}
}

func (h *LoggingHooks) OnInstallationStart(ctx context.Context, state *InstallationState) error {
	h.Logger.InfoContext(ctx, "installation_start",
		slog.String("installation_id", state.ID),
	)
	return nil
}

func (h *LoggingHooks) OnInstallationSuccess(ctx context.Context, state *InstallationState) error {
	h.Logger.InfoContext(ctx, "installation_succeeded",
		slog.String("installation_id", state.ID),
		slog.Duration("duration", runDuration(state)),
	)
	return nil
}

func (h *LoggingHooks) OnInstallationFailure(ctx context.Context, state *InstallationState) error {
	attrs := []any{
		slog.String("installation_id", state.ID),
		slog.Duration("duration", runDuration(state)),
	}
	if state.Error != nil {
		attrs = append(attrs,
			slog.String("error_key", string(state.Error.Key)),
			slog.String("error", state.Error.Message),
		)
	}
	h.Logger.ErrorContext(ctx, "installation_failed", attrs...)
	return nil
}

func (h *LoggingHooks) OnStepStart(ctx context.Context, ev StepEvent, state *InstallationState) error {
	h.Logger.DebugContext(ctx, "step_start",
		slog.String("installation_id", state.ID),
		slog.Any("path", ev.Path),
		slog.Bool("leaf", ev.IsLeaf),
	)
	return nil
}

func (h *LoggingHooks) OnStepSuccess(ctx context.Context, ev StepEvent, state *InstallationState) error {
	h.Logger.DebugContext(ctx, "step_succeeded",
		slog.String("installation_id", state.ID),
		slog.Any("path", ev.Path),
		slog.Bool("leaf", ev.IsLeaf),
	)
	return nil
}

func (h *LoggingHooks) OnStepFailure(ctx context.Context, ev StepEvent, state *InstallationState) error {
	h.Logger.ErrorContext(ctx, "step_failed",
		slog.String("installation_id", state.ID),
		slog.Any("path", ev.Path),
		slog.Any("error", ev.Error),
	)
	return nil
}

func runDuration(state *InstallationState) time.Duration {
	if state.StartedAt == nil || state.CompletedAt == nil {
		return 0
	}
	return state.CompletedAt.Sub(*state.StartedAt)
}

// PersistingHooks saves a state snapshot to a StateStore on every transition,
// so a run can be polled while it executes.
type PersistingHooks struct {
	Store StateStore
}

// NewPersistingHooks returns Hooks that checkpoint every transition to store.
func NewPersistingHooks(store StateStore) Hooks {
	return &PersistingHooks{Store: store}
}

func (p *PersistingHooks) save(ctx context.Context, state *InstallationState) error {
	if err := p.Store.Save(ctx, state); err != nil {
		return fmt.Errorf("checkpoint installation %s: %w", state.ID, err)
	}
	return nil
}

func (p *PersistingHooks) OnInstallationStart(ctx context.Context, state *InstallationState) error {
	return p.save(ctx, state)
}

func (p *PersistingHooks) OnInstallationSuccess(ctx context.Context, state *InstallationState) error {
	return p.save(ctx, state)
}

func (p *PersistingHooks) OnInstallationFailure(ctx context.Context, state *InstallationState) error {
	return p.save(ctx, state)
}

func (p *PersistingHooks) OnStepStart(ctx context.Context, _ StepEvent, state *InstallationState) error {
	return p.save(ctx, state)
}

func (p *PersistingHooks) OnStepSuccess(ctx context.Context, _ StepEvent, state *InstallationState) error {
	return p.save(ctx, state)
}

func (p *PersistingHooks) OnStepFailure(ctx context.Context, _ StepEvent, state *InstallationState) error {
	return p.save(ctx, state)
}

// BasicMetrics collects simple counters. It implements Hooks and can be
// combined with other hooks via NewCompositeHooks.
type BasicMetrics struct {
	NoopHooks

	installationsStarted   atomic.Int64
	installationsSucceeded atomic.Int64
	installationsFailed    atomic.Int64
	stepsSucceeded         atomic.Int64
	stepsFailed            atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	InstallationsStarted   int64
	InstallationsSucceeded int64
	InstallationsFailed    int64
	InstallationsRunning   int64

	StepsSucceeded int64
	StepsFailed    int64
}

func (m *BasicMetrics) OnInstallationStart(context.Context, *InstallationState) error {
	m.installationsStarted.Add(1)
	return nil
}

func (m *BasicMetrics) OnInstallationSuccess(context.Context, *InstallationState) error {
	m.installationsSucceeded.Add(1)
	return nil
}

func (m *BasicMetrics) OnInstallationFailure(context.Context, *InstallationState) error {
	m.installationsFailed.Add(1)
	return nil
}

func (m *BasicMetrics) OnStepSuccess(context.Context, StepEvent, *InstallationState) error {
	m.stepsSucceeded.Add(1)
	return nil
}

func (m *BasicMetrics) OnStepFailure(context.Context, StepEvent, *InstallationState) error {
	m.stepsFailed.Add(1)
	return nil
}

// Snapshot returns the current counters.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.installationsStarted.Load()
	succeeded := m.installationsSucceeded.Load()
	failed := m.installationsFailed.Load()

	return BasicMetricsSnapshot{
		InstallationsStarted:   started,
		InstallationsSucceeded: succeeded,
		InstallationsFailed:    failed,
		InstallationsRunning:   started - succeeded - failed,
		StepsSucceeded:         m.stepsSucceeded.Load(),
		StepsFailed:            m.stepsFailed.Load(),
	}
}
