package telemetry

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/appinstall/pkg/api"
)

// Span and attribute names used by TracingHooks.
const (
	InstallationSpanName = "appinstall.run"

	InstallationIDKey = "appinstall.installation.id"
	StepPathKey       = "appinstall.step.path"
	StepLeafKey       = "appinstall.step.leaf"
	ErrorKeyKey       = "appinstall.error.key"
)

// TracingHooks emits one span per installation and a child span per
// executed step, nested by step path.
type TracingHooks struct {
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*tracedRun
}

type tracedRun struct {
	root  trace.Span
	ctx   context.Context
	steps map[string]tracedStep
}

type tracedStep struct {
	ctx  context.Context
	span trace.Span
}

var (
	_ api.Hooks      = (*TracingHooks)(nil)
	_ api.AbortHooks = (*TracingHooks)(nil)
)

// NewTracingHooks creates TracingHooks using tracer.
func NewTracingHooks(tracer trace.Tracer) *TracingHooks {
	return &TracingHooks{tracer: tracer, runs: make(map[string]*tracedRun)}
}

func (h *TracingHooks) OnInstallationStart(ctx context.Context, state *api.InstallationState) error {
	spanCtx, span := h.tracer.Start(ctx, InstallationSpanName, trace.WithAttributes(
		attribute.String(InstallationIDKey, state.ID),
	))

	h.mu.Lock()
	h.runs[state.ID] = &tracedRun{root: span, ctx: spanCtx, steps: make(map[string]tracedStep)}
	h.mu.Unlock()
	return nil
}

func (h *TracingHooks) OnInstallationSuccess(_ context.Context, state *api.InstallationState) error {
	h.endRun(state.ID, func(root trace.Span) {
		root.SetStatus(codes.Ok, "")
	})
	return nil
}

func (h *TracingHooks) OnInstallationFailure(_ context.Context, state *api.InstallationState) error {
	h.endRun(state.ID, func(root trace.Span) {
		if state.Error != nil {
			root.SetAttributes(attribute.String(ErrorKeyKey, string(state.Error.Key)))
			root.SetStatus(codes.Error, state.Error.Message)
		}
	})
	return nil
}

// OnInstallationAborted ends the spans of a run stopped by a failing hook.
func (h *TracingHooks) OnInstallationAborted(_ context.Context, state *api.InstallationState, cause error) {
	h.endRun(state.ID, func(root trace.Span) {
		root.RecordError(cause)
		root.SetStatus(codes.Error, "aborted: "+cause.Error())
	})
}

func (h *TracingHooks) endRun(id string, finish func(root trace.Span)) {
	h.mu.Lock()
	run, ok := h.runs[id]
	delete(h.runs, id)
	h.mu.Unlock()
	if !ok {
		return
	}

	// Steps still open are ancestors of the step that failed, or the steps
	// in progress when a hook aborted the run.
	for _, s := range run.steps {
		s.span.SetStatus(codes.Error, "aborted")
		s.span.End()
	}

	finish(run.root)
	run.root.End()
}

func (h *TracingHooks) OnStepStart(ctx context.Context, ev api.StepEvent, state *api.InstallationState) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, ok := h.runs[state.ID]
	if !ok {
		return nil
	}

	parent := run.ctx
	if len(ev.Path) > 1 {
		if p, ok := run.steps[strings.Join(ev.Path[:len(ev.Path)-1], ".")]; ok {
			parent = p.ctx
		}
	}

	path := strings.Join(ev.Path, ".")
	spanCtx, span := h.tracer.Start(parent, ev.StepName, trace.WithAttributes(
		attribute.String(InstallationIDKey, state.ID),
		attribute.String(StepPathKey, path),
		attribute.Bool(StepLeafKey, ev.IsLeaf),
	))
	run.steps[path] = tracedStep{ctx: spanCtx, span: span}
	return nil
}

func (h *TracingHooks) OnStepSuccess(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	if span, ok := h.takeStep(state.ID, ev.Path); ok {
		span.SetStatus(codes.Ok, "")
		span.End()
	}
	return nil
}

func (h *TracingHooks) OnStepFailure(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	span, ok := h.takeStep(state.ID, ev.Path)
	if !ok {
		return nil
	}
	if ev.Error != nil {
		span.RecordError(ev.Error)
		span.SetAttributes(attribute.String(ErrorKeyKey, string(ev.Error.Key)))
		span.SetStatus(codes.Error, ev.Error.Message)
	} else {
		span.SetStatus(codes.Error, "failed")
	}
	span.End()
	return nil
}

func (h *TracingHooks) takeStep(id string, path []string) (trace.Span, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, ok := h.runs[id]
	if !ok {
		return nil, false
	}
	key := strings.Join(path, ".")
	s, ok := run.steps[key]
	if !ok {
		return nil, false
	}
	delete(run.steps, key)
	return s.span, true
}
