package telemetry_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/appinstall"
	"github.com/petrijr/appinstall/pkg/api"
	"github.com/petrijr/appinstall/pkg/config"
	"github.com/petrijr/appinstall/pkg/telemetry"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{Metadata: config.Metadata{ID: "app", DisplayName: "App", Version: "1"}}
}

func succeeding() api.Step {
	return api.DefineLeafStep(api.LeafStepOptions{
		Name: "ok",
		Run: func(context.Context, *config.AppConfig, api.ExecutionContext) (any, error) {
			return true, nil
		},
	})
}

func nestedFailing() api.Step {
	return api.MustDefineBranchStep(api.BranchStepOptions{
		Name: "group",
		Children: []api.Step{
			api.DefineLeafStep(api.LeafStepOptions{
				Name: "broken",
				Run: func(context.Context, *config.AppConfig, api.ExecutionContext) (any, error) {
					return nil, errors.New("Step failed")
				},
			}),
		},
	})
}

func run(t *testing.T, hooks api.Hooks, extra ...api.Step) *api.InstallationState {
	t.Helper()
	cfg := testConfig()
	plan, err := appinstall.CreateInstallationPlan(cfg, extra...)
	require.NoError(t, err)
	state, err := appinstall.RunInstallation(context.Background(), appinstall.RunOptions{
		Config:     cfg,
		Plan:       plan,
		ExtraSteps: extra,
		Hooks:      hooks,
	})
	require.NoError(t, err)
	return state
}

func TestMetricsHooks_CountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetricsHooks(reg, "appinstall")
	require.NoError(t, err)

	run(t, m, succeeding())
	run(t, m, nestedFailing())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["appinstall_installations_started_total"])
	assert.True(t, names["appinstall_step_duration_seconds"])

	completed, err := testutil.GatherAndCount(reg, "appinstall_installations_completed_total")
	require.NoError(t, err)
	assert.Equal(t, 2, completed, "one series per terminal status")

	durations, err := testutil.GatherAndCount(reg, "appinstall_installation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, durations)

	expected := `
# HELP appinstall_installations_running Current number of installations in progress
# TYPE appinstall_installations_running gauge
appinstall_installations_running 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "appinstall_installations_running"))

	steps := `
# HELP appinstall_steps_completed_total Total number of steps completed
# TYPE appinstall_steps_completed_total counter
appinstall_steps_completed_total{status="failed",step="installation.group.broken"} 1
appinstall_steps_completed_total{status="succeeded",step="installation"} 1
appinstall_steps_completed_total{status="succeeded",step="installation.ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(steps), "appinstall_steps_completed_total"))
}

func TestMetricsHooks_RejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := telemetry.NewMetricsHooks(reg, "appinstall")
	require.NoError(t, err)
	_, err = telemetry.NewMetricsHooks(reg, "appinstall")
	assert.Error(t, err)
}

func newTestTracer() (trace.Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return provider.Tracer("appinstall-test"), recorder
}

func findSpan(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func getAttr(attrs []attribute.KeyValue, key string) attribute.Value {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value
		}
	}
	return attribute.Value{}
}

func TestTracingHooks_NestsStepSpans(t *testing.T) {
	tracer, recorder := newTestTracer()
	state := run(t, telemetry.NewTracingHooks(tracer), succeeding())

	spans := recorder.Ended()
	require.Len(t, spans, 3, "installation, root step, extra leaf")

	root := findSpan(spans, telemetry.InstallationSpanName)
	require.NotNil(t, root)
	assert.Equal(t, state.ID, getAttr(root.Attributes(), telemetry.InstallationIDKey).AsString())
	assert.Equal(t, codes.Ok, root.Status().Code)

	var stepRoot sdktrace.ReadOnlySpan
	for _, s := range spans {
		if getAttr(s.Attributes(), telemetry.StepPathKey).AsString() == "installation" {
			stepRoot = s
		}
	}
	require.NotNil(t, stepRoot)
	assert.Equal(t, root.SpanContext().SpanID(), stepRoot.Parent().SpanID())

	leaf := findSpan(spans, "ok")
	require.NotNil(t, leaf)
	assert.Equal(t, stepRoot.SpanContext().SpanID(), leaf.Parent().SpanID())
	assert.True(t, getAttr(leaf.Attributes(), telemetry.StepLeafKey).AsBool())
}

func TestTracingHooks_RecordsFailure(t *testing.T) {
	tracer, recorder := newTestTracer()
	run(t, telemetry.NewTracingHooks(tracer), nestedFailing())

	spans := recorder.Ended()
	require.Len(t, spans, 4, "every started span is ended")

	broken := findSpan(spans, "broken")
	require.NotNil(t, broken)
	assert.Equal(t, codes.Error, broken.Status().Code)
	assert.Equal(t, "Step failed", broken.Status().Description)
	assert.Equal(t, "STEP_EXECUTION_FAILED", getAttr(broken.Attributes(), telemetry.ErrorKeyKey).AsString())
	assert.NotEmpty(t, broken.Events(), "error is recorded as an event")

	group := findSpan(spans, "group")
	require.NotNil(t, group)
	assert.Equal(t, codes.Error, group.Status().Code)

	root := findSpan(spans, telemetry.InstallationSpanName)
	require.NotNil(t, root)
	assert.Equal(t, codes.Error, root.Status().Code)
}

var errExporter = errors.New("exporter unavailable")

// failingOn returns hooks failing the start of the step at path.
func failingOn(path string) api.Hooks {
	return api.HookFuncs{
		StepStart: func(_ context.Context, ev api.StepEvent, _ *api.InstallationState) error {
			if strings.Join(ev.Path, ".") == path {
				return errExporter
			}
			return nil
		},
	}
}

func runAborted(t *testing.T, hooks api.Hooks, extra ...api.Step) {
	t.Helper()
	cfg := testConfig()
	plan, err := appinstall.CreateInstallationPlan(cfg, extra...)
	require.NoError(t, err)
	_, err = appinstall.RunInstallation(context.Background(), appinstall.RunOptions{
		Config:     cfg,
		Plan:       plan,
		ExtraSteps: extra,
		Hooks:      hooks,
	})
	require.ErrorIs(t, err, errExporter)
}

func TestTracingHooks_EndsSpansOfAbortedRun(t *testing.T) {
	tracer, recorder := newTestTracer()
	hooks := telemetry.NewTracingHooks(tracer)

	runAborted(t, api.NewCompositeHooks(hooks, failingOn("installation.ok")), succeeding())

	assert.Len(t, recorder.Ended(), len(recorder.Started()), "every started span is ended")

	root := findSpan(recorder.Ended(), telemetry.InstallationSpanName)
	require.NotNil(t, root)
	assert.Equal(t, codes.Error, root.Status().Code)
	assert.Contains(t, root.Status().Description, errExporter.Error())

	leaf := findSpan(recorder.Ended(), "ok")
	require.NotNil(t, leaf)
	assert.Equal(t, "aborted", leaf.Status().Description)
}

func TestMetricsHooks_CountsAbortedRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetricsHooks(reg, "appinstall")
	require.NoError(t, err)

	runAborted(t, api.NewCompositeHooks(m, failingOn("installation.ok")), succeeding())

	expected := `
# HELP appinstall_installations_completed_total Total number of installations completed
# TYPE appinstall_installations_completed_total counter
appinstall_installations_completed_total{status="aborted"} 1
# HELP appinstall_installations_running Current number of installations in progress
# TYPE appinstall_installations_running gauge
appinstall_installations_running 0
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"appinstall_installations_completed_total", "appinstall_installations_running"))
}
