package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petrijr/appinstall/pkg/api"
)

// MetricsHooks records installation and step outcomes as Prometheus metrics.
type MetricsHooks struct {
	installationsStarted   prometheus.Counter
	installationsCompleted *prometheus.CounterVec
	installationDuration   *prometheus.HistogramVec
	installationsRunning   prometheus.Gauge

	stepsCompleted *prometheus.CounterVec
	stepDuration   *prometheus.HistogramVec

	mu         sync.Mutex
	stepStarts map[string]time.Time
	now        func() time.Time
}

var (
	_ api.Hooks      = (*MetricsHooks)(nil)
	_ api.AbortHooks = (*MetricsHooks)(nil)
)

// StatusAborted labels installations stopped by a failing hook.
const StatusAborted = "aborted"

// NewMetricsHooks creates the collectors under namespace and registers them
// with reg.
func NewMetricsHooks(reg prometheus.Registerer, namespace string) (*MetricsHooks, error) {
	m := &MetricsHooks{
		installationsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installations_started_total",
			Help:      "Total number of installations started",
		}),
		installationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "installations_completed_total",
				Help:      "Total number of installations completed",
			},
			[]string{"status"},
		),
		installationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "installation_duration_seconds",
				Help:      "Duration of installation runs in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		installationsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "installations_running",
			Help:      "Current number of installations in progress",
		}),
		stepsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_completed_total",
				Help:      "Total number of steps completed",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		stepStarts: make(map[string]time.Time),
		now:        time.Now,
	}

	collectors := []prometheus.Collector{
		m.installationsStarted,
		m.installationsCompleted,
		m.installationDuration,
		m.installationsRunning,
		m.stepsCompleted,
		m.stepDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

func (m *MetricsHooks) OnInstallationStart(context.Context, *api.InstallationState) error {
	m.installationsStarted.Inc()
	m.installationsRunning.Inc()
	return nil
}

func (m *MetricsHooks) OnInstallationSuccess(_ context.Context, state *api.InstallationState) error {
	m.completeInstallation(state)
	return nil
}

func (m *MetricsHooks) OnInstallationFailure(_ context.Context, state *api.InstallationState) error {
	m.completeInstallation(state)
	return nil
}

// OnInstallationAborted counts the run as aborted and forgets its steps.
func (m *MetricsHooks) OnInstallationAborted(_ context.Context, state *api.InstallationState, _ error) {
	m.installationsRunning.Dec()
	m.installationsCompleted.WithLabelValues(StatusAborted).Inc()
	m.forgetSteps(state.ID)
}

func (m *MetricsHooks) completeInstallation(state *api.InstallationState) {
	status := string(state.Status)
	m.installationsRunning.Dec()
	m.installationsCompleted.WithLabelValues(status).Inc()
	if state.StartedAt != nil && state.CompletedAt != nil {
		m.installationDuration.WithLabelValues(status).Observe(state.CompletedAt.Sub(*state.StartedAt).Seconds())
	}

	// Ancestors of a failed step never finish.
	m.forgetSteps(state.ID)
}

// forgetSteps drops the start times of steps of run id that never finished.
func (m *MetricsHooks) forgetSteps(id string) {
	prefix := id + "/"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.stepStarts {
		if strings.HasPrefix(k, prefix) {
			delete(m.stepStarts, k)
		}
	}
}

func (m *MetricsHooks) OnStepStart(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	m.mu.Lock()
	m.stepStarts[stepKey(state.ID, ev.Path)] = m.now()
	m.mu.Unlock()
	return nil
}

func (m *MetricsHooks) OnStepSuccess(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	m.completeStep(ev, state, api.StepSucceeded)
	return nil
}

func (m *MetricsHooks) OnStepFailure(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	m.completeStep(ev, state, api.StepFailed)
	return nil
}

func (m *MetricsHooks) completeStep(ev api.StepEvent, state *api.InstallationState, status api.StepState) {
	step := strings.Join(ev.Path, ".")
	m.stepsCompleted.WithLabelValues(step, string(status)).Inc()

	key := stepKey(state.ID, ev.Path)
	m.mu.Lock()
	started, ok := m.stepStarts[key]
	delete(m.stepStarts, key)
	m.mu.Unlock()

	if ok {
		m.stepDuration.WithLabelValues(step).Observe(m.now().Sub(started).Seconds())
	}
}

func stepKey(id string, path []string) string {
	return id + "/" + strings.Join(path, ".")
}
