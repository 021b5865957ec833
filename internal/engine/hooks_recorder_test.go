package engine

import (
	"context"
	"strings"
	"sync"

	"github.com/petrijr/appinstall/pkg/api"
)

// recordingHooks records every callback from the executor so tests can
// assert on order and payloads.
type recordingHooks struct {
	mu sync.Mutex

	calls  []string
	events []api.StepEvent
	states []*api.InstallationState

	// failOn makes the named call return errHook.
	failOn string

	aborted []error
}

func (h *recordingHooks) record(name string, ev *api.StepEvent, state *api.InstallationState) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	call := name
	if ev != nil {
		call += ":" + strings.Join(ev.Path, ".")
		h.events = append(h.events, *ev)
	}
	h.calls = append(h.calls, call)
	h.states = append(h.states, state)

	if h.failOn != "" && h.failOn == call {
		return errHook
	}
	return nil
}

func (h *recordingHooks) OnInstallationStart(_ context.Context, state *api.InstallationState) error {
	return h.record("installationStart", nil, state)
}

func (h *recordingHooks) OnInstallationSuccess(_ context.Context, state *api.InstallationState) error {
	return h.record("installationSuccess", nil, state)
}

func (h *recordingHooks) OnInstallationFailure(_ context.Context, state *api.InstallationState) error {
	return h.record("installationFailure", nil, state)
}

func (h *recordingHooks) OnStepStart(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	return h.record("stepStart", &ev, state)
}

func (h *recordingHooks) OnStepSuccess(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	return h.record("stepSuccess", &ev, state)
}

func (h *recordingHooks) OnStepFailure(_ context.Context, ev api.StepEvent, state *api.InstallationState) error {
	return h.record("stepFailure", &ev, state)
}

func (h *recordingHooks) OnInstallationAborted(_ context.Context, _ *api.InstallationState, cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.aborted = append(h.aborted, cause)
}

func (h *recordingHooks) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *recordingHooks) count(prefix string) int {
	n := 0
	for _, c := range h.Calls() {
		if c == prefix || strings.HasPrefix(c, prefix+":") {
			n++
		}
	}
	return n
}
