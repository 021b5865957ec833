package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// InstallationStatus is the lifecycle state of an installation run.
type InstallationStatus string

const (
	InstallationPending    InstallationStatus = "pending"
	InstallationInProgress InstallationStatus = "in-progress"
	InstallationSucceeded  InstallationStatus = "succeeded"
	InstallationFailed     InstallationStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s InstallationStatus) IsTerminal() bool {
	return s == InstallationSucceeded || s == InstallationFailed
}

// InstallationPlan is the inspectable execution plan produced before a run.
type InstallationPlan struct {
	ID        string      `json:"id"`
	Step      *StepStatus `json:"step"`
	CreatedAt time.Time   `json:"createdAt"`
}

// InstallationState is the persisted and returned record of a run.
//
// Which optional fields are set depends on Status:
//
//	pending:     none
//	in-progress: StartedAt
//	succeeded:   StartedAt, CompletedAt
//	failed:      StartedAt, CompletedAt, Error
//
// Use NewPendingState and the transition methods to keep that shape.
type InstallationState struct {
	ID          string             `json:"id"`
	Status      InstallationStatus `json:"status"`
	Step        *StepStatus        `json:"step"`
	Data        map[string]any     `json:"data"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
	Error       *InstallationError `json:"error,omitempty"`
}

// NewPendingState creates the pending state for a plan.
func NewPendingState(plan *InstallationPlan) *InstallationState {
	return &InstallationState{
		ID:     plan.ID,
		Status: InstallationPending,
		Step:   plan.Step.Clone(),
		Data:   map[string]any{},
	}
}

// Start moves the state to in-progress.
func (s *InstallationState) Start(now time.Time) {
	s.Status = InstallationInProgress
	s.StartedAt = &now
	s.CompletedAt = nil
	s.Error = nil
}

// Succeed moves the state to succeeded.
func (s *InstallationState) Succeed(now time.Time) {
	s.Status = InstallationSucceeded
	s.CompletedAt = &now
	s.Error = nil
}

// Fail moves the state to failed with err.
func (s *InstallationState) Fail(now time.Time, err *InstallationError) {
	s.Status = InstallationFailed
	s.CompletedAt = &now
	s.Error = err
}

// Clone returns a deep copy suitable for handing to hooks and stores.
func (s *InstallationState) Clone() *InstallationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Step = s.Step.Clone()
	out.Data = cloneMap(s.Data)
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	if s.Error != nil {
		e := *s.Error
		e.Path = append([]string(nil), s.Error.Path...)
		out.Error = &e
	}
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// NormalizeResult converts a leaf result into the generic JSON form it takes
// once persisted: maps, slices, strings, float64, bool or nil. The returned
// value shares nothing with v.
func NormalizeResult(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode step result: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode step result: %w", err)
	}
	return out, nil
}
