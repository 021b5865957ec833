package api

import (
	"fmt"
	"log/slog"
	"maps"
)

// AppData identifies the application being installed and where it runs.
type AppData struct {
	ConsumerOrgID  string `json:"consumerOrgId"`
	OrgName        string `json:"orgName,omitempty"`
	ProjectID      string `json:"projectId"`
	ProjectName    string `json:"projectName,omitempty"`
	ProjectTitle   string `json:"projectTitle,omitempty"`
	WorkspaceID    string `json:"workspaceId"`
	WorkspaceName  string `json:"workspaceName,omitempty"`
	WorkspaceTitle string `json:"workspaceTitle,omitempty"`
}

// ExecutionContext is the ambient data threaded through a run. The base
// fields are supplied by the caller; branches add typed extensions via
// ContextKey bindings. It is a value type: With returns a new context.
type ExecutionContext struct {
	App    AppData
	Logger *slog.Logger
	// Params are the raw action parameters (credentials, scopes, ...).
	Params map[string]any

	ext map[string]any
}

// NewExecutionContext returns a context with the given base fields. A nil
// logger is replaced by slog.Default().
func NewExecutionContext(app AppData, logger *slog.Logger, params map[string]any) ExecutionContext {
	if logger == nil {
		logger = slog.Default()
	}
	return ExecutionContext{App: app, Logger: logger, Params: params}
}

// With returns a copy of ec with the bindings applied. Later bindings for the
// same key win. ec itself is left untouched.
func (ec ExecutionContext) With(bindings ...ContextBinding) ExecutionContext {
	if len(bindings) == 0 {
		return ec
	}
	next := ec
	next.ext = make(map[string]any, len(ec.ext)+len(bindings))
	maps.Copy(next.ext, ec.ext)
	for _, b := range bindings {
		next.ext[b.key] = b.value
	}
	return next
}

// Log returns the context logger, never nil.
func (ec ExecutionContext) Log() *slog.Logger {
	if ec.Logger == nil {
		return slog.Default()
	}
	return ec.Logger
}

// ContextKey names a typed extension field of ExecutionContext. The branch
// contributing the field owns the key; descendants read through it.
type ContextKey[T any] struct {
	name string
}

// NewContextKey declares a key. Names must be unique across the tree.
func NewContextKey[T any](name string) ContextKey[T] {
	return ContextKey[T]{name: name}
}

// Name returns the key name.
func (k ContextKey[T]) Name() string { return k.name }

// Bind pairs the key with a value for use in ExecutionContext.With.
func (k ContextKey[T]) Bind(v T) ContextBinding {
	return ContextBinding{key: k.name, value: v}
}

// Get returns the bound value, if any.
func (k ContextKey[T]) Get(ec ExecutionContext) (T, bool) {
	var zero T
	raw, ok := ec.ext[k.name]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// MustGet is like Get but returns an error naming the missing key.
func (k ContextKey[T]) MustGet(ec ExecutionContext) (T, error) {
	v, ok := k.Get(ec)
	if !ok {
		return v, fmt.Errorf("execution context: %q is not available", k.name)
	}
	return v, nil
}

// ContextBinding is a single key/value contribution to an ExecutionContext.
type ContextBinding struct {
	key   string
	value any
}
