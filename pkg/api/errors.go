package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlanMismatch is returned when a plan does not describe the step tree it
// is run against.
var ErrPlanMismatch = errors.New("installation plan does not match step tree")

// ErrorKey is a symbolic error code carried by InstallationError.
type ErrorKey string

const (
	ErrKeyStepExecutionFailed   ErrorKey = "STEP_EXECUTION_FAILED"
	ErrKeyValidationFailed      ErrorKey = "STEP_VALIDATION_FAILED"
	ErrKeyInstallationCancelled ErrorKey = "INSTALLATION_CANCELLED"
)

// InstallationError describes why a step failed.
type InstallationError struct {
	Path    []string `json:"path"`
	Key     ErrorKey `json:"key"`
	Message string   `json:"message"`

	cause error
}

// NewInstallationError normalizes thrown (an error or any other value) into an
// InstallationError for the step at path. key defaults to
// ErrKeyStepExecutionFailed.
func NewInstallationError(thrown any, path []string, key ...ErrorKey) *InstallationError {
	k := ErrKeyStepExecutionFailed
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	}

	ie := &InstallationError{
		Path: append([]string(nil), path...),
		Key:  k,
	}
	switch v := thrown.(type) {
	case error:
		ie.Message = v.Error()
		ie.cause = v
	case string:
		ie.Message = v
	default:
		ie.Message = fmt.Sprint(v)
	}
	return ie
}

// NewValidationError is shorthand for a validation-keyed error, for use by
// leaf steps that reject their input.
func NewValidationError(format string, args ...any) *InstallationError {
	return &InstallationError{Key: ErrKeyValidationFailed, Message: fmt.Sprintf(format, args...)}
}

func (e *InstallationError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s", e.Key, e.Message)
	}
	return fmt.Sprintf("%s at %s: %s", e.Key, strings.Join(e.Path, "."), e.Message)
}

func (e *InstallationError) Unwrap() error { return e.cause }

// PathString returns the path joined with dots.
func (e *InstallationError) PathString() string {
	return strings.Join(e.Path, ".")
}

// ToInstallationError converts an error returned by a step into an
// InstallationError positioned at path, keeping the key of an
// InstallationError found in the chain.
func ToInstallationError(err error, path []string) *InstallationError {
	var ie *InstallationError
	if errors.As(err, &ie) {
		out := NewInstallationError(err, path, ie.Key)
		out.Message = ie.Message
		return out
	}
	return NewInstallationError(err, path)
}
