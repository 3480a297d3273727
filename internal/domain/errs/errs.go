// Package errs defines the typed error taxonomy shared across the
// hypothesis tree engine. Every error kind implements error, and the kinds
// that carry a cause also implement Unwrap, so callers can branch with
// errors.As/errors.Is instead of matching strings.
package errs

import "fmt"

// ConfigError indicates the framework catalog (or other bundled config)
// is malformed. Fatal at startup.
type ConfigError struct {
	Component string
	Message   string
	Cause     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in %s: %s", e.Component, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// NewConfigError constructs a ConfigError.
func NewConfigError(component, message string, cause error) *ConfigError {
	return &ConfigError{Component: component, Message: message, Cause: cause}
}

// FrameworkUnknownError is returned when an explicit framework hint names
// an unrecognized framework. Recoverable: the caller may retry with a
// different hint.
type FrameworkUnknownError struct {
	Hint string
}

func (e *FrameworkUnknownError) Error() string {
	return fmt.Sprintf("unknown framework hint %q", e.Hint)
}

// NewFrameworkUnknownError constructs a FrameworkUnknownError.
func NewFrameworkUnknownError(hint string) *FrameworkUnknownError {
	return &FrameworkUnknownError{Hint: hint}
}

// LLMUnavailable indicates the LLM Gateway exhausted its retry budget
// without a usable response. Recoverable with backoff by the caller.
type LLMUnavailable struct {
	Attempts int
	Cause    error
}

func (e *LLMUnavailable) Error() string {
	return fmt.Sprintf("llm unavailable after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *LLMUnavailable) Unwrap() error { return e.Cause }

// NewLLMUnavailable constructs an LLMUnavailable error.
func NewLLMUnavailable(attempts int, cause error) *LLMUnavailable {
	return &LLMUnavailable{Attempts: attempts, Cause: cause}
}

// QuotaExceeded is a non-retryable provider signal (e.g. billing quota)
// that must be surfaced to the caller immediately.
type QuotaExceeded struct {
	Message string
	Cause   error
}

func (e *QuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.Message)
}

func (e *QuotaExceeded) Unwrap() error { return e.Cause }

// NewQuotaExceeded constructs a QuotaExceeded error.
func NewQuotaExceeded(message string, cause error) *QuotaExceeded {
	return &QuotaExceeded{Message: message, Cause: cause}
}

// SchemaValidation indicates the LLM Gateway's output never matched the
// expected schema after retries. Treated as a partial failure by the Tree
// Builder, which falls back per-slot.
type SchemaValidation struct {
	Schema string
	Cause  error
}

func (e *SchemaValidation) Error() string {
	return fmt.Sprintf("schema validation failed for %s: %v", e.Schema, e.Cause)
}

func (e *SchemaValidation) Unwrap() error { return e.Cause }

// NewSchemaValidation constructs a SchemaValidation error.
func NewSchemaValidation(schema string, cause error) *SchemaValidation {
	return &SchemaValidation{Schema: schema, Cause: cause}
}

// Cancelled wraps cooperative cancellation observed at a suspension point.
type Cancelled struct {
	Stage string
	Cause error
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("cancelled during %s: %v", e.Stage, e.Cause)
}

func (e *Cancelled) Unwrap() error { return e.Cause }

// NewCancelled constructs a Cancelled error.
func NewCancelled(stage string, cause error) *Cancelled {
	return &Cancelled{Stage: stage, Cause: cause}
}

// NotFound indicates a Project Store read of an absent record.
type NotFound struct {
	Kind string
	ID   string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound constructs a NotFound error.
func NewNotFound(kind, id string) *NotFound {
	return &NotFound{Kind: kind, ID: id}
}

// VersionConflict indicates a Project Store write lost a version-allocation
// race. Retried internally with the next version; only surfaces after a
// bounded number of retries.
type VersionConflict struct {
	ProjectID string
	Kind      string
	Attempts  int
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("version conflict for %s/%s after %d attempts", e.ProjectID, e.Kind, e.Attempts)
}

// NewVersionConflict constructs a VersionConflict error.
func NewVersionConflict(projectID, kind string, attempts int) *VersionConflict {
	return &VersionConflict{ProjectID: projectID, Kind: kind, Attempts: attempts}
}

// PipelineError is an unrecoverable composite failure, e.g. the Tree
// Builder could not produce any L2/L3 content even from fallbacks.
type PipelineError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at %s: %s", e.Stage, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Cause }

// NewPipelineError constructs a PipelineError.
func NewPipelineError(stage, message string, cause error) *PipelineError {
	return &PipelineError{Stage: stage, Message: message, Cause: cause}
}
