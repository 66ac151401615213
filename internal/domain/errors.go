// Package domain defines the error taxonomy and identifiers shared by the provider.
package domain

import "fmt"

// ConfigError indicates missing or invalid provider configuration.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// IOError indicates the backing database file could not be opened or created.
type IOError struct {
	Message string
	Err     error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *IOError) Unwrap() error { return e.Err }

// EngineError indicates a generated statement failed to execute.
type EngineError struct {
	Statement string
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("execute %q: %v", e.Statement, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// ValidationError indicates malformed resource attributes or definitions.
type ValidationError struct {
	Path    string // attribute path, e.g. "columns[1].name"; empty when not attribute-specific
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return e.Path + ": " + e.Message
	}
	return e.Message
}

// ErrConfig creates a ConfigError with a formatted message.
func ErrConfig(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ErrIO creates an IOError wrapping err.
func ErrIO(err error, format string, args ...interface{}) *IOError {
	return &IOError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ErrEngine creates an EngineError for the failed statement.
func ErrEngine(stmt string, err error) *EngineError {
	return &EngineError{Statement: stmt, Err: err}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidationAt creates a ValidationError bound to an attribute path.
func ErrValidationAt(path, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Message: fmt.Sprintf(format, args...)}
}
