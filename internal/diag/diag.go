// Package diag carries structured diagnostics returned across the lifecycle
// protocol in place of faults.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"sqlite-provider/internal/domain"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// SeverityError marks a failed operation.
	SeverityError Severity = iota
	// SeverityWarning marks a condition the host should surface but that did
	// not fail the operation.
	SeverityWarning
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is a single structured report.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Summary  string   `json:"summary"`
	Detail   string   `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Detail == "" {
		return fmt.Sprintf("%s: %s", d.Severity, d.Summary)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Summary, d.Detail)
}

// Diagnostics accumulates reports for one operation.
type Diagnostics []Diagnostic

// Errorf appends an error diagnostic.
func (d *Diagnostics) Errorf(summary, detailFormat string, args ...interface{}) {
	*d = append(*d, Diagnostic{Severity: SeverityError, Summary: summary, Detail: fmt.Sprintf(detailFormat, args...)})
}

// Warnf appends a warning diagnostic.
func (d *Diagnostics) Warnf(summary, detailFormat string, args ...interface{}) {
	*d = append(*d, Diagnostic{Severity: SeverityWarning, Summary: summary, Detail: fmt.Sprintf(detailFormat, args...)})
}

// AddError converts err into an error diagnostic and appends it.
// A nil err is ignored.
func (d *Diagnostics) AddError(summary string, err error) {
	if err == nil {
		return
	}
	*d = append(*d, FromError(summary, err))
}

// HasError reports whether any diagnostic has error severity.
func (d Diagnostics) HasError() bool {
	for _, x := range d {
		if x.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (d Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, x := range d {
		if x.Severity == SeverityError {
			out = append(out, x)
		}
	}
	return out
}

// Err joins error diagnostics into a single error, or nil when there are none.
func (d Diagnostics) Err() error {
	var errs []error
	for _, x := range d.Errors() {
		errs = append(errs, errors.New(x.String()))
	}
	return errors.Join(errs...)
}

func (d Diagnostics) String() string {
	parts := make([]string, len(d))
	for i, x := range d {
		parts[i] = x.String()
	}
	return strings.Join(parts, "; ")
}

// FromError builds an error diagnostic from err. The summary is prefixed
// with the error class when err is one of the domain error types.
func FromError(summary string, err error) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Summary:  classify(err) + summary,
		Detail:   err.Error(),
	}
}

// Class returns the taxonomy name of err ("ConfigError", "IOError",
// "EngineError", "ValidationError"), or "" for other errors.
func Class(err error) string {
	var (
		cfgErr *domain.ConfigError
		ioErr  *domain.IOError
		engErr *domain.EngineError
		valErr *domain.ValidationError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "ConfigError"
	case errors.As(err, &ioErr):
		return "IOError"
	case errors.As(err, &engErr):
		return "EngineError"
	case errors.As(err, &valErr):
		return "ValidationError"
	default:
		return ""
	}
}

func classify(err error) string {
	if c := Class(err); c != "" {
		return c + ": "
	}
	return ""
}
