package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ParseError represents a YAML or TOML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures settings validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PluginError indicates issues within plug-in registration or loading.
type PluginError struct {
	Plugin  string
	Message string
	Err     error
}

// NewPluginError constructs a PluginError for the given plug-in or plug-in file.
func NewPluginError(plugin string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &PluginError{Plugin: plugin, Message: message, Err: err}
}

func (e *PluginError) Error() string {
	if e == nil {
		return ""
	}
	if e.Plugin != "" {
		return fmt.Sprintf("plugin error [%s]: %s", e.Plugin, e.Message)
	}
	return fmt.Sprintf("plugin error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *PluginError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EnvironmentError reports required session keys or configuration that are
// absent. It is fatal and never retried.
type EnvironmentError struct {
	Keys    []string
	Message string
}

// NewEnvironmentError constructs an EnvironmentError for the missing keys.
func NewEnvironmentError(message string, keys ...string) error {
	return &EnvironmentError{Keys: append([]string(nil), keys...), Message: message}
}

func (e *EnvironmentError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Keys) == 0 {
		return "environment error: " + e.Message
	}
	if e.Message == "" {
		return fmt.Sprintf("environment error: %s missing from environment", strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("environment error: %s missing from environment: %s", strings.Join(e.Keys, ", "), e.Message)
}

// SignatureMismatch describes a member that exists but does not accept the
// declared parameters. Found and Expected are rendered as "(params) results".
type SignatureMismatch struct {
	Member   string
	Found    string
	Expected string
}

// InterfaceError is the combined report of every missing member and every
// mismatched signature found while checking a contract.
type InterfaceError struct {
	Subject    string
	Missing    []string
	Mismatched []SignatureMismatch
}

func (e *InterfaceError) Error() string {
	if e == nil {
		return ""
	}

	var report []string
	if len(e.Missing) > 0 {
		quoted := make([]string, len(e.Missing))
		for i, member := range e.Missing {
			quoted[i] = "'" + member + "'"
		}
		report = append(report, fmt.Sprintf("Incomplete interface for '%s'\nMissing: %s", e.Subject, strings.Join(quoted, ", ")))
	}

	if len(e.Mismatched) > 0 {
		report = append(report, fmt.Sprintf("'%s': One or more members were found, but didn't have the right argument signature.", e.Subject))
		mismatched := append([]SignatureMismatch(nil), e.Mismatched...)
		sort.SliceStable(mismatched, func(i, j int) bool { return mismatched[i].Member < mismatched[j].Member })
		for _, m := range mismatched {
			report = append(report, fmt.Sprintf("     Found: %s%s", m.Member, m.Found))
			report = append(report, fmt.Sprintf("  Expected: %s%s", m.Member, m.Expected))
		}
	}

	if len(report) == 0 {
		return fmt.Sprintf("interface error for '%s'", e.Subject)
	}
	return strings.Join(report, "\n")
}

// Empty reports whether the check found nothing wrong.
func (e *InterfaceError) Empty() bool {
	return e == nil || (len(e.Missing) == 0 && len(e.Mismatched) == 0)
}

// IncompatibleLoaderError is raised when a Loader does not match a
// representation's families or representation name.
type IncompatibleLoaderError struct {
	Loader string
	Subset string
}

func (e *IncompatibleLoaderError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("Loader %s is incompatible with %s", e.Loader, e.Subset)
}

// ResolutionError reports that no Loader could be found for a container.
type ResolutionError struct {
	Operation string
	Loader    string
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("can't %s container: no loader named %q was discovered", e.Operation, e.Loader)
}

// NotSupportedError reports a Loader lacking an optional capability.
type NotSupportedError struct {
	Loader     string
	Capability string
}

func (e *NotSupportedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("Loader '%s' does not support '%s'", e.Loader, e.Capability)
}

// IntegrityError reports a representation whose parenthood chain is broken.
type IntegrityError struct {
	Representation string
	Missing        []string
}

func (e *IntegrityError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("representation %s is orphaned: missing %s", e.Representation, strings.Join(e.Missing, ", "))
}
