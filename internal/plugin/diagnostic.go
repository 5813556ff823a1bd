package plugin

import (
	"fmt"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// DiagnosticType classifies a discovery diagnostic.
type DiagnosticType string

const (
	// DiagnosticDuplicate is raised when two discovered plug-ins share a
	// name. The first one found is kept.
	DiagnosticDuplicate DiagnosticType = "duplicate"
	// DiagnosticOverride is raised when an explicit registration replaces a
	// discovered plug-in of the same name.
	DiagnosticOverride DiagnosticType = "override"
	// DiagnosticLoadFailure is raised when a script or plug-in was skipped.
	DiagnosticLoadFailure DiagnosticType = "load-failure"
)

// Diagnostic describes something discovery worked around.
type Diagnostic struct {
	Type   DiagnosticType
	Kind   api.Kind
	Plugin string
	Path   string
	Err    error
}

func (d Diagnostic) String() string {
	switch d.Type {
	case DiagnosticDuplicate:
		return fmt.Sprintf("duplicate %s plugin %q found in %s, keeping the first one", d.Kind, d.Plugin, d.Path)
	case DiagnosticOverride:
		return fmt.Sprintf("registered %s plugin %q overrides the one found in %s", d.Kind, d.Plugin, d.Path)
	default:
		return fmt.Sprintf("failed to load %s plugins from %s: %v", d.Kind, d.Path, d.Err)
	}
}

func (d Diagnostic) fields() map[string]any {
	fields := map[string]any{
		"diagnostic": string(d.Type),
		"kind":       d.Kind.String(),
		"path":       d.Path,
	}
	if d.Plugin != "" {
		fields["plugin"] = d.Plugin
	}
	return fields
}
