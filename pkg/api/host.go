package api

import "context"

// Host adapts a DCC application. Only Name and Ls are required; the other
// capabilities are discovered through type assertion.
type Host interface {
	Name() string
	Ls(ctx context.Context) ([]Container, error)
}

// Installer is implemented by hosts that need setup when the pipeline is
// installed.
type Installer interface {
	Install(ctx context.Context) error
}

// Uninstaller is implemented by hosts that need teardown.
type Uninstaller interface {
	Uninstall(ctx context.Context) error
}

// SelectionMaintainer captures the current selection and returns a function
// restoring it.
type SelectionMaintainer interface {
	MaintainSelection(ctx context.Context) (restore func(), err error)
}

// Workfiles is the host's work file API.
type Workfiles interface {
	OpenFile(ctx context.Context, path string) error
	SaveFile(ctx context.Context, path string) error
	CurrentFile() (string, bool)
	HasUnsavedChanges() bool
	FileExtensions() []string
	WorkRoot(session map[string]string) string
}

// Config is a studio configuration bundle installed alongside a host.
type Config interface {
	Install(ctx context.Context) error
	Uninstall(ctx context.Context) error
}

// HostConfigs is implemented by configs that ship per-host submodules.
type HostConfigs interface {
	ForHost(name string) (Config, bool)
}

// Root is the storage root used when rendering paths. It is either a single
// path or a set of named roots.
type Root struct {
	Path  string
	Named map[string]string
}

// SingleRoot returns a Root with one path.
func SingleRoot(path string) Root { return Root{Path: path} }

// NamedRoots returns a Root with named entries.
func NamedRoots(roots map[string]string) Root {
	named := make(map[string]string, len(roots))
	for k, v := range roots {
		named[k] = v
	}
	return Root{Named: named}
}

// IsZero reports whether no root was set.
func (r Root) IsZero() bool { return r.Path == "" && len(r.Named) == 0 }

// Value is the form templates see: a string for a single root, a map
// addressable as {root[name]} otherwise.
func (r Root) Value() any {
	if len(r.Named) == 0 {
		return r.Path
	}
	out := make(map[string]any, len(r.Named))
	for k, v := range r.Named {
		out[k] = v
	}
	return out
}
