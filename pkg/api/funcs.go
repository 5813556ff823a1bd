package api

import (
	"context"
	"fmt"
)

// The *Funcs types let interpreted plug-in scripts build plug-ins out of
// plain functions. Scripts return pointers to these host types so no
// interface is ever implemented inside the interpreter. Normalize turns them
// into the final plug-in values.

// LoaderFuncs is a Loader assembled from functions. SwitchFunc is optional.
type LoaderFuncs struct {
	Meta       Metadata
	LoadFunc   func(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error)
	UpdateFunc func(ctx context.Context, container Container, rc *Context) error
	RemoveFunc func(ctx context.Context, container Container) (bool, error)
	SwitchFunc func(ctx context.Context, container Container, rc *Context) error
}

func (f *LoaderFuncs) PluginMetadata() Metadata { return withKind(f.Meta, KindLoader) }

func (f *LoaderFuncs) Load(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error) {
	if f.LoadFunc == nil {
		return nil, notImplemented(f.Meta, "Load")
	}
	return f.LoadFunc(ctx, rc, name, namespace, options)
}

func (f *LoaderFuncs) Update(ctx context.Context, container Container, rc *Context) error {
	if f.UpdateFunc == nil {
		return notImplemented(f.Meta, "Update")
	}
	return f.UpdateFunc(ctx, container, rc)
}

func (f *LoaderFuncs) Remove(ctx context.Context, container Container) (bool, error) {
	if f.RemoveFunc == nil {
		return false, notImplemented(f.Meta, "Remove")
	}
	return f.RemoveFunc(ctx, container)
}

type switchingLoaderFuncs struct {
	*LoaderFuncs
}

func (f switchingLoaderFuncs) Switch(ctx context.Context, container Container, rc *Context) error {
	return f.SwitchFunc(ctx, container, rc)
}

func (f switchingLoaderFuncs) Unwrap() Plugin { return f.LoaderFuncs }

// LegacyLoaderFuncs is a legacy Process-only loader assembled from functions.
type LegacyLoaderFuncs struct {
	Meta        Metadata
	ProcessFunc func(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error)
	RemoveFunc  func(ctx context.Context, container Container) (bool, error)
}

func (f *LegacyLoaderFuncs) PluginMetadata() Metadata { return withKind(f.Meta, KindLoader) }

func (f *LegacyLoaderFuncs) Process(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error) {
	if f.ProcessFunc == nil {
		return nil, notImplemented(f.Meta, "Process")
	}
	return f.ProcessFunc(ctx, rc, name, namespace, options)
}

type removingLegacyFuncs struct {
	*LegacyLoaderFuncs
}

func (f removingLegacyFuncs) Remove(ctx context.Context, container Container) (bool, error) {
	return f.RemoveFunc(ctx, container)
}

func (f removingLegacyFuncs) Unwrap() Plugin { return f.LegacyLoaderFuncs }

// CreatorFuncs is a Creator assembled from a function.
type CreatorFuncs struct {
	Meta       Metadata
	CreateFunc func(ctx context.Context, req CreateRequest) (any, error)
}

func (f *CreatorFuncs) PluginMetadata() Metadata { return withKind(f.Meta, KindCreator) }

func (f *CreatorFuncs) Create(ctx context.Context, req CreateRequest) (any, error) {
	if f.CreateFunc == nil {
		return nil, notImplemented(f.Meta, "Create")
	}
	return f.CreateFunc(ctx, req)
}

// ActionFuncs is an Action assembled from functions. A nil IsCompatibleFunc
// accepts every session.
type ActionFuncs struct {
	Meta             Metadata
	IsCompatibleFunc func(session map[string]string) bool
	ProcessFunc      func(ctx context.Context, session map[string]string, options map[string]any) (any, error)
}

func (f *ActionFuncs) PluginMetadata() Metadata { return withKind(f.Meta, KindAction) }

func (f *ActionFuncs) IsCompatible(session map[string]string) bool {
	if f.IsCompatibleFunc == nil {
		return true
	}
	return f.IsCompatibleFunc(session)
}

func (f *ActionFuncs) Process(ctx context.Context, session map[string]string, options map[string]any) (any, error) {
	if f.ProcessFunc == nil {
		return nil, notImplemented(f.Meta, "Process")
	}
	return f.ProcessFunc(ctx, session, options)
}

// InventoryActionFuncs is an InventoryAction assembled from functions. A nil
// IsCompatibleFunc accepts containers that have an object name.
type InventoryActionFuncs struct {
	Meta             Metadata
	IsCompatibleFunc func(container Container) bool
	ProcessFunc      func(ctx context.Context, containers []Container) (any, error)
}

func (f *InventoryActionFuncs) PluginMetadata() Metadata {
	return withKind(f.Meta, KindInventoryAction)
}

func (f *InventoryActionFuncs) IsCompatible(container Container) bool {
	if f.IsCompatibleFunc == nil {
		return container.ObjectName != ""
	}
	return f.IsCompatibleFunc(container)
}

func (f *InventoryActionFuncs) Process(ctx context.Context, containers []Container) (any, error) {
	if f.ProcessFunc == nil {
		return nil, notImplemented(f.Meta, "Process")
	}
	return f.ProcessFunc(ctx, containers)
}

// ThumbnailResolverFuncs is a ThumbnailResolver assembled from a function.
type ThumbnailResolverFuncs struct {
	Meta        Metadata
	ResolveFunc func(ctx context.Context, thumbnail Document, thumbnailType string) ([]byte, error)
}

func (f *ThumbnailResolverFuncs) PluginMetadata() Metadata {
	return withKind(f.Meta, KindThumbnailResolver)
}

func (f *ThumbnailResolverFuncs) Resolve(ctx context.Context, thumbnail Document, thumbnailType string) ([]byte, error) {
	if f.ResolveFunc == nil {
		return nil, notImplemented(f.Meta, "Resolve")
	}
	return f.ResolveFunc(ctx, thumbnail, thumbnailType)
}

// HostFuncs is a Host assembled from functions. Install and Uninstall are
// no-ops when their function is unset.
type HostFuncs struct {
	HostName      string
	LsFunc        func(ctx context.Context) ([]Container, error)
	InstallFunc   func(ctx context.Context) error
	UninstallFunc func(ctx context.Context) error
}

func (f *HostFuncs) Name() string { return f.HostName }

func (f *HostFuncs) Ls(ctx context.Context) ([]Container, error) {
	if f.LsFunc == nil {
		return nil, fmt.Errorf("host '%s' does not implement Ls", f.HostName)
	}
	return f.LsFunc(ctx)
}

func (f *HostFuncs) Install(ctx context.Context) error {
	if f.InstallFunc == nil {
		return nil
	}
	return f.InstallFunc(ctx)
}

func (f *HostFuncs) Uninstall(ctx context.Context) error {
	if f.UninstallFunc == nil {
		return nil
	}
	return f.UninstallFunc(ctx)
}

// ConfigFuncs is a Config assembled from functions. Hosts maps host names to
// per-host configs.
type ConfigFuncs struct {
	ConfigName    string
	InstallFunc   func(ctx context.Context) error
	UninstallFunc func(ctx context.Context) error
	Hosts         map[string]*ConfigFuncs
}

func (f *ConfigFuncs) Install(ctx context.Context) error {
	if f.InstallFunc == nil {
		return nil
	}
	return f.InstallFunc(ctx)
}

func (f *ConfigFuncs) Uninstall(ctx context.Context) error {
	if f.UninstallFunc == nil {
		return nil
	}
	return f.UninstallFunc(ctx)
}

func (f *ConfigFuncs) ForHost(name string) (Config, bool) {
	sub, ok := f.Hosts[name]
	if !ok || sub == nil {
		return nil, false
	}
	return sub, true
}

func withKind(m Metadata, kind Kind) Metadata {
	if m.Kind == KindUnknown {
		m.Kind = kind
	}
	return m
}

func notImplemented(m Metadata, member string) error {
	return fmt.Errorf("plugin '%s' does not implement %s", m.Name, member)
}
