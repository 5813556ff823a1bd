package api

import (
	"context"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// LegacyLoader is the older loader shape with a single Process entry point.
// Such loaders are wrapped by AdaptLoader once, when they are registered or
// discovered.
type LegacyLoader interface {
	Plugin
	Process(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error)
}

// LegacyRemover lets a legacy loader still support removal.
type LegacyRemover interface {
	Remove(ctx context.Context, container Container) (bool, error)
}

type legacyLoader struct {
	legacy LegacyLoader
}

// AdaptLoader wraps a legacy loader into a Loader. Load and Update both call
// Process; Update reuses the container's name and namespace.
func AdaptLoader(l LegacyLoader) Loader {
	if loader, ok := l.(Loader); ok {
		return loader
	}
	return &legacyLoader{legacy: l}
}

func (l *legacyLoader) PluginMetadata() Metadata { return l.legacy.PluginMetadata() }

func (l *legacyLoader) Load(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error) {
	return l.legacy.Process(ctx, rc, name, namespace, options)
}

func (l *legacyLoader) Update(ctx context.Context, container Container, rc *Context) error {
	_, err := l.legacy.Process(ctx, rc, container.Name, container.Namespace, nil)
	return err
}

func (l *legacyLoader) Remove(ctx context.Context, container Container) (bool, error) {
	if remover, ok := l.legacy.(LegacyRemover); ok {
		return remover.Remove(ctx, container)
	}
	return false, &avalonerrors.NotSupportedError{Loader: l.legacy.PluginMetadata().Name, Capability: "remove"}
}

// Unwrap returns the wrapped legacy loader.
func (l *legacyLoader) Unwrap() Plugin { return l.legacy }

// Underlying strips adapters so two registrations of the same plug-in can be
// recognized.
func Underlying(p Plugin) Plugin {
	for {
		u, ok := p.(interface{ Unwrap() Plugin })
		if !ok {
			return p
		}
		p = u.Unwrap()
	}
}
