package api

import (
	"context"
	"errors"
)

// ErrNoCreatorRan is returned when no Creator matching a family completed.
var ErrNoCreatorRan = errors.New("no creator plugin ran successfully")

// Plugin is the contract shared by every plug-in kind.
type Plugin interface {
	// PluginMetadata returns the class-level description of the plug-in.
	PluginMetadata() Metadata
}

// Loader brings a published representation into the host and manages the
// resulting container.
type Loader interface {
	Plugin

	// Load imports the representation described by rc. The returned value is
	// host specific.
	Load(ctx context.Context, rc *Context, name, namespace string, options map[string]any) (any, error)

	// Update points an existing container at another representation of the
	// same subset.
	Update(ctx context.Context, container Container, rc *Context) error

	// Remove deletes the container from the host. The boolean reports
	// whether anything was removed.
	Remove(ctx context.Context, container Container) (bool, error)
}

// Switcher is implemented by Loaders that can move a container to a
// representation of a different subset or asset.
type Switcher interface {
	Switch(ctx context.Context, container Container, rc *Context) error
}

// CreateRequest carries everything a Creator needs to build an instance.
type CreateRequest struct {
	Name    string
	Asset   string
	Options map[string]any

	// Data is the instance data with defaults already applied.
	Data map[string]any
}

// Creator builds a publish instance in the host.
type Creator interface {
	Plugin
	Create(ctx context.Context, req CreateRequest) (any, error)
}

// Action is a session-level command such as launching an application.
type Action interface {
	Plugin
	IsCompatible(session map[string]string) bool
	Process(ctx context.Context, session map[string]string, options map[string]any) (any, error)
}

// InventoryAction operates on containers already loaded in the host.
type InventoryAction interface {
	Plugin
	IsCompatible(container Container) bool
	Process(ctx context.Context, containers []Container) (any, error)
}

// ThumbnailResolver turns a thumbnail document into image bytes. A nil slice
// without error means the resolver had nothing to offer.
type ThumbnailResolver interface {
	Plugin
	Resolve(ctx context.Context, thumbnail Document, thumbnailType string) ([]byte, error)
}
