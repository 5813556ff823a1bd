// Package host provides the built-in hosts used when no DCC integration is
// installed.
package host

import (
	"context"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// Default is the host used outside of any application. It has no scene, so
// Ls always returns an empty list.
func Default() api.Host {
	return &api.HostFuncs{
		HostName: "default",
		LsFunc: func(context.Context) ([]api.Container, error) {
			return nil, nil
		},
	}
}

// DebugHost is a host with a fixed scene, handy for exercising inventory
// tools.
type DebugHost struct {
	containers []api.Container
}

// Debug returns a DebugHost holding two loaded models.
func Debug() *DebugHost {
	return &DebugHost{containers: []api.Container{
		{
			Schema:         api.ContainerSchema,
			ID:             api.ContainerID,
			Name:           "Bruce01",
			Namespace:      "_bruce01_",
			Loader:         "ModelLoader",
			Representation: "ee-ft-a-uuid1",
			ObjectName:     "Bruce01_node",
			Data:           map[string]any{"version": 3},
		},
		{
			Schema:         api.ContainerSchema,
			ID:             api.ContainerID,
			Name:           "Bruce02",
			Namespace:      "_bruce02_",
			Loader:         "ModelLoader",
			Representation: "aa-bc-s-uuid2",
			ObjectName:     "Bruce01_node",
			Data:           map[string]any{"version": 2},
		},
	}}
}

func (h *DebugHost) Name() string { return "debug" }

func (h *DebugHost) Ls(context.Context) ([]api.Container, error) {
	out := make([]api.Container, len(h.containers))
	copy(out, h.containers)
	return out, nil
}

func (h *DebugHost) FileExtensions() []string { return []string{"txt"} }
