package filehost

import (
	"context"
	"fmt"
	"maps"

	"github.com/alexisbeaulieu97/avalon/internal/container"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// LoaderName is the name containers created by Loader carry.
const LoaderName = "SceneLoader"

// Loader returns a Loader that references any representation in the scene
// by path. It supports switching.
func Loader(h *Host) *api.LoaderFuncs {
	return &api.LoaderFuncs{
		Meta: api.Metadata{
			Name:            LoaderName,
			Kind:            api.KindLoader,
			Label:           "Reference in scene",
			Families:        []string{"*"},
			Representations: []string{"*"},
		},
		LoadFunc: func(ctx context.Context, rc *api.Context, name, namespace string, _ map[string]any) (any, error) {
			if namespace == "" {
				ns, err := h.UniqueNamespace(ctx, rc.Asset.Name())
				if err != nil {
					return nil, err
				}
				namespace = ns
			}
			c := container.Imprint(name, namespace, rc, LoaderName, contextData(rc))
			return h.Imprint(ctx, c)
		},
		UpdateFunc: func(ctx context.Context, c api.Container, rc *api.Context) error {
			return h.Replace(ctx, repoint(c, rc))
		},
		SwitchFunc: func(ctx context.Context, c api.Container, rc *api.Context) error {
			return h.Replace(ctx, repoint(c, rc))
		},
		RemoveFunc: func(ctx context.Context, c api.Container) (bool, error) {
			return h.RemoveContainer(ctx, c.ObjectName)
		},
	}
}

// Creator returns a Creator recording instances of family in the scene.
func Creator(h *Host, name, family string) *api.CreatorFuncs {
	return &api.CreatorFuncs{
		Meta: api.Metadata{
			Name:   name,
			Kind:   api.KindCreator,
			Label:  fmt.Sprintf("Create %s", family),
			Family: family,
		},
		CreateFunc: func(ctx context.Context, req api.CreateRequest) (any, error) {
			instance := maps.Clone(req.Data)
			if instance == nil {
				instance = map[string]any{}
			}
			if selection, err := h.Selection(ctx); err == nil && len(selection) > 0 && req.Options["useSelection"] == true {
				instance["members"] = selection
			}
			if err := h.AddInstance(ctx, instance); err != nil {
				return nil, err
			}
			return instance, nil
		},
	}
}

func repoint(c api.Container, rc *api.Context) api.Container {
	c.Representation = rc.Representation.ID()
	data := maps.Clone(c.Data)
	if data == nil {
		data = map[string]any{}
	}
	maps.Copy(data, contextData(rc))
	c.Data = data
	return c
}

func contextData(rc *api.Context) map[string]any {
	return map[string]any{
		"path":    rc.Path,
		"subset":  rc.Subset.Name(),
		"version": rc.Version.StringAt("name"),
	}
}
