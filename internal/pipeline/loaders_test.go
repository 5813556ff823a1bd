package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/avalon/internal/events"
	"github.com/alexisbeaulieu97/avalon/internal/host/filehost"
	"github.com/alexisbeaulieu97/avalon/internal/store"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

func installFileHost(t *testing.T, f *fixture) *filehost.Host {
	t.Helper()

	h := filehost.New(t.TempDir())
	require.NoError(t, h.Install(f.ctx))
	require.NoError(t, f.pc.RegisterHost(h))
	require.NoError(t, f.pc.RegisterPlugin(api.KindLoader, filehost.Loader(h)))
	return h
}

func modelLoader(families, representations []string) *api.LoaderFuncs {
	return &api.LoaderFuncs{
		Meta: api.Metadata{Name: "ModelLoader", Families: families, Representations: representations},
		LoadFunc: func(_ context.Context, rc *api.Context, name, namespace string, _ map[string]any) (any, error) {
			return rc, nil
		},
		UpdateFunc: func(context.Context, api.Container, *api.Context) error { return nil },
		RemoveFunc: func(context.Context, api.Container) (bool, error) { return true, nil },
	}
}

func TestRepresentationContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	rc, err := f.pc.RepresentationContext(f.ctx, "r2")
	require.NoError(t, err)
	require.Equal(t, api.Project{Name: "demo", Code: "dm"}, rc.Project)
	require.Equal(t, "bruce", rc.Asset.Name())
	require.Equal(t, "modelDefault", rc.Subset.Name())
	require.Equal(t, "2", rc.Version.Name())
	require.Equal(t, "r2", rc.Representation.ID())
	require.Equal(t, []string{"model"}, rc.Families())

	rep, err := f.store.FindOne(f.ctx, store.Filter{ID: "r21"})
	require.NoError(t, err)
	rc, err = f.pc.RepresentationContext(f.ctx, rep)
	require.NoError(t, err)
	require.Equal(t, []string{"rig"}, rc.Families())
}

func TestRepresentationContextOrphan(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	orphan := api.Document{"_id": "x", "type": api.TypeRepresentation, "name": "ma", "parent": "gone"}

	_, err := f.pc.RepresentationContext(f.ctx, orphan)
	var integrity *avalonerrors.IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestIsCompatibleLoader(t *testing.T) {
	t.Parallel()

	rc := &api.Context{
		Subset:         api.Document{"schema": api.SubsetSchemaV3, "data": map[string]any{"families": []any{"model", "look"}}},
		Representation: api.Document{"name": "ma"},
	}

	cases := []struct {
		name            string
		families        []string
		representations []string
		want            bool
	}{
		{"exact", []string{"model"}, []string{"ma"}, true},
		{"second family", []string{"look"}, []string{"abc", "ma"}, true},
		{"wildcards", []string{"*"}, []string{"*"}, true},
		{"wrong family", []string{"rig"}, []string{"*"}, false},
		{"wrong representation", []string{"*"}, []string{"abc"}, false},
		{"no families", nil, []string{"ma"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, IsCompatibleLoader(modelLoader(tc.families, tc.representations), rc))
		})
	}
}

func TestLoadersFromRepresentation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	loaders := []api.Plugin{
		modelLoader([]string{"model"}, []string{"ma"}),
		modelLoader([]string{"rig"}, []string{"ma"}),
	}

	compatible, err := f.pc.LoadersFromRepresentation(f.ctx, loaders, "r1")
	require.NoError(t, err)
	require.Len(t, compatible, 1)
	require.Equal(t, []string{"model"}, compatible[0].PluginMetadata().Families)
}

func TestLoadDefaultsAndEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := installFileHost(t, f)

	var before, after int
	f.pc.Events().Before(events.Load, func(_ context.Context, args ...any) error {
		before++
		require.Equal(t, "modelDefault", args[1])
		return nil
	})
	f.pc.Events().After(events.Load, func(context.Context, ...any) error {
		after++
		return nil
	})

	out, err := f.pc.Load(f.ctx, filehost.Loader(h), "r2", LoadOptions{})
	require.NoError(t, err)
	c := out.(api.Container)
	require.Equal(t, "modelDefault", c.Name)
	require.Equal(t, "bruce_01_", c.Namespace)
	require.Equal(t, "r2", c.Representation)
	require.Equal(t, filehost.LoaderName, c.Loader)
	require.Equal(t, f.root+"/demo/assets/bruce/publish/modelDefault/v002/ma", c.Data["path"])
	require.Equal(t, 1, before)
	require.Equal(t, 1, after)

	out, err = f.pc.Load(f.ctx, filehost.Loader(h), "r2", LoadOptions{Name: "hero", Namespace: "hero_"})
	require.NoError(t, err)
	require.Equal(t, "hero", out.(api.Container).Name)
	require.Equal(t, "hero_", out.(api.Container).Namespace)

	containers, err := f.pc.Ls(f.ctx)
	require.NoError(t, err)
	require.Len(t, containers, 2)

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "avalon_loader_operations_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestLoadIncompatible(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.pc.Load(f.ctx, modelLoader([]string{"rig"}, []string{"*"}), "r1", LoadOptions{})

	var incompatible *avalonerrors.IncompatibleLoaderError
	require.ErrorAs(t, err, &incompatible)
	require.Equal(t, "ModelLoader", incompatible.Loader)
	require.Equal(t, "modelDefault", incompatible.Subset)
}

func TestLoadLegacyLoader(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	legacy := &api.LegacyLoaderFuncs{
		Meta: api.Metadata{Name: "OldLoader", Families: []string{"*"}, Representations: []string{"*"}},
		ProcessFunc: func(_ context.Context, rc *api.Context, name, namespace string, _ map[string]any) (any, error) {
			return name + ":" + rc.Version.Name(), nil
		},
	}

	out, err := f.pc.Load(f.ctx, api.AdaptLoader(legacy), "r1", LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "modelDefault:1", out)
}

func loadedContainer(t *testing.T, f *fixture, h *filehost.Host, rep string) api.Container {
	t.Helper()
	out, err := f.pc.Load(f.ctx, filehost.Loader(h), rep, LoadOptions{})
	require.NoError(t, err)
	return out.(api.Container)
}

func TestUpdateSelectsVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := installFileHost(t, f)
	c := loadedContainer(t, f, h, "r1")

	cases := []struct {
		selector api.VersionSelector
		want     string
	}{
		{api.LatestVersion, "r10"},
		{api.VersionNumber(2), "r2"},
		{api.MasterVersion, "rm"},
	}
	for _, tc := range cases {
		require.NoError(t, f.pc.Update(f.ctx, c, tc.selector), tc.selector.String())

		containers, err := h.Ls(f.ctx)
		require.NoError(t, err)
		require.Len(t, containers, 1)
		require.Equal(t, tc.want, containers[0].Representation)
		c = containers[0]
	}
}

func TestUpdateMissingVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := installFileHost(t, f)
	c := loadedContainer(t, f, h, "r1")

	err := f.pc.Update(f.ctx, c, api.VersionNumber(7))
	require.Error(t, err)
}

func TestUpdateUnknownLoader(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	c := api.Container{Name: "modelDefault", Loader: "MissingLoader", Representation: "r1"}

	err := f.pc.Update(f.ctx, c, api.LatestVersion)
	var resolution *avalonerrors.ResolutionError
	require.ErrorAs(t, err, &resolution)
	require.Equal(t, "MissingLoader", resolution.Loader)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := installFileHost(t, f)
	c := loadedContainer(t, f, h, "r1")

	removed, err := f.pc.Remove(f.ctx, c)
	require.NoError(t, err)
	require.True(t, removed)

	containers, err := h.Ls(f.ctx)
	require.NoError(t, err)
	require.Empty(t, containers)
}

func TestSwitch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := installFileHost(t, f)
	c := loadedContainer(t, f, h, "r1")

	require.NoError(t, f.pc.Switch(f.ctx, c, "r21"))
	containers, err := h.Ls(f.ctx)
	require.NoError(t, err)
	require.Equal(t, "r21", containers[0].Representation)
	require.Equal(t, "rigMain", containers[0].Data["subset"])
}

func TestSwitchNotSupported(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.NoError(t, f.pc.RegisterPlugin(api.KindLoader, modelLoader([]string{"*"}, []string{"*"})))
	c := api.Container{Name: "modelDefault", Loader: "ModelLoader", Representation: "r1"}

	err := f.pc.Switch(f.ctx, c, "r2")
	var notSupported *avalonerrors.NotSupportedError
	require.ErrorAs(t, err, &notSupported)
	require.Equal(t, "switch", notSupported.Capability)
}

func TestSwitchIncompatibleTarget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	loader := modelLoader([]string{"model"}, []string{"*"})
	loader.SwitchFunc = func(context.Context, api.Container, *api.Context) error { return nil }
	require.NoError(t, f.pc.RegisterPlugin(api.KindLoader, loader))
	c := api.Container{Name: "modelDefault", Loader: "ModelLoader", Representation: "r1"}

	err := f.pc.Switch(f.ctx, c, "r21")
	var incompatible *avalonerrors.IncompatibleLoaderError
	require.ErrorAs(t, err, &incompatible)
}

func TestCreateRunsMatchingCreators(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := installFileHost(t, f)
	require.NoError(t, h.Select(f.ctx, "pSphere1"))

	failing := &api.CreatorFuncs{
		Meta: api.Metadata{Name: "BrokenModel", Family: "model"},
		CreateFunc: func(context.Context, api.CreateRequest) (any, error) {
			return nil, errors.New("boom")
		},
	}
	require.NoError(t, f.pc.RegisterPlugin(api.KindCreator, failing))
	require.NoError(t, f.pc.RegisterPlugin(api.KindCreator, filehost.Creator(h, "CreateModel", "model")))
	require.NoError(t, f.pc.RegisterPlugin(api.KindCreator, filehost.Creator(h, "CreateRig", "rig")))

	out, err := f.pc.Create(f.ctx, "modelMain", "bruce", "model",
		map[string]any{"useSelection": true}, map[string]any{"active": false})
	require.NoError(t, err)

	instance := out.(map[string]any)
	require.Equal(t, api.InstanceID, instance["id"])
	require.Equal(t, "model", instance["family"])
	require.Equal(t, "bruce", instance["asset"])
	require.Equal(t, "modelMain", instance["subset"])
	require.Equal(t, false, instance["active"])
	require.Equal(t, []string{"pSphere1"}, instance["members"])

	instances, err := h.Instances(f.ctx)
	require.NoError(t, err)
	require.Len(t, instances, 1)

	selection, err := h.Selection(f.ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"pSphere1"}, selection)

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "avalon_creator_runs_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestCreateWithoutCreators(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	_, err := f.pc.Create(f.ctx, "lookMain", "bruce", "look", nil, nil)
	require.ErrorIs(t, err, api.ErrNoCreatorRan)
}

func TestActionsFilterBySession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.NoError(t, f.pc.RegisterPlugin(api.KindAction, &api.ActionFuncs{
		Meta:             api.Metadata{Name: "NeedsTask", Order: 1},
		IsCompatibleFunc: func(s map[string]string) bool { return s["AVALON_TASK"] != "" },
		ProcessFunc: func(context.Context, map[string]string, map[string]any) (any, error) {
			return "task", nil
		},
	}))
	require.NoError(t, f.pc.RegisterPlugin(api.KindAction, &api.ActionFuncs{
		Meta: api.Metadata{Name: "Always", Order: 0},
		ProcessFunc: func(_ context.Context, s map[string]string, _ map[string]any) (any, error) {
			return s["AVALON_ASSET"], nil
		},
	}))

	actions, err := f.pc.Actions(f.ctx)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, "Always", actions[0].PluginMetadata().Name)

	out, err := f.pc.RunAction(f.ctx, "Always", nil)
	require.NoError(t, err)
	require.Equal(t, "bruce", out)

	_, err = f.pc.RunAction(f.ctx, "NeedsTask", nil)
	require.Error(t, err)
}
