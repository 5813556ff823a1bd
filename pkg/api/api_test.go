package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

type legacyModelLoader struct {
	calls []string
}

func (l *legacyModelLoader) PluginMetadata() Metadata {
	return Metadata{Name: "LegacyModel", Kind: KindLoader, Families: []string{"model"}, Representations: []string{"ma"}}
}

func (l *legacyModelLoader) Process(_ context.Context, rc *Context, name, namespace string, _ map[string]any) (any, error) {
	l.calls = append(l.calls, name+":"+namespace+":"+rc.Representation.Name())
	return name, nil
}

type brokenHost struct{}

func (brokenHost) Name() string { return "broken" }

func (brokenHost) Ls() []Container { return nil }

func TestParseKindRoundTrip(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds() {
		parsed, err := ParseKind(kind.String())
		require.NoError(t, err)
		require.Equal(t, kind, parsed)
	}

	parsed, err := ParseKind("Inventory_Action")
	require.NoError(t, err)
	require.Equal(t, KindInventoryAction, parsed)

	_, err = ParseKind("publisher")
	require.Error(t, err)
}

func TestMetadataValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Metadata{Name: "ModelLoader", Kind: KindLoader}.Validate())
	require.Error(t, Metadata{Kind: KindLoader}.Validate())
	require.Error(t, Metadata{Name: "bad name", Kind: KindLoader}.Validate())
	require.Error(t, Metadata{Name: "Orphan"}.Validate())
	require.Error(t, Metadata{Name: "CreateModel", Kind: KindCreator}.Validate())
	require.Equal(t, "ModelLoader", Metadata{Name: "ModelLoader"}.DisplayLabel())
}

func TestDocumentAccessors(t *testing.T) {
	t.Parallel()

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(`{
		"_id": "v1", "type": "version", "name": 3, "parent": "s1",
		"data": {"families": ["model", 4, "rig"], "frame": 1.5}
	}`), &doc))

	require.Equal(t, "v1", doc.ID())
	require.Equal(t, "3", doc.Name())
	require.Equal(t, []string{"model", "rig"}, doc.Data().StringsAt("families"))
	require.Equal(t, "1.5", doc.StringAt("data", "frame"))

	n, ok := doc.IntAt("name")
	require.True(t, ok)
	require.Equal(t, 3, n)

	_, ok = doc.IntAt("data", "frame")
	require.False(t, ok)
	require.False(t, doc.Has("data", "missing"))

	clone := doc.Clone()
	clone.Data()["families"] = []any{"look"}
	require.Equal(t, []string{"model", "rig"}, doc.Data().StringsAt("families"))
}

func TestContextFamiliesFollowsSubsetSchema(t *testing.T) {
	t.Parallel()

	rc := &Context{
		Subset:  Document{"schema": SubsetSchemaV3, "data": map[string]any{"families": []any{"rig"}}},
		Version: Document{"data": map[string]any{"families": []any{"model"}}},
	}
	require.Equal(t, []string{"rig"}, rc.Families())

	rc.Subset["schema"] = "avalon-core:subset-2.0"
	require.Equal(t, []string{"model"}, rc.Families())

	rc.Version = Document{}
	require.Empty(t, rc.Families())
}

func TestCheckContractReportsMissingAndMismatched(t *testing.T) {
	t.Parallel()

	err := CheckContract("broken", brokenHost{}, HostContract)
	require.Error(t, err)

	var ifaceErr *avalonerrors.InterfaceError
	require.ErrorAs(t, err, &ifaceErr)
	require.Empty(t, ifaceErr.Missing)
	require.Len(t, ifaceErr.Mismatched, 1)
	require.Equal(t, "Ls", ifaceErr.Mismatched[0].Member)
	require.Equal(t, "() []api.Container", ifaceErr.Mismatched[0].Found)
	require.Equal(t, "(context.Context) ([]api.Container, error)", ifaceErr.Mismatched[0].Expected)

	err = CheckContract("studio", &ConfigFuncs{ConfigName: "studio"}, ConfigContract)
	require.ErrorAs(t, err, &ifaceErr)
	require.Equal(t, []string{"Install", "Uninstall"}, ifaceErr.Missing)

	require.NoError(t, CheckContract("debug", &HostFuncs{
		HostName: "debug",
		LsFunc:   func(context.Context) ([]Container, error) { return nil, nil },
	}, HostContract))
}

func TestNormalizeAdaptsLegacyLoader(t *testing.T) {
	t.Parallel()

	legacy := &legacyModelLoader{}
	p, err := Normalize(KindLoader, legacy)
	require.NoError(t, err)

	loader, ok := p.(Loader)
	require.True(t, ok)
	require.Same(t, legacy, Underlying(p))

	ctx := context.Background()
	rc := &Context{Representation: Document{"name": "ma"}}
	_, err = loader.Load(ctx, rc, "hero", "hero_01", nil)
	require.NoError(t, err)
	require.NoError(t, loader.Update(ctx, Container{Name: "hero", Namespace: "hero_01"}, rc))
	require.Equal(t, []string{"hero:hero_01:ma", "hero:hero_01:ma"}, legacy.calls)

	_, err = loader.Remove(ctx, Container{Name: "hero"})
	var notSupported *avalonerrors.NotSupportedError
	require.ErrorAs(t, err, &notSupported)
	require.Equal(t, "remove", notSupported.Capability)

	again, err := Normalize(KindLoader, p)
	require.NoError(t, err)
	require.Same(t, legacy, Underlying(again))
}

func TestNormalizeFuncLoaders(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, Container, *Context) error { return nil }
	funcs := &LoaderFuncs{
		Meta:       Metadata{Name: "ModelLoader"},
		LoadFunc:   func(context.Context, *Context, string, string, map[string]any) (any, error) { return "ok", nil },
		UpdateFunc: noop,
		RemoveFunc: func(context.Context, Container) (bool, error) { return true, nil },
	}

	p, err := Normalize(KindLoader, funcs)
	require.NoError(t, err)
	_, switches := p.(Switcher)
	require.False(t, switches)

	funcs.SwitchFunc = noop
	p, err = Normalize(KindLoader, funcs)
	require.NoError(t, err)
	_, switches = p.(Switcher)
	require.True(t, switches)
	require.Same(t, funcs, Underlying(p))

	_, err = Normalize(KindLoader, &LoaderFuncs{Meta: Metadata{Name: "Empty"}})
	var ifaceErr *avalonerrors.InterfaceError
	require.ErrorAs(t, err, &ifaceErr)
	require.ElementsMatch(t, []string{"Load", "Update", "Remove"}, ifaceErr.Missing)

	_, err = Normalize(KindCreator, funcs)
	var pluginErr *avalonerrors.PluginError
	require.ErrorAs(t, err, &pluginErr)
}

func TestInventoryActionFuncsDefaultCompatibility(t *testing.T) {
	t.Parallel()

	action := &InventoryActionFuncs{Meta: Metadata{Name: "SelectContainer"}}
	require.True(t, action.IsCompatible(Container{ObjectName: "Bruce01_node"}))
	require.False(t, action.IsCompatible(Container{}))
}

func TestParseVersionSelector(t *testing.T) {
	t.Parallel()

	v, err := ParseVersionSelector("-1")
	require.NoError(t, err)
	require.True(t, v.IsLatest())

	v, err = ParseVersionSelector("master")
	require.NoError(t, err)
	require.True(t, v.IsMaster())

	v, err = ParseVersionSelector("v012")
	require.NoError(t, err)
	n, ok := v.Number()
	require.True(t, ok)
	require.Equal(t, 12, n)

	_, err = ParseVersionSelector("newest")
	require.Error(t, err)
}

func TestRootValue(t *testing.T) {
	t.Parallel()

	require.True(t, Root{}.IsZero())
	require.Equal(t, "/projects", SingleRoot("/projects").Value())
	require.Equal(t, map[string]any{"work": "/w"}, NamedRoots(map[string]string{"work": "/w"}).Value())
}
