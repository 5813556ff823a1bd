package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/alexisbeaulieu97/avalon/internal/metrics"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

type fakeSource struct {
	found map[string][]Found
	err   map[string]error
	calls atomic.Int32
}

func (s *fakeSource) Plugins(_ context.Context, dir string) ([]Found, error) {
	s.calls.Add(1)
	if err := s.err[dir]; err != nil {
		return nil, err
	}
	return s.found[dir], nil
}

func loader(name string) *api.LoaderFuncs {
	return &api.LoaderFuncs{
		Meta: api.Metadata{Name: name, Kind: api.KindLoader, Families: []string{"*"}, Representations: []string{"*"}},
		LoadFunc: func(context.Context, *api.Context, string, string, map[string]any) (any, error) {
			return name, nil
		},
		UpdateFunc: func(context.Context, api.Container, *api.Context) error { return nil },
		RemoveFunc: func(context.Context, api.Container) (bool, error) { return true, nil },
	}
}

func creator(name, family string) *api.CreatorFuncs {
	return &api.CreatorFuncs{
		Meta:       api.Metadata{Name: name, Kind: api.KindCreator, Family: family},
		CreateFunc: func(context.Context, api.CreateRequest) (any, error) { return name, nil },
	}
}

type legacyModel struct{}

func (legacyModel) PluginMetadata() api.Metadata {
	return api.Metadata{Name: "LegacyModel", Kind: api.KindLoader, Families: []string{"model"}, Representations: []string{"ma"}}
}

func (legacyModel) Process(context.Context, *api.Context, string, string, map[string]any) (any, error) {
	return "processed", nil
}

func names(plugins []api.Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.PluginMetadata().Name
	}
	return out
}

func TestRegisterPluginIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)
	l := loader("ModelLoader")
	require.NoError(t, r.RegisterPlugin(api.KindLoader, l))
	require.NoError(t, r.RegisterPlugin(api.KindLoader, l))
	require.Len(t, r.Registered(api.KindLoader), 1)

	r.DeregisterPlugin(api.KindLoader, l)
	require.Empty(t, r.Registered(api.KindLoader))
}

func TestRegisterPluginRejectsInvalidPlugins(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)

	var pluginErr *avalonerrors.PluginError
	require.ErrorAs(t, r.RegisterPlugin(api.KindCreator, loader("ModelLoader")), &pluginErr)

	incomplete := loader("Broken")
	incomplete.UpdateFunc = nil
	incomplete.RemoveFunc = nil
	err := r.RegisterPlugin(api.KindLoader, incomplete)
	var ifaceErr *avalonerrors.InterfaceError
	require.ErrorAs(t, err, &ifaceErr)
	require.Equal(t, []string{"Update", "Remove"}, ifaceErr.Missing)
	require.Empty(t, r.Registered(api.KindLoader))
}

func TestRegisterPluginAdaptsLegacyLoader(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)
	require.NoError(t, r.RegisterPlugin(api.KindLoader, legacyModel{}))
	require.NoError(t, r.RegisterPlugin(api.KindLoader, legacyModel{}))

	registered := r.Registered(api.KindLoader)
	require.Len(t, registered, 1)
	l, ok := registered[0].(api.Loader)
	require.True(t, ok)

	out, err := l.Load(context.Background(), &api.Context{}, "n", "ns", nil)
	require.NoError(t, err)
	require.Equal(t, "processed", out)

	r.DeregisterPlugin(api.KindLoader, legacyModel{})
	require.Empty(t, r.Registered(api.KindLoader))
}

func TestPluginPaths(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)
	r.RegisterPluginPath(api.KindLoader, "/studio/plugins/../plugins/load/")
	r.RegisterPluginPath(api.KindLoader, "/studio/plugins/load")
	r.RegisterPluginPath(api.KindCreator, "/studio/plugins/create")

	require.Equal(t, []string{"/studio/plugins/load"}, r.PluginPaths(api.KindLoader))
	require.Equal(t, map[api.Kind][]string{
		api.KindLoader:  {"/studio/plugins/load"},
		api.KindCreator: {"/studio/plugins/create"},
	}, r.RegisteredPaths())

	r.DeregisterPluginPath(api.KindLoader, "/studio/plugins/load/")
	require.Empty(t, r.PluginPaths(api.KindLoader))
	require.NotContains(t, r.RegisteredPaths(), api.KindLoader)
}

func TestDiscoverMergesPathsAndRegistrations(t *testing.T) {
	t.Parallel()

	collector := metrics.New()
	source := &fakeSource{
		found: map[string][]Found{
			"/a": {
				{Plugin: loader("ZLoader"), File: "/a/z.go"},
				{Plugin: loader("ModelLoader"), File: "/a/model.go"},
				{Plugin: creator("ModelCreator", "model"), File: "/a/model.go"},
				{File: "/a/broken.go", Err: errors.New("syntax error")},
			},
			"/b": {
				{Plugin: loader("ZLoader"), File: "/b/z.go"},
			},
		},
		err: map[string]error{"/c": errors.New("permission denied")},
	}
	r := NewRegistry(&Config{Source: source, Metrics: collector}, nil)
	r.RegisterPluginPath(api.KindLoader, "/a")
	r.RegisterPluginPath(api.KindLoader, "/b")
	r.RegisterPluginPath(api.KindLoader, "/c")

	explicit := loader("ModelLoader")
	require.NoError(t, r.RegisterPlugin(api.KindLoader, explicit))
	require.NoError(t, r.RegisterPlugin(api.KindLoader, loader("ALoader")))

	plugins, err := r.Discover(context.Background(), api.KindLoader)
	require.NoError(t, err)
	require.Equal(t, []string{"ALoader", "ModelLoader", "ZLoader"}, names(plugins))
	require.Same(t, explicit, plugins[1])

	diagnostics := r.Diagnostics(api.KindLoader)
	types := make(map[DiagnosticType]int)
	for _, d := range diagnostics {
		types[d.Type]++
	}
	require.Equal(t, map[DiagnosticType]int{
		DiagnosticLoadFailure: 2,
		DiagnosticDuplicate:   1,
		DiagnosticOverride:    1,
	}, types)

	count, err := testutil.GatherAndCount(collector.Registry(), "avalon_plugin_discovery_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	creators, err := r.Discover(context.Background(), api.KindCreator)
	require.NoError(t, err)
	require.Empty(t, creators)
}

func TestDiscoverCache(t *testing.T) {
	t.Parallel()

	source := &fakeSource{found: map[string][]Found{"/a": {{Plugin: loader("ModelLoader"), File: "/a/m.go"}}}}
	r := NewRegistry(&Config{Source: source, CacheDiscovery: true}, nil)
	r.RegisterPluginPath(api.KindLoader, "/a")

	for range 3 {
		plugins, err := r.Discover(context.Background(), api.KindLoader)
		require.NoError(t, err)
		require.Len(t, plugins, 1)
	}
	require.EqualValues(t, 1, source.calls.Load())

	require.NoError(t, r.RegisterPlugin(api.KindLoader, loader("Other")))
	plugins, err := r.Discover(context.Background(), api.KindLoader)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	require.EqualValues(t, 2, source.calls.Load())
}

// gatedSource blocks its first Plugins call until release is closed.
type gatedSource struct {
	mu      sync.Mutex
	name    string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedSource) Plugins(context.Context, string) ([]Found, error) {
	s.mu.Lock()
	name := s.name
	s.mu.Unlock()

	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		<-s.release
	}
	return []Found{{Plugin: loader(name), File: "/a/" + name + ".go"}}, nil
}

func (s *gatedSource) rename(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func TestDiscoverDoesNotCacheResultInvalidatedMidway(t *testing.T) {
	t.Parallel()

	source := &gatedSource{name: "OldLoader", started: make(chan struct{}), release: make(chan struct{})}
	r := NewRegistry(&Config{Source: source, CacheDiscovery: true}, nil)
	r.RegisterPluginPath(api.KindLoader, "/a")

	done := make(chan []api.Plugin)
	go func() {
		plugins, err := r.Discover(context.Background(), api.KindLoader)
		if err != nil {
			plugins = nil
		}
		done <- plugins
	}()

	<-source.started
	source.rename("NewLoader")
	r.Invalidate()
	close(source.release)
	require.Equal(t, []string{"OldLoader"}, names(<-done))

	plugins, err := r.Discover(context.Background(), api.KindLoader)
	require.NoError(t, err)
	require.Equal(t, []string{"NewLoader"}, names(plugins))
}

func TestDiscoverHonoursCancellation(t *testing.T) {
	t.Parallel()

	source := &fakeSource{found: map[string][]Found{}}
	r := NewRegistry(&Config{Source: source}, nil)
	r.RegisterPluginPath(api.KindLoader, "/a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Discover(ctx, api.KindLoader)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWatchInvalidatesCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	source := &fakeSource{found: map[string][]Found{dir: {{Plugin: loader("ModelLoader"), File: filepath.Join(dir, "m.go")}}}}
	r := NewRegistry(&Config{Source: source, CacheDiscovery: true}, nil)
	r.RegisterPluginPath(api.KindLoader, dir)

	_, err := r.Discover(context.Background(), api.KindLoader)
	require.NoError(t, err)
	require.EqualValues(t, 1, source.calls.Load())

	stop, err := r.Watch(context.Background())
	require.NoError(t, err)

	_, err = r.Watch(context.Background())
	require.ErrorIs(t, err, ErrAlreadyWatching)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.go"), []byte("package main\n"), 0o644))
	require.Eventually(t, func() bool {
		_, err := r.Discover(context.Background(), api.KindLoader)
		return err == nil && source.calls.Load() > 1
	}, 5*time.Second, 20*time.Millisecond)

	stop()
	stop()
}

func TestDeregisterPluginPathStopsWatching(t *testing.T) {
	defer goleak.VerifyNone(t)

	loaders, creators := t.TempDir(), t.TempDir()
	r := NewRegistry(&Config{Source: &fakeSource{}}, nil)
	r.RegisterPluginPath(api.KindLoader, loaders)
	r.RegisterPluginPath(api.KindLoader, creators)
	r.RegisterPluginPath(api.KindCreator, creators)

	stop, err := r.Watch(context.Background())
	require.NoError(t, err)
	defer stop()

	watched := func() []string {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.watcher.WatchList()
	}
	require.ElementsMatch(t, []string{loaders, creators}, watched())

	r.DeregisterPluginPath(api.KindLoader, loaders)
	require.ElementsMatch(t, []string{creators}, watched())

	r.DeregisterPluginPath(api.KindLoader, creators)
	require.ElementsMatch(t, []string{creators}, watched(), "still registered for creators")

	r.DeregisterPluginPath(api.KindCreator, creators)
	require.Empty(t, watched())
}
