// Package plugin keeps the registered plug-ins and plug-in paths and turns
// them into the list of plug-ins available for a kind.
package plugin

import (
	"context"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/internal/metrics"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// Config configures a Registry.
type Config struct {
	// CacheDiscovery keeps Discover results until a registration changes
	// or a watched plug-in path is modified.
	CacheDiscovery bool

	// Source finds plug-ins under registered paths. Defaults to a
	// ScriptSource.
	Source Source

	Metrics *metrics.Collector
}

// DefaultConfig returns a configuration without caching.
func DefaultConfig() *Config {
	return &Config{}
}

// Registry holds explicit plug-in registrations and plug-in paths per kind.
type Registry struct {
	mu          sync.RWMutex
	plugins     map[api.Kind][]api.Plugin
	paths       map[api.Kind][]string
	cache       map[api.Kind][]api.Plugin
	diagnostics map[api.Kind][]Diagnostic
	watcher     *fsnotify.Watcher
	// generation changes on every invalidation. Discover only caches a
	// result computed from the current generation.
	generation uint64

	source  Source
	config  Config
	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(config *Config, log *logger.Logger) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	source := config.Source
	if source == nil {
		source = NewScriptSource(log)
	}

	return &Registry{
		plugins:     make(map[api.Kind][]api.Plugin),
		paths:       make(map[api.Kind][]string),
		cache:       make(map[api.Kind][]api.Plugin),
		diagnostics: make(map[api.Kind][]Diagnostic),
		source:      source,
		config:      *config,
		metrics:     config.Metrics,
		logger:      log,
	}
}

// RegisterPlugin adds p to the plug-ins of kind. Registering the same
// plug-in twice is a no-op. Legacy loaders are adapted here.
func (r *Registry) RegisterPlugin(kind api.Kind, p api.Plugin) error {
	normalized, err := api.Normalize(kind, p)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins[kind] {
		if samePlugin(existing, normalized) {
			return nil
		}
	}
	r.plugins[kind] = append(r.plugins[kind], normalized)
	r.invalidateLocked(kind)
	return nil
}

// DeregisterPlugin removes p from the plug-ins of kind.
func (r *Registry) DeregisterPlugin(kind api.Kind, p api.Plugin) {
	if p == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.plugins[kind][:0]
	for _, existing := range r.plugins[kind] {
		if !samePlugin(existing, p) {
			kept = append(kept, existing)
		}
	}
	r.plugins[kind] = kept
	r.invalidateLocked(kind)
}

// Registered returns the explicitly registered plug-ins of kind.
func (r *Registry) Registered(kind api.Kind) []api.Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.plugins[kind])
}

// RegisterPluginPath adds a directory searched for plug-ins of kind.
func (r *Registry) RegisterPluginPath(kind api.Kind, path string) {
	path = filepath.Clean(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.paths[kind], path) {
		return
	}
	r.paths[kind] = append(r.paths[kind], path)
	r.invalidateLocked(kind)
	r.watchLocked(path)
}

// DeregisterPluginPath removes a plug-in directory.
func (r *Registry) DeregisterPluginPath(kind api.Kind, path string) {
	path = filepath.Clean(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.paths[kind] = slices.DeleteFunc(r.paths[kind], func(p string) bool { return p == path })
	r.invalidateLocked(kind)
	r.unwatchLocked(path)
}

// PluginPaths returns the directories registered for kind.
func (r *Registry) PluginPaths(kind api.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.paths[kind])
}

// RegisteredPaths returns every registered directory by kind.
func (r *Registry) RegisteredPaths() map[api.Kind][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[api.Kind][]string, len(r.paths))
	for kind, paths := range r.paths {
		if len(paths) > 0 {
			out[kind] = slices.Clone(paths)
		}
	}
	return out
}

// Discover returns the plug-ins of kind found under the registered paths
// together with the explicitly registered ones, sorted by name. Explicit
// registrations win over discovered plug-ins with the same name.
func (r *Registry) Discover(ctx context.Context, kind api.Kind) ([]api.Plugin, error) {
	r.mu.RLock()
	if cached, ok := r.cache[kind]; ok && r.config.CacheDiscovery {
		r.mu.RUnlock()
		return slices.Clone(cached), nil
	}
	paths := slices.Clone(r.paths[kind])
	registered := slices.Clone(r.plugins[kind])
	generation := r.generation
	r.mu.RUnlock()

	byName := make(map[string]api.Plugin)
	origin := make(map[string]string)
	var diagnostics []Diagnostic

	for _, path := range paths {
		found, err := r.source.Plugins(ctx, path)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			diagnostics = append(diagnostics, Diagnostic{Type: DiagnosticLoadFailure, Kind: kind, Path: path, Err: err})
			continue
		}

		for _, f := range found {
			if f.Err != nil {
				diagnostics = append(diagnostics, Diagnostic{Type: DiagnosticLoadFailure, Kind: kind, Path: f.File, Err: f.Err})
				continue
			}
			if f.Plugin == nil || f.Plugin.PluginMetadata().Kind != kind {
				continue
			}

			p, err := api.Normalize(kind, f.Plugin)
			if err != nil {
				diagnostics = append(diagnostics, Diagnostic{
					Type: DiagnosticLoadFailure, Kind: kind, Plugin: f.Plugin.PluginMetadata().Name, Path: f.File, Err: err,
				})
				continue
			}

			name := p.PluginMetadata().Name
			if _, exists := byName[name]; exists {
				diagnostics = append(diagnostics, Diagnostic{Type: DiagnosticDuplicate, Kind: kind, Plugin: name, Path: f.File})
				continue
			}
			byName[name] = p
			origin[name] = f.File
		}
	}

	for _, p := range registered {
		name := p.PluginMetadata().Name
		if file, discovered := origin[name]; discovered {
			diagnostics = append(diagnostics, Diagnostic{Type: DiagnosticOverride, Kind: kind, Plugin: name, Path: file})
			delete(origin, name)
		}
		byName[name] = p
	}

	plugins := make([]api.Plugin, 0, len(byName))
	for _, p := range byName {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].PluginMetadata().Name < plugins[j].PluginMetadata().Name
	})

	for _, d := range diagnostics {
		log := r.logger.WithFields(d.fields())
		if d.Type == DiagnosticLoadFailure {
			r.metrics.DiscoveryFailure(kind.String())
			log.WarnErr(d.Err, "plugin discovery skipped a plugin")
			continue
		}
		log.Warn(d.String())
	}

	r.mu.Lock()
	r.diagnostics[kind] = diagnostics
	if r.config.CacheDiscovery && r.generation == generation {
		r.cache[kind] = slices.Clone(plugins)
	}
	r.mu.Unlock()

	return plugins, nil
}

// Diagnostics returns what the last Discover for kind worked around.
func (r *Registry) Diagnostics(kind api.Kind) []Diagnostic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.diagnostics[kind])
}

// Invalidate drops every cached discovery result.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	clear(r.cache)
}

func (r *Registry) invalidateLocked(kind api.Kind) {
	r.generation++
	delete(r.cache, kind)
}

// samePlugin compares plug-ins by name and dynamic type, looking through
// adapters.
func samePlugin(a, b api.Plugin) bool {
	a, b = api.Underlying(a), api.Underlying(b)
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a.PluginMetadata().Name == b.PluginMetadata().Name
}
