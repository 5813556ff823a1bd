// Package pipeline is the host context: it ties the session, the document
// store, the plug-in registry and the event bus to the host the pipeline is
// installed into.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/alexisbeaulieu97/avalon/internal/events"
	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/internal/metrics"
	"github.com/alexisbeaulieu97/avalon/internal/plugin"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/store"
	"github.com/alexisbeaulieu97/avalon/internal/workfile"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// ErrAlreadyInstalled is returned by Install on an installed context.
var ErrAlreadyInstalled = errors.New("pipeline is already installed")

// ErrNoHost is returned by operations that need a registered host.
var ErrNoHost = errors.New("no host registered")

// Options wires a Context. Only Store is required.
type Options struct {
	Session   *session.Session
	Store     store.Store
	Registry  *plugin.Registry
	Bus       *events.Bus
	Configs   ConfigResolver
	Workfiles *workfile.Resolver
	Launcher  Launcher
	Logger    *logger.Logger
	Metrics   *metrics.Collector
}

// Context is one pipeline session inside one host.
type Context struct {
	session   *session.Session
	store     store.Store
	registry  *plugin.Registry
	bus       *events.Bus
	configs   ConfigResolver
	workfiles *workfile.Resolver
	launcher  Launcher
	log       *logger.Logger
	metrics   *metrics.Collector

	mu        sync.RWMutex
	host      api.Host
	config    api.Config
	root      api.Root
	installed bool
}

// New builds a Context. Missing collaborators get defaults: an empty
// unmirrored session, a fresh registry and bus, and process launching.
func New(opts Options) *Context {
	c := &Context{
		session:   opts.Session,
		store:     opts.Store,
		registry:  opts.Registry,
		bus:       opts.Bus,
		configs:   opts.Configs,
		workfiles: opts.Workfiles,
		launcher:  opts.Launcher,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
	if c.session == nil {
		c.session = session.New(nil)
	}
	if c.registry == nil {
		c.registry = plugin.NewRegistry(&plugin.Config{Metrics: opts.Metrics}, opts.Logger)
	}
	if c.bus == nil {
		c.bus = events.NewBus(opts.Logger, opts.Metrics)
	}
	if c.workfiles == nil {
		c.workfiles = workfile.NewResolver(nil, nil, opts.Logger)
	}
	if c.launcher == nil {
		c.launcher = ExecLauncher{}
	}

	for _, resolver := range builtinThumbnailResolvers(c) {
		if err := c.registry.RegisterPlugin(api.KindThumbnailResolver, resolver); err != nil {
			c.log.WarnErr(err, "failed to register built-in thumbnail resolver")
		}
	}
	return c
}

func (c *Context) Session() *session.Session     { return c.session }
func (c *Context) Store() store.Store            { return c.store }
func (c *Context) Registry() *plugin.Registry    { return c.registry }
func (c *Context) Events() *events.Bus           { return c.bus }
func (c *Context) Workfiles() *workfile.Resolver { return c.workfiles }

// RegisterHost validates host and makes it the active host.
func (c *Context) RegisterHost(host api.Host) error {
	if host == nil {
		return avalonerrors.NewPluginError("", errors.New("nil host"))
	}
	if err := api.CheckContract(host.Name(), host, api.HostContract); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
	return nil
}

// RegisteredHost returns the active host, or nil.
func (c *Context) RegisteredHost() api.Host {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.host
}

// DeregisterHost forgets the active host.
func (c *Context) DeregisterHost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = nil
}

// RegisterConfig validates cfg and makes it the active config.
func (c *Context) RegisterConfig(name string, cfg api.Config) error {
	if cfg == nil {
		return avalonerrors.NewPluginError(name, errors.New("nil config"))
	}
	if err := api.CheckContract(name, cfg, api.ConfigContract); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	return nil
}

// RegisteredConfig returns the active config. When none is registered it
// is looked up with FindConfig and cached.
func (c *Context) RegisteredConfig(ctx context.Context) (api.Config, error) {
	c.mu.RLock()
	cfg := c.config
	c.mu.RUnlock()
	if cfg != nil {
		return cfg, nil
	}

	name, cfg, err := c.FindConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.RegisterConfig(name, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DeregisterConfig drops the cached config.
func (c *Context) DeregisterConfig() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = nil
}

// FindConfig resolves the config named by AVALON_CONFIG.
func (c *Context) FindConfig(ctx context.Context) (string, api.Config, error) {
	c.log.Info("Finding configuration for project..")

	name := c.session.Value(session.Config)
	if name == "" {
		return "", nil, avalonerrors.NewEnvironmentError("no configuration found in the project nor environment", session.Config)
	}
	if c.configs == nil {
		return "", nil, avalonerrors.NewEnvironmentError("no config resolver available for "+name, session.Config)
	}

	c.log.With("config", name).Info("Found config, loading..")
	cfg, err := c.configs.Resolve(ctx, name)
	if err != nil {
		return "", nil, err
	}
	if err := api.CheckContract(name, cfg, api.ConfigContract); err != nil {
		return "", nil, err
	}
	return name, cfg, nil
}

// Install activates host for the current session. AVALON_PROJECT and
// AVALON_ASSET must be set.
func (c *Context) Install(ctx context.Context, host api.Host) error {
	if c.IsInstalled() {
		return ErrAlreadyInstalled
	}
	if err := c.session.Require(session.Project, session.Asset); err != nil {
		return err
	}

	c.log.With("project", c.session.Value(session.Project)).Info("Activating project..")

	name, cfg, err := c.FindConfig(ctx)
	if err != nil {
		return err
	}

	if installer, ok := host.(api.Installer); ok {
		if err := installer.Install(ctx); err != nil {
			return err
		}
	}
	if perHost, ok := cfg.(api.HostConfigs); ok {
		if sub, found := perHost.ForHost(host.Name()); found {
			if err := sub.Install(ctx); err != nil {
				return err
			}
		}
	}

	if err := c.RegisterHost(host); err != nil {
		return err
	}
	if err := c.RegisterConfig(name, cfg); err != nil {
		return err
	}
	if err := cfg.Install(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.installed = true
	c.mu.Unlock()

	c.log.Info("Successfully installed Avalon!")
	return nil
}

// Uninstall undoes Install.
func (c *Context) Uninstall(ctx context.Context) error {
	c.mu.RLock()
	host, cfg := c.host, c.config
	c.mu.RUnlock()
	if host == nil {
		return ErrNoHost
	}

	var errs []error
	if cfg != nil {
		if perHost, ok := cfg.(api.HostConfigs); ok {
			if sub, found := perHost.ForHost(host.Name()); found {
				errs = append(errs, sub.Uninstall(ctx))
			}
		}
	}
	if uninstaller, ok := host.(api.Uninstaller); ok {
		errs = append(errs, uninstaller.Uninstall(ctx))
	}
	if cfg != nil {
		errs = append(errs, cfg.Uninstall(ctx))
	}

	c.DeregisterHost()
	c.DeregisterConfig()

	c.mu.Lock()
	c.installed = false
	c.mu.Unlock()

	c.log.Info("Successfully uninstalled Avalon!")
	return errors.Join(errs...)
}

// IsInstalled reports whether Install succeeded and Uninstall has not run.
func (c *Context) IsInstalled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.installed
}

// RegisterRoot sets the storage root used in templates.
func (c *Context) RegisterRoot(root api.Root) {
	c.log.With("root", root.Value()).Info("Registering root")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = root
}

// RegisteredRoot returns the storage root.
func (c *Context) RegisteredRoot() api.Root {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// RegisterPlugin forwards to the registry.
func (c *Context) RegisterPlugin(kind api.Kind, p api.Plugin) error {
	return c.registry.RegisterPlugin(kind, p)
}

// DeregisterPlugin forwards to the registry.
func (c *Context) DeregisterPlugin(kind api.Kind, p api.Plugin) {
	c.registry.DeregisterPlugin(kind, p)
}

// RegisterPluginPath forwards to the registry.
func (c *Context) RegisterPluginPath(kind api.Kind, path string) {
	c.registry.RegisterPluginPath(kind, path)
}

// DeregisterPluginPath forwards to the registry.
func (c *Context) DeregisterPluginPath(kind api.Kind, path string) {
	c.registry.DeregisterPluginPath(kind, path)
}

// RegisteredPluginPaths forwards to the registry.
func (c *Context) RegisteredPluginPaths() map[api.Kind][]string {
	return c.registry.RegisteredPaths()
}

// Discover forwards to the registry.
func (c *Context) Discover(ctx context.Context, kind api.Kind) ([]api.Plugin, error) {
	return c.registry.Discover(ctx, kind)
}

// Ls lists the containers of the registered host.
func (c *Context) Ls(ctx context.Context) ([]api.Container, error) {
	host := c.RegisteredHost()
	if host == nil {
		return nil, ErrNoHost
	}
	return host.Ls(ctx)
}
