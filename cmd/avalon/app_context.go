package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/config"
	"github.com/alexisbeaulieu97/avalon/internal/host"
	"github.com/alexisbeaulieu97/avalon/internal/host/filehost"
	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/internal/metrics"
	"github.com/alexisbeaulieu97/avalon/internal/pipeline"
	"github.com/alexisbeaulieu97/avalon/internal/plugin"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/store"
	"github.com/alexisbeaulieu97/avalon/internal/workfile"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

const (
	hostFile    = "file"
	hostDebug   = "debug"
	hostDefault = "default"
)

// appContext is everything a command needs, built from the settings file
// and the AVALON_* environment.
type appContext struct {
	settings *config.Settings
	log      *logger.Logger
	metrics  *metrics.Collector
	store    *store.SQLite
	registry *plugin.Registry
	pipeline *pipeline.Context
	host     api.Host

	// hostInstalled records an Install run on the host outside a full
	// pipeline install.
	hostInstalled bool

	// scene is set when the file host is active.
	scene *filehost.Host
}

func newAppContext(cmd *cobra.Command, flags *rootFlags) (*appContext, error) {
	settings, err := resolveSettings(cmd, flags)
	if err != nil {
		return nil, newCommandError(cmd.Name(), "loading settings", err, "Check avalon.yaml or pass --settings.")
	}

	log, err := logger.New(logger.Options{
		Level:         settings.Log.Level,
		HumanReadable: settings.Log.Human || isTerminal(cmd.ErrOrStderr()),
		Writer:        cmd.ErrOrStderr(),
		Component:     "avalon",
	})
	if err != nil {
		return nil, newCommandError(cmd.Name(), "creating logger", err, "Use one of trace, debug, info, warn or error as log level.")
	}

	collector := metrics.New()
	db, err := store.OpenSQLite(settings.Database)
	if err != nil {
		return nil, newCommandError(cmd.Name(), "opening the asset database", err, "Check the database path in avalon.yaml or AVALON_DB.")
	}

	registry := plugin.NewRegistry(&plugin.Config{CacheDiscovery: settings.CacheDiscovery, Metrics: collector}, log)

	var configs pipeline.ConfigResolver
	if settings.Configs != "" {
		configs = pipeline.ChainConfigs{pipeline.ScriptConfigs{Dir: settings.Configs}}
	}

	var presets workfile.PresetSource
	if settings.Presets != "" {
		presets = workfile.FilePresets{Path: settings.Presets}
	}

	env := flags.environ
	if env == nil {
		env = session.OSEnviron{}
	}

	pc := pipeline.New(pipeline.Options{
		Session:   session.FromEnviron(env),
		Store:     db,
		Registry:  registry,
		Configs:   configs,
		Workfiles: workfile.NewResolver(presets, env, log),
		Logger:    log,
		Metrics:   collector,
	})

	app := &appContext{
		settings: settings,
		log:      log,
		metrics:  collector,
		store:    db,
		registry: registry,
		pipeline: pc,
	}

	if root := settings.Root.API(); !root.IsZero() {
		pc.RegisterRoot(root)
	}
	for _, kind := range api.Kinds() {
		for _, path := range settings.PluginPaths(kind) {
			pc.RegisterPluginPath(kind, path)
		}
	}

	if settings.Applications != "" {
		apps, err := config.LoadApplications(settings.Applications)
		if err != nil {
			app.Close(cmd.Context())
			return nil, newCommandError(cmd.Name(), "loading application definitions", err, "Fix the TOML files in the applications directory.")
		}
		if err := pc.RegisterApplications(apps); err != nil {
			app.Close(cmd.Context())
			return nil, newCommandError(cmd.Name(), "registering applications", err, "Application names must be unique.")
		}
	}

	if err := app.activate(cmd.Context(), flags.host); err != nil {
		app.Close(cmd.Context())
		return nil, newCommandError(cmd.Name(), fmt.Sprintf("installing the %s host", flags.host), err, "Set AVALON_PROJECT and AVALON_ASSET, or unset AVALON_CONFIG.")
	}
	return app, nil
}

// activate registers the host. With AVALON_CONFIG set the full install
// runs; otherwise the host is registered on its own.
func (a *appContext) activate(ctx context.Context, name string) error {
	switch name {
	case hostFile, "":
		a.scene = filehost.New(a.settings.Scene, filehost.WithLogger(a.log))
		a.host = a.scene
		if err := a.pipeline.RegisterPlugin(api.KindLoader, filehost.Loader(a.scene)); err != nil {
			return err
		}
	case hostDebug:
		a.host = host.Debug()
	case hostDefault:
		a.host = host.Default()
	default:
		return fmt.Errorf("unknown host %q", name)
	}

	return a.install(ctx)
}

func (a *appContext) install(ctx context.Context) error {
	if a.pipeline.Session().Value(session.Config) != "" {
		return a.pipeline.Install(ctx, a.host)
	}
	if err := a.pipeline.RegisterHost(a.host); err != nil {
		return err
	}
	installer, ok := a.host.(api.Installer)
	if !ok {
		return nil
	}
	if err := installer.Install(ctx); err != nil {
		return err
	}
	a.hostInstalled = true
	return nil
}

// Close uninstalls the host and closes the database.
func (a *appContext) Close(ctx context.Context) {
	if a == nil {
		return
	}
	var errs []error
	switch {
	case a.pipeline.IsInstalled():
		errs = append(errs, a.pipeline.Uninstall(ctx))
	case a.hostInstalled:
		if uninstaller, ok := a.host.(api.Uninstaller); ok {
			errs = append(errs, uninstaller.Uninstall(ctx))
		}
		a.hostInstalled = false
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.WarnErr(err, "failed to shut down cleanly")
	}
}
