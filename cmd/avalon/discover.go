package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/pluginrepo"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

const watchInterval = 2 * time.Second

type discoverOptions struct {
	jsonOutput bool
	sync       bool
	watch      bool
}

type discoveredPlugin struct {
	Kind            string   `json:"kind"`
	Name            string   `json:"name"`
	Label           string   `json:"label,omitempty"`
	Order           int      `json:"order"`
	Families        []string `json:"families,omitempty"`
	Representations []string `json:"representations,omitempty"`
	Family          string   `json:"family,omitempty"`
}

func newDiscoverCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &discoverOptions{}

	cmd := &cobra.Command{
		Use:   "discover [kind]",
		Short: "List the plug-ins found on the registered plug-in paths",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd, rootFlags, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output plug-ins as JSON")
	cmd.Flags().BoolVar(&opts.sync, "sync", false, "Clone or update plug-in repositories first")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and print plug-ins again when plug-in paths change")

	return cmd
}

func runDiscover(cmd *cobra.Command, rootFlags *rootFlags, args []string, opts *discoverOptions) error {
	kinds := api.Kinds()
	if len(args) == 1 {
		kind, err := api.ParseKind(args[0])
		if err != nil {
			return newCommandError("discover", "parsing plug-in kind", err, "Use one of: "+kindNames()+".")
		}
		kinds = []api.Kind{kind}
	}

	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	if opts.sync {
		results, err := pluginrepo.SyncAll(ctx, app.settings.Repositories, app.pipeline, app.log)
		for _, result := range results {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s (%s)\n", result.Status, result.URL, shortHash(result.Head))
		}
		if err != nil {
			return newCommandError("discover", "synchronising plug-in repositories", err, "Check the repositories section of avalon.yaml and your network access.")
		}
	}

	plugins, err := discoverAll(ctx, app, kinds, cmd.ErrOrStderr())
	if err != nil {
		return newCommandError("discover", "discovering plug-ins", err, "Check the plug-in paths in avalon.yaml.")
	}
	if err := printPlugins(cmd.OutOrStdout(), plugins, opts.jsonOutput); err != nil {
		return err
	}

	if !opts.watch && !app.settings.Watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stopWatch, err := app.registry.Watch(ctx)
	if err != nil {
		return newCommandError("discover", "watching plug-in paths", err, "Make sure the plug-in paths exist.")
	}
	defer stopWatch()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := discoverAll(ctx, app, kinds, cmd.ErrOrStderr())
			if err != nil {
				app.log.WarnErr(err, "rediscovery failed")
				continue
			}
			if slices.EqualFunc(current, plugins, samePluginRow) {
				continue
			}
			plugins = current
			if err := printPlugins(cmd.OutOrStdout(), plugins, opts.jsonOutput); err != nil {
				return err
			}
		}
	}
}

func discoverAll(ctx context.Context, app *appContext, kinds []api.Kind, diagnostics io.Writer) ([]discoveredPlugin, error) {
	var rows []discoveredPlugin
	for _, kind := range kinds {
		plugins, err := app.pipeline.Discover(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, p := range plugins {
			meta := p.PluginMetadata()
			rows = append(rows, discoveredPlugin{
				Kind:            kind.String(),
				Name:            meta.Name,
				Label:           meta.Label,
				Order:           meta.Order,
				Families:        meta.Families,
				Representations: meta.Representations,
				Family:          meta.Family,
			})
		}
		for _, diagnostic := range app.registry.Diagnostics(kind) {
			printWarning(diagnostics, diagnostic.String())
		}
	}
	return rows, nil
}

func printPlugins(out io.Writer, plugins []discoveredPlugin, jsonOutput bool) error {
	if jsonOutput {
		if plugins == nil {
			plugins = []discoveredPlugin{}
		}
		return writeJSON(out, plugins)
	}
	if len(plugins) == 0 {
		fmt.Fprintln(out, "No plug-ins discovered.")
		return nil
	}

	printTitle(out, fmt.Sprintf("Plug-ins (%d)", len(plugins)))
	tw := newTable(out)
	fmt.Fprintln(tw, "KIND\tNAME\tLABEL\tMATCHES")
	for _, p := range plugins {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Kind, p.Name, p.Label, matches(p))
	}
	return tw.Flush()
}

func matches(p discoveredPlugin) string {
	switch {
	case p.Family != "":
		return p.Family
	case len(p.Families) > 0 || len(p.Representations) > 0:
		return strings.Join(p.Families, ",") + " / " + strings.Join(p.Representations, ",")
	}
	return "-"
}

func samePluginRow(a, b discoveredPlugin) bool {
	return a.Kind == b.Kind && a.Name == b.Name && a.Label == b.Label
}

func kindNames() string {
	names := make([]string, 0, len(api.Kinds()))
	for _, kind := range api.Kinds() {
		names = append(names, kind.String())
	}
	return strings.Join(names, ", ")
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
