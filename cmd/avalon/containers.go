package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/pipeline"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

var errContainerNotFound = errors.New("container not found in scene")

type lsOptions struct {
	jsonOutput bool
}

func newLsCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &lsOptions{}

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List the containers loaded in the host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLs(cmd, rootFlags, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output containers as JSON")

	return cmd
}

func runLs(cmd *cobra.Command, rootFlags *rootFlags, opts *lsOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	containers, err := app.pipeline.Ls(cmd.Context())
	if err != nil {
		return newCommandError("ls", "listing containers", err, "Check that the scene directory is readable.")
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		if containers == nil {
			containers = []api.Container{}
		}
		return writeJSON(out, containers)
	}
	if len(containers) == 0 {
		fmt.Fprintln(out, "No containers loaded.")
		return nil
	}

	printTitle(out, fmt.Sprintf("Containers (%d)", len(containers)))
	tw := newTable(out)
	fmt.Fprintln(tw, "OBJECT\tNAME\tNAMESPACE\tLOADER\tREPRESENTATION")
	for _, c := range containers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ObjectName, c.Name, c.Namespace, c.Loader, c.Representation)
	}
	return tw.Flush()
}

type loadOptions struct {
	loader    string
	name      string
	namespace string
}

func newLoadCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load <representation-id>",
		Short: "Load a representation into the host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.loader, "loader", "", "Loader to use (default: first compatible loader)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Container name (default: subset name)")
	cmd.Flags().StringVar(&opts.namespace, "namespace", "", "Container namespace")

	return cmd
}

func runLoad(cmd *cobra.Command, rootFlags *rootFlags, representation string, opts *loadOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	loader, err := chooseLoader(ctx, app.pipeline, representation, opts.loader)
	if err != nil {
		return newCommandError("load", fmt.Sprintf("choosing a loader for %s", representation), err, "Run 'avalon discover loader' to list available loaders.")
	}

	result, err := app.pipeline.Load(ctx, loader, representation, pipeline.LoadOptions{Name: opts.name, Namespace: opts.namespace})
	if err != nil {
		return newCommandError("load", fmt.Sprintf("loading %s", representation), err, "Check that the representation exists and its parents are intact.")
	}

	out := cmd.OutOrStdout()
	if c, ok := result.(api.Container); ok {
		fmt.Fprintf(out, "Loaded %s as %s (namespace %s) with %s\n", representation, c.ObjectName, c.Namespace, c.Loader)
		return nil
	}
	fmt.Fprintf(out, "Loaded %s with %s\n", representation, loader.PluginMetadata().Name)
	return nil
}

func chooseLoader(ctx context.Context, pc *pipeline.Context, representation, name string) (api.Loader, error) {
	if name != "" {
		return pc.FindLoader(ctx, "load", name)
	}
	loaders, err := pc.Discover(ctx, api.KindLoader)
	if err != nil {
		return nil, err
	}
	compatible, err := pc.LoadersFromRepresentation(ctx, loaders, representation)
	if err != nil {
		return nil, err
	}
	if len(compatible) == 0 {
		return nil, fmt.Errorf("no compatible loader for representation %s", representation)
	}
	return compatible[0], nil
}

type updateOptions struct {
	version string
}

func newUpdateCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "update <container>",
		Short: "Point a container at another version of its subset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.version, "version", "latest", "Version to update to: latest, master or a number")

	return cmd
}

func runUpdate(cmd *cobra.Command, rootFlags *rootFlags, ref string, opts *updateOptions) error {
	selector, err := api.ParseVersionSelector(opts.version)
	if err != nil {
		return newCommandError("update", "parsing --version", err, "Use latest, master or a version number.")
	}

	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	container, err := findContainer(ctx, app.pipeline, ref)
	if err != nil {
		return newCommandError("update", fmt.Sprintf("looking up container %q", ref), err, "Run 'avalon ls' to list loaded containers.")
	}
	if err := app.pipeline.Update(ctx, container, selector); err != nil {
		return newCommandError("update", fmt.Sprintf("updating %s to %s", ref, selector), err, "Check that the requested version has a matching representation.")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s to %s\n", ref, selector)
	return nil
}

func newRemoveCmd(rootFlags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <container>",
		Short: "Remove a container from the host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd, rootFlags, args[0])
		},
	}
}

func runRemove(cmd *cobra.Command, rootFlags *rootFlags, ref string) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	container, err := findContainer(ctx, app.pipeline, ref)
	if err != nil {
		return newCommandError("remove", fmt.Sprintf("looking up container %q", ref), err, "Run 'avalon ls' to list loaded containers.")
	}
	removed, err := app.pipeline.Remove(ctx, container)
	if err != nil {
		return newCommandError("remove", fmt.Sprintf("removing %s", ref), err, "Check that the container's loader is still discoverable.")
	}
	if !removed {
		fmt.Fprintf(cmd.OutOrStdout(), "Nothing removed for %s\n", ref)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", ref)
	return nil
}

func newSwitchCmd(rootFlags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <container> <representation-id>",
		Short: "Switch a container to a representation of another subset or asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(cmd, rootFlags, args[0], args[1])
		},
	}
}

func runSwitch(cmd *cobra.Command, rootFlags *rootFlags, ref, representation string) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	container, err := findContainer(ctx, app.pipeline, ref)
	if err != nil {
		return newCommandError("switch", fmt.Sprintf("looking up container %q", ref), err, "Run 'avalon ls' to list loaded containers.")
	}
	if err := app.pipeline.Switch(ctx, container, representation); err != nil {
		return newCommandError("switch", fmt.Sprintf("switching %s to %s", ref, representation), err, "The container's loader must support switching and accept the new representation.")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Switched %s to %s\n", ref, representation)
	return nil
}

// findContainer matches ref against object name, then name, then namespace.
func findContainer(ctx context.Context, pc *pipeline.Context, ref string) (api.Container, error) {
	containers, err := pc.Ls(ctx)
	if err != nil {
		return api.Container{}, err
	}
	ref = strings.TrimSpace(ref)
	for _, match := range []func(api.Container) bool{
		func(c api.Container) bool { return c.ObjectName == ref },
		func(c api.Container) bool { return c.Name == ref },
		func(c api.Container) bool { return c.Namespace == ref },
	} {
		for _, c := range containers {
			if match(c) {
				return c, nil
			}
		}
	}
	return api.Container{}, errContainerNotFound
}
