package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/host/filehost"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

const sceneCreatorName = "SceneCreator"

type createOptions struct {
	asset        string
	family       string
	useSelection bool
	data         map[string]string
}

func newCreateCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &createOptions{}

	cmd := &cobra.Command{
		Use:   "create <subset>",
		Short: "Create a publish instance for a subset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.asset, "asset", "", "Asset the instance belongs to (default: AVALON_ASSET)")
	cmd.Flags().StringVar(&opts.family, "family", "", "Family of the instance")
	cmd.Flags().BoolVar(&opts.useSelection, "use-selection", false, "Add the current selection as instance members")
	cmd.Flags().StringToStringVar(&opts.data, "data", nil, "Extra instance data as key=value pairs")
	_ = cmd.MarkFlagRequired("family")

	return cmd
}

func runCreate(cmd *cobra.Command, rootFlags *rootFlags, subset string, opts *createOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	asset := opts.asset
	if asset == "" {
		asset = app.pipeline.Session().Value(session.Asset)
	}
	if asset == "" {
		return newCommandError("create", "determining the asset", errors.New("no asset given"), "Pass --asset or set AVALON_ASSET.")
	}

	if app.scene != nil {
		if err := app.pipeline.RegisterPlugin(api.KindCreator, filehost.Creator(app.scene, sceneCreatorName, opts.family)); err != nil {
			return newCommandError("create", "registering the scene creator", err, "This is a bug, please report it.")
		}
	}

	data := make(map[string]any, len(opts.data))
	for key, value := range opts.data {
		data[key] = value
	}
	options := map[string]any{"useSelection": opts.useSelection}

	instance, err := app.pipeline.Create(cmd.Context(), subset, asset, opts.family, options, data)
	if err != nil {
		return newCommandError("create", fmt.Sprintf("creating %s for %s", subset, asset), err, "Run 'avalon discover creator' to list creators for this family.")
	}

	out := cmd.OutOrStdout()
	if fields, ok := instance.(map[string]any); ok {
		fmt.Fprintf(out, "Created %s (%v) for %s\n", subset, fields["family"], asset)
		return nil
	}
	fmt.Fprintf(out, "Created %s for %s\n", subset, asset)
	return nil
}
