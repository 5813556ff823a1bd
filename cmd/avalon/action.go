package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

type actionOptions struct {
	noInitialize bool
	noLaunch     bool
	jsonOutput   bool
}

type actionRow struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	Order int    `json:"order"`
}

func newActionCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &actionOptions{}

	cmd := &cobra.Command{
		Use:   "action [name]",
		Short: "List the actions compatible with the session, or run one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runActionList(cmd, rootFlags, opts)
			}
			return runAction(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noInitialize, "no-initialize", false, "Skip creating the work directory")
	cmd.Flags().BoolVar(&opts.noLaunch, "no-launch", false, "Prepare the application without starting it")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output actions as JSON")

	return cmd
}

func runActionList(cmd *cobra.Command, rootFlags *rootFlags, opts *actionOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	actions, err := app.pipeline.Actions(cmd.Context())
	if err != nil {
		return newCommandError("action", "discovering actions", err, "Check the action plug-in paths in avalon.yaml.")
	}

	rows := make([]actionRow, 0, len(actions))
	for _, action := range actions {
		meta := action.PluginMetadata()
		rows = append(rows, actionRow{Name: meta.Name, Label: meta.DisplayLabel(), Order: meta.Order})
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		return writeJSON(out, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "No compatible actions.")
		return nil
	}

	printTitle(out, fmt.Sprintf("Actions (%d)", len(rows)))
	tw := newTable(out)
	fmt.Fprintln(tw, "NAME\tLABEL\tORDER")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", row.Name, row.Label, row.Order)
	}
	return tw.Flush()
}

func runAction(cmd *cobra.Command, rootFlags *rootFlags, name string, opts *actionOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	options := map[string]any{
		"initialize": !opts.noInitialize,
		"launch":     !opts.noLaunch,
	}
	result, err := app.pipeline.RunAction(cmd.Context(), name, options)
	if err != nil {
		return newCommandError("action", fmt.Sprintf("running %s", name), err, "Run 'avalon action' to list compatible actions.")
	}

	out := cmd.OutOrStdout()
	if process, ok := result.(*exec.Cmd); ok && process.Process != nil {
		fmt.Fprintf(out, "Started %s (pid %d)\n", name, process.Process.Pid)
		return nil
	}
	fmt.Fprintf(out, "Ran %s\n", name)
	return nil
}
