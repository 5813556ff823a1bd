package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/pipeline"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/workfile"
)

type taskOptions struct {
	asset      string
	task       string
	app        string
	jsonOutput bool
}

func newTaskCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &taskOptions{}

	cmd := &cobra.Command{
		Use:   "task",
		Short: "Show the session or change the current asset, task or application",
		Long: "Without flags, task prints the current session. With --asset, --task or --app it\n" +
			"prints the AVALON_* variables that change, as KEY=VALUE lines suitable for eval.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTask(cmd, rootFlags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.asset, "asset", "", "Asset to switch to")
	cmd.Flags().StringVar(&opts.task, "task", "", "Task to switch to")
	cmd.Flags().StringVar(&opts.app, "app", "", "Application to switch to")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runTask(cmd *cobra.Command, rootFlags *rootFlags, opts *taskOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	out := cmd.OutOrStdout()
	sess := app.pipeline.Session()

	req := pipeline.ChangeRequest{Asset: opts.asset, Task: opts.task, App: opts.app}
	if req.Empty() {
		if opts.jsonOutput {
			return writeJSON(out, sess.Snapshot())
		}
		snapshot := sess.Snapshot()
		for _, key := range sess.Keys() {
			fmt.Fprintf(out, "%s=%s\n", key, snapshot[key])
		}
		return nil
	}

	changes, err := app.pipeline.UpdateCurrentTask(cmd.Context(), req)
	if err != nil {
		return newCommandError("task", "changing the current task", err, "Check that the asset exists in the project.")
	}
	if opts.jsonOutput {
		return writeJSON(out, changes.Map())
	}
	printChanges(out, changes)
	return nil
}

func printChanges(out io.Writer, changes session.Changes) {
	for _, change := range changes {
		if change.Unset {
			fmt.Fprintf(out, "unset %s\n", change.Key)
			continue
		}
		fmt.Fprintf(out, "%s=%s\n", change.Key, change.Value)
	}
}

type workfileOptions struct {
	app string
}

func newWorkfileCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &workfileOptions{}

	cmd := &cobra.Command{
		Use:   "workfile",
		Short: "Show the last work file of the current task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkfile(cmd, rootFlags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.app, "app", "", "Application whose work files to look for (default: AVALON_APP)")

	return cmd
}

func runWorkfile(cmd *cobra.Command, rootFlags *rootFlags, opts *workfileOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	sess := app.pipeline.Session()
	hostName := opts.app
	if hostName == "" {
		hostName = sess.Value(session.App)
	}
	if err := sess.Require(session.Project, session.Task, session.Workdir); err != nil {
		return newCommandError("workfile", "reading the session", err, "Run 'avalon task' to set the current task first.")
	}

	extensions := workfile.ExtensionsFor(hostName)
	if len(extensions) == 0 && app.scene != nil {
		extensions = app.scene.FileExtensions()
	}

	last, err := app.pipeline.LastWorkfile(ctx, sess, extensions)
	if err != nil {
		return newCommandError("workfile", "finding the last work file", err, "Check the project's workfile template.")
	}
	open := app.pipeline.Workfiles().ShouldStartLast(ctx, sess.Value(session.Project), hostName, sess.Value(session.Task))

	out := cmd.OutOrStdout()
	if last == "" {
		fmt.Fprintln(out, "last: -")
	} else {
		fmt.Fprintf(out, "last: %s\n", last)
	}
	fmt.Fprintf(out, "open on startup: %t\n", open)
	return nil
}
