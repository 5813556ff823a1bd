package main

import (
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/session"
)

type rootFlags struct {
	settingsPath string
	verbose      bool
	host         string

	// environ backs the session. Tests swap in a session.MapEnviron.
	environ session.Environ
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithEnviron(session.OSEnviron{})
}

func newRootCmdWithEnviron(env session.Environ) *cobra.Command {
	flags := &rootFlags{environ: env}

	cmd := &cobra.Command{
		Use:           "avalon",
		Short:         "Avalon loads, creates and tracks published assets inside a host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.settingsPath, "settings", "", "Path to avalon.yaml (default $HOME/.avalon/avalon.yaml)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.host, "host", hostFile, "Host to install into: file, debug or default")

	cmd.AddCommand(newDiscoverCmd(flags))
	cmd.AddCommand(newLsCmd(flags))
	cmd.AddCommand(newLoadCmd(flags))
	cmd.AddCommand(newUpdateCmd(flags))
	cmd.AddCommand(newRemoveCmd(flags))
	cmd.AddCommand(newSwitchCmd(flags))
	cmd.AddCommand(newCreateCmd(flags))
	cmd.AddCommand(newTaskCmd(flags))
	cmd.AddCommand(newWorkfileCmd(flags))
	cmd.AddCommand(newPathCmd(flags))
	cmd.AddCommand(newImportCmd(flags))
	cmd.AddCommand(newThumbnailCmd(flags))
	cmd.AddCommand(newActionCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
