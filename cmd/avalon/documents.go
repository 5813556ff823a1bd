package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/avalon/internal/store"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

var errPathUnresolved = errors.New("no template or stored path resolves to a location")

func newPathCmd(rootFlags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path <representation-id>",
		Short: "Print the file path of a representation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(cmd, rootFlags, args[0])
		},
	}
}

func runPath(cmd *cobra.Command, rootFlags *rootFlags, id string) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	rep, err := app.store.FindOne(ctx, store.Filter{ID: id, Type: api.TypeRepresentation})
	if err != nil {
		return newCommandError("path", fmt.Sprintf("looking up representation %s", id), err, "Import the project documents with 'avalon import'.")
	}
	path, ok := app.pipeline.RepresentationPath(ctx, rep, api.Root{})
	if !ok {
		return newCommandError("path", fmt.Sprintf("resolving representation %s", id), errPathUnresolved, "Set root in avalon.yaml and check the project's publish template.")
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func newImportCmd(rootFlags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <documents.json>",
		Short: "Import project documents into the asset database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, rootFlags, args[0])
		},
	}
}

func runImport(cmd *cobra.Command, rootFlags *rootFlags, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return newCommandError("import", fmt.Sprintf("reading %s", path), err, "Check that the file exists.")
	}
	var docs []api.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return newCommandError("import", fmt.Sprintf("parsing %s", path), err, "The file must hold a JSON array of documents.")
	}

	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	n, err := store.Import(cmd.Context(), app.store, docs)
	if err != nil {
		return newCommandError("import", "storing documents", err, "Every document needs an _id and a type.")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d documents into %s\n", n, app.store.Path())
	return nil
}

type thumbnailOptions struct {
	thumbnailType string
	output        string
}

func newThumbnailCmd(rootFlags *rootFlags) *cobra.Command {
	opts := &thumbnailOptions{}

	cmd := &cobra.Command{
		Use:   "thumbnail <thumbnail-id>",
		Short: "Write the image of a thumbnail document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runThumbnail(cmd, rootFlags, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.thumbnailType, "type", "", "Thumbnail type passed to resolvers")
	cmd.Flags().StringVarP(&opts.output, "out", "o", "", "File to write (default: stdout)")

	return cmd
}

func runThumbnail(cmd *cobra.Command, rootFlags *rootFlags, id string, opts *thumbnailOptions) error {
	app, err := newAppContext(cmd, rootFlags)
	if err != nil {
		return err
	}
	defer app.Close(cmd.Context())

	ctx := cmd.Context()
	thumb, err := app.store.FindOne(ctx, store.Filter{ID: id, Type: api.TypeThumbnail})
	if err != nil {
		return newCommandError("thumbnail", fmt.Sprintf("looking up thumbnail %s", id), err, "Check the thumbnail id.")
	}
	image, err := app.pipeline.ThumbnailBinary(ctx, thumb, opts.thumbnailType)
	if err != nil {
		return newCommandError("thumbnail", fmt.Sprintf("resolving thumbnail %s", id), err, "Check AVALON_THUMBNAIL_ROOT and the thumbnail resolvers.")
	}
	if image == nil {
		return newCommandError("thumbnail", fmt.Sprintf("resolving thumbnail %s", id), errors.New("no resolver returned an image"), "Check AVALON_THUMBNAIL_ROOT and the thumbnail resolvers.")
	}

	if opts.output == "" {
		_, err = cmd.OutOrStdout().Write(image)
		return err
	}
	if err := os.WriteFile(opts.output, image, 0o644); err != nil {
		return newCommandError("thumbnail", fmt.Sprintf("writing %s", opts.output), err, "Check that the directory exists and is writable.")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(image), opts.output)
	return nil
}
