package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/template"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// Built-in thumbnail resolver names.
const (
	TemplateThumbnailName = "TemplateThumbnail"
	BinaryThumbnailName   = "BinaryThumbnail"
)

func builtinThumbnailResolvers(c *Context) []api.Plugin {
	return []api.Plugin{
		&api.ThumbnailResolverFuncs{
			Meta: api.Metadata{
				Name:           TemplateThumbnailName,
				Priority:       90,
				ThumbnailTypes: []string{"*"},
			},
			ResolveFunc: c.templateThumbnail,
		},
		&api.ThumbnailResolverFuncs{
			Meta: api.Metadata{
				Name:           BinaryThumbnailName,
				Priority:       100,
				ThumbnailTypes: []string{"*"},
			},
			ResolveFunc: binaryThumbnail,
		},
	}
}

// templateThumbnail reads the file that data.template points to under
// AVALON_THUMBNAIL_ROOT.
func (c *Context) templateThumbnail(ctx context.Context, thumb api.Document, thumbType string) ([]byte, error) {
	root := c.session.Value(session.ThumbnailRoot)
	if root == "" {
		return nil, nil
	}
	tmpl := thumb.StringAt("data", "template")
	if tmpl == "" {
		c.log.With("thumbnail", thumb.ID()).Debug("thumbnail has no template")
		return nil, nil
	}

	data := map[string]any(api.Document(thumb.MapAt("data", "template_data")).Clone())
	if data == nil {
		data = map[string]any{}
	}
	data["_id"] = thumb.ID()
	data["thumbnail_type"] = thumbType
	data["thumbnail_root"] = root
	if project, err := c.Project(ctx, nil); err == nil {
		data["project"] = map[string]any{
			"name": project.Name(),
			"code": project.StringAt("data", "code"),
		}
	}

	path, err := template.Format(tmpl, data)
	if err != nil {
		if template.IsMissingKey(err) {
			c.log.With("template", tmpl).WarnErr(err, "missing template data keys for thumbnail")
			return nil, nil
		}
		return nil, err
	}
	path = filepath.Clean(path)
	if !exists(path) {
		c.log.With("path", path).Warn("thumbnail file does not exist")
		return nil, nil
	}
	return os.ReadFile(path)
}

// binaryThumbnail returns data.binary_data. Stored as JSON, bytes come back
// as base64 text.
func binaryThumbnail(_ context.Context, thumb api.Document, _ string) ([]byte, error) {
	value, ok := thumb.Lookup("data", "binary_data")
	if !ok || value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
			return decoded, nil
		}
		return []byte(v), nil
	}
	return nil, fmt.Errorf("binary_data has unsupported type %T", value)
}

// ThumbnailBinary returns the image bytes of thumb. Resolvers are tried by
// ascending priority; failing resolvers are logged and skipped. A nil result
// without error means no resolver could produce the thumbnail.
func (c *Context) ThumbnailBinary(ctx context.Context, thumb api.Document, thumbType string) ([]byte, error) {
	if thumb == nil {
		return nil, nil
	}
	plugins, err := c.registry.Discover(ctx, api.KindThumbnailResolver)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(plugins, func(a, b api.Plugin) int {
		return a.PluginMetadata().Priority - b.PluginMetadata().Priority
	})

	for _, p := range plugins {
		resolver, ok := p.(api.ThumbnailResolver)
		if !ok {
			continue
		}
		meta := p.PluginMetadata()
		types := meta.ThumbnailTypes
		if len(types) > 0 && !slices.Contains(types, thumbType) && !slices.Contains(types, "*") {
			continue
		}

		content, err := resolver.Resolve(ctx, thumb, thumbType)
		if err != nil {
			c.log.With("plugin", meta.Name).WarnErr(err, "thumbnail resolver failed")
			continue
		}
		if len(content) > 0 {
			return content, nil
		}
	}
	return nil, nil
}
