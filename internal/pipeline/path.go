package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/template"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// RepresentationPath resolves the file path of rep. Three sources are tried
// in order until one yields a path:
//
//  1. the representation's own data.template rendered with its context
//  2. the project's config.template.publish rendered with the full ancestry
//  3. the literal data.path, accepting frame sequences written with # or %
//
// A source whose template references missing data is skipped. The bool
// reports whether any source produced a path.
func (c *Context) RepresentationPath(ctx context.Context, rep api.Document, root api.Root) (string, bool) {
	if rep == nil {
		return "", false
	}
	if root.IsZero() {
		root = c.RegisteredRoot()
	}

	log := c.log.With("representation", rep.ID())
	tiers := []func() (string, error){
		func() (string, error) { return pathFromRepresentation(rep, root) },
		func() (string, error) { return c.pathFromProjectTemplate(ctx, rep, root) },
		func() (string, error) { return pathFromData(rep), nil },
	}
	for _, tier := range tiers {
		path, err := tier()
		if err != nil {
			log.WarnErr(err, "path resolution step failed")
			continue
		}
		if path != "" {
			return path, true
		}
	}
	return "", false
}

func pathFromRepresentation(rep api.Document, root api.Root) (string, error) {
	tmpl := rep.StringAt("data", "template")
	if tmpl == "" {
		return "", nil
	}

	data := api.Document(rep.MapAt("context")).Clone()
	if data == nil {
		data = api.Document{}
	}
	data["root"] = root.Value()

	return renderPath(tmpl, data)
}

func (c *Context) pathFromProjectTemplate(ctx context.Context, rep api.Document, root api.Root) (string, error) {
	if c.store == nil {
		return "", nil
	}
	parents, err := c.store.Parenthood(ctx, rep)
	if err != nil {
		c.log.With("representation", rep.Name()).Debug("representation ancestry not found in database")
		return "", nil
	}
	if len(parents) < 4 {
		return "", nil
	}
	version, subset, asset, project := parents[0], parents[1], parents[2], parents[3]

	tmpl := project.StringAt("config", "template", "publish")
	if tmpl == "" {
		c.log.With("project", project.Name()).Debug("no publish template in project")
		return "", nil
	}

	projectData := map[string]any{"name": project.Name()}
	if code := project.StringAt("data", "code"); code != "" {
		projectData["code"] = code
	}
	data := map[string]any{
		"root":           root.Value(),
		"project":        projectData,
		"asset":          asset.Name(),
		"subset":         subset.Name(),
		"version":        versionValue(version),
		"representation": rep.Name(),
		"user":           c.session.UserName(),
		"app":            c.session.Value(session.App),
		"task":           c.session.Value(session.Task),
	}
	if asset.Has("silo") {
		data["silo"] = asset.StringAt("silo")
	}
	if hierarchy, ok := assetHierarchy(asset, "/"); ok {
		data["hierarchy"] = hierarchy
	}
	if family := rep.StringAt("context", "family"); family != "" {
		data["family"] = family
	}

	return renderPath(tmpl, data)
}

func pathFromData(rep api.Document) string {
	path := rep.StringAt("data", "path")
	if path == "" {
		return ""
	}
	if exists(path) {
		return filepath.Clean(path)
	}

	dir, file := filepath.Split(path)
	if dir == "" || !exists(dir) {
		return ""
	}

	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)

	var items []string
	switch {
	case strings.Contains(base, "#"):
		for _, part := range strings.Split(base, "#") {
			if part != "" {
				items = append(items, part)
			}
		}
	case strings.Contains(base, "%"):
		items = strings.Split(base, "%")
	}
	if len(items) == 0 {
		return ""
	}
	prefix := items[0]

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) {
			return filepath.Clean(path)
		}
	}
	return ""
}

// renderPath renders tmpl with optional groups. A missing key skips the
// source; an existing normalized path is preferred over the raw rendering.
func renderPath(tmpl string, data map[string]any) (string, error) {
	path, err := template.FormatOptional(tmpl, data)
	if err != nil {
		if template.IsMissingKey(err) {
			return "", nil
		}
		return "", err
	}
	if path == "" {
		return "", nil
	}
	if normalized := filepath.Clean(path); exists(normalized) {
		return normalized, nil
	}
	return path, nil
}

// assetHierarchy returns data.hierarchy, or data.parents joined with sep.
// An empty hierarchy is valid.
func assetHierarchy(asset api.Document, sep string) (string, bool) {
	if asset.Has("data", "hierarchy") {
		return asset.StringAt("data", "hierarchy"), true
	}
	if asset.Has("data", "parents") {
		return strings.Join(asset.StringsAt("data", "parents"), sep), true
	}
	return "", false
}

// versionValue keeps integer version names numeric so "{version:0>3}"
// pads them.
func versionValue(version api.Document) any {
	if n, ok := version.IntAt("name"); ok {
		return n
	}
	return version.Name()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
