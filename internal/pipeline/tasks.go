package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alexisbeaulieu97/avalon/internal/events"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/internal/store"
	"github.com/alexisbeaulieu97/avalon/internal/template"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// ChangeRequest names the work area to switch to. Empty fields are kept.
// AssetDoc, when set, saves the asset lookup.
type ChangeRequest struct {
	Task     string
	Asset    string
	AssetDoc api.Document
	App      string
}

// Empty reports whether r asks for no change.
func (r ChangeRequest) Empty() bool {
	return r.Task == "" && r.Asset == "" && r.AssetDoc == nil && r.App == ""
}

// Project returns the project document named by AVALON_PROJECT. When the
// session names no project the first project in the store is returned.
func (c *Context) Project(ctx context.Context, s *session.Session) (api.Document, error) {
	if s == nil {
		s = c.session
	}
	filter := store.Filter{Type: api.TypeProject, Name: s.Value(session.Project)}
	project, err := c.store.FindOne(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find project %q: %w", filter.Name, err)
	}
	return project, nil
}

// TemplateDataFromSession returns the template data describing the work
// area of s. Optional keys are left out when s has no value for them.
func (c *Context) TemplateDataFromSession(ctx context.Context, s *session.Session) (map[string]any, error) {
	if s == nil {
		s = c.session
	}
	if err := s.Require(session.Project); err != nil {
		return nil, err
	}

	projectName := s.Value(session.Project)
	projectData := map[string]any{"name": projectName, "code": ""}
	if project, err := c.Project(ctx, s); err == nil {
		if name := project.Name(); name != "" {
			projectData["name"] = name
		}
		projectData["code"] = project.StringAt("data", "code")
	} else {
		c.log.With("project", projectName).WarnErr(err, "project document not found")
	}

	data := map[string]any{
		"root":    c.RegisteredRoot().Value(),
		"project": projectData,
		"asset":   s.Value(session.Asset),
		"task":    s.Value(session.Task),
		"app":     s.Value(session.App),
		"user":    s.UserName(),
	}
	if silo, ok := s.Get(session.Silo); ok {
		data["silo"] = silo
	}
	if hierarchy, ok := s.Get(session.Hierarchy); ok {
		data["hierarchy"] = hierarchy
	}
	return data, nil
}

// ComputeSessionChanges returns the session updates needed to move s to
// req without applying them. Only values that are set and differ from s
// count as changes. An asset change also updates the silo and hierarchy, and
// any change recomputes the work directory from the project's
// config.template.work.
func (c *Context) ComputeSessionChanges(ctx context.Context, s *session.Session, req ChangeRequest) (session.Changes, error) {
	if s == nil {
		s = c.session
	}
	if req.Empty() {
		return nil, nil
	}

	assetName := req.Asset
	assetDoc := req.AssetDoc
	if assetDoc != nil {
		assetName = assetDoc.Name()
	} else if assetName != "" {
		doc, err := c.store.FindOne(ctx, store.Filter{Type: api.TypeAsset, Name: assetName})
		if err != nil {
			return nil, fmt.Errorf("asset %q must exist: %w", assetName, err)
		}
		assetDoc = doc
	}

	var changes session.Changes
	for _, candidate := range []struct{ key, value string }{
		{session.Asset, assetName},
		{session.Task, req.Task},
		{session.App, req.App},
	} {
		if candidate.value != "" && candidate.value != s.Value(candidate.key) {
			changes = append(changes, session.Change{Key: candidate.key, Value: candidate.value})
		}
	}
	if len(changes) == 0 {
		return nil, nil
	}

	if _, ok := changes.Get(session.Asset); ok {
		hierarchy := ""
		if parents := assetDoc.StringsAt("data", "parents"); len(parents) > 0 {
			hierarchy = strings.Join(parents, string(filepath.Separator))
		}
		changes = append(changes,
			session.Change{Key: session.Silo, Value: assetDoc.StringAt("silo")},
			session.Change{Key: session.Hierarchy, Value: hierarchy},
		)
	}

	pending := s.Copy()
	if err := pending.Apply(changes); err != nil {
		return nil, err
	}
	workdir, err := c.workdir(ctx, pending)
	if err != nil {
		return nil, err
	}
	if workdir != "" {
		changes = append(changes, session.Change{Key: session.Workdir, Value: workdir})
	}
	return changes, nil
}

// workdir renders the project's work folder template for s. It returns ""
// when no project is set or the project defines no work template.
func (c *Context) workdir(ctx context.Context, s *session.Session) (string, error) {
	if s.Value(session.Project) == "" {
		return "", nil
	}
	project, err := c.Project(ctx, s)
	if err != nil {
		return "", err
	}
	tmpl := project.StringAt("config", "template", "work")
	if tmpl == "" {
		c.log.With("project", project.Name()).Warn("project has no work template, work directory left unchanged")
		return "", nil
	}

	data, err := c.TemplateDataFromSession(ctx, s)
	if err != nil {
		return "", err
	}
	folder, err := template.FormatOptional(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("render work template: %w", err)
	}
	return filepath.Clean(folder), nil
}

// UpdateCurrentTask moves the live session to req, mirrors the changes into
// the environment and emits taskChanged with a copy of them.
func (c *Context) UpdateCurrentTask(ctx context.Context, req ChangeRequest) (session.Changes, error) {
	changes, err := c.ComputeSessionChanges(ctx, c.session, req)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	if err := c.session.Apply(changes); err != nil {
		return nil, err
	}

	c.log.WithFields(map[string]any{
		"asset": c.session.Value(session.Asset),
		"task":  c.session.Value(session.Task),
	}).Info("Switched work area")

	c.bus.Emit(ctx, events.TaskChanged, append(session.Changes(nil), changes...))
	return changes, nil
}
