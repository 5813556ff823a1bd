package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/alexisbeaulieu97/avalon/internal/events"
	"github.com/alexisbeaulieu97/avalon/internal/store"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// LoadOptions are the optional arguments of Load.
type LoadOptions struct {
	Namespace string

	// Name defaults to the subset name.
	Name    string
	Options map[string]any
}

// IsCompatibleLoader reports whether loader accepts rc on both the families
// and the representations axis.
func IsCompatibleLoader(loader api.Plugin, rc *api.Context) bool {
	meta := loader.PluginMetadata()

	hasFamily := slices.Contains(meta.Families, "*")
	if !hasFamily {
		for _, family := range rc.Families() {
			if slices.Contains(meta.Families, family) {
				hasFamily = true
				break
			}
		}
	}

	hasRepresentation := slices.Contains(meta.Representations, "*") ||
		slices.Contains(meta.Representations, rc.Representation.Name())

	return hasFamily && hasRepresentation
}

// RepresentationContext returns the full ancestry of representation, given
// either as an id or as a document.
func (c *Context) RepresentationContext(ctx context.Context, representation any) (*api.Context, error) {
	var rep api.Document
	switch r := representation.(type) {
	case string:
		doc, err := c.store.FindOne(ctx, store.Filter{ID: r})
		if err != nil {
			return nil, fmt.Errorf("find representation %s: %w", r, err)
		}
		rep = doc
	case api.Document:
		rep = r
	case map[string]any:
		rep = api.Document(r)
	default:
		return nil, fmt.Errorf("unsupported representation value %T", representation)
	}
	if rep == nil {
		return nil, fmt.Errorf("representation is nil")
	}

	parents, err := c.store.Parenthood(ctx, rep)
	if err != nil {
		return nil, err
	}
	if len(parents) < 4 {
		return nil, &avalonerrors.IntegrityError{Representation: rep.ID(), Missing: missingAncestors(len(parents))}
	}
	version, subset, asset, project := parents[0], parents[1], parents[2], parents[3]

	return &api.Context{
		Project:        api.Project{Name: project.Name(), Code: project.StringAt("data", "code")},
		Asset:          asset,
		Subset:         subset,
		Version:        version,
		Representation: rep,
	}, nil
}

func missingAncestors(found int) []string {
	chain := []string{api.TypeVersion, api.TypeSubset, api.TypeAsset, api.TypeProject}
	return chain[found:]
}

// LoadersFromRepresentation returns the loaders compatible with
// representation.
func (c *Context) LoadersFromRepresentation(ctx context.Context, loaders []api.Plugin, representation any) ([]api.Loader, error) {
	rc, err := c.RepresentationContext(ctx, representation)
	if err != nil {
		return nil, err
	}

	var compatible []api.Loader
	for _, p := range loaders {
		loader, ok := p.(api.Loader)
		if ok && IsCompatibleLoader(loader, rc) {
			compatible = append(compatible, loader)
		}
	}
	return compatible, nil
}

// FindLoader returns the discovered loader called name. op names the
// operation for the error message.
func (c *Context) FindLoader(ctx context.Context, op, name string) (api.Loader, error) {
	loaders, err := c.registry.Discover(ctx, api.KindLoader)
	if err != nil {
		return nil, err
	}
	for _, p := range loaders {
		if p.PluginMetadata().Name != name {
			continue
		}
		if loader, ok := p.(api.Loader); ok {
			return loader, nil
		}
	}
	c.log.WithFields(map[string]any{"plugin": name, "operation": op}).Warn("no loader found for container")
	return nil, &avalonerrors.ResolutionError{Operation: op, Loader: name}
}

// Load runs loader on representation. Legacy loaders must be adapted with
// api.AdaptLoader first; registered and discovered loaders already are.
func (c *Context) Load(ctx context.Context, loader api.Loader, representation any, opts LoadOptions) (result any, err error) {
	rc, err := c.RepresentationContext(ctx, representation)
	if err != nil {
		return nil, err
	}

	meta := loader.PluginMetadata()
	if !IsCompatibleLoader(loader, rc) {
		return nil, &avalonerrors.IncompatibleLoaderError{Loader: meta.Name, Subset: rc.Subset.Name()}
	}

	options := opts.Options
	if options == nil {
		options = map[string]any{}
	}
	name := opts.Name
	if name == "" {
		name = rc.Subset.Name()
	}
	rc.Path, _ = c.RepresentationPath(ctx, rc.Representation, c.RegisteredRoot())

	c.log.WithFields(map[string]any{"plugin": meta.Name, "asset": rc.Asset.Name()}).Info("Running loader")

	started := time.Now()
	c.bus.EmitBefore(ctx, events.Load, rc, name, opts.Namespace)
	defer func() {
		c.metrics.LoaderOperation(events.Load, started, err)
		if err == nil {
			c.bus.EmitAfter(ctx, events.Load, rc, result)
		}
	}()

	return loader.Load(ctx, rc, name, opts.Namespace, options)
}

// Update points container at another version of its subset: the latest,
// the master version or a given version number. The representation name is
// kept.
func (c *Context) Update(ctx context.Context, container api.Container, version api.VersionSelector) (err error) {
	current, err := c.store.FindOne(ctx, store.Filter{ID: container.Representation, Type: api.TypeRepresentation})
	if err != nil {
		return fmt.Errorf("find representation %s: %w", container.Representation, err)
	}
	parents, err := c.store.Parenthood(ctx, current)
	if err != nil {
		return err
	}
	if len(parents) < 2 {
		return &avalonerrors.IntegrityError{Representation: current.ID(), Missing: missingAncestors(len(parents))}
	}
	subset := parents[1]

	newVersion, err := c.findVersion(ctx, subset, version)
	if err != nil {
		return err
	}

	newRepresentation, err := c.store.FindOne(ctx, store.Filter{
		Type:   api.TypeRepresentation,
		Parent: newVersion.ID(),
		Name:   current.Name(),
	})
	if err != nil {
		return fmt.Errorf("find representation %q of version %s: %w", current.Name(), newVersion.StringAt("name"), err)
	}

	loader, err := c.FindLoader(ctx, events.Update, container.Loader)
	if err != nil {
		return err
	}

	rc, err := c.RepresentationContext(ctx, newRepresentation)
	if err != nil {
		return err
	}
	rc.Path, _ = c.RepresentationPath(ctx, rc.Representation, c.RegisteredRoot())

	started := time.Now()
	c.bus.EmitBefore(ctx, events.Update, container, rc)
	defer func() {
		c.metrics.LoaderOperation(events.Update, started, err)
		if err == nil {
			c.bus.EmitAfter(ctx, events.Update, container, rc)
		}
	}()

	return loader.Update(ctx, container, rc)
}

func (c *Context) findVersion(ctx context.Context, subset api.Document, version api.VersionSelector) (api.Document, error) {
	var (
		doc api.Document
		err error
	)
	switch {
	case version.IsLatest():
		var docs []api.Document
		docs, err = c.store.Find(ctx, store.Filter{
			Type:   api.TypeVersion,
			Parent: subset.ID(),
			Order:  store.OrderNameNumericDesc,
			Limit:  1,
		})
		if err == nil && len(docs) == 0 {
			err = store.ErrNotFound
		}
		if err == nil {
			doc = docs[0]
		}
	case version.IsMaster():
		doc, err = c.store.FindOne(ctx, store.Filter{Type: api.TypeMasterVersion, Parent: subset.ID()})
	default:
		n, _ := version.Number()
		doc, err = c.store.FindOne(ctx, store.Filter{Type: api.TypeVersion, Parent: subset.ID(), Name: strconv.Itoa(n)})
	}
	if err != nil {
		return nil, fmt.Errorf("find %s version of subset %s: %w", version, subset.Name(), err)
	}
	return doc, nil
}

// Remove deletes container through the loader that created it.
func (c *Context) Remove(ctx context.Context, container api.Container) (removed bool, err error) {
	loader, err := c.FindLoader(ctx, events.Remove, container.Loader)
	if err != nil {
		return false, err
	}

	started := time.Now()
	c.bus.EmitBefore(ctx, events.Remove, container)
	defer func() {
		c.metrics.LoaderOperation(events.Remove, started, err)
		if err == nil {
			c.bus.EmitAfter(ctx, events.Remove, container, removed)
		}
	}()

	return loader.Remove(ctx, container)
}

// Switch moves container to another representation, possibly of another
// subset or asset. The loader must support switching and be compatible with
// the target.
func (c *Context) Switch(ctx context.Context, container api.Container, representation any) (err error) {
	loader, err := c.FindLoader(ctx, events.Switch, container.Loader)
	if err != nil {
		return err
	}

	meta := loader.PluginMetadata()
	switcher, ok := loader.(api.Switcher)
	if !ok {
		return &avalonerrors.NotSupportedError{Loader: meta.DisplayLabel(), Capability: "switch"}
	}

	rc, err := c.RepresentationContext(ctx, representation)
	if err != nil {
		return err
	}
	if !IsCompatibleLoader(loader, rc) {
		return &avalonerrors.IncompatibleLoaderError{Loader: meta.Name, Subset: rc.Subset.Name()}
	}
	rc.Path, _ = c.RepresentationPath(ctx, rc.Representation, c.RegisteredRoot())

	started := time.Now()
	c.bus.EmitBefore(ctx, events.Switch, container, rc)
	defer func() {
		c.metrics.LoaderOperation(events.Switch, started, err)
		if err == nil {
			c.bus.EmitAfter(ctx, events.Switch, container, rc)
		}
	}()

	return switcher.Switch(ctx, container, rc)
}

// Create runs every discovered creator of family. Each creator runs inside
// the host's maintained selection. Failing creators are logged and skipped;
// when none succeeds api.ErrNoCreatorRan is returned. The instance of the
// last successful creator is returned.
func (c *Context) Create(ctx context.Context, name, asset, family string, options, data map[string]any) (instance any, err error) {
	creators, err := c.registry.Discover(ctx, api.KindCreator)
	if err != nil {
		return nil, err
	}

	instanceData := map[string]any{
		"id":     api.InstanceID,
		"family": family,
		"asset":  asset,
		"subset": name,
		"active": true,
	}
	for k, v := range data {
		instanceData[k] = v
	}
	if options == nil {
		options = map[string]any{}
	}

	c.bus.EmitBefore(ctx, events.Create, name, asset, family)

	ran := 0
	for _, p := range creators {
		meta := p.PluginMetadata()
		creator, ok := p.(api.Creator)
		if !ok || meta.Family != family {
			continue
		}

		log := c.log.WithFields(map[string]any{"plugin": meta.Name, "subset": name})
		log.Info("Creating instance")

		out, runErr := c.runCreator(ctx, creator, api.CreateRequest{
			Name:    name,
			Asset:   asset,
			Options: options,
			Data:    cloneData(instanceData),
		})
		c.metrics.CreatorRun(runErr)
		if runErr != nil {
			log.WarnErr(runErr, "creator failed")
			continue
		}
		ran++
		instance = out
	}

	if ran == 0 {
		return nil, api.ErrNoCreatorRan
	}
	c.bus.EmitAfter(ctx, events.Create, instance)
	return instance, nil
}

func (c *Context) runCreator(ctx context.Context, creator api.Creator, req api.CreateRequest) (out any, err error) {
	if maintainer, ok := c.RegisteredHost().(api.SelectionMaintainer); ok {
		restore, err := maintainer.MaintainSelection(ctx)
		if err != nil {
			return nil, fmt.Errorf("capture selection: %w", err)
		}
		defer restore()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("creator panicked: %v", r)
		}
	}()
	return creator.Create(ctx, req)
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Actions returns the discovered actions compatible with the session.
func (c *Context) Actions(ctx context.Context) ([]api.Action, error) {
	plugins, err := c.registry.Discover(ctx, api.KindAction)
	if err != nil {
		return nil, err
	}
	snapshot := c.session.Snapshot()

	var actions []api.Action
	for _, p := range plugins {
		if action, ok := p.(api.Action); ok && action.IsCompatible(snapshot) {
			actions = append(actions, action)
		}
	}
	slices.SortStableFunc(actions, func(a, b api.Action) int {
		return a.PluginMetadata().Order - b.PluginMetadata().Order
	})
	return actions, nil
}

// InventoryActions returns the discovered inventory actions that accept
// at least one of containers.
func (c *Context) InventoryActions(ctx context.Context, containers []api.Container) ([]api.InventoryAction, error) {
	plugins, err := c.registry.Discover(ctx, api.KindInventoryAction)
	if err != nil {
		return nil, err
	}

	var actions []api.InventoryAction
	for _, p := range plugins {
		action, ok := p.(api.InventoryAction)
		if !ok {
			continue
		}
		if slices.ContainsFunc(containers, action.IsCompatible) {
			actions = append(actions, action)
		}
	}
	return actions, nil
}

// RunAction runs the named action with the current session.
func (c *Context) RunAction(ctx context.Context, name string, options map[string]any) (any, error) {
	actions, err := c.Actions(ctx)
	if err != nil {
		return nil, err
	}
	for _, action := range actions {
		if action.PluginMetadata().Name == name {
			return action.Process(ctx, c.session.Snapshot(), options)
		}
	}
	return nil, errors.New("no compatible action named " + strconv.Quote(name))
}
