// Package filehost implements a host whose scene is a JSON document on disk.
// It stands in for a DCC application in the CLI and in tests.
package filehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alexisbeaulieu97/avalon/internal/container"
	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

const (
	sceneFileName   = "scene.json"
	tempFilePattern = "scene-*.json"
	sceneDirMode    = 0o755
	sceneFileMode   = 0o644
)

// Scene is the persisted content of the host.
type Scene struct {
	Containers []api.Container `json:"containers"`
	Instances  []map[string]any `json:"instances,omitempty"`
	Selection  []string         `json:"selection,omitempty"`
}

// Option customises a Host.
type Option func(*Host)

// WithName overrides the host name reported to the pipeline.
func WithName(name string) Option {
	return func(h *Host) { h.name = name }
}

// WithExtensions sets the work file extensions.
func WithExtensions(exts ...string) Option {
	return func(h *Host) { h.extensions = append([]string(nil), exts...) }
}

// WithLogger attaches a logger.
func WithLogger(log *logger.Logger) Option {
	return func(h *Host) { h.log = log }
}

// Host keeps its scene in <dir>/scene.json.
type Host struct {
	name       string
	dir        string
	extensions []string
	log        *logger.Logger

	mu      sync.Mutex
	current string
	dirty   bool
}

// New returns a Host rooted at dir.
func New(dir string, opts ...Option) *Host {
	h := &Host{
		name:       "filehost",
		dir:        filepath.Clean(dir),
		extensions: []string{"scene"},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) Name() string { return h.name }

// Dir returns the scene directory.
func (h *Host) Dir() string { return h.dir }

// Install creates the scene directory.
func (h *Host) Install(context.Context) error {
	if err := os.MkdirAll(h.dir, sceneDirMode); err != nil {
		return fmt.Errorf("create scene directory: %w", err)
	}
	h.log.With("dir", h.dir).Debug("scene host installed")
	return nil
}

// Uninstall forgets the current work file.
func (h *Host) Uninstall(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = ""
	h.dirty = false
	return nil
}

// Ls returns every container in the scene.
func (h *Host) Ls(context.Context) ([]api.Container, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	scene, err := h.read()
	if err != nil {
		return nil, err
	}
	return scene.Containers, nil
}

// Imprint stores c in the scene, replacing a container with the same object
// name. Containers without an object name get namespace+name.
func (h *Host) Imprint(_ context.Context, c api.Container) (api.Container, error) {
	if c.ObjectName == "" {
		c.ObjectName = c.Namespace + c.Name
	}
	if err := container.Validate(c); err != nil {
		return api.Container{}, err
	}

	err := h.mutate(func(scene *Scene) error {
		for i := range scene.Containers {
			if scene.Containers[i].ObjectName == c.ObjectName {
				scene.Containers[i] = c
				return nil
			}
		}
		scene.Containers = append(scene.Containers, c)
		return nil
	})
	return c, err
}

// Replace overwrites an existing container.
func (h *Host) Replace(_ context.Context, c api.Container) error {
	if err := container.Validate(c); err != nil {
		return err
	}
	return h.mutate(func(scene *Scene) error {
		for i := range scene.Containers {
			if scene.Containers[i].ObjectName == c.ObjectName {
				scene.Containers[i] = c
				return nil
			}
		}
		return fmt.Errorf("container %q not found in scene", c.ObjectName)
	})
}

// RemoveContainer deletes the container with objectName.
func (h *Host) RemoveContainer(_ context.Context, objectName string) (bool, error) {
	removed := false
	err := h.mutate(func(scene *Scene) error {
		kept := scene.Containers[:0]
		for _, c := range scene.Containers {
			if c.ObjectName == objectName {
				removed = true
				continue
			}
			kept = append(kept, c)
		}
		scene.Containers = kept

		selection := scene.Selection[:0]
		for _, name := range scene.Selection {
			if name != objectName {
				selection = append(selection, name)
			}
		}
		scene.Selection = selection
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// AddInstance records a publish instance.
func (h *Host) AddInstance(_ context.Context, data map[string]any) error {
	return h.mutate(func(scene *Scene) error {
		scene.Instances = append(scene.Instances, data)
		return nil
	})
}

// Instances returns the publish instances in the scene.
func (h *Host) Instances(context.Context) ([]map[string]any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	scene, err := h.read()
	if err != nil {
		return nil, err
	}
	return scene.Instances, nil
}

// Select replaces the selection.
func (h *Host) Select(_ context.Context, objects ...string) error {
	return h.mutate(func(scene *Scene) error {
		scene.Selection = append([]string(nil), objects...)
		return nil
	})
}

// Selection returns the selected object names.
func (h *Host) Selection(context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	scene, err := h.read()
	if err != nil {
		return nil, err
	}
	return scene.Selection, nil
}

// MaintainSelection captures the selection; the returned function puts it
// back.
func (h *Host) MaintainSelection(ctx context.Context) (func(), error) {
	previous, err := h.Selection(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := h.Select(ctx, previous...); err != nil {
			h.log.WarnErr(err, "failed to restore selection")
		}
	}, nil
}

// UniqueNamespace returns the first "<prefix>_NN_" namespace unused in the
// scene.
func (h *Host) UniqueNamespace(ctx context.Context, prefix string) (string, error) {
	containers, err := h.Ls(ctx)
	if err != nil {
		return "", err
	}
	used := make(map[string]struct{}, len(containers))
	for _, c := range containers {
		used[c.Namespace] = struct{}{}
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%02d_", prefix, i)
		if _, taken := used[candidate]; !taken {
			return candidate, nil
		}
	}
}

// OpenFile loads a saved work file as the current scene.
func (h *Host) OpenFile(_ context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read work file: %w", err)
	}
	var scene Scene
	if err := json.Unmarshal(data, &scene); err != nil {
		return fmt.Errorf("decode work file %s: %w", path, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.write(scene); err != nil {
		return err
	}
	h.current = path
	h.dirty = false
	return nil
}

// SaveFile writes the current scene to path.
func (h *Host) SaveFile(_ context.Context, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	scene, err := h.read()
	if err != nil {
		return err
	}
	if err := writeAtomic(path, scene); err != nil {
		return err
	}
	h.current = path
	h.dirty = false
	return nil
}

func (h *Host) CurrentFile() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.current != ""
}

func (h *Host) HasUnsavedChanges() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

func (h *Host) FileExtensions() []string {
	return append([]string(nil), h.extensions...)
}

// WorkRoot is the session work directory.
func (h *Host) WorkRoot(values map[string]string) string {
	return values[session.Workdir]
}

func (h *Host) mutate(fn func(*Scene) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	scene, err := h.read()
	if err != nil {
		return err
	}
	if err := fn(&scene); err != nil {
		return err
	}
	if err := h.write(scene); err != nil {
		return err
	}
	h.dirty = true
	return nil
}

func (h *Host) read() (Scene, error) {
	var scene Scene
	data, err := os.ReadFile(filepath.Join(h.dir, sceneFileName))
	if errors.Is(err, os.ErrNotExist) {
		return scene, nil
	}
	if err != nil {
		return scene, fmt.Errorf("read scene: %w", err)
	}
	if err := json.Unmarshal(data, &scene); err != nil {
		return scene, fmt.Errorf("decode scene: %w", err)
	}
	return scene, nil
}

func (h *Host) write(scene Scene) error {
	if err := os.MkdirAll(h.dir, sceneDirMode); err != nil {
		return fmt.Errorf("create scene directory: %w", err)
	}
	return writeAtomic(filepath.Join(h.dir, sceneFileName), scene)
}

func writeAtomic(path string, scene Scene) error {
	if scene.Containers == nil {
		scene.Containers = []api.Container{}
	}
	data, err := container.Canonical(scene)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp scene file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp scene file: %w", err)
	}
	if err := tempFile.Chmod(sceneFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp scene file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp scene file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace scene file: %w", err)
	}
	cleanup = false
	return nil
}
