package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// DefaultDir is the per-user directory holding settings, database and scene.
const DefaultDir = ".avalon"

// Settings is the studio settings file (avalon.yaml).
type Settings struct {
	Database       string              `yaml:"database" validate:"required"`
	Log            LogSettings         `yaml:"log"`
	Root           RootSetting         `yaml:"root"`
	Plugins        map[string][]string `yaml:"plugins" validate:"omitempty,dive,keys,plugin_kind,endkeys,dive,required"`
	Repositories   []Repository        `yaml:"repositories" validate:"omitempty,dive"`
	Presets        string              `yaml:"presets,omitempty"`
	Applications   string              `yaml:"applications,omitempty"`
	Configs        string              `yaml:"configs,omitempty"`
	Scene          string              `yaml:"scene" validate:"required"`
	CacheDiscovery bool                `yaml:"cache_discovery"`
	Watch          bool                `yaml:"watch"`
}

// LogSettings configures the structured logger.
type LogSettings struct {
	Level string `yaml:"level" validate:"omitempty,loglevel"`
	Human bool   `yaml:"human"`
}

// Repository is a git repository of plug-in scripts.
type Repository struct {
	Kind        string `yaml:"kind" validate:"required,plugin_kind"`
	URL         string `yaml:"url" validate:"required,git_url"`
	Branch      string `yaml:"branch,omitempty"`
	Depth       int    `yaml:"depth,omitempty" validate:"omitempty,min=1"`
	Destination string `yaml:"destination" validate:"required"`
}

// RootSetting accepts either a single path or a mapping of named roots.
type RootSetting struct {
	Path  string
	Named map[string]string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RootSetting) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Path)
	case yaml.MappingNode:
		return node.Decode(&r.Named)
	}
	return fmt.Errorf("line %d: root must be a path or a mapping of named roots", node.Line)
}

// API converts the setting into the root handed to the pipeline.
func (r RootSetting) API() api.Root {
	if len(r.Named) > 0 {
		return api.NamedRoots(r.Named)
	}
	return api.SingleRoot(r.Path)
}

// Defaults returns the settings used when no file exists, rooted at home.
func Defaults(home string) *Settings {
	dir := filepath.Join(home, DefaultDir)
	return &Settings{
		Database: filepath.Join(dir, "avalon.db"),
		Log:      LogSettings{Level: "info"},
		Scene:    filepath.Join(dir, "scene"),
		Plugins:  map[string][]string{},
	}
}

// LoadSettings parses and validates a settings file. Relative paths inside
// the file are resolved against the file's directory and unset values take
// their defaults from Defaults(home).
func LoadSettings(path, home string) (*Settings, error) {
	settings := Defaults(home)
	if err := DecodeYAMLFile(path, settings); err != nil {
		return nil, err
	}

	settings.resolvePaths(filepath.Dir(path))
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadSettingsOrDefault behaves like LoadSettings but returns the defaults
// when path does not exist.
func LoadSettingsOrDefault(path, home string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		settings := Defaults(home)
		return settings, ValidateSettings(settings)
	}
	return LoadSettings(path, home)
}

// PluginPaths returns the plug-in paths configured for kind.
func (s *Settings) PluginPaths(kind api.Kind) []string {
	if s == nil {
		return nil
	}
	return s.Plugins[kind.String()]
}

func (s *Settings) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	s.Database = abs(s.Database)
	s.Presets = abs(s.Presets)
	s.Applications = abs(s.Applications)
	s.Configs = abs(s.Configs)
	s.Scene = abs(s.Scene)
	for kind, paths := range s.Plugins {
		for i, p := range paths {
			paths[i] = abs(p)
		}
		s.Plugins[kind] = paths
	}
	for i := range s.Repositories {
		s.Repositories[i].Destination = abs(s.Repositories[i].Destination)
	}
}
