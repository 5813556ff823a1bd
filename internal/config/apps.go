package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// Application is a launchable application definition (<name>.toml).
type Application struct {
	Name           string            `toml:"name" validate:"required"`
	Label          string            `toml:"label"`
	Executable     string            `toml:"executable" validate:"required"`
	Args           []string          `toml:"args"`
	ApplicationDir string            `toml:"application_dir" validate:"required"`
	Environment    map[string]string `toml:"environment"`
	DefaultDirs    []string          `toml:"default_dirs"`
	Copy           map[string]string `toml:"copy"`
}

// LoadApplication parses one application definition. The name defaults to
// the file's base name.
func LoadApplication(path string) (*Application, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, avalonerrors.NewParseError(path, 0, err)
	}

	var app Application
	if err := toml.Unmarshal(data, &app); err != nil {
		line := 0
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			line, _ = decodeErr.Position()
		}
		return nil, avalonerrors.NewParseError(path, line, err)
	}

	if app.Name == "" {
		app.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if app.Label == "" {
		app.Label = app.Name
	}

	if err := validatorInstance().Struct(&app); err != nil {
		return nil, convertValidationError(err)
	}
	return &app, nil
}

// LoadApplications parses every *.toml file directly under dir, sorted by
// application name. A missing dir yields no applications.
func LoadApplications(dir string) ([]*Application, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read applications directory: %w", err)
	}

	var apps []*Application
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		app, err := LoadApplication(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}
