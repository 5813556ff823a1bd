package plugin

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// ScriptPattern selects plug-in scripts inside a plug-in path.
const ScriptPattern = "*.go"

// Found is one plug-in (or one failure) produced by a Source.
type Found struct {
	Plugin api.Plugin
	File   string
	Err    error
}

// Source finds plug-ins under a directory.
type Source interface {
	Plugins(ctx context.Context, dir string) ([]Found, error)
}

// ScriptSource interprets Go plug-in scripts. Every script must define
//
//	func Plugins() []api.Plugin
type ScriptSource struct {
	log *logger.Logger
}

// NewScriptSource returns a ScriptSource.
func NewScriptSource(log *logger.Logger) *ScriptSource {
	return &ScriptSource{log: log}
}

// Plugins interprets every script directly under dir. A script that fails
// produces a Found carrying the error.
func (s *ScriptSource) Plugins(ctx context.Context, dir string) ([]Found, error) {
	files, err := Scripts(dir)
	if err != nil {
		return nil, err
	}

	var found []Found
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return found, err
		}

		plugins, err := LoadScript(file)
		if err != nil {
			found = append(found, Found{File: file, Err: err})
			continue
		}
		s.log.WithFields(map[string]any{"path": file, "count": len(plugins)}).Debug("plugin script loaded")
		for _, p := range plugins {
			found = append(found, Found{Plugin: p, File: file})
		}
	}
	return found, nil
}

// Scripts lists plug-in scripts in dir, skipping tests. A missing directory
// yields nothing.
func Scripts(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("plugin path %s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), ScriptPattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("scan plugin path %s: %w", dir, err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		if strings.HasSuffix(match, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, match))
	}
	sort.Strings(files)
	return files, nil
}

// LoadScript interprets a single plug-in script and returns its plug-ins.
func LoadScript(path string) ([]api.Plugin, error) {
	value, err := Interpret(path, "Plugins")
	if err != nil {
		return nil, err
	}

	fn, ok := value.(func() []api.Plugin)
	if !ok {
		return nil, avalonerrors.NewPluginError(path, fmt.Errorf("symbol Plugins has type %T, expected func() []api.Plugin", value))
	}

	var plugins []api.Plugin
	err = guard(path, func() { plugins = fn() })
	return plugins, err
}

// Interpret evaluates the script at path and returns the value of the
// package-level symbol.
func Interpret(path, symbol string) (any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, avalonerrors.NewPluginError(path, err)
	}

	var value any
	pkg, err := packageName(path, src)
	if err != nil {
		return nil, avalonerrors.NewPluginError(path, err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("load api symbols: %w", err)
	}

	var evalErr error
	if err := guard(path, func() {
		if _, evalErr = i.Eval(string(src)); evalErr != nil {
			evalErr = avalonerrors.NewPluginError(path, evalErr)
			return
		}
		v, symErr := i.Eval(pkg + "." + symbol)
		if symErr != nil {
			evalErr = avalonerrors.NewPluginError(path, fmt.Errorf("symbol %s: %w", symbol, symErr))
			return
		}
		value = v.Interface()
	}); err != nil {
		return nil, err
	}
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func packageName(path string, src []byte) (string, error) {
	file, err := parser.ParseFile(token.NewFileSet(), path, src, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}
	return file.Name.Name, nil
}

// guard turns interpreter panics into plug-in errors.
func guard(path string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = avalonerrors.NewPluginError(path, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
	return nil
}
