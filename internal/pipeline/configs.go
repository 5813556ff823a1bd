package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alexisbeaulieu97/avalon/internal/plugin"
	"github.com/alexisbeaulieu97/avalon/internal/session"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

// ConfigResolver turns the AVALON_CONFIG name into a studio config.
type ConfigResolver interface {
	Resolve(ctx context.Context, name string) (api.Config, error)
}

// StaticConfigs resolves configs compiled into the binary.
type StaticConfigs map[string]api.Config

func (s StaticConfigs) Resolve(_ context.Context, name string) (api.Config, error) {
	cfg, ok := s[name]
	if !ok {
		return nil, avalonerrors.NewEnvironmentError(fmt.Sprintf("config %q is not available", name), session.Config)
	}
	return cfg, nil
}

// ScriptConfigs interprets <Dir>/<name>.go, which must define
//
//	func Config() *api.ConfigFuncs
type ScriptConfigs struct {
	Dir string
}

func (s ScriptConfigs) Resolve(ctx context.Context, name string) (api.Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.Dir, name+".go")
	if _, err := os.Stat(path); err != nil {
		return nil, avalonerrors.NewEnvironmentError(fmt.Sprintf("config %q not found in %s", name, s.Dir), session.Config)
	}

	value, err := plugin.Interpret(path, "Config")
	if err != nil {
		return nil, err
	}
	fn, ok := value.(func() *api.ConfigFuncs)
	if !ok {
		return nil, avalonerrors.NewPluginError(path, fmt.Errorf("symbol Config has type %T, expected func() *api.ConfigFuncs", value))
	}

	cfg := fn()
	if cfg == nil {
		return nil, avalonerrors.NewPluginError(path, fmt.Errorf("Config returned nil"))
	}
	if cfg.ConfigName == "" {
		cfg.ConfigName = name
	}
	return cfg, nil
}

// ChainConfigs tries each resolver in turn and returns the first config
// found.
type ChainConfigs []ConfigResolver

func (c ChainConfigs) Resolve(ctx context.Context, name string) (api.Config, error) {
	var lastErr error
	for _, resolver := range c {
		cfg, err := resolver.Resolve(ctx, name)
		if err == nil {
			return cfg, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = avalonerrors.NewEnvironmentError(fmt.Sprintf("config %q is not available", name), session.Config)
	}
	return nil, lastErr
}
