package workfile

import (
	"context"
	"os"

	"github.com/alexisbeaulieu97/avalon/internal/config"
)

type workfilePresets struct {
	LastWorkfileOnStartup []StartupRule `yaml:"last_workfile_on_startup"`
}

type toolPresets struct {
	Workfiles workfilePresets `yaml:"workfiles"`
}

type projectPresets struct {
	Tools toolPresets `yaml:"tools"`
}

type presetFile struct {
	Tools    toolPresets               `yaml:"tools"`
	Projects map[string]projectPresets `yaml:"projects"`
}

// FilePresets reads startup rules from a YAML file shaped like
//
//	tools:
//	  workfiles:
//	    last_workfile_on_startup: [...]
//	projects:
//	  <project>:
//	    tools: ...
//
// A project entry replaces the studio-wide rules. A missing file yields no
// rules.
type FilePresets struct {
	Path string
}

func (p FilePresets) StartupRules(_ context.Context, project string) ([]StartupRule, error) {
	if p.Path == "" {
		return nil, nil
	}
	if _, err := os.Stat(p.Path); os.IsNotExist(err) {
		return nil, nil
	}

	var file presetFile
	if err := config.DecodeYAMLFile(p.Path, &file); err != nil {
		return nil, err
	}

	if override, ok := file.Projects[project]; ok && override.Tools.Workfiles.LastWorkfileOnStartup != nil {
		return override.Tools.Workfiles.LastWorkfileOnStartup, nil
	}
	return file.Tools.Workfiles.LastWorkfileOnStartup, nil
}
