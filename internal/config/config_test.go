package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadSettings(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	dir := t.TempDir()

	cases := []struct {
		name     string
		contents string
		assert   func(t *testing.T, s *Settings, err error)
	}{
		{
			name: "relative paths resolve against the file",
			contents: `database: studio.db
root:
  work: /mnt/work
  publish: /mnt/publish
plugins:
  loader: [plugins/load]
  inventory_action: [plugins/inventory]
log:
  level: debug
`,
			assert: func(t *testing.T, s *Settings, err error) {
				require.NoError(t, err)
				require.Equal(t, filepath.Join(dir, "studio.db"), s.Database)
				require.Equal(t, filepath.Join(home, DefaultDir, "scene"), s.Scene)
				require.Equal(t, []string{filepath.Join(dir, "plugins/load")}, s.PluginPaths(api.KindLoader))
				require.Equal(t, api.NamedRoots(map[string]string{"work": "/mnt/work", "publish": "/mnt/publish"}), s.Root.API())
				require.Equal(t, "debug", s.Log.Level)
			},
		},
		{
			name:     "single root",
			contents: "root: /projects\n",
			assert: func(t *testing.T, s *Settings, err error) {
				require.NoError(t, err)
				require.Equal(t, api.SingleRoot("/projects"), s.Root.API())
			},
		},
		{
			name:     "invalid yaml returns parse error",
			contents: "database: [unclosed\n",
			assert: func(t *testing.T, _ *Settings, err error) {
				var parseErr *avalonerrors.ParseError
				require.ErrorAs(t, err, &parseErr)
				require.Positive(t, parseErr.Line)
			},
		},
		{
			name:     "unknown plugin kind fails validation",
			contents: "plugins:\n  publisher: [x]\n",
			assert: func(t *testing.T, _ *Settings, err error) {
				var validationErr *avalonerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Contains(t, validationErr.Message, "plugin_kind")
			},
		},
		{
			name:     "bad log level fails validation",
			contents: "log:\n  level: loud\n",
			assert: func(t *testing.T, _ *Settings, err error) {
				var validationErr *avalonerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Equal(t, "log.level", validationErr.Field)
			},
		},
		{
			name: "repository needs a valid url",
			contents: `repositories:
  - kind: loader
    url: "ht!tp://"
    destination: repos/loaders
`,
			assert: func(t *testing.T, _ *Settings, err error) {
				var validationErr *avalonerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Contains(t, validationErr.Message, "git_url")
			},
		},
		{
			name: "duplicate repository destinations are rejected",
			contents: `repositories:
  - {kind: loader, url: "https://example.com/a.git", destination: repos/a}
  - {kind: creator, url: "git@example.com:b.git", destination: repos/a}
`,
			assert: func(t *testing.T, _ *Settings, err error) {
				var validationErr *avalonerrors.ValidationError
				require.ErrorAs(t, err, &validationErr)
				require.Equal(t, "repositories[1].destination", validationErr.Field)
			},
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, "avalon"+string(rune('a'+i))+".yaml", tc.contents)
			s, err := LoadSettings(path, home)
			tc.assert(t, s, err)
		})
	}
}

func TestLoadSettingsOrDefault(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	s, err := LoadSettingsOrDefault(filepath.Join(home, "missing.yaml"), home)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, DefaultDir, "avalon.db"), s.Database)
}

func TestLoadApplications(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "maya2024.toml", `
label = "Maya 2024"
executable = "maya"
args = ["-proj", "{AVALON_WORKDIR}"]
application_dir = "maya"
default_dirs = ["scenes", "renders"]

[environment]
MAYA_DISABLE_CLIC_IPM = "1"
`)
	writeFile(t, dir, "nuke.toml", `
name = "nuke13"
executable = "Nuke13"
application_dir = "nuke"
`)
	writeFile(t, dir, "readme.txt", "ignored")

	apps, err := LoadApplications(dir)
	require.NoError(t, err)
	require.Len(t, apps, 2)
	require.Equal(t, "maya2024", apps[0].Name)
	require.Equal(t, "Maya 2024", apps[0].Label)
	require.Equal(t, []string{"scenes", "renders"}, apps[0].DefaultDirs)
	require.Equal(t, "1", apps[0].Environment["MAYA_DISABLE_CLIC_IPM"])
	require.Equal(t, "nuke13", apps[1].Name)
	require.Equal(t, "nuke13", apps[1].Label)

	missing, err := LoadApplications(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestLoadApplicationErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.toml", "executable = \n")
	_, err := LoadApplication(broken)
	var parseErr *avalonerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, 1, parseErr.Line)

	incomplete := writeFile(t, dir, "incomplete.toml", "executable = \"x\"\n")
	_, err = LoadApplication(incomplete)
	var validationErr *avalonerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "applicationdir", validationErr.Field)
}
