package workfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/avalon/internal/session"
)

type failingPresets struct{}

func (failingPresets) StartupRules(context.Context, string) ([]StartupRule, error) {
	return nil, errors.New("presets unavailable")
}

func boolPtr(v bool) *bool { return &v }

func TestEnvDefault(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{"1": true, " YES ": true, "True": true, "0": false, "no": false, "maybe": false}
	for value, want := range cases {
		r := NewResolver(nil, session.MapEnviron{session.OpenLastWorkfile: value}, nil)
		require.Equal(t, want, r.EnvDefault(), value)
	}

	require.False(t, NewResolver(nil, session.MapEnviron{}, nil).EnvDefault())
}

func TestShouldStartLastPrefersSpecificRule(t *testing.T) {
	t.Parallel()

	presets := StaticPresets{
		{Enabled: boolPtr(true)},
		{Hosts: []string{"Maya"}, Enabled: boolPtr(false)},
		{Hosts: []string{"maya"}, Tasks: []string{"anim.*"}, Enabled: boolPtr(true)},
		{Tasks: []string{"lookdev"}, Enabled: boolPtr(false)},
	}
	r := NewResolver(presets, session.MapEnviron{}, nil)
	ctx := context.Background()

	require.True(t, r.ShouldStartLast(ctx, "hulk", "MAYA", "Animation"))
	require.False(t, r.ShouldStartLast(ctx, "hulk", "maya", "model"))
	require.False(t, r.ShouldStartLast(ctx, "hulk", "nuke", "lookdev"))
	require.True(t, r.ShouldStartLast(ctx, "hulk", "nuke", "comp"))
}

func TestShouldStartLastFallsBackToEnvironment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := session.MapEnviron{session.OpenLastWorkfile: "1"}

	require.True(t, NewResolver(nil, env, nil).ShouldStartLast(ctx, "hulk", "maya", "model"))
	require.True(t, NewResolver(failingPresets{}, env, nil).ShouldStartLast(ctx, "hulk", "maya", "model"))
	require.True(t, NewResolver(StaticPresets{{Hosts: []string{"maya"}}}, env, nil).ShouldStartLast(ctx, "hulk", "maya", "model"))
	require.True(t, NewResolver(StaticPresets{{Hosts: []string{"nuke"}, Enabled: boolPtr(false)}}, env, nil).ShouldStartLast(ctx, "hulk", "maya", "model"))
}

func TestShouldStartLastSkipsInvalidTaskPattern(t *testing.T) {
	t.Parallel()

	presets := StaticPresets{{Tasks: []string{"(unclosed", "mod.*"}, Enabled: boolPtr(true)}}
	r := NewResolver(presets, session.MapEnviron{}, nil)
	require.True(t, r.ShouldStartLast(context.Background(), "hulk", "maya", "modeling"))
}

func TestFilePresetsProjectOverride(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tools:
  workfiles:
    last_workfile_on_startup:
      - enabled: true
projects:
  hulk:
    tools:
      workfiles:
        last_workfile_on_startup:
          - hosts: [maya]
            enabled: false
`), 0o644))

	presets := FilePresets{Path: path}
	ctx := context.Background()

	rules, err := presets.StartupRules(ctx, "thor")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Empty(t, rules[0].Hosts)

	rules, err = presets.StartupRules(ctx, "hulk")
	require.NoError(t, err)
	require.Equal(t, []string{"maya"}, rules[0].Hosts)

	r := NewResolver(presets, session.MapEnviron{}, nil)
	require.False(t, r.ShouldStartLast(ctx, "hulk", "maya", "model"))
	require.True(t, r.ShouldStartLast(ctx, "thor", "maya", "model"))

	rules, err = FilePresets{Path: filepath.Join(t.TempDir(), "none.yaml")}.StartupRules(ctx, "hulk")
	require.NoError(t, err)
	require.Nil(t, rules)
}
