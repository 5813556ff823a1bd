package workfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
}

func TestLastWithVersionPicksHighest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "scene_v001.ma", "scene_v002.ma", "scene_v010.ma", "scene_v011.txt", "other_v099.ma")

	found, ok, err := LastWithVersion(dir, "scene_v{version:0>3}", nil, []string{".ma", ".mb"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Workfile{Name: "scene_v010.ma", Version: 10}, found)
}

func TestLastWithVersionMissingDirectory(t *testing.T) {
	t.Parallel()

	_, ok, err := LastWithVersion(filepath.Join(t.TempDir(), "missing"), "scene_v{version:0>3}", nil, []string{".ma"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLastWithVersionNoMatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "notes.ma")

	_, ok, err := LastWithVersion(dir, "scene_v{version:0>3}", nil, []string{".ma"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLastWithVersionTieGoesToLaterName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "bruce_model_v003.ma", "bruce_model_v003.mb", "bruce_model_v002.mb")

	found, ok, err := LastWithVersion(dir, "{asset}_{task}_v{version:0>3}", map[string]any{"asset": "bruce", "task": "model"}, []string{"ma", "mb"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Workfile{Name: "bruce_model_v003.mb", Version: 3}, found)
}

func TestLastWithVersionOptionalCommentAndExtField(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "hlk_bruce_model_v004_wip.ma", "hlk_bruce_model_v005.ma", "hlk_bruce_rig_v009.ma")

	tmpl := "{project[code]}_{asset}_{task}_v{version:0>3}<_{comment}>.{ext}"
	data := map[string]any{
		"project": map[string]any{"code": "hlk"},
		"asset":   "bruce",
		"task":    "model",
		"ext":     "ma",
	}

	found, ok, err := LastWithVersion(dir, tmpl, data, []string{".ma"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Workfile{Name: "hlk_bruce_model_v005.ma", Version: 5}, found)
}

func TestLastWithVersionMissingFillKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "bruce_v001.ma")

	_, _, err := LastWithVersion(dir, "{asset}_v{version:0>3}", map[string]any{}, []string{".ma"})
	require.Error(t, err)
}

func TestLastSynthesizesFirstVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	name, err := Last(dir, "scene_v{version:0>3}.{ext}", map[string]any{"comment": "ignored"}, []string{".ma", ".mb"}, false)
	require.NoError(t, err)
	require.Equal(t, "scene_v001.ma", name)

	full, err := Last(dir, "scene_v{version:0>3}<_{comment}>.{ext}", map[string]any{"comment": "wip"}, []string{".ma"}, true)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "scene_v001.ma"), full)
}

func TestLastReturnsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "scene_v001.ma", "scene_v002.ma")

	name, err := Last(dir, "scene_v{version:0>3}.{ext}", nil, []string{".ma"}, false)
	require.NoError(t, err)
	require.Equal(t, "scene_v002.ma", name)
}

func TestPatternRequiresVersionField(t *testing.T) {
	t.Parallel()

	_, err := Pattern("scene", nil, []string{".ma"})
	require.Error(t, err)
}

func TestExtensionsFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{".hip", ".hiplc", ".hipnc"}, ExtensionsFor("houdini"))
	require.Nil(t, ExtensionsFor("notepad"))
}
