package template

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"root":    map[string]any{"work": "/mnt/work"},
		"project": map[string]string{"name": "hulk", "code": "hlk"},
		"asset":   "bruce",
		"version": float64(7),
		"parents": []any{"characters", "heroes"},
		"scale":   1.25,
	}

	cases := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "nested keys", tmpl: "{root[work]}/{project[name]}/{asset}", want: "/mnt/work/hulk/bruce"},
		{name: "attribute style", tmpl: "{project.code}_{asset}", want: "hlk_bruce"},
		{name: "zero padded version", tmpl: "v{version:0>3}", want: "v007"},
		{name: "width with zero flag", tmpl: "v{version:03d}", want: "v007"},
		{name: "slice index", tmpl: "{parents[1]}", want: "heroes"},
		{name: "left align", tmpl: "[{asset:<7}]", want: "[bruce  ]"},
		{name: "center fill", tmpl: "[{asset:*^9}]", want: "[**bruce**]"},
		{name: "float precision", tmpl: "{scale:.1f}", want: "1.2"},
		{name: "escaped braces", tmpl: "{{{asset}}}", want: "{bruce}"},
		{name: "angle brackets kept", tmpl: "<{asset}>", want: "<bruce>"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Format(tc.tmpl, data)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestFormatMissingKey(t *testing.T) {
	t.Parallel()

	_, err := Format("{root[publish]}/{asset}", map[string]any{"root": map[string]any{}, "asset": "bruce"})
	require.Error(t, err)
	require.True(t, IsMissingKey(err))

	var missing *MissingKeyError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "root[publish]", missing.Key)
}

func TestFormatRejectsMalformedTemplates(t *testing.T) {
	t.Parallel()

	for _, tmpl := range []string{"{asset", "asset}", "{}", "{version:q}", "{asset[work}"} {
		_, err := Format(tmpl, map[string]any{"asset": "bruce", "version": 1})
		require.Error(t, err, tmpl)
		require.False(t, IsMissingKey(err), tmpl)
	}
}

func TestFormatOptional(t *testing.T) {
	t.Parallel()

	tmpl := "{asset}_{task}<_{comment}>_v{version:0>3}<.{ext}>"

	got, err := FormatOptional(tmpl, map[string]any{"asset": "bruce", "task": "model", "version": 1, "ext": "ma"})
	require.NoError(t, err)
	require.Equal(t, "bruce_model_v001.ma", got)

	got, err = FormatOptional(tmpl, map[string]any{"asset": "bruce", "task": "model", "version": 2, "comment": "wip"})
	require.NoError(t, err)
	require.Equal(t, "bruce_model_wip_v002", got)

	got, err = FormatOptional("scene_v{version:0>3}.<{ext}>", map[string]any{"version": 1, "ext": ".ma"})
	require.NoError(t, err)
	require.Equal(t, "scene_v001.ma", got)

	_, err = FormatOptional("{asset}<_{comment}>", map[string]any{})
	require.True(t, IsMissingKey(err))

	_, err = FormatOptional("{asset}<_{comment}", map[string]any{"asset": "a"})
	require.Error(t, err)
}

func TestFields(t *testing.T) {
	t.Parallel()

	fields, err := Fields("{root[work]}/{project[name]}/{asset}<_{comment}>/{asset}")
	require.NoError(t, err)
	require.Equal(t, []string{"root", "project", "asset", "comment"}, fields)
}
