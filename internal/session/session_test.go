package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

func TestSessionMirrorsIntoEnviron(t *testing.T) {
	t.Parallel()

	env := MapEnviron{}
	s := New(env)

	require.NoError(t, s.Set(Project, "hulk"))
	require.NoError(t, s.Set(Asset, "bruce"))
	require.NoError(t, s.Set(Project, "thor"))

	require.Equal(t, []string{Project, Asset}, s.Keys())
	require.Equal(t, "thor", env[Project])

	require.NoError(t, s.Unset(Asset))
	_, ok := env[Asset]
	require.False(t, ok)
	require.Equal(t, []string{Project}, s.Keys())
}

func TestFromEnvironPicksKnownKeys(t *testing.T) {
	t.Parallel()

	env := MapEnviron{Task: "modeling", Project: "hulk", "HOME": "/home/bruce"}
	s := FromEnviron(env)

	require.Equal(t, []string{Project, Task}, s.Keys())
	require.Equal(t, map[string]string{Project: "hulk", Task: "modeling"}, s.Snapshot())
}

func TestCopyIsIndependent(t *testing.T) {
	t.Parallel()

	env := MapEnviron{}
	s := New(env)
	require.NoError(t, s.Set(Project, "hulk"))

	c := s.Copy()
	require.NoError(t, c.Set(Project, "thor"))
	require.Equal(t, "hulk", s.Value(Project))
	require.Equal(t, "hulk", env[Project])
}

func TestRequireListsEveryMissingKey(t *testing.T) {
	t.Parallel()

	s := FromMap(map[string]string{Project: "hulk", Asset: ""})
	err := s.Require(Project, Asset, Task)

	var envErr *avalonerrors.EnvironmentError
	require.ErrorAs(t, err, &envErr)
	require.Equal(t, []string{Asset, Task}, envErr.Keys)
	require.NoError(t, s.Require(Project))
}

func TestApplyHonoursUnset(t *testing.T) {
	t.Parallel()

	env := MapEnviron{}
	s := New(env)
	require.NoError(t, s.Set(Silo, "assets"))

	changes := Changes{{Key: Asset, Value: "bruce"}, {Key: Silo, Unset: true}}
	require.NoError(t, s.Apply(changes))
	require.Equal(t, "bruce", env[Asset])
	_, ok := s.Get(Silo)
	require.False(t, ok)

	value, ok := changes.Get(Asset)
	require.True(t, ok)
	require.Equal(t, "bruce", value)
}

func TestUserNamePrefersSession(t *testing.T) {
	t.Parallel()

	s := FromMap(map[string]string{User: "banner"})
	require.Equal(t, "banner", s.UserName())
}
