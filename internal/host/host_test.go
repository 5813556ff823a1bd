package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

func TestDefaultHostSatisfiesContract(t *testing.T) {
	t.Parallel()

	h := Default()
	require.Equal(t, "default", h.Name())
	require.NoError(t, api.CheckContract(h.Name(), h, api.HostContract))

	containers, err := h.Ls(context.Background())
	require.NoError(t, err)
	require.Empty(t, containers)
}

func TestDebugHostListsFixedContainers(t *testing.T) {
	t.Parallel()

	h := Debug()
	require.NoError(t, api.CheckContract(h.Name(), h, api.HostContract))

	containers, err := h.Ls(context.Background())
	require.NoError(t, err)
	require.Len(t, containers, 2)
	require.Equal(t, "ee-ft-a-uuid1", containers[0].Representation)
	require.Equal(t, "_bruce02_", containers[1].Namespace)
	require.Equal(t, []string{"txt"}, h.FileExtensions())

	containers[0].Name = "changed"
	again, err := h.Ls(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bruce01", again[0].Name)
}
