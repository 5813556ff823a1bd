package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsByLabel(t *testing.T) {
	t.Parallel()

	c := New()
	c.DiscoveryFailure("loader")
	c.DiscoveryFailure("loader")
	c.LoaderOperation("load", time.Now(), nil)
	c.LoaderOperation("load", time.Now(), errors.New("boom"))
	c.CreatorRun(nil)
	c.HandlerFailure("taskChanged")

	require.Equal(t, 2.0, testutil.ToFloat64(c.discoveryFailures.WithLabelValues("loader")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.loaderOperations.WithLabelValues("load", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.loaderOperations.WithLabelValues("load", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.creatorRuns.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.handlerFailures.WithLabelValues("taskChanged")))
}

func TestSnapshotIsSorted(t *testing.T) {
	t.Parallel()

	c := New()
	c.HandlerFailure("taskChanged")
	c.CreatorRun(errors.New("boom"))

	samples, err := c.Snapshot()
	require.NoError(t, err)
	require.Equal(t, []Sample{
		{Name: "avalon_creator_runs_total", Labels: "status=failure", Value: 1},
		{Name: "avalon_event_handler_failures_total", Labels: "event=taskChanged", Value: 1},
	}, samples)
}

func TestNilCollectorIsNoop(t *testing.T) {
	t.Parallel()

	var c *Collector
	require.NotPanics(t, func() {
		c.DiscoveryFailure("loader")
		c.LoaderOperation("load", time.Now(), nil)
		c.CreatorRun(nil)
		c.HandlerFailure("x")
	})
	samples, err := c.Snapshot()
	require.NoError(t, err)
	require.Nil(t, samples)
}
