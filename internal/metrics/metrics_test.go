package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	require.NoError(t, m.Register(reg))

	m.RunsTotal.WithLabelValues("knife", "ok").Inc()
	m.ShardFailures.Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("knife", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ShardFailures))

	assert.Error(t, m.Register(reg), "double registration must fail")
}
