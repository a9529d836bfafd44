package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAreRegistered(t *testing.T) {
	before := testutil.ToFloat64(ReconcileSubscriptions.WithLabelValues("downgraded"))
	ReconcileSubscriptions.WithLabelValues("downgraded").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ReconcileSubscriptions.WithLabelValues("downgraded")))

	before = testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200"))
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "200").Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")))
}
