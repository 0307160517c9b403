package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Submissions.WithLabelValues("create"))
	Submissions.WithLabelValues("create").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Submissions.WithLabelValues("create")))
}

func TestObserveHTTP(t *testing.T) {
	ObserveHTTP("GET", "/api/health", 200, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPDuration), 1)
}
