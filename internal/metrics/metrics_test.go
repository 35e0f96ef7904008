package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(FilesChecked.WithLabelValues("pass"))
	FilesChecked.WithLabelValues("pass").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FilesChecked.WithLabelValues("pass")))

	hits := testutil.ToFloat64(CacheHits)
	CacheHits.Add(2)
	assert.Equal(t, hits+2, testutil.ToFloat64(CacheHits))

	Cycles.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(Cycles))
}
