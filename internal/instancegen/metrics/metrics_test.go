package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(instancesGeneratedCounter)
	Get().RecordInstanceGenerated()
	Get().RecordInstanceGenerated()
	assert.Equal(t, before+2, testutil.ToFloat64(instancesGeneratedCounter))

	before = testutil.ToFloat64(errorsCounter.WithLabelValues(ErrorKindTransient))
	Get().RecordError(ErrorKindTransient)
	assert.Equal(t, before+1, testutil.ToFloat64(errorsCounter.WithLabelValues(ErrorKindTransient)))

	before = testutil.ToFloat64(generationOutcomeCounter.WithLabelValues("complete"))
	Get().RecordOutcome("complete")
	assert.Equal(t, before+1, testutil.ToFloat64(generationOutcomeCounter.WithLabelValues("complete")))
}

func TestBatchDuration(t *testing.T) {
	Get().RecordBatchDuration(3 * time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(batchDurationHist))
}
