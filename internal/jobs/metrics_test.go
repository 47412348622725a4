package jobs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOutcomeIncrementsCountersAndHistogram(t *testing.T) {
	before := testutil.ToFloat64(jobsOutcome.WithLabelValues("embed", "completed"))

	recordOutcome("embed", "completed", 0.25)

	after := testutil.ToFloat64(jobsOutcome.WithLabelValues("embed", "completed"))
	assert.Equal(t, before+1, after)

	count := testutil.CollectAndCount(jobDuration)
	assert.Greater(t, count, 0)
}

func TestJobsClaimedCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(jobsClaimed.WithLabelValues("revise"))

	jobsClaimed.WithLabelValues("revise").Inc()

	after := testutil.ToFloat64(jobsClaimed.WithLabelValues("revise"))
	assert.Equal(t, before+1, after)
}
