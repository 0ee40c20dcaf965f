package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(FetchesTotal.WithLabelValues("failure"))
	RecordFetch(false, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(FetchesTotal.WithLabelValues("failure")))
}

func TestRecordCache(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookups.WithLabelValues("report", "hit"))
	misses := testutil.ToFloat64(CacheLookups.WithLabelValues("report", "miss"))

	RecordCache("report", true)
	RecordCache("report", false)
	RecordCache("report", false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookups.WithLabelValues("report", "hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookups.WithLabelValues("report", "miss")))
}

func TestRecordLLM_Tokens(t *testing.T) {
	before := testutil.ToFloat64(LLMTokens.WithLabelValues("test"))
	RecordLLM("test", true, 120, time.Second)
	RecordLLM("test", false, 0, time.Second)
	assert.Equal(t, before+120, testutil.ToFloat64(LLMTokens.WithLabelValues("test")))
}
