// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInMemoryCollector(t *testing.T) {
	collector := NewInMemoryCollector()

	require.NotNil(t, collector)
	assert.NotNil(t, collector.requestsByPath)
	assert.NotNil(t, collector.responsesByStatus)
	assert.NotNil(t, collector.responseTimes)
	assert.NotNil(t, collector.responseTimeByPath)
	assert.NotNil(t, collector.errorsByType)
	assert.NotNil(t, collector.errorsByPath)
	assert.False(t, collector.startTime.IsZero())
}

func TestInMemoryCollector_RecordRequest(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordRequest("POST", "/weeks/2026-03-02/assign")
	collector.RecordRequest("POST", "/seasons/2026/1")
	collector.RecordRequest("POST", "/weeks/2026-03-02/assign") // duplicate

	stats := collector.GetStats()
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(3), stats.ActiveRequests)
	assert.Equal(t, int64(2), stats.RequestsByPath["POST /weeks/2026-03-02/assign"])
	assert.Equal(t, int64(1), stats.RequestsByPath["POST /seasons/2026/1"])
}

func TestInMemoryCollector_RecordResponse(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordRequest("POST", "/weeks/2026-03-02/assign")
	collector.RecordResponse("POST", "/weeks/2026-03-02/assign", 200, 40*time.Second)

	stats := collector.GetStats()
	assert.Equal(t, int64(1), stats.TotalResponses)
	assert.Equal(t, int64(0), stats.ActiveRequests, "response closes out the in-flight WAS run")
	assert.Equal(t, int64(1), stats.ResponsesByStatus[200])
	assert.Equal(t, int64(1), stats.ResponseTimeStats.Count)
	assert.Equal(t, 40*time.Second, stats.ResponseTimeStats.Average)
}

func TestInMemoryCollector_RecordResponse_AggregatesByPath(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordResponse("POST", "/seasons/2026/1", 200, 10*time.Second)
	collector.RecordResponse("POST", "/seasons/2026/1", 200, 30*time.Second)
	collector.RecordResponse("POST", "/weeks/2026-03-02/assign", 202, 45*time.Second)

	stats := collector.GetStats()
	seasonStats := stats.ResponseTimeByPath["POST /seasons/2026/1"]
	assert.Equal(t, int64(2), seasonStats.Count)
	assert.Equal(t, 10*time.Second, seasonStats.Min)
	assert.Equal(t, 30*time.Second, seasonStats.Max)
	assert.Equal(t, 20*time.Second, seasonStats.Average)

	weekStats := stats.ResponseTimeByPath["POST /weeks/2026-03-02/assign"]
	assert.Equal(t, int64(1), weekStats.Count)
}

func TestInMemoryCollector_RecordError(t *testing.T) {
	collector := NewInMemoryCollector()

	collector.RecordRequest("POST", "/weeks/2026-03-02/assign")
	collector.RecordError("POST", "/weeks/2026-03-02/assign", errors.New("planning run failure: WEAK quality, budget exhausted"))

	stats := collector.GetStats()
	assert.Equal(t, int64(1), stats.TotalErrors)
	assert.Equal(t, int64(0), stats.ActiveRequests)
	assert.Equal(t, int64(1), stats.ErrorsByPath["POST /weeks/2026-03-02/assign"])
	assert.Equal(t, int64(1), stats.ErrorsByType["planning run failure: WEAK quality, budget exhausted"])
}

func TestInMemoryCollector_RecordError_NilErrorCountsAsUnknown(t *testing.T) {
	collector := NewInMemoryCollector()

	// internal/httpapi's recovery middleware records a nil error for a
	// recovered panic, since the panic value isn't an `error`.
	collector.RecordError("POST", "/clusters/12/compose", nil)

	stats := collector.GetStats()
	assert.Equal(t, int64(1), stats.ErrorsByType["unknown"])
}

func TestInMemoryCollector_CacheHitRatio(t *testing.T) {
	collector := NewInMemoryCollector()

	// internal/travel.Oracle records one hit or miss per (origin,
	// destination) cluster pair it resolves in a TravelMinutesBatch call.
	collector.RecordCacheHit("1->2")
	collector.RecordCacheHit("1->3")
	collector.RecordCacheMiss("2->3")

	stats := collector.GetStats()
	assert.Equal(t, int64(2), stats.CacheHits)
	assert.Equal(t, int64(1), stats.CacheMisses)
	assert.InDelta(t, 2.0/3.0, stats.CacheRatio, 0.001)
}

func TestInMemoryCollector_CacheRatio_ZeroWhenNoLookups(t *testing.T) {
	collector := NewInMemoryCollector()
	stats := collector.GetStats()
	assert.Equal(t, float64(0), stats.CacheRatio)
}

func TestInMemoryCollector_Reset(t *testing.T) {
	collector := NewInMemoryCollector()
	collector.RecordRequest("POST", "/seasons/2026/1")
	collector.RecordResponse("POST", "/seasons/2026/1", 200, time.Second)
	collector.RecordCacheHit("1->2")

	collector.Reset()

	stats := collector.GetStats()
	assert.Equal(t, int64(0), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.TotalResponses)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Empty(t, stats.RequestsByPath)
}

func TestInMemoryCollector_ConcurrentAccess(t *testing.T) {
	collector := NewInMemoryCollector()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordRequest("POST", "/weeks/2026-03-02/assign")
			collector.RecordResponse("POST", "/weeks/2026-03-02/assign", 200, time.Millisecond)
		}()
	}
	wg.Wait()

	stats := collector.GetStats()
	assert.Equal(t, int64(50), stats.TotalRequests)
	assert.Equal(t, int64(50), stats.TotalResponses)
}

func TestNoOpCollector(t *testing.T) {
	collector := NoOpCollector{}

	collector.RecordRequest("GET", "/healthz")
	collector.RecordResponse("GET", "/healthz", 200, 100*time.Millisecond)
	collector.RecordError("GET", "/healthz", errors.New("test error"))
	collector.RecordCacheHit("1->2")
	collector.RecordCacheMiss("1->2")

	stats := collector.GetStats()
	require.NotNil(t, stats)
	assert.Equal(t, int64(0), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.TotalResponses)
	assert.Equal(t, int64(0), stats.TotalErrors)
	assert.Equal(t, int64(0), stats.CacheHits)
	assert.Equal(t, int64(0), stats.CacheMisses)

	collector.Reset()
}

func TestCollectorInterface(t *testing.T) {
	var _ Collector = &InMemoryCollector{}
	var _ Collector = &NoOpCollector{}
	var _ Collector = NoOpCollector{}
}
