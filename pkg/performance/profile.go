// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package performance

// PerformanceProfile represents different performance optimization profiles
// for the travel-time route cache.
type PerformanceProfile string

const (
	// ProfileDefault provides balanced performance and resource usage
	ProfileDefault PerformanceProfile = "default"

	// ProfileHighThroughput optimizes for maximum throughput; it is the
	// travel client's route-cache profile unless strict availability is on
	ProfileHighThroughput PerformanceProfile = "high_throughput"

	// ProfileLowLatency optimizes for minimum latency
	ProfileLowLatency PerformanceProfile = "low_latency"

	// ProfileConservative minimizes resource usage
	ProfileConservative PerformanceProfile = "conservative"

	// ProfileBatch optimizes for batch processing
	ProfileBatch PerformanceProfile = "batch"
)
