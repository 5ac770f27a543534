// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package config loads the closed set of environment variables the
// planning core consumes into a single immutable SolverSettings value.
package config

import (
	"os"
	"strconv"
	"time"
)

// SolverSettings is the "dynamic attribute access maps to explicit,
// typed configuration struct" record called for in the design notes. A
// SolverSettings is built once at process start-up and treated as
// immutable afterwards — the only process-wide state besides the
// travel-time cache.
type SolverSettings struct {
	// MinEffectiveWindowDays is the minimum acceptable overlap, in
	// days, between the windows of two visit requests merged into one
	// VCS clique. Default 10.
	MinEffectiveWindowDays int

	// FeatureStrictAvailability relaxes WAS's per-day uniqueness
	// constraint to allow up to two visits per researcher per day.
	FeatureStrictAvailability bool

	// FeatureDailyPlanning turns on WAS's planned_date output and the
	// same-or-adjacent-day-in-cluster penalty.
	FeatureDailyPlanning bool

	// ConstraintEnglishDutchTeaming penalises WAS assignments where an
	// EN speaker is assigned without an NL speaker on the same visit.
	ConstraintEnglishDutchTeaming bool

	// ConstraintLargeTeamPenalty penalises researchers over-assigned to
	// visits requiring >=3 researchers.
	ConstraintLargeTeamPenalty bool

	// ConstraintConsecutiveTravelPenalty forbids same/adjacent-daypart
	// assignments whose inter-cluster travel time exceeds 30 minutes.
	ConstraintConsecutiveTravelPenalty bool

	// MaxTravelMinutes is the hard travel-time cutoff for any (visit,
	// researcher) pairing. Default 75.
	MaxTravelMinutes int

	// SeasonPlannerTimeoutQuick is the wall-clock budget for an
	// interactive SP invocation. Default 60s.
	SeasonPlannerTimeoutQuick time.Duration

	// SeasonPlannerTimeoutThorough is the wall-clock budget for a
	// background/batch SP invocation. Default 180s.
	SeasonPlannerTimeoutThorough time.Duration
}

// Default returns the solver's documented default settings, before any
// environment override is applied.
func Default() *SolverSettings {
	return &SolverSettings{
		MinEffectiveWindowDays:       10,
		MaxTravelMinutes:             75,
		SeasonPlannerTimeoutQuick:    60 * time.Second,
		SeasonPlannerTimeoutThorough: 180 * time.Second,
	}
}

// Load builds a SolverSettings from the process environment, starting
// from Default() and overriding any variable that is present and
// parseable. Unparseable values are ignored, leaving the prior value in
// place rather than failing start-up.
func Load() *SolverSettings {
	s := Default()
	s.ApplyEnv()
	return s
}

// ApplyEnv re-reads the environment into an existing SolverSettings,
// used by tests that need to mutate os.Setenv between calls.
func (s *SolverSettings) ApplyEnv() {
	if v, ok := getEnvInt("MIN_EFFECTIVE_WINDOW_DAYS"); ok {
		s.MinEffectiveWindowDays = v
	}
	s.FeatureStrictAvailability = getEnvBool("FEATURE_STRICT_AVAILABILITY", s.FeatureStrictAvailability)
	s.FeatureDailyPlanning = getEnvBool("FEATURE_DAILY_PLANNING", s.FeatureDailyPlanning)
	s.ConstraintEnglishDutchTeaming = getEnvBool("CONSTRAINT_ENGLISH_DUTCH_TEAMING", s.ConstraintEnglishDutchTeaming)
	s.ConstraintLargeTeamPenalty = getEnvBool("CONSTRAINT_LARGE_TEAM_PENALTY", s.ConstraintLargeTeamPenalty)
	s.ConstraintConsecutiveTravelPenalty = getEnvBool("CONSTRAINT_CONSECUTIVE_TRAVEL_PENALTY", s.ConstraintConsecutiveTravelPenalty)
	if v, ok := getEnvInt("CONSTRAINT_MAX_TRAVEL_TIME_MINUTES"); ok {
		s.MaxTravelMinutes = v
	}
	if v, ok := getEnvSeconds("SEASON_PLANNER_TIMEOUT_QUICK_SECONDS"); ok {
		s.SeasonPlannerTimeoutQuick = v
	}
	if v, ok := getEnvSeconds("SEASON_PLANNER_TIMEOUT_THOROUGH_SECONDS"); ok {
		s.SeasonPlannerTimeoutThorough = v
	}
}

// Validate rejects settings that cannot drive a solver run.
func (s *SolverSettings) Validate() error {
	if s.MinEffectiveWindowDays <= 0 {
		return ErrInvalidMinEffectiveWindow
	}
	if s.MaxTravelMinutes <= 0 {
		return ErrInvalidMaxTravel
	}
	if s.SeasonPlannerTimeoutQuick <= 0 || s.SeasonPlannerTimeoutThorough <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

func getEnvInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getEnvSeconds(key string) (time.Duration, bool) {
	i, ok := getEnvInt(key)
	if !ok {
		return 0, false
	}
	return time.Duration(i) * time.Second, true
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
