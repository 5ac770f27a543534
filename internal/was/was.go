// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package was implements the Weekly Assignment Solver: given a Monday,
// it picks which eligible visits to execute that week and assigns
// concrete researchers (and, under the daily-planning feature, a
// concrete weekday) to each, maximising a hierarchical objective of
// priority rank, travel cost, load balance, team composition, and
// language pairing.
//
// Like internal/sp, no CP-SAT-class solver exists among this module's
// dependencies, so WAS races two pkg/searchpool workers over a
// deterministic greedy construction and keeps the highest-scoring
// candidate by the full objective.
package was

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
	"github.com/vwp-nl/fieldplan-core/pkg/config"
	plerrors "github.com/vwp-nl/fieldplan-core/pkg/errors"
	"github.com/vwp-nl/fieldplan-core/pkg/logging"
	"github.com/vwp-nl/fieldplan-core/pkg/searchpool"
)

const (
	searchWorkers = 2

	baseRewardFloor    = 10_000.0
	baseRewardPerRank  = 100.0
	travelPenaltyPerMin = 2.0
	loadWeight          = 40.0
	largeTeamPenalty    = 60.0
	couplingPenalty     = 30.0
	projectExcessPenalty = 10.0
	languagePenalty      = 50.0
	adjacentDayPenalty   = 25.0
	consecutiveTravelCap = 30 // minutes

	urgentWithinDays = 14

	// FailureCodeWeakQuality and FailureCodeInfeasible are the closed
	// set of reasons Plan raises PlanningRunFailure for.
	FailureCodeWeakQuality = "WEAK_QUALITY"
	FailureCodeInfeasible  = "INFEASIBLE"
)

// ClusterProject resolves a Cluster to the Project it belongs to.
type ClusterProject func(clusterID model.ID) (projectID model.ID, ok bool)

// ProtocolLookup resolves a Protocol by id.
type ProtocolLookup func(id model.ID) (model.Protocol, bool)

// ProtocolChainState reports, for a protocol, the lowest visit_index
// still open (not Executed/Approved) across every visit of that
// protocol — not just this week's candidates — so WAS can enforce
// ordering against predecessors outside the weekly window.
type ProtocolChainState func(protocolID model.ID) (lowestOpenIndex int, ok bool)

// LastLockedStart reports the most recent start date of a locked
// (Planned or later) visit for (protocolID, clusterID), used by the
// frequency lockout check.
type LastLockedStart func(protocolID, clusterID model.ID) (time.Time, bool)

// UserTravelMinutes reports the precomputed travel time between a
// user's home address and a cluster.
type UserTravelMinutes func(userID, clusterID model.ID) (minutes int, ok bool)

// ClusterTravelMinutes reports the precomputed travel time between two
// clusters, used by the consecutive-daypart proximity constraint.
type ClusterTravelMinutes func(a, b model.ID) (minutes int, ok bool)

// IsQuoteProject reports whether a project is a not-yet-billable quote,
// excluded from WAS candidacy.
type IsQuoteProject func(projectID model.ID) bool

// Input bundles everything one Plan call needs for a single week.
type Input struct {
	WeekMonday  time.Time
	CurrentWeek int // calendar.WeekOrdinal(year, week) of WeekMonday

	Visits []model.Visit
	Users  []model.User
	// Availability holds one row per user for the week being planned.
	Availability []model.AvailabilityWeek

	Catalogue      qualify.Catalogue
	Protocol       ProtocolLookup
	ClusterProject ClusterProject
	IsQuoteProject IsQuoteProject
	ChainState     ProtocolChainState
	LastLocked     LastLockedStart
	UserTravel     UserTravelMinutes
	ClusterTravel  ClusterTravelMinutes

	Settings *config.SolverSettings
}

// Output is the result of one Plan call.
type Output struct {
	Visits           []model.Visit
	SkippedVisitIDs  []model.ID
	QualificationGap *plerrors.PlanningError // non-nil when SkippedVisitIDs is non-empty for lack of qualified researchers
}

// Plan runs the Weekly Assignment Solver for one week.
func Plan(ctx context.Context, in Input, logger logging.Logger) (Output, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	start := time.Now()
	logger = logging.LogOperation(logger, "was.plan", "week", in.CurrentWeek)
	if in.Settings == nil {
		in.Settings = config.Default()
	}
	if len(in.Visits) == 0 {
		return Output{}, nil
	}

	candidates, excluded, noQualifiedSkip := filterCandidates(in)
	if len(candidates) == 0 {
		return finalize(in, nil, candidates, excluded, noQualifiedSkip), nil
	}

	rank := rankCandidates(candidates, in)

	pool := searchpool.New(searchWorkers, logger)
	best, ok := searchpool.Best(ctx, pool, searchWorkers, func(_ context.Context, worker int) (outcome, bool) {
		return construct(in, candidates, rank, worker), true
	}, func(o outcome) float64 {
		return score(o, in, candidates, rank)
	}, searchpool.MaxScore)

	if !ok {
		return Output{}, plerrors.PlanningRunFailure(FailureCodeInfeasible, "weekly assignment solver found no feasible candidate", nil)
	}

	quality := classifyQuality(best, in, candidates, rank)
	if quality == qualityWeak && budgetExhausted(ctx, start) {
		return Output{}, plerrors.PlanningRunFailure(FailureCodeWeakQuality, "weekly assignment solution quality too weak", nil)
	}

	logger.Info("weekly assignment complete", "candidate_count", len(candidates), "scheduled_count", len(best.assigned), "quality", string(quality))
	logging.LogDuration(logger, start, "was.plan")
	return finalize(in, &best, candidates, excluded, noQualifiedSkip), nil
}

// finalize folds the construction outcome back onto every input
// visit: scheduled candidates are transitioned to Planned, visits
// excluded somewhere in the pre-processing pipeline, or a real
// candidate the solver couldn't fit into capacity, are reported in
// SkippedVisitIDs, and visits outside this week's scope entirely pass
// through unchanged.
func finalize(in Input, o *outcome, candidates []model.Visit, excluded map[model.ID]bool, noQualifiedSkip map[model.ID]bool) Output {
	inScope := map[model.ID]bool{}
	for id := range excluded {
		inScope[id] = true
	}
	for _, v := range candidates {
		inScope[v.ID] = true
	}

	var out Output
	var skipped []model.ID
	hasGap := false

	for _, v := range in.Visits {
		if o != nil {
			if a, scheduled := o.assigned[v.ID]; scheduled {
				v.State = model.StatePlanned
				w := in.CurrentWeek
				v.PlannedWeek = &w
				if in.Settings.FeatureDailyPlanning {
					d := weekdayDate(in.WeekMonday, a.weekday)
					v.PlannedDate = &d
				}
				v.ResearcherIDs = a.userIDs
				out.Visits = append(out.Visits, v)
				continue
			}
		}
		if inScope[v.ID] {
			skipped = append(skipped, v.ID)
			if noQualifiedSkip[v.ID] {
				hasGap = true
			}
		}
		out.Visits = append(out.Visits, v)
	}

	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	out.SkippedVisitIDs = skipped
	if hasGap {
		out.QualificationGap = plerrors.QualificationGap("some visits were skipped for lack of a qualified available researcher")
	}
	return out
}

// budgetExhausted reports whether the search consumed essentially its
// whole wall-clock budget (>= 99% of the context deadline measured
// from start). A WEAK solution found quickly is a capacity statement,
// not a search failure, and is kept; only WEAK plus an exhausted
// budget rejects the run.
func budgetExhausted(ctx context.Context, start time.Time) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	limit := deadline.Sub(start)
	if limit <= 0 {
		return true
	}
	return time.Since(start) >= time.Duration(float64(limit)*0.99)
}

func weekdayDate(monday time.Time, weekday int) time.Time {
	return monday.AddDate(0, 0, weekday)
}

// allowedWeekdays returns the 0-4 (Mon-Fri) offsets whose date falls
// within [v.FromDate, v.ToDate].
func allowedWeekdays(v model.Visit, monday time.Time) []int {
	var out []int
	for d := 0; d < 5; d++ {
		day := monday.AddDate(0, 0, d)
		if !day.Before(v.FromDate) && !day.After(v.ToDate) {
			out = append(out, d)
		}
	}
	return out
}

func isUrgentWAS(v model.Visit, monday time.Time) bool {
	return !v.ToDate.After(monday.AddDate(0, 0, urgentWithinDays))
}

func isVleermuisVisit(v model.Visit, cat qualify.Catalogue) bool {
	for _, sid := range v.SpeciesIDs {
		sp, ok := cat.Species(sid)
		if !ok {
			continue
		}
		fam, ok := cat.Family(sp.FamilyID)
		if ok && strings.EqualFold(fam.Name, "vleermuis") {
			return true
		}
	}
	return false
}
