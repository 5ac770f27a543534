// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package sp implements the Seasonal Planner: given every open Visit
// and per-week researcher availability, it assigns each visit a
// provisional ISO week within the current year, maximising a
// hierarchical objective of urgency, priority, protocol sequencing,
// capacity fit, project diversity, and load smoothness.
//
// No CP-SAT-class solver exists among this module's dependencies (see
// internal/vcs's equivalent note). SP replaces the integer-programming
// formulation with the same multi-restart greedy
// shape VCS uses: several deterministic priority-order rotations race
// across pkg/searchpool's bounded worker pool, each producing a full
// candidate assignment, and the highest-scoring candidate by the full
// hierarchical objective wins.
package sp

import (
	"context"
	"sort"
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
	plerrors "github.com/vwp-nl/fieldplan-core/pkg/errors"
	"github.com/vwp-nl/fieldplan-core/pkg/logging"
	"github.com/vwp-nl/fieldplan-core/pkg/searchpool"
)

const (
	searchWorkers = 8

	skillIntern     = "Intern"
	skillSupervisor = "Supervisor"

	rewardActive    = 100_000.0
	rewardUrgent    = 150_000.0
	rewardPriority  = 50_000.0
	penaltyOverflow = 200_000.0
	penaltyIntern   = 200_000.0
	penaltySupervisor = 100.0
	penaltyDiversity  = 10.0
	penaltySuccessorRisk = 500.0
	loadWeightCoefficient = 1.0 / 10.0
	slackWeightPerWeek    = 10.0

	urgentWithinDays = 14
)

// ClusterProject resolves a Cluster to the Project it belongs to, used
// by the project-diversity penalty.
type ClusterProject func(clusterID model.ID) (projectID model.ID, ok bool)

// ProtocolLookup resolves a Protocol by id, used to compute the
// sequencing gap (in weeks) between visits sharing a protocol.
type ProtocolLookup func(id model.ID) (model.Protocol, bool)

// Input bundles everything one Plan call needs. It is a read-only
// snapshot: Plan never mutates its arguments, only the returned slice.
type Input struct {
	Visits        []model.Visit
	Users         []model.User
	Availability  []model.AvailabilityWeek
	Catalogue     qualify.Catalogue
	Protocol      ProtocolLookup
	ClusterProject ClusterProject
	CurrentYear   int
	HorizonStart  time.Time
}

// Plan runs the Seasonal Planner and returns every visit with its
// ProvisionalWeek updated: set when the visit is active and unlocked,
// cleared when inactive and unlocked, untouched when locked.
func Plan(ctx context.Context, in Input, logger logging.Logger) ([]model.Visit, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	start := time.Now()
	logger = logging.LogOperation(logger, "sp.plan", "year", in.CurrentYear, "visit_count", len(in.Visits))
	if len(in.Visits) == 0 {
		return nil, nil
	}

	weeks := yearWeeks(in.CurrentYear)
	supply := buildSupply(in.Users, in.Availability, weeks)
	chains := buildProtocolChains(in.Visits, in.Protocol)

	pool := searchpool.New(searchWorkers, logger)
	best, ok := searchpool.Best(ctx, pool, searchWorkers, func(_ context.Context, worker int) (plan, bool) {
		return construct(in, weeks, supply, chains, worker), true
	}, func(p plan) float64 {
		return score(p, in, supply)
	}, searchpool.MaxScore)

	if !ok {
		return nil, plerrors.SeasonalInfeasible("no feasible seasonal assignment", nil)
	}

	activeCount := 0
	out := make([]model.Visit, len(in.Visits))
	for i, v := range in.Visits {
		if isLocked(v) {
			out[i] = v
			if v.ProvisionalWeek != nil {
				activeCount++
			}
			continue
		}
		week, active := best.weekOf[v.ID]
		if active {
			w := week
			v.ProvisionalWeek = &w
			activeCount++
		} else {
			v.ProvisionalWeek = nil
		}
		out[i] = v
	}

	if activeCount == 0 {
		return nil, plerrors.SeasonalInfeasible("seasonal plan left every visit inactive", nil)
	}

	logger.Info("seasonal plan complete", "visit_count", len(in.Visits), "active_count", activeCount)
	logging.LogDuration(logger, start, "sp.plan")
	return out, nil
}

// plan is one candidate full assignment: the chosen week for every
// active visit. Visits absent from weekOf are inactive.
type plan struct {
	weekOf map[model.ID]int
}

func isLocked(v model.Visit) bool {
	if v.PlannedWeek != nil {
		return true
	}
	return v.ProvisionalLocked && v.ProvisionalWeek != nil
}

func lockedWeek(v model.Visit) (int, bool) {
	if v.PlannedWeek != nil {
		return *v.PlannedWeek, true
	}
	if v.ProvisionalLocked && v.ProvisionalWeek != nil {
		return *v.ProvisionalWeek, true
	}
	return 0, false
}

// yearWeeks returns every ISO week ordinal in year, in ascending order.
func yearWeeks(year int) []int {
	return calendar.YearWeeks(year)
}

// allowedWeeks returns the ISO week ordinals within weeks whose work
// week (Mon-Fri) overlaps the visit's [FromDate, ToDate] window.
func allowedWeeks(v model.Visit, weeks []int) []int {
	var out []int
	for _, ord := range weeks {
		year, week := calendar.WeekFromOrdinal(ord)
		mon, fri := calendar.WorkWeekBounds(year, week)
		if calendar.OverlapDays(v.FromDate, v.ToDate, mon, fri) > 0 {
			out = append(out, ord)
		}
	}
	return out
}

// chain is one protocol's visits in ascending visit-index order.
type chain struct {
	visitIDs   []model.ID
	gapWeeks   []int // gapWeeks[i] separates visitIDs[i] from visitIDs[i+1]
}

func buildProtocolChains(visits []model.Visit, lookup ProtocolLookup) map[model.ID]chain {
	type entry struct {
		visitID model.ID
		index   int
	}
	byProtocol := map[model.ID][]entry{}

	for _, v := range visits {
		for pid, idx := range v.ProtocolVisitIndex {
			byProtocol[pid] = append(byProtocol[pid], entry{visitID: v.ID, index: idx})
		}
	}

	chains := map[model.ID]chain{}
	for pid, entries := range byProtocol {
		sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })

		gapDays := 0
		if lookup != nil {
			if p, ok := lookup(pid); ok {
				if days, err := calendar.DaysFromMinPeriod(p.MinGapValue, string(p.MinGapUnit)); err == nil {
					gapDays = days
				}
			}
		}

		c := chain{}
		for i, e := range entries {
			c.visitIDs = append(c.visitIDs, e.visitID)
			if i > 0 {
				c.gapWeeks = append(c.gapWeeks, calendar.DaysToWeeks(gapDays))
			}
		}
		chains[pid] = c
	}
	return chains
}

// predecessorOf returns, for each visit, its immediate predecessor
// visit (if any) under any protocol chain it participates in, and the
// required gap in weeks. A visit may be a successor under only one
// protocol in practice (VCS never merges a predecessor and successor
// of the same protocol into one visit, and distinct protocols rarely
// share a visit's whole chain), so the first match wins.
func predecessorOf(chains map[model.ID]chain) map[model.ID]struct {
	PredecessorID model.ID
	GapWeeks      int
} {
	out := map[model.ID]struct {
		PredecessorID model.ID
		GapWeeks      int
	}{}
	for _, c := range chains {
		for i := 1; i < len(c.visitIDs); i++ {
			out[c.visitIDs[i]] = struct {
				PredecessorID model.ID
				GapWeeks      int
			}{PredecessorID: c.visitIDs[i-1], GapWeeks: c.gapWeeks[i-1]}
		}
	}
	return out
}

// depthOf returns each visit's 0-based position within its deepest
// protocol chain, used to order construction so predecessors are
// always assigned before their successors.
func depthOf(chains map[model.ID]chain) map[model.ID]int {
	out := map[model.ID]int{}
	for _, c := range chains {
		for i, id := range c.visitIDs {
			if cur, ok := out[id]; !ok || i > cur {
				out[id] = i
			}
		}
	}
	return out
}
