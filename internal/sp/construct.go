// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package sp

import (
	"sort"
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// state is the mutable bookkeeping one construction pass threads
// through as it greedily commits visits to weeks. Demand is tracked
// four ways: per (skill, week), per (skill, week, daypart), per week
// over all skills, and per (week, daypart) over all skills, matching
// the four overflow penalty terms.
type state struct {
	demand           map[string]map[int]int                     // skill -> week -> demand
	partDemand       map[string]map[int]map[model.PartOfDay]int // skill -> week -> daypart -> demand
	globalDemand     map[int]int                                // week -> all-skill demand
	globalPartDemand map[int]map[model.PartOfDay]int            // week -> daypart -> all-skill demand
	load             map[int]int                                // week -> active-visit count
	diversity        map[int]map[model.ID]int                   // week -> project -> count
	assigned         map[model.ID]int                           // visitID -> chosen week
}

func newState() *state {
	return &state{
		demand:           map[string]map[int]int{},
		partDemand:       map[string]map[int]map[model.PartOfDay]int{},
		globalDemand:     map[int]int{},
		globalPartDemand: map[int]map[model.PartOfDay]int{},
		load:             map[int]int{},
		diversity:        map[int]map[model.ID]int{},
		assigned:         map[model.ID]int{},
	}
}

func (s *state) addDemand(skill string, week, amount int) {
	if s.demand[skill] == nil {
		s.demand[skill] = map[int]int{}
	}
	s.demand[skill][week] += amount
}

func (s *state) addPartDemand(skill string, week int, part model.PartOfDay, amount int) {
	if s.partDemand[skill] == nil {
		s.partDemand[skill] = map[int]map[model.PartOfDay]int{}
	}
	if s.partDemand[skill][week] == nil {
		s.partDemand[skill][week] = map[model.PartOfDay]int{}
	}
	s.partDemand[skill][week][part] += amount
}

func (s *state) commit(v model.Visit, week int, in Input) {
	s.assigned[v.ID] = week
	s.load[week]++

	d := demandAt(v, week)
	skill := qualify.RequiredSkillTag(v, in.Catalogue)
	if skill != "" {
		s.addDemand(skill, week, d)
		s.addPartDemand(skill, week, v.PartOfDay, d)
	}
	if needsInternCapacity(v) {
		s.addDemand(skillIntern, week, d)
	}
	if needsSupervisorCapacity(v, in.Catalogue) {
		s.addDemand(skillSupervisor, week, d)
	}

	s.globalDemand[week] += d
	if s.globalPartDemand[week] == nil {
		s.globalPartDemand[week] = map[model.PartOfDay]int{}
	}
	s.globalPartDemand[week][v.PartOfDay] += d

	if in.ClusterProject != nil {
		if pid, ok := in.ClusterProject(v.ClusterID); ok {
			if s.diversity[week] == nil {
				s.diversity[week] = map[model.ID]int{}
			}
			s.diversity[week][pid]++
		}
	}
}

// construct runs one deterministic greedy pass, ordered by protocol-
// chain depth (predecessors always scheduled before successors) and,
// within a depth, by priority; worker perturbs the tie-break order
// among visits at equal depth and priority to diversify the race.
func construct(in Input, weeks []int, supply supplyTable, chains map[model.ID]chain, worker int) plan {
	depth := depthOf(chains)
	pred := predecessorOf(chains)

	s := newState()

	// Seed the demand/load state with every locked visit's fixed
	// week first, since unlocked visits must be evaluated against the
	// capacity they already consume.
	var unlocked []model.Visit
	for _, v := range in.Visits {
		if week, ok := lockedWeek(v); ok {
			s.commit(v, week, in)
			continue
		}
		unlocked = append(unlocked, v)
	}

	order := orderForConstruction(unlocked, depth, worker, in.HorizonStart)

	for _, v := range order {
		candidates := allowedWeeks(v, weeks)
		if p, ok := pred[v.ID]; ok {
			if predWeek, active := s.assigned[p.PredecessorID]; active {
				candidates = filterWeeksAfter(candidates, predWeek, p.GapWeeks)
			}
		}
		if len(candidates) == 0 {
			continue
		}

		bestWeek := candidates[0]
		bestScore := marginalScore(v, bestWeek, s, supply, in)
		for _, week := range candidates[1:] {
			sc := marginalScore(v, week, s, supply, in)
			if sc > bestScore {
				bestScore = sc
				bestWeek = week
			}
		}
		s.commit(v, bestWeek, in)
	}

	return plan{weekOf: s.assigned}
}

// filterWeeksAfter keeps only weeks satisfying week > predWeek (week
// ordinals are directly orderable within one planning year) and
// week - predWeek >= gapWeeks.
func filterWeeksAfter(weeks []int, predWeek, gapWeeks int) []int {
	var out []int
	for _, w := range weeks {
		if w <= predWeek {
			continue
		}
		if w-predWeek < gapWeeks {
			continue
		}
		out = append(out, w)
	}
	return out
}

func orderForConstruction(visits []model.Visit, depth map[model.ID]int, worker int, horizonStart time.Time) []model.Visit {
	byDepth := map[int][]model.Visit{}
	var depths []int
	for _, v := range visits {
		d := depth[v.ID]
		if _, seen := byDepth[d]; !seen {
			depths = append(depths, d)
		}
		byDepth[d] = append(byDepth[d], v)
	}
	sort.Ints(depths)

	var out []model.Visit
	for _, d := range depths {
		group := byDepth[d]
		sort.Slice(group, func(i, j int) bool {
			return priorityLess(group[j], group[i], horizonStart) // descending priority
		})
		if worker > 0 && len(group) > 1 {
			n := worker % len(group)
			group = append(append([]model.Visit(nil), group[n:]...), group[:n]...)
		}
		out = append(out, group...)
	}
	return out
}

// priorityLess orders visits ascending by construction priority: the
// least urgent/important visit sorts first. Used with a descending
// comparator above so the most important visit is scheduled first.
func priorityLess(a, b model.Visit, horizonStart time.Time) bool {
	ua, ub := isUrgent(a, horizonStart), isUrgent(b, horizonStart)
	if ua != ub {
		return !ua
	}
	if a.Priority != b.Priority {
		return !a.Priority
	}
	if !a.ToDate.Equal(b.ToDate) {
		return a.ToDate.After(b.ToDate)
	}
	return a.ID > b.ID
}

// isUrgent reports whether v's deadline falls within urgentWithinDays
// of the planning horizon's start.
func isUrgent(v model.Visit, horizonStart time.Time) bool {
	if horizonStart.IsZero() {
		return false
	}
	return !v.ToDate.After(horizonStart.AddDate(0, 0, urgentWithinDays))
}
