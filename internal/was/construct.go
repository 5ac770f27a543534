// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package was

import (
	"sort"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// assignment is one scheduled visit's chosen weekday and team.
type assignment struct {
	weekday int
	userIDs []model.ID
}

// outcome is one candidate full assignment produced by a construction
// pass.
type outcome struct {
	assigned map[model.ID]assignment
}

// trackedAssignment is one user's committed (day, part, cluster),
// kept to evaluate the consecutive-daypart proximity constraint
// against every later assignment to the same user.
type trackedAssignment struct {
	weekday   int
	part      model.PartOfDay
	clusterID model.ID
}

type userState struct {
	weeklyUsed int
	weeklyCap  int
	partUsed   map[model.PartOfDay]int
	partCap    map[model.PartOfDay]int
	flexUsed   int
	flexCap    int
	dayUsed    map[int]int
	projectUse map[model.ID]int
	largeTeams int
	history    []trackedAssignment
}

type constructState struct {
	users map[model.ID]*userState
}

func newConstructState(in Input) *constructState {
	cs := &constructState{users: map[model.ID]*userState{}}
	availByUser := map[model.ID]model.AvailabilityWeek{}
	for _, a := range in.Availability {
		availByUser[a.UserID] = a
	}
	for _, u := range in.Users {
		if u.SoftDeleted() {
			continue
		}
		a, ok := availByUser[u.ID]
		if !ok {
			continue
		}
		cs.users[u.ID] = &userState{
			weeklyCap: a.TotalDays(),
			partCap: map[model.PartOfDay]int{
				model.PartOchtend: a.MorningDays,
				model.PartDag:     a.DaytimeDays,
				model.PartAvond:   a.NighttimeDays,
			},
			partUsed:   map[model.PartOfDay]int{},
			flexCap:    a.FlexDays,
			dayUsed:    map[int]int{},
			projectUse: map[model.ID]int{},
		}
	}
	return cs
}

// canAfford reports whether assigning one more visit of part p to user
// u on weekday d, in cluster clusterID, is possible without exceeding
// its weekly/daypart/flex/per-day caps or violating the consecutive-
// travel constraint, without mutating state.
func (cs *constructState) canAfford(u model.ID, d int, p model.PartOfDay, clusterID model.ID, in Input) bool {
	s, ok := cs.users[u]
	if !ok {
		return false
	}
	if s.weeklyUsed >= s.weeklyCap {
		return false
	}
	dayCap := 1
	if in.Settings != nil && in.Settings.FeatureStrictAvailability {
		dayCap = 2
	}
	if s.dayUsed[d] >= dayCap {
		return false
	}
	if s.partUsed[p] >= s.partCap[p] && s.flexUsed >= s.flexCap {
		return false
	}
	if in.Settings != nil && in.Settings.ConstraintConsecutiveTravelPenalty && in.ClusterTravel != nil {
		if violatesConsecutiveTravel(s.history, d, p, clusterID, in) {
			return false
		}
	}
	return true
}

func (cs *constructState) commit(u model.ID, d int, p model.PartOfDay, clusterID, projectID model.ID, hasProject bool, largeTeam bool) {
	s := cs.users[u]
	s.weeklyUsed++
	s.dayUsed[d]++
	if s.partUsed[p] < s.partCap[p] {
		s.partUsed[p]++
	} else {
		s.flexUsed++
	}
	if hasProject {
		s.projectUse[projectID]++
	}
	if largeTeam {
		s.largeTeams++
	}
	s.history = append(s.history, trackedAssignment{weekday: d, part: p, clusterID: clusterID})
}

// violatesConsecutiveTravel forbids a joint assignment across
// consecutive dayparts (Ochtend->Dag or Dag->Avond same day,
// Avond(d)->Ochtend(d+1)) when the clusters are more than 30 travel
// minutes apart.
func violatesConsecutiveTravel(history []trackedAssignment, d int, p model.PartOfDay, clusterID model.ID, in Input) bool {
	for _, h := range history {
		adjacent := false
		switch {
		case h.weekday == d && h.part == model.PartOchtend && p == model.PartDag:
			adjacent = true
		case h.weekday == d && h.part == model.PartDag && p == model.PartOchtend:
			adjacent = true
		case h.weekday == d && h.part == model.PartDag && p == model.PartAvond:
			adjacent = true
		case h.weekday == d && h.part == model.PartAvond && p == model.PartDag:
			adjacent = true
		case h.weekday == d-1 && h.part == model.PartAvond && p == model.PartOchtend:
			adjacent = true
		case h.weekday == d+1 && h.part == model.PartOchtend && p == model.PartAvond:
			adjacent = true
		}
		if !adjacent || h.clusterID == clusterID {
			continue
		}
		minutes, ok := in.ClusterTravel(h.clusterID, clusterID)
		if ok && minutes > consecutiveTravelCap {
			return true
		}
	}
	return false
}

// construct runs one deterministic greedy pass over candidates ordered
// by priority rank; worker perturbs the weekday search order among a
// visit's allowed days to diversify pkg/searchpool's competing
// restarts.
func construct(in Input, candidates []model.Visit, rank map[model.ID]int, worker int) outcome {
	ordered := make([]model.Visit, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool { return rank[ordered[i].ID] < rank[ordered[j].ID] })

	cs := newConstructState(in)
	out := outcome{assigned: map[model.ID]assignment{}}

	for _, v := range ordered {
		days := allowedWeekdays(v, in.WeekMonday)
		if len(days) == 0 {
			continue
		}
		if worker > 0 {
			n := worker % len(days)
			days = append(append([]int(nil), days[n:]...), days[:n]...)
		}

		large := v.RequiredResearchers >= 3
		needsSupervisor := v.RequiredResearchers >= 2 && isVleermuisVisit(v, in.Catalogue)
		projectID, hasProject := model.ID(0), false
		if in.ClusterProject != nil {
			projectID, hasProject = in.ClusterProject(v.ClusterID)
		}

		for _, d := range days {
			team, ok := selectTeam(v, d, cs, in, needsSupervisor)
			if !ok {
				continue
			}
			for _, uid := range team {
				cs.commit(uid, d, v.PartOfDay, v.ClusterID, projectID, hasProject, large)
			}
			out.assigned[v.ID] = assignment{weekday: d, userIDs: team}
			break
		}
	}

	return out
}

// selectTeam greedily picks required_researchers users for v on
// weekday d: travel-eligible and capacity-available users are sorted
// by ascending travel minutes (supervisors first when the visit needs
// one to avoid the coupling penalty), then by user ID for determinism.
func selectTeam(v model.Visit, d int, cs *constructState, in Input, needsSupervisor bool) ([]model.ID, bool) {
	type scored struct {
		id         model.ID
		travel     int
		supervisor bool
	}
	var pool []scored
	for _, u := range in.Users {
		if u.SoftDeleted() {
			continue
		}
		if !Qualifies(v, u, in) {
			continue
		}
		if !cs.canAfford(u.ID, d, v.PartOfDay, v.ClusterID, in) {
			continue
		}
		minutes := 0
		if in.UserTravel != nil {
			if m, ok := in.UserTravel(u.ID, v.ClusterID); ok {
				minutes = m
			}
		}
		pool = append(pool, scored{id: u.ID, travel: minutes, supervisor: u.IsSupervisor()})
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if needsSupervisor && a.supervisor != b.supervisor {
			return a.supervisor
		}
		if a.travel != b.travel {
			return a.travel < b.travel
		}
		return a.id < b.id
	})

	if len(pool) < v.RequiredResearchers {
		return nil, false
	}
	team := make([]model.ID, v.RequiredResearchers)
	for i := 0; i < v.RequiredResearchers; i++ {
		team[i] = pool[i].id
	}
	return team, true
}
