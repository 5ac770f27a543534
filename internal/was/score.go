// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package was

import (
	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// quality classifies how close a finished outcome came to the
// best-possible all-scheduled bound. The greedy construction has no
// solver-reported bound to compare against, so score() evaluated
// against that upper bound stands in for the gap a CP-SAT model would
// report.
type quality string

const (
	qualityOptimal   quality = "OPTIMAL"
	qualityExcellent quality = "EXCELLENT"
	qualityGood      quality = "GOOD"
	qualityOK        quality = "OK"
	qualityWeak      quality = "WEAK"
)

// score computes the full weekly-assignment objective over a finished
// outcome, used to rank pkg/searchpool's competing restarts.
func score(o outcome, in Input, candidates []model.Visit, rank map[model.ID]int) float64 {
	byID := map[model.ID]model.Visit{}
	for _, v := range candidates {
		byID[v.ID] = v
	}

	type userAgg struct {
		assigned    int
		weeklyCap   int
		projects    map[model.ID]int
		largeTeams  int
	}
	users := map[model.ID]*userAgg{}
	availByUser := map[model.ID]model.AvailabilityWeek{}
	for _, a := range in.Availability {
		availByUser[a.UserID] = a
	}
	userByID := map[model.ID]model.User{}
	for _, u := range in.Users {
		userByID[u.ID] = u
	}

	agg := func(id model.ID) *userAgg {
		a, ok := users[id]
		if !ok {
			a = &userAgg{weeklyCap: availByUser[id].TotalDays(), projects: map[model.ID]int{}}
			users[id] = a
		}
		return a
	}

	total := 0.0
	n := len(candidates)

	for vid, a := range o.assigned {
		v, ok := byID[vid]
		if !ok {
			continue
		}
		total += baseReward(rank[vid], n)

		large := v.RequiredResearchers >= 3
		needsSupervisor := v.RequiredResearchers >= 2 && isVleermuisVisit(v, in.Catalogue)
		hasSupervisor := false
		hasJuniorOrFlex := false
		hasEN, hasNL := false, false

		var projectID model.ID
		hasProject := false
		if in.ClusterProject != nil {
			projectID, hasProject = in.ClusterProject(v.ClusterID)
		}

		for _, uid := range a.userIDs {
			u := userByID[uid]
			ua := agg(uid)
			ua.assigned++
			if hasProject {
				ua.projects[projectID]++
			}
			if large {
				ua.largeTeams++
			}

			if in.UserTravel != nil {
				if minutes, ok := in.UserTravel(uid, v.ClusterID); ok {
					total -= travelPenaltyPerMin * float64(minutes)
				}
			}
			if u.IsSupervisor() {
				hasSupervisor = true
			}
			if u.ExperienceBat == model.ExperienceJunior || u.Contract == model.ContractFlex {
				hasJuniorOrFlex = true
			}
			switch u.Language {
			case model.LanguageEN:
				hasEN = true
			case model.LanguageNL:
				hasNL = true
			}
		}

		if needsSupervisor && hasJuniorOrFlex && !hasSupervisor {
			total -= couplingPenalty
		}
		if in.Settings != nil && in.Settings.ConstraintEnglishDutchTeaming && hasEN && !hasNL {
			total -= languagePenalty
		}
	}

	for _, ua := range users {
		if ua.weeklyCap > 0 {
			total -= loadWeight * (5.0 / float64(ua.weeklyCap)) * float64(ua.assigned*ua.assigned)
		}
		if in.Settings != nil && in.Settings.ConstraintLargeTeamPenalty && ua.largeTeams > 1 {
			total -= largeTeamPenalty * float64(ua.largeTeams-1)
		}
		for _, count := range ua.projects {
			if count > 1 {
				total -= projectExcessPenalty * float64(count-1)
			}
		}
	}

	if in.Settings != nil && in.Settings.FeatureDailyPlanning {
		total -= adjacentDayClusterPenalty(o, byID)
	}

	return total
}

// adjacentDayClusterPenalty charges adjacentDayPenalty for every pair
// of scheduled visits sharing a cluster whose chosen weekdays are the
// same or adjacent, spreading a cluster's fieldwork across the week.
func adjacentDayClusterPenalty(o outcome, byID map[model.ID]model.Visit) float64 {
	type placed struct {
		clusterID model.ID
		weekday   int
	}
	var rows []placed
	var ids []model.ID
	for vid := range o.assigned {
		ids = append(ids, vid)
	}
	for i := 0; i < len(ids); i++ {
		vi := byID[ids[i]]
		ai := o.assigned[ids[i]]
		rows = append(rows, placed{clusterID: vi.ClusterID, weekday: ai.weekday})
	}

	total := 0.0
	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			if rows[i].clusterID != rows[j].clusterID {
				continue
			}
			diff := rows[i].weekday - rows[j].weekday
			if diff < 0 {
				diff = -diff
			}
			if diff <= 1 {
				total += adjacentDayPenalty
			}
		}
	}
	return total
}

// classifyQuality places a finished outcome on the OPTIMAL/EXCELLENT/
// GOOD/OK/WEAK ladder by the gap between its score and the upper-bound
// score of scheduling every candidate with zero penalties.
func classifyQuality(o outcome, in Input, candidates []model.Visit, rank map[model.ID]int) quality {
	if len(candidates) == 0 {
		return qualityOptimal
	}
	if len(o.assigned) == 0 {
		return qualityWeak
	}

	bound := 0.0
	for _, v := range candidates {
		bound += baseReward(rank[v.ID], len(candidates))
	}
	if bound <= 0 {
		return qualityOptimal
	}

	obj := score(o, in, candidates, rank)
	gap := (bound - obj) / bound
	switch {
	case gap <= 0:
		return qualityOptimal
	case gap <= 0.01:
		return qualityExcellent
	case gap <= 0.05:
		return qualityGood
	case gap <= 0.15:
		return qualityOK
	default:
		return qualityWeak
	}
}
