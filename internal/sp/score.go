// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package sp

import (
	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// marginalScore estimates the objective delta of committing v to
// week, given the capacity already consumed by s. It is used only to
// pick among a visit's candidate weeks during greedy construction;
// score() below recomputes the true objective over the finished plan
// for comparing the pkg/searchpool restarts against each other.
func marginalScore(v model.Visit, week int, s *state, supply supplyTable, in Input) float64 {
	total := rewardActive
	if isUrgent(v, in.HorizonStart) {
		total += rewardUrgent
	}
	if v.Priority {
		total += rewardPriority
	}
	if !in.HorizonStart.IsZero() {
		_, w := calendar.WeekFromOrdinal(week)
		total -= slackWeightPerWeek * float64(w)
	}

	skill := qualify.RequiredSkillTag(v, in.Catalogue)
	addedDemand := demandAt(v, week)
	if skill != "" {
		total -= overflowDelta(s.demand[skill], supply.bySkillWeek[skill], week, addedDemand)
		total -= penaltyOverflow * float64(partOverflowDelta(
			s.partDemand[skill][week], supply.dedicatedAt(skill, week), supply.flexAt(skill, week), v.PartOfDay, addedDemand))
	}
	if needsInternCapacity(v) {
		total -= penaltyIntern / penaltyOverflow * overflowDelta(s.demand[skillIntern], supply.bySkillWeek[skillIntern], week, addedDemand)
	}
	if needsSupervisorCapacity(v, in.Catalogue) {
		total -= penaltySupervisor / penaltyOverflow * overflowDelta(s.demand[skillSupervisor], supply.bySkillWeek[skillSupervisor], week, addedDemand)
	}

	total -= overflowDelta(s.globalDemand, supply.globalWeek, week, addedDemand)
	total -= penaltyOverflow * float64(partOverflowDelta(
		s.globalPartDemand[week], supply.globalDedicatedAt(week), supply.globalFlexAt(week), v.PartOfDay, addedDemand))

	if in.ClusterProject != nil {
		if pid, ok := in.ClusterProject(v.ClusterID); ok {
			current := s.diversity[week][pid]
			if current >= 1 {
				total -= penaltyDiversity
			}
		}
	}

	currentLoad := s.load[week]
	delta := float64((currentLoad+1)*(currentLoad+1)-currentLoad*currentLoad) * loadWeightCoefficient
	total -= delta

	return total
}

// overflowDelta returns how much additional overflow penalty (in raw
// "demand units over supply", to be scaled by the caller) results from
// adding `added` demand to (skillDemand, week) given `skillSupply`.
func overflowDelta(skillDemand map[int]int, skillSupply map[int]int, week, added int) float64 {
	before := skillDemand[week]
	after := before + added
	sup := skillSupply[week]
	overBefore := before - sup
	if overBefore < 0 {
		overBefore = 0
	}
	overAfter := after - sup
	if overAfter < 0 {
		overAfter = 0
	}
	return penaltyOverflow * float64(overAfter-overBefore)
}

// partOverflowDelta is the change in a bucket's flexedOverflow from
// adding demand to one of its dayparts.
func partOverflowDelta(partDemand, dedicated map[model.PartOfDay]int, flex int, part model.PartOfDay, added int) int {
	before := flexedOverflow(partDemand, dedicated, flex)
	bumped := make(map[model.PartOfDay]int, len(partDemand)+1)
	for p, d := range partDemand {
		bumped[p] = d
	}
	bumped[part] += added
	return flexedOverflow(bumped, dedicated, flex) - before
}

// score computes the full hierarchical objective over a finished plan,
// used to rank pkg/searchpool's competing restarts against each other.
func score(p plan, in Input, supply supplyTable) float64 {
	total := 0.0

	demand := map[string]map[int]int{}
	partDemand := map[string]map[int]map[model.PartOfDay]int{}
	globalDemand := map[int]int{}
	globalPartDemand := map[int]map[model.PartOfDay]int{}
	load := map[int]int{}
	diversity := map[int]map[model.ID]int{}

	addDemand := func(skill string, week, amount int) {
		if demand[skill] == nil {
			demand[skill] = map[int]int{}
		}
		demand[skill][week] += amount
	}
	addPartDemand := func(skill string, week int, part model.PartOfDay, amount int) {
		if partDemand[skill] == nil {
			partDemand[skill] = map[int]map[model.PartOfDay]int{}
		}
		if partDemand[skill][week] == nil {
			partDemand[skill][week] = map[model.PartOfDay]int{}
		}
		partDemand[skill][week][part] += amount
	}

	for _, v := range in.Visits {
		week, active := p.weekOf[v.ID]
		if !active {
			continue
		}

		total += rewardActive
		if isUrgent(v, in.HorizonStart) {
			total += rewardUrgent
		}
		if v.Priority {
			total += rewardPriority
		}
		if !in.HorizonStart.IsZero() {
			_, w := calendar.WeekFromOrdinal(week)
			total -= slackWeightPerWeek * float64(w)
		}

		skill := qualify.RequiredSkillTag(v, in.Catalogue)
		d := demandAt(v, week)
		if skill != "" {
			addDemand(skill, week, d)
			addPartDemand(skill, week, v.PartOfDay, d)
		}
		if needsInternCapacity(v) {
			addDemand(skillIntern, week, d)
		}
		if needsSupervisorCapacity(v, in.Catalogue) {
			addDemand(skillSupervisor, week, d)
		}

		globalDemand[week] += d
		if globalPartDemand[week] == nil {
			globalPartDemand[week] = map[model.PartOfDay]int{}
		}
		globalPartDemand[week][v.PartOfDay] += d

		load[week]++

		if in.ClusterProject != nil {
			if pid, ok := in.ClusterProject(v.ClusterID); ok {
				if diversity[week] == nil {
					diversity[week] = map[model.ID]int{}
				}
				diversity[week][pid]++
			}
		}
	}

	for skill, byWeek := range demand {
		for week, d := range byWeek {
			over := d - supply.bySkillWeek[skill][week]
			if over <= 0 {
				continue
			}
			switch skill {
			case skillIntern:
				total -= penaltyIntern * float64(over)
			case skillSupervisor:
				total -= penaltySupervisor * float64(over)
			default:
				total -= penaltyOverflow * float64(over)
			}
		}
	}

	for skill, byWeek := range partDemand {
		for week, parts := range byWeek {
			over := flexedOverflow(parts, supply.dedicatedAt(skill, week), supply.flexAt(skill, week))
			total -= penaltyOverflow * float64(over)
		}
	}

	for week, d := range globalDemand {
		if over := d - supply.globalAt(week); over > 0 {
			total -= penaltyOverflow * float64(over)
		}
	}

	for week, parts := range globalPartDemand {
		over := flexedOverflow(parts, supply.globalDedicatedAt(week), supply.globalFlexAt(week))
		total -= penaltyOverflow * float64(over)
	}

	for _, projects := range diversity {
		for _, count := range projects {
			if count > 1 {
				total -= penaltyDiversity * float64(count-1)
			}
		}
	}

	for _, count := range load {
		total -= float64(count*count) * loadWeightCoefficient
	}

	total -= successorRiskPenalty(p, in)

	return total
}

// successorRiskPenalty charges penaltySuccessorRisk for every
// protocol-chain predecessor whose chosen week leaves its tight-window
// successor (two or fewer candidate weeks in the unconstrained
// window) with no remaining feasible week at all, or whose successor
// is left unscheduled.
func successorRiskPenalty(p plan, in Input) float64 {
	weeks := yearWeeks(in.CurrentYear)
	chains := buildProtocolChains(in.Visits, in.Protocol)
	pred := predecessorOf(chains)

	byID := map[model.ID]model.Visit{}
	for _, v := range in.Visits {
		byID[v.ID] = v
	}

	total := 0.0
	for succID, link := range pred {
		succ, ok := byID[succID]
		if !ok {
			continue
		}
		_, succActive := p.weekOf[succID]
		predWeek, predActive := p.weekOf[link.PredecessorID]
		if !predActive {
			continue
		}

		original := allowedWeeks(succ, weeks)
		if len(original) > 2 {
			continue
		}
		remaining := filterWeeksAfter(original, predWeek, link.GapWeeks)
		if len(remaining) == 0 || (!succActive && len(original) > 0) {
			total += penaltySuccessorRisk
		}
	}
	return total
}
