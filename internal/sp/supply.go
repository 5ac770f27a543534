// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package sp

import (
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// dayparts is the fixed iteration order over dayparts, so overflow
// computations walk buckets deterministically.
var dayparts = []model.PartOfDay{model.PartOchtend, model.PartDag, model.PartAvond}

// daypartDays maps an availability row onto its dedicated per-daypart
// buckets: morning days serve Ochtend, daytime days Dag, nighttime
// days Avond. Flex days are kept as their own pool, consumable by any
// daypart once its dedicated bucket is exhausted.
func daypartDays(a model.AvailabilityWeek) map[model.PartOfDay]int {
	return map[model.PartOfDay]int{
		model.PartOchtend: a.MorningDays,
		model.PartDag:     a.DaytimeDays,
		model.PartAvond:   a.NighttimeDays,
	}
}

// supplyTable is the capacity available per (skill, week), including
// the Intern and Supervisor pseudo-skills. Real skills additionally
// carry a per-daypart dedicated breakdown plus a flex pool, and the
// all-skill global totals are tracked alongside, so the aggregate, the
// daypart-specific, and both global overflow terms can all be
// evaluated against the same snapshot.
type supplyTable struct {
	bySkillWeek map[string]map[int]int
	dedicated   map[string]map[int]map[model.PartOfDay]int
	flex        map[string]map[int]int

	globalWeek      map[int]int
	globalDedicated map[int]map[model.PartOfDay]int
	globalFlex      map[int]int
}

func newSupplyTable() supplyTable {
	return supplyTable{
		bySkillWeek:     map[string]map[int]int{},
		dedicated:       map[string]map[int]map[model.PartOfDay]int{},
		flex:            map[string]map[int]int{},
		globalWeek:      map[int]int{},
		globalDedicated: map[int]map[model.PartOfDay]int{},
		globalFlex:      map[int]int{},
	}
}

func (t supplyTable) at(skill string, week int) int {
	byWeek, ok := t.bySkillWeek[skill]
	if !ok {
		return 0
	}
	return byWeek[week]
}

func (t supplyTable) dedicatedAt(skill string, week int) map[model.PartOfDay]int {
	byWeek, ok := t.dedicated[skill]
	if !ok {
		return nil
	}
	return byWeek[week]
}

func (t supplyTable) flexAt(skill string, week int) int {
	byWeek, ok := t.flex[skill]
	if !ok {
		return 0
	}
	return byWeek[week]
}

func (t supplyTable) globalAt(week int) int { return t.globalWeek[week] }

func (t supplyTable) globalDedicatedAt(week int) map[model.PartOfDay]int {
	return t.globalDedicated[week]
}

func (t supplyTable) globalFlexAt(week int) int { return t.globalFlex[week] }

// flexedOverflow is the demand left uncovered in one (skill-or-global,
// week) bucket after each daypart consumes its dedicated days and the
// shared flex pool absorbs whatever dedicated capacity could not. This
// is the optimal flex allocation for a single bucket, mirroring the
// weekly solver's per-user flex_alloc variables at aggregate level.
func flexedOverflow(partDemand, dedicated map[model.PartOfDay]int, flex int) int {
	over := 0
	for _, part := range dayparts {
		short := partDemand[part] - dedicated[part]
		if short > 0 {
			over += short
		}
	}
	over -= flex
	if over < 0 {
		over = 0
	}
	return over
}

// buildSupply sums, for every (skill, week), the total availability
// days of every user who projects onto that skill — split into
// per-daypart dedicated buckets plus the flex pool — along with the
// Intern/Supervisor pseudo-skill totals and the all-skill global
// totals.
func buildSupply(users []model.User, availability []model.AvailabilityWeek, weeks []int) supplyTable {
	avail := map[model.ID]map[int]model.AvailabilityWeek{}
	for _, a := range availability {
		if avail[a.UserID] == nil {
			avail[a.UserID] = map[int]model.AvailabilityWeek{}
		}
		avail[a.UserID][a.WeekOrdinal] = a
	}

	t := newSupplyTable()
	addTotal := func(skill string, week, days int) {
		if t.bySkillWeek[skill] == nil {
			t.bySkillWeek[skill] = map[int]int{}
		}
		t.bySkillWeek[skill][week] += days
	}
	addParts := func(skill string, week int, a model.AvailabilityWeek) {
		if t.dedicated[skill] == nil {
			t.dedicated[skill] = map[int]map[model.PartOfDay]int{}
		}
		if t.dedicated[skill][week] == nil {
			t.dedicated[skill][week] = map[model.PartOfDay]int{}
		}
		for part, days := range daypartDays(a) {
			t.dedicated[skill][week][part] += days
		}
		if t.flex[skill] == nil {
			t.flex[skill] = map[int]int{}
		}
		t.flex[skill][week] += a.FlexDays
	}

	for _, u := range users {
		if u.SoftDeleted() {
			continue
		}
		skills := qualify.UserSkillSet(u)
		isSupervisor := u.IsSupervisor()
		isIntern := u.Contract == model.ContractIntern

		for _, week := range weeks {
			a, ok := avail[u.ID][week]
			if !ok {
				continue
			}
			days := a.TotalDays()
			if days == 0 {
				continue
			}
			for skill := range skills {
				addTotal(skill, week, days)
				addParts(skill, week, a)
			}
			if isIntern {
				addTotal(skillIntern, week, days)
			}
			if isSupervisor {
				addTotal(skillSupervisor, week, days)
			}

			t.globalWeek[week] += days
			if t.globalDedicated[week] == nil {
				t.globalDedicated[week] = map[model.PartOfDay]int{}
			}
			for part, d := range daypartDays(a) {
				t.globalDedicated[week][part] += d
			}
			t.globalFlex[week] += a.FlexDays
		}
	}

	return t
}
