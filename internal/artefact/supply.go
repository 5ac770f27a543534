// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package artefact

import (
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// supplyTable is the per-(skill, week) capacity available, mirroring
// internal/sp's supplyTable so the grid reports against the same
// capacity figures the Seasonal Planner optimised over.
type supplyTable struct {
	bySkillWeek map[string]map[int]int
}

func (t supplyTable) at(skill string, week int) int {
	byWeek, ok := t.bySkillWeek[skill]
	if !ok {
		return 0
	}
	return byWeek[week]
}

func supplyBySkillWeek(users []model.User, availability []model.AvailabilityWeek, weeks []int) supplyTable {
	avail := map[model.ID]map[int]model.AvailabilityWeek{}
	for _, a := range availability {
		if avail[a.UserID] == nil {
			avail[a.UserID] = map[int]model.AvailabilityWeek{}
		}
		avail[a.UserID][a.WeekOrdinal] = a
	}

	table := supplyTable{bySkillWeek: map[string]map[int]int{}}
	add := func(skill string, week, days int) {
		if table.bySkillWeek[skill] == nil {
			table.bySkillWeek[skill] = map[int]int{}
		}
		table.bySkillWeek[skill][week] += days
	}

	for _, u := range users {
		if u.SoftDeleted() {
			continue
		}
		skills := qualify.UserSkillSet(u)
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
				add(skill, week, days)
			}
		}
	}

	return table
}
