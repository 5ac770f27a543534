// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package artefact builds the persisted solver artefact: a JSON
// document describing the Seasonal Planner's result grid as two views
// (deadline_view, week_view), plus a read-only capacity simulation
// that projects the same grid without mutating any visit, and an
// append-only run-history log WAS consults for its protocol frequency
// lockout.
//
// Builds a derived reporting document from raw samples without
// feeding back into the thing being reported on, the same shape this
// package gives the SP supply/demand model.
package artefact

import (
	"sort"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// BucketCell is one (skill, daypart, week) cell of the deadline view.
type BucketCell struct {
	Required  int `json:"required"`
	Assigned  int `json:"assigned"`
	Shortfall int `json:"shortfall"`
	Spare     int `json:"spare"`
}

// DeadlineView is skill -> daypart -> deadline-week -> BucketCell.
type DeadlineView map[string]map[string]map[int]BucketCell

// WeekRow is one label's per-week figures in the week view.
type WeekRow struct {
	Spare    int `json:"spare"`
	Planned  int `json:"planned"`
	Shortage int `json:"shortage"`
}

// WeekView is the second top-level key of the persisted artefact:
// every week in scope, plus a label -> week -> WeekRow grid.
type WeekView struct {
	Weeks []int                  `json:"weeks"`
	Rows  map[string]map[int]WeekRow `json:"rows"`
}

// Grid is the full persisted solver artefact: its two top-level keys.
type Grid struct {
	DeadlineView DeadlineView `json:"deadline_view"`
	WeekView     WeekView     `json:"week_view"`
}

// BuildInput bundles a snapshot of the world a Grid is computed over.
// It deliberately mirrors sp.Input's shape (same supply/demand model)
// without importing internal/sp, since sp.Input's ClusterProject/
// ProtocolLookup closures aren't needed here.
type BuildInput struct {
	Visits       []model.Visit
	Users        []model.User
	Availability []model.AvailabilityWeek
	Catalogue    qualify.Catalogue
	Weeks        []int // ISO week ordinals in scope, ascending
}

// Build computes the persisted grid from a completed (or merely
// provisioned) set of visits: every visit carrying a ProvisionalWeek
// or PlannedWeek counts as assigned demand in that week; every other
// active visit's demand is spread across its allowed weeks evenly,
// matching the "spare" figure a caller would see before SP commits.
func Build(in BuildInput) Grid {
	return build(in, false)
}

// Simulate computes the same grid as Build but ignores each visit's
// stored ProvisionalWeek/PlannedWeek, instead projecting every active
// visit's demand evenly across its whole allowed window — a read-only
// "what if nothing were scheduled yet" view, reusing the seasonal
// supply/demand model without running the optimizer's write path.
func Simulate(in BuildInput) Grid {
	return build(in, true)
}

// bucketKey identifies one (skill, daypart, week) cell while a grid is
// being accumulated.
type bucketKey struct {
	skill string
	part  string
	week  int
}

func build(in BuildInput, ignoreAssignment bool) Grid {
	supply := supplyBySkillWeek(in.Users, in.Availability, in.Weeks)

	required := map[bucketKey]int{}
	assigned := map[bucketKey]int{}

	for _, v := range in.Visits {
		if isInactive(v) {
			continue
		}
		skill := qualify.RequiredSkillTag(v, in.Catalogue)
		if skill == "" {
			continue
		}
		part := string(v.PartOfDay)

		week, isAssigned := assignedWeek(v)
		if ignoreAssignment {
			isAssigned = false
		}
		if isAssigned {
			k := bucketKey{skill: skill, part: part, week: week}
			assigned[k] += visitDemand(v, week)
			required[k] += visitDemand(v, week)
			continue
		}

		allowed := allowedWeeksFor(v, in.Weeks)
		if len(allowed) == 0 {
			continue
		}
		share := visitDemand(v, allowed[0])
		for _, w := range allowed {
			k := bucketKey{skill: skill, part: part, week: w}
			required[k] += ceilDiv(share, len(allowed))
		}
	}

	deadline := DeadlineView{}
	skills := map[string]bool{}
	for k := range required {
		skills[k.skill] = true
	}
	for k := range assigned {
		skills[k.skill] = true
	}
	for skill := range skills {
		deadline[skill] = map[string]map[int]BucketCell{}
	}

	allKeys := map[bucketKey]bool{}
	for k := range required {
		allKeys[k] = true
	}
	for k := range assigned {
		allKeys[k] = true
	}
	for k := range allKeys {
		if deadline[k.skill][k.part] == nil {
			deadline[k.skill][k.part] = map[int]BucketCell{}
		}
		req := required[k]
		asn := assigned[k]
		sup := supply.at(k.skill, k.week)
		shortfall := 0
		if req > sup {
			shortfall = req - sup
		}
		spare := 0
		if sup > req {
			spare = sup - req
		}
		deadline[k.skill][k.part][k.week] = BucketCell{
			Required:  req,
			Assigned:  asn,
			Shortfall: shortfall,
			Spare:     spare,
		}
	}

	return Grid{DeadlineView: deadline, WeekView: buildWeekView(in, required, supply)}
}

func buildWeekView(in BuildInput, required map[bucketKey]int, supply supplyTable) WeekView {
	weeks := append([]int(nil), in.Weeks...)
	sort.Ints(weeks)

	rows := map[string]map[int]WeekRow{}
	totalBySkillWeek := map[string]map[int]int{}
	for k, v := range required {
		if totalBySkillWeek[k.skill] == nil {
			totalBySkillWeek[k.skill] = map[int]int{}
		}
		totalBySkillWeek[k.skill][k.week] += v
	}

	for skill, byWeek := range totalBySkillWeek {
		rows[skill] = map[int]WeekRow{}
		for _, week := range weeks {
			req := byWeek[week]
			sup := supply.at(skill, week)
			row := WeekRow{Planned: req}
			if sup >= req {
				row.Spare = sup - req
			} else {
				row.Shortage = req - sup
			}
			rows[skill][week] = row
		}
	}

	return WeekView{Weeks: weeks, Rows: rows}
}

func isInactive(v model.Visit) bool {
	return v.State == model.StateExecuted || v.State == model.StateApproved || v.State == model.StateCancelled
}

func assignedWeek(v model.Visit) (int, bool) {
	if v.PlannedWeek != nil {
		return *v.PlannedWeek, true
	}
	if v.ProvisionalWeek != nil {
		return *v.ProvisionalWeek, true
	}
	return 0, false
}

func allowedWeeksFor(v model.Visit, weeks []int) []int {
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

func visitDemand(v model.Visit, week int) int {
	year, w := calendar.WeekFromOrdinal(week)
	mon, fri := calendar.WorkWeekBounds(year, w)
	overlap := calendar.OverlapDays(v.FromDate, v.ToDate, mon, fri)
	if overlap <= 0 {
		return v.RequiredResearchers
	}
	return v.RequiredResearchers * ceilDiv(5, overlap)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
