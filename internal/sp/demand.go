// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package sp

import (
	"strings"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// demandAt computes the demand a visit raises if active in the given
// ISO week: required_researchers * ceil(5/overlap_days). The
// inverse-overlap weighting concentrates short-window visits into the
// few weeks that can still take them.
//
// A visit carries exactly one PartOfDay, so the daypart split of
// demand is the caller booking this amount against the visit's own
// daypart bucket; the Flex share is realized on the supply side, where
// flexedOverflow lets a bucket's flex pool absorb whatever the
// dedicated daypart days could not cover.
func demandAt(v model.Visit, week int) int {
	year, w := calendar.WeekFromOrdinal(week)
	mon, fri := calendar.WorkWeekBounds(year, w)
	overlap := calendar.OverlapDays(v.FromDate, v.ToDate, mon, fri)
	if overlap <= 0 {
		return 0
	}
	multiplier := ceilDiv(5, overlap)
	return v.RequiredResearchers * multiplier
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}

// needsInternCapacity reports whether v raises demand on the Intern
// pseudo-skill: visits requiring the intern-held physical key.
func needsInternCapacity(v model.Visit) bool {
	return v.Flags.Sleutel
}

// needsSupervisorCapacity reports whether v raises demand on the
// Supervisor pseudo-skill: multi-person Vleermuis visits.
func needsSupervisorCapacity(v model.Visit, cat qualify.Catalogue) bool {
	if v.RequiredResearchers < 2 {
		return false
	}
	return isVleermuisVisit(v, cat)
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
