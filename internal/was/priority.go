// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package was

import (
	"sort"
	"strings"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// priorityKey bit-packs the nine tiered priority conditions, higher
// bit meaning more important, into a single comparable integer.
func priorityKey(v model.Visit, in Input) uint16 {
	var key uint16

	if v.ProvisionalWeek != nil && *v.ProvisionalWeek == in.CurrentWeek {
		key |= 1 << 8
	}
	if v.Priority {
		key |= 1 << 7
	}
	if isUrgentWAS(v, in.WeekMonday) {
		key |= 1 << 6
	}
	if familyPriorityHigh(v, in) {
		key |= 1 << 5
	}
	if firstFunctionIsSMP(v, in) {
		key |= 1 << 4
	}
	if anyFunctionVRFG(v, in) {
		key |= 1 << 3
	}
	if v.Flags.Hub {
		key |= 1 << 2
	}
	if v.Flags.Sleutel {
		key |= 1 << 1
	}
	if v.Flags.Fiets || v.Flags.DVP || v.Flags.WBC {
		key |= 1 << 0
	}
	return key
}

func familyPriorityHigh(v model.Visit, in Input) bool {
	for _, sid := range v.SpeciesIDs {
		sp, ok := in.Catalogue.Species(sid)
		if !ok {
			continue
		}
		fam, ok := in.Catalogue.Family(sp.FamilyID)
		if ok && fam.Priority > 0 && fam.Priority <= 3 {
			return true
		}
	}
	return false
}

func firstFunctionIsSMP(v model.Visit, in Input) bool {
	if len(v.FunctionIDs) == 0 {
		return false
	}
	fn, ok := in.Catalogue.Function(v.FunctionIDs[0])
	if !ok {
		return false
	}
	return fn.IsSMP()
}

func anyFunctionVRFG(v model.Visit, in Input) bool {
	for _, fid := range v.FunctionIDs {
		fn, ok := in.Catalogue.Function(fid)
		if !ok {
			continue
		}
		if strings.Contains(fn.Name, "Vliegroute") || strings.Contains(fn.Name, "Foerageergebied") {
			return true
		}
	}
	return false
}

// rankCandidates sorts candidates by descending priorityKey with the
// spec's tie-break (to_date asc, from_date asc, id asc) and returns
// each visit's 0-based rank in that order, used by BASE_REWARD.
func rankCandidates(candidates []model.Visit, in Input) map[model.ID]int {
	ordered := make([]model.Visit, len(candidates))
	copy(ordered, candidates)

	keys := make(map[model.ID]uint16, len(candidates))
	for _, v := range ordered {
		keys[v.ID] = priorityKey(v, in)
	}

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if keys[a.ID] != keys[b.ID] {
			return keys[a.ID] > keys[b.ID]
		}
		if !a.ToDate.Equal(b.ToDate) {
			return a.ToDate.Before(b.ToDate)
		}
		if !a.FromDate.Equal(b.FromDate) {
			return a.FromDate.Before(b.FromDate)
		}
		return a.ID < b.ID
	})

	rank := make(map[model.ID]int, len(ordered))
	for i, v := range ordered {
		rank[v.ID] = i
	}
	return rank
}

// baseReward is the scheduling reward for a visit at rank r out of n
// candidates: a flat floor plus a per-rank increment, so rank 0
// outbids rank n-1 by 100*(n-1).
func baseReward(rank, n int) float64 {
	return baseRewardFloor + float64(n-rank)*baseRewardPerRank
}
