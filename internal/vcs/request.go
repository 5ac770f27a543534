// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package vcs

import (
	"sort"
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	plerrors "github.com/vwp-nl/fieldplan-core/pkg/errors"
)

// request is one exploded "visit request": a single required
// occurrence of a protocol that the partition step must place into
// exactly one emitted Visit.
type request struct {
	ProtocolID  model.ID
	VisitIndex  int
	WindowFrom  time.Time // normalised to the current year
	WindowTo    time.Time
	Required    bool
	PartOfDay   []model.PartOfDay
	EarliestStart time.Time // the effective earliest start from node explosion

	PredecessorIdx int // index into the owning requests slice, -1 if none
	SuccessorIdx   int // index into the owning requests slice, -1 if none
	GapDays        int // this protocol's min-gap, in days
}

// explodeProtocols turns every ProtocolVisitWindow into one request,
// normalises its dates onto currentYear, and tags it with the
// effective earliest start date once gap-from-predecessor is applied.
func explodeProtocols(protocols []model.Protocol, currentYear int, cat Catalogue) ([]request, error) {
	var requests []request

	for _, p := range protocols {
		windows := append([]model.ProtocolVisitWindow(nil), p.Windows...)
		sort.Slice(windows, func(i, j int) bool { return windows[i].VisitIndex < windows[j].VisitIndex })

		gapDays, err := calendar.DaysFromMinPeriod(p.MinGapValue, string(p.MinGapUnit))
		if err != nil {
			return nil, plerrors.InputValidation("min_gap_unit", err.Error())
		}

		var predecessorEffectiveStart time.Time
		havePredecessor := false

		for i, w := range windows {
			if w.VisitIndex != i+1 {
				return nil, plerrors.InputValidation("visit_index", "protocol visit windows must be strictly indexed 1..N")
			}

			windowFrom := calendar.NormalizeToYear(w.WindowFrom, currentYear)
			windowTo := calendar.NormalizeToYear(w.WindowTo, currentYear)
			if windowFrom.After(windowTo) {
				return nil, plerrors.InputValidation("window_from", "window_from must not be after window_to")
			}

			effectiveStart := windowFrom
			if havePredecessor {
				candidate := predecessorEffectiveStart.AddDate(0, 0, gapDays)
				if candidate.After(effectiveStart) {
					effectiveStart = candidate
				}
			}

			domain := partOfDayDomain(p, i == 0)

			idx := len(requests)
			r := request{
				ProtocolID:     p.ID,
				VisitIndex:     w.VisitIndex,
				WindowFrom:     windowFrom,
				WindowTo:       windowTo,
				Required:       w.Required,
				PartOfDay:      domain,
				EarliestStart:  effectiveStart,
				PredecessorIdx: -1,
				SuccessorIdx:   -1,
				GapDays:        gapDays,
			}
			requests = append(requests, r)

			if i > 0 {
				prevIdx := idx - 1
				requests[prevIdx].SuccessorIdx = idx
				requests[idx].PredecessorIdx = prevIdx
			}

			predecessorEffectiveStart = effectiveStart
			havePredecessor = true
		}
	}

	return requests, nil
}

// partOfDayDomain derives the set of dayparts a protocol's request may
// be scheduled into, given its timing reference and whether it is the
// protocol's first visit window.
func partOfDayDomain(p model.Protocol, isFirstVisit bool) []model.PartOfDay {
	if isFirstVisit {
		if p.RequiresMorningVisit {
			return []model.PartOfDay{model.PartOchtend}
		}
		if p.RequiresEveningVisit {
			return []model.PartOfDay{model.PartAvond}
		}
	}

	switch p.StartTimingRef {
	case model.TimingDaytime:
		return []model.PartOfDay{model.PartDag}
	case model.TimingAbsolute:
		return []model.PartOfDay{model.PartAvond}
	case model.TimingSunset:
		if p.EndTimingRef != nil && *p.EndTimingRef == model.TimingSunrise {
			return []model.PartOfDay{model.PartAvond, model.PartOchtend}
		}
		return []model.PartOfDay{model.PartAvond}
	case model.TimingSunsetToSunrise:
		return []model.PartOfDay{model.PartAvond, model.PartOchtend}
	case model.TimingSunrise:
		if p.StartOffsetMin != nil && *p.StartOffsetMin >= 0 {
			return []model.PartOfDay{model.PartDag}
		}
		return []model.PartOfDay{model.PartOchtend}
	default:
		return []model.PartOfDay{model.PartDag}
	}
}

func intersectPartOfDay(a, b []model.PartOfDay) []model.PartOfDay {
	set := map[model.PartOfDay]bool{}
	for _, p := range a {
		set[p] = true
	}
	var out []model.PartOfDay
	for _, p := range b {
		if set[p] {
			out = append(out, p)
		}
	}
	return out
}
