// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package was

import (
	"sort"
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// filterCandidates applies the pre-processing pipeline: eligibility,
// the protocol frequency lockout, and protocol ordering enforcement. candidates is the final solver-ready set; excluded
// collects every visit that passed the basic eligibility gate (week
// overlap, not quote/custom-named, lifecycle state) but was dropped
// afterwards — these are reported in Output.SkippedVisitIDs even when
// the solver never gets a chance to consider them. noQualified is the
// subset of excluded dropped specifically for lack of any qualified
// user, surfaced as a QualificationGap diagnostic.
func filterCandidates(in Input) (candidates []model.Visit, excluded map[model.ID]bool, noQualified map[model.ID]bool) {
	friday := in.WeekMonday.AddDate(0, 0, 4)
	excluded = map[model.ID]bool{}
	noQualified = map[model.ID]bool{}

	var eligible []model.Visit
	for _, v := range in.Visits {
		if v.State == model.StateExecuted || v.State == model.StateApproved || v.State == model.StateCancelled || v.State == model.StateRedo {
			continue
		}
		if v.ToDate.Before(in.WeekMonday) || v.FromDate.After(friday) {
			continue
		}
		if v.CustomName != nil {
			continue
		}
		if in.ClusterProject != nil && in.IsQuoteProject != nil {
			if pid, ok := in.ClusterProject(v.ClusterID); ok && in.IsQuoteProject(pid) {
				continue
			}
		}
		if v.ProvisionalWeek != nil && *v.ProvisionalWeek > in.CurrentWeek {
			continue
		}
		eligible = append(eligible, v)
	}

	stage, lockedOut := applyFrequencyLockout(eligible, in, friday)
	for id := range lockedOut {
		excluded[id] = true
	}
	stage, orderedOut := applyProtocolOrdering(stage, in)
	for id := range orderedOut {
		excluded[id] = true
	}

	var out []model.Visit
	for _, v := range stage {
		if !hasAnyQualifiedUser(v, in) {
			noQualified[v.ID] = true
			excluded[v.ID] = true
			continue
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, excluded, noQualified
}

// applyFrequencyLockout drops every candidate of a (protocol, cluster)
// pair whose predecessor locked visit started too recently relative to
// the protocol's minimum gap, measured against the target Friday.
func applyFrequencyLockout(visits []model.Visit, in Input, targetFriday time.Time) ([]model.Visit, map[model.ID]bool) {
	if in.LastLocked == nil || in.Protocol == nil {
		return visits, nil
	}
	dropped := map[model.ID]bool{}
	for _, v := range visits {
		for _, pid := range v.ProtocolIDs {
			last, ok := in.LastLocked(pid, v.ClusterID)
			if !ok {
				continue
			}
			p, ok := in.Protocol(pid)
			if !ok {
				continue
			}
			gapDays, err := calendar.DaysFromMinPeriod(p.MinGapValue, string(p.MinGapUnit))
			if err != nil {
				continue
			}
			elapsed := int(targetFriday.Sub(last).Hours() / 24)
			if elapsed < gapDays {
				dropped[v.ID] = true
			}
		}
	}
	if len(dropped) == 0 {
		return visits, nil
	}
	var out []model.Visit
	for _, v := range visits {
		if !dropped[v.ID] {
			out = append(out, v)
		}
	}
	return out, dropped
}

// applyProtocolOrdering keeps only candidates tied to the lowest
// visit_index still open for their protocol, per in.ChainState.
func applyProtocolOrdering(visits []model.Visit, in Input) ([]model.Visit, map[model.ID]bool) {
	if in.ChainState == nil {
		return visits, nil
	}
	dropped := map[model.ID]bool{}
	var out []model.Visit
	for _, v := range visits {
		keep := true
		for pid, idx := range v.ProtocolVisitIndex {
			lowest, ok := in.ChainState(pid)
			if ok && idx > lowest {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, v)
		} else {
			dropped[v.ID] = true
		}
	}
	return out, dropped
}

func hasAnyQualifiedUser(v model.Visit, in Input) bool {
	for _, u := range in.Users {
		if u.SoftDeleted() {
			continue
		}
		if Qualifies(v, u, in) {
			return true
		}
	}
	return false
}

// Qualifies wraps qualify.Qualifies and additionally enforces the hard
// travel cut: a pairing beyond MaxTravelMinutes is never allowed.
func Qualifies(v model.Visit, u model.User, in Input) bool {
	if !qualify.Qualifies(v, u, in.Catalogue) {
		return false
	}
	if in.UserTravel == nil {
		return true
	}
	minutes, ok := in.UserTravel(u.ID, v.ClusterID)
	if !ok {
		return true
	}
	maxTravel := 75
	if in.Settings != nil && in.Settings.MaxTravelMinutes > 0 {
		maxTravel = in.Settings.MaxTravelMinutes
	}
	return minutes <= maxTravel
}
