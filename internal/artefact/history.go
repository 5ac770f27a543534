// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package artefact

import (
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// lockoutWindow is how far back a locked visit still counts toward the
// protocol frequency control: a locked visit in the past 8 weeks.
const lockoutWindow = 8 * 7 * 24 * time.Hour

// LockEvent records one visit's transition into a locked lifecycle
// state (Planned or later), the fact WAS's frequency lockout and
// Seasonal Planner sequencing both need to see across solver runs.
type LockEvent struct {
	ProtocolID model.ID
	ClusterID  model.ID
	VisitID    model.ID
	StartDate  time.Time
	RecordedAt time.Time
}

// RunHistory is an append-only log of LockEvents: it accumulates
// timestamped samples and answers windowed queries over them without
// mutating the samples themselves.
type RunHistory struct {
	events []LockEvent
}

// NewRunHistory returns an empty history.
func NewRunHistory() *RunHistory {
	return &RunHistory{}
}

// Record appends a LockEvent for every protocol a newly locked visit
// participates in.
func (h *RunHistory) Record(visit model.Visit, recordedAt time.Time) {
	start := visit.FromDate
	if visit.PlannedDate != nil {
		start = *visit.PlannedDate
	}
	for _, pid := range visit.ProtocolIDs {
		h.events = append(h.events, LockEvent{
			ProtocolID: pid,
			ClusterID:  visit.ClusterID,
			VisitID:    visit.ID,
			StartDate:  start,
			RecordedAt: recordedAt,
		})
	}
}

// LastLockedStart returns the most recent StartDate among LockEvents
// for (protocolID, clusterID) recorded within lockoutWindow of asOf.
// It satisfies was.LastLockedStart once a caller binds asOf via a
// closure over the target week's Monday.
func (h *RunHistory) LastLockedStart(protocolID, clusterID model.ID, asOf time.Time) (time.Time, bool) {
	cutoff := asOf.Add(-lockoutWindow)
	var best time.Time
	found := false
	for _, e := range h.events {
		if e.ProtocolID != protocolID || e.ClusterID != clusterID {
			continue
		}
		if e.RecordedAt.Before(cutoff) {
			continue
		}
		if !found || e.StartDate.After(best) {
			best = e.StartDate
			found = true
		}
	}
	return best, found
}

// ChainState reports the lowest ProtocolVisitIndex among visits of
// protocolID that have not yet reached a locked state, satisfying
// was.ProtocolChainState and sp's equivalent ordering needs when a
// caller wants the state derived from run history rather than a live
// visit set.
func (h *RunHistory) ChainState(visits []model.Visit, protocolID model.ID) (int, bool) {
	lowest := -1
	found := false
	lockedIndex := map[int]bool{}
	for _, v := range visits {
		idx, ok := v.ProtocolVisitIndex[protocolID]
		if !ok {
			continue
		}
		if v.State == model.StateExecuted || v.State == model.StateApproved || v.PlannedWeek != nil {
			lockedIndex[idx] = true
		}
	}
	for _, v := range visits {
		idx, ok := v.ProtocolVisitIndex[protocolID]
		if !ok || lockedIndex[idx] {
			continue
		}
		if !found || idx < lowest {
			lowest = idx
			found = true
		}
	}
	return lowest, found
}
