// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package vcs

import (
	"sort"
	"time"
)

// clique is one in-progress (or finished) partition cell: the members
// that will become a single emitted Visit. The running part-of-day
// domain is not tracked separately here: compatible() already checks
// it pairwise against every existing member on each candidate add.
type clique struct {
	members    []int
	windowFrom time.Time
	windowTo   time.Time
	maxStart   time.Time
}

// seedOrder sorts candidate seed indices by
// (dynamic_effective_start, remaining_slack, id).
func seedOrder(requests []request, candidates []int, rotate int) []int {
	out := append([]int(nil), candidates...)
	sort.Slice(out, func(i, j int) bool {
		ri, rj := requests[out[i]], requests[out[j]]
		if !ri.EarliestStart.Equal(rj.EarliestStart) {
			return ri.EarliestStart.Before(rj.EarliestStart)
		}
		si := int(ri.WindowTo.Sub(ri.EarliestStart).Hours() / 24)
		sj := int(rj.WindowTo.Sub(rj.EarliestStart).Hours() / 24)
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	if rotate > 0 && len(out) > 1 {
		n := rotate % len(out)
		out = append(out[n:], out[:n]...)
	}
	return out
}

// isUnlocked reports whether requests[idx] may seed or join a clique:
// it has no predecessor, or its predecessor has already been placed.
func isUnlocked(requests []request, idx int, placed map[int]bool) bool {
	pred := requests[idx].PredecessorIdx
	return pred == -1 || placed[pred]
}

func cliqueMembersInclude(members []int, idx int) bool {
	for _, m := range members {
		if m == idx {
			return true
		}
	}
	return false
}

func forwardFeasible(members []int, requests []request, maxStart time.Time) bool {
	for _, m := range members {
		succ := requests[m].SuccessorIdx
		if succ == -1 {
			continue
		}
		if maxStart.AddDate(0, 0, requests[m].GapDays).After(requests[succ].WindowTo) {
			return false
		}
	}
	return true
}

func anyMemberHasPredecessor(members []int, requests []request) bool {
	for _, m := range members {
		if requests[m].PredecessorIdx != -1 {
			return true
		}
	}
	return false
}

func anchorHasShortWindow(members []int, requests []request, thresholdDays int) bool {
	for _, m := range members {
		r := requests[m]
		length := int(r.WindowTo.Sub(r.WindowFrom).Hours()/24) + 1
		if length < thresholdDays {
			return true
		}
	}
	return false
}

func startSpreadDays(members []int, requests []request) int {
	if len(members) == 0 {
		return 0
	}
	min, max := requests[members[0]].EarliestStart, requests[members[0]].EarliestStart
	for _, m := range members[1:] {
		s := requests[m].EarliestStart
		if s.Before(min) {
			min = s
		}
		if s.After(max) {
			max = s
		}
	}
	return int(max.Sub(min).Hours() / 24)
}

func intersectWindow(fromA, toA, fromB, toB time.Time) (time.Time, time.Time) {
	from := fromA
	if fromB.After(from) {
		from = fromB
	}
	to := toA
	if toB.Before(to) {
		to = toB
	}
	return from, to
}

func intersectionLengthDays(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// partitionOptions parameterises one run of the greedy seed-and-grow
// partition, including a deterministic seed-order rotation used by
// Compose to explore several construction orders in parallel without
// resorting to true randomness.
type partitionOptions struct {
	minEffectiveWindowDays int
	seedRotation           int
}

// partitionRequests runs the greedy clique-cover construction and
// returns one clique per emitted Visit, in the order they were seeded.
func partitionRequests(requests []request, cat Catalogue, opts partitionOptions) []clique {
	placed := make(map[int]bool, len(requests))
	var cliques []clique

	for len(placed) < len(requests) {
		var seedCandidates []int
		for i := range requests {
			if !placed[i] && isUnlocked(requests, i, placed) {
				seedCandidates = append(seedCandidates, i)
			}
		}
		if len(seedCandidates) == 0 {
			// Dependency chains that never unlock (should not happen
			// for well-formed input) would otherwise spin forever.
			break
		}
		ordered := seedOrder(requests, seedCandidates, opts.seedRotation)
		seed := ordered[0]

		c := clique{
			members:    []int{seed},
			windowFrom: requests[seed].WindowFrom,
			windowTo:   requests[seed].WindowTo,
			maxStart:   requests[seed].EarliestStart,
		}
		placed[seed] = true

		growClique(&c, requests, cat, placed, opts)
		cliques = append(cliques, c)
	}

	return cliques
}

func growClique(c *clique, requests []request, cat Catalogue, placed map[int]bool, opts partitionOptions) {
	changed := true
	for changed {
		changed = false
		for i := range requests {
			if placed[i] || !isUnlocked(requests, i, placed) {
				continue
			}
			if !compatibleWithAll(*c, i, requests, cat, opts.minEffectiveWindowDays) {
				continue
			}

			newFrom, newTo := intersectWindow(c.windowFrom, c.windowTo, requests[i].WindowFrom, requests[i].WindowTo)
			if intersectionLengthDays(newFrom, newTo) < opts.minEffectiveWindowDays {
				continue
			}

			if requests[i].PredecessorIdx != -1 && cliqueMembersInclude(c.members, requests[i].PredecessorIdx) {
				continue
			}

			newMembers := append(append([]int(nil), c.members...), i)

			newMaxStart := c.maxStart
			if requests[i].EarliestStart.After(newMaxStart) {
				newMaxStart = requests[i].EarliestStart
			}
			if !forwardFeasible(newMembers, requests, newMaxStart) {
				continue
			}

			if spread := startSpreadDays(newMembers, requests); spread > 7 {
				threshold := 50
				if anyMemberHasPredecessor(newMembers, requests) {
					threshold = 25
				}
				forced := anchorHasShortWindow(newMembers, requests, 35)
				if !forced && intersectionLengthDays(newFrom, newTo) <= threshold {
					continue
				}
			}

			c.members = newMembers
			c.windowFrom, c.windowTo = newFrom, newTo
			c.maxStart = newMaxStart
			placed[i] = true
			changed = true
		}
	}
}

func compatibleWithAll(c clique, candidate int, requests []request, cat Catalogue, minWindowDays int) bool {
	for _, m := range c.members {
		if !compatible(requests[m], requests[candidate], cat, minWindowDays) {
			return false
		}
	}
	return true
}

// totalVisitCount is the multi-restart search's primary objective
// term: the partition minimising emitted visit count wins.
func totalVisitCount(cliques []clique) int {
	return len(cliques)
}

// totalShortWindowPenalty sums, over every clique, how far its window
// intersection falls short of a comfortable margin above the minimum
// — the alternate path's secondary objective term.
func totalShortWindowPenalty(cliques []clique, minEffectiveWindowDays int) int {
	penalty := 0
	comfortable := minEffectiveWindowDays * 2
	for _, c := range cliques {
		length := intersectionLengthDays(c.windowFrom, c.windowTo)
		if length < comfortable {
			penalty += comfortable - length
		}
	}
	return penalty
}
