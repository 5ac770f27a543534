// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package vcs

import (
	"sort"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// derivedProperties is the set of Visit fields computed from a
// clique's constituent protocols.
type derivedProperties struct {
	DurationMinutes int
	Weather         model.WeatherBounds
	StartTimeText   string
	PartOfDay       model.PartOfDay
}

func deriveProperties(c clique, requests []request, cat Catalogue) derivedProperties {
	protocols := memberProtocols(c, requests, cat)

	return derivedProperties{
		DurationMinutes: deriveDuration(protocols),
		Weather:         deriveWeather(protocols),
		StartTimeText:   deriveStartTimeText(protocols, cat),
		PartOfDay:       derivePartOfDay(c, requests),
	}
}

func memberProtocols(c clique, requests []request, cat Catalogue) []model.Protocol {
	seen := map[model.ID]bool{}
	var out []model.Protocol
	for _, m := range c.members {
		pid := requests[m].ProtocolID
		if seen[pid] {
			continue
		}
		seen[pid] = true
		if p, ok := cat.Protocol(pid); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// deriveDuration is the max per-protocol duration, extended to cover
// the full evening span across constituent protocols when applicable.
func deriveDuration(protocols []model.Protocol) int {
	maxMinutes := 0
	for _, p := range protocols {
		m := int(p.VisitDurationHrs * 60)
		if m > maxMinutes {
			maxMinutes = m
		}
	}

	if span, ok := eveningSpanMinutes(protocols); ok && span > maxMinutes {
		return span
	}
	return maxMinutes
}

// eveningSpanMinutes extends duration to cover [earliest_start,
// latest_end] across constituent protocols that share the evening
// bucket, treating minutes < 600 (i.e. before 10:00) as next-day.
func eveningSpanMinutes(protocols []model.Protocol) (int, bool) {
	hasEvening := false
	for _, p := range protocols {
		if p.StartTimingRef == model.TimingSunset || p.StartTimingRef == model.TimingAbsolute || p.StartTimingRef == model.TimingSunsetToSunrise {
			hasEvening = true
		}
	}
	if !hasEvening || len(protocols) < 2 {
		return 0, false
	}

	earliest, latest := -1, -1
	for _, p := range protocols {
		start := 0
		if p.StartOffsetMin != nil {
			start = *p.StartOffsetMin
		}
		if start < 600 {
			start += 24 * 60
		}
		end := start + int(p.VisitDurationHrs*60)

		if earliest == -1 || start < earliest {
			earliest = start
		}
		if latest == -1 || end > latest {
			latest = end
		}
	}
	if earliest == -1 {
		return 0, false
	}
	return latest - earliest, true
}

func deriveWeather(protocols []model.Protocol) model.WeatherBounds {
	var w model.WeatherBounds
	first := true
	for _, p := range protocols {
		if first {
			w = p.Weather
			first = false
			continue
		}
		if p.Weather.MinTemperature > w.MinTemperature {
			w.MinTemperature = p.Weather.MinTemperature
		}
		if p.Weather.MaxWindBft < w.MaxWindBft {
			w.MaxWindBft = p.Weather.MaxWindBft
		}
		w.MaxPrecipitation = model.StricterPrecipitation(w.MaxPrecipitation, p.Weather.MaxPrecipitation)
	}
	return w
}

func derivePartOfDay(c clique, requests []request) model.PartOfDay {
	domain := requests[c.members[0]].PartOfDay
	for _, m := range c.members[1:] {
		domain = intersectPartOfDay(domain, requests[m].PartOfDay)
	}
	if len(domain) == 0 {
		return model.PartDag
	}
	// Prefer Avond over Ochtend over Dag when more than one remains in
	// the domain, matching the species-driven special cases below
	// which are phrased in terms of a single selected daypart.
	rank := map[model.PartOfDay]int{model.PartAvond: 0, model.PartOchtend: 1, model.PartDag: 2}
	best := domain[0]
	for _, d := range domain[1:] {
		if rank[d] < rank[best] {
			best = d
		}
	}
	return best
}

// partOfDayRank orders dayparts for chronological visit numbering when
// two visits share the same from_date and series_start.
func partOfDayRank(p model.PartOfDay) int {
	switch p {
	case model.PartOchtend:
		return 0
	case model.PartDag:
		return 1
	case model.PartAvond:
		return 2
	default:
		return 3
	}
}
