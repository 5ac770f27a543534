// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package vcs implements the Visit Composition Solver: given a target
// cluster and the protocols that apply to it, emit the minimum set of
// Visit events that covers every required protocol occurrence while
// respecting biological compatibility, sequencing, and part-of-day
// rules.
package vcs

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/pkg/config"
	plerrors "github.com/vwp-nl/fieldplan-core/pkg/errors"
	"github.com/vwp-nl/fieldplan-core/pkg/logging"
	"github.com/vwp-nl/fieldplan-core/pkg/searchpool"
)

// cpSatAltWorkers is the parallel search-worker budget for the
// multi-restart clique-cover search.
const cpSatAltWorkers = 8

// WarningCode identifies a non-fatal composition regression.
type WarningCode string

// WarningTightWindow flags a clique whose window intersection landed
// close to MinEffectiveWindowDays — a visit that will be fragile to
// any further shrinkage of its constituent protocols' windows.
const WarningTightWindow WarningCode = "tight_window"

// Warning is a non-fatal composition regression returned alongside a
// successful Compose call.
type Warning struct {
	Code             WarningCode
	VisitIndex       int
	IntersectionDays int
}

// Compose runs the Visit Composition Solver for one cluster against
// the given protocol catalogue. It returns one Visit per emitted
// clique, numbered chronologically, plus any non-fatal warnings.
//
// Rather than a single greedy pass, Compose races several deterministic
// seed-order rotations of the same clique-cover construction across a
// bounded worker pool (see partition.go's partitionOptions.seedRotation)
// and keeps the rotation that minimises visit count, then short-window
// penalty. This stands in for an integer-programming search: no
// CP-SAT-class solver exists among this module's dependencies, so the
// alternate construction orders take its place while keeping results
// reproducible run to run.
func Compose(ctx context.Context, cluster model.Cluster, protocols []model.Protocol, cat Catalogue, settings *config.SolverSettings, currentYear int, logger logging.Logger) ([]model.Visit, []Warning, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	start := time.Now()
	logger = logging.LogOperation(logger, "vcs.compose", "cluster_id", cluster.ID)
	if settings == nil {
		settings = config.Default()
	}

	requests, err := explodeProtocols(protocols, currentYear, cat)
	if err != nil {
		return nil, nil, err
	}
	if len(requests) == 0 {
		return nil, nil, nil
	}

	opts := partitionOptions{minEffectiveWindowDays: settings.MinEffectiveWindowDays}

	pool := searchpool.New(cpSatAltWorkers, logger)
	best, ok := searchpool.Best(ctx, pool, cpSatAltWorkers, func(_ context.Context, worker int) ([]clique, bool) {
		rotated := opts
		rotated.seedRotation = worker
		return partitionRequests(requests, cat, rotated), true
	}, func(cliques []clique) float64 {
		return float64(totalVisitCount(cliques))*1_000_000 + float64(totalShortWindowPenalty(cliques, opts.minEffectiveWindowDays))
	}, searchpool.MinScore)

	if !ok {
		return nil, nil, plerrors.CompositionInfeasible("no feasible clique cover for the given protocols", nil)
	}

	visits, warnings := buildVisits(cluster, best, requests, cat, opts.minEffectiveWindowDays)
	logger.Info("composition complete", "cluster_id", cluster.ID, "visit_count", len(visits), "warning_count", len(warnings))
	logging.LogDuration(logger, start, "vcs.compose")
	return visits, warnings, nil
}

type numberedClique struct {
	clique      clique
	props       derivedProperties
	seriesStart time.Time
}

func buildVisits(cluster model.Cluster, cliques []clique, requests []request, cat Catalogue, minEffectiveWindowDays int) ([]model.Visit, []Warning) {
	drafted := make([]numberedClique, 0, len(cliques))
	for _, c := range cliques {
		drafted = append(drafted, numberedClique{
			clique:      c,
			props:       deriveProperties(c, requests, cat),
			seriesStart: earliestMemberStart(c, requests),
		})
	}

	sort.SliceStable(drafted, func(i, j int) bool {
		fi, fj := effectiveFrom(drafted[i].clique, requests), effectiveFrom(drafted[j].clique, requests)
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		if !drafted[i].seriesStart.Equal(drafted[j].seriesStart) {
			return drafted[i].seriesStart.Before(drafted[j].seriesStart)
		}
		return partOfDayRank(drafted[i].props.PartOfDay) < partOfDayRank(drafted[j].props.PartOfDay)
	})

	groupID := uuid.New().String()
	visits := make([]model.Visit, 0, len(drafted))
	var warnings []Warning

	for i, d := range drafted {
		protocolIDs, functionIDs, speciesIDs := memberReferenceIDs(d.clique, requests, cat)
		protocolVisitIndex := memberVisitIndexes(d.clique, requests)

		v := model.Visit{
			ID:                  model.ID(i + 1),
			ClusterID:           cluster.ID,
			FromDate:            effectiveFrom(d.clique, requests),
			ToDate:              d.clique.windowTo,
			DurationMinutes:     d.props.DurationMinutes,
			PartOfDay:           d.props.PartOfDay,
			StartTimeText:       d.props.StartTimeText,
			RequiredResearchers: 1,
			Weather:             d.props.Weather,
			GroupID:             groupID,
			ProtocolIDs:         protocolIDs,
			FunctionIDs:         functionIDs,
			SpeciesIDs:          speciesIDs,
			ProtocolVisitIndex:  protocolVisitIndex,
			State:               model.StateOpen,
		}
		visits = append(visits, v)

		intersection := intersectionLengthDays(d.clique.windowFrom, d.clique.windowTo)
		if isTightWindow(intersection, minEffectiveWindowDays) {
			warnings = append(warnings, Warning{
				Code:             WarningTightWindow,
				VisitIndex:       i + 1,
				IntersectionDays: intersection,
			})
		}
	}

	return visits, warnings
}

// isTightWindow flags cliques whose surviving window intersection sits
// within 5 days of the configured minimum — close enough that a small
// further shrinkage of a constituent protocol's window would make the
// merge infeasible.
func isTightWindow(intersectionDays, minEffectiveWindowDays int) bool {
	const tightMargin = 5
	return intersectionDays <= minEffectiveWindowDays+tightMargin
}

func earliestMemberStart(c clique, requests []request) time.Time {
	start := requests[c.members[0]].EarliestStart
	for _, m := range c.members[1:] {
		if requests[m].EarliestStart.Before(start) {
			start = requests[m].EarliestStart
		}
	}
	return start
}

// effectiveFrom is the latest gap-adjusted earliest-start among a
// clique's members: the actual date from which the visit may occur,
// as opposed to windowFrom which only tracks the raw catalogue window
// intersection used for merge feasibility.
func effectiveFrom(c clique, requests []request) time.Time {
	from := requests[c.members[0]].EarliestStart
	for _, m := range c.members[1:] {
		if requests[m].EarliestStart.After(from) {
			from = requests[m].EarliestStart
		}
	}
	if c.windowFrom.After(from) {
		return c.windowFrom
	}
	return from
}

// memberVisitIndexes maps each protocol present in the clique to the
// ProtocolVisitWindow index its member request fulfils.
func memberVisitIndexes(c clique, requests []request) map[model.ID]int {
	out := make(map[model.ID]int, len(c.members))
	for _, m := range c.members {
		out[requests[m].ProtocolID] = requests[m].VisitIndex
	}
	return out
}

func memberReferenceIDs(c clique, requests []request, cat Catalogue) (protocolIDs, functionIDs, speciesIDs []model.ID) {
	seenP, seenF, seenS := map[model.ID]bool{}, map[model.ID]bool{}, map[model.ID]bool{}
	for _, m := range c.members {
		pid := requests[m].ProtocolID
		if !seenP[pid] {
			seenP[pid] = true
			protocolIDs = append(protocolIDs, pid)
		}
		p, ok := cat.Protocol(pid)
		if !ok {
			continue
		}
		if !seenF[p.FunctionID] {
			seenF[p.FunctionID] = true
			functionIDs = append(functionIDs, p.FunctionID)
		}
		if !seenS[p.SpeciesID] {
			seenS[p.SpeciesID] = true
			speciesIDs = append(speciesIDs, p.SpeciesID)
		}
	}
	return protocolIDs, functionIDs, speciesIDs
}
