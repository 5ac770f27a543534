// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package artefact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/store"
)

func birdCatalogue() (store.MapCatalogue, model.ID, model.ID) {
	familyID := model.ID(1)
	speciesID := model.ID(2)
	functionID := model.ID(3)
	cat := store.MapCatalogue{
		Families:  map[model.ID]model.Family{familyID: {ID: familyID, Name: "Zwaluw", Priority: 2}},
		Speciess:  map[model.ID]model.Species{speciesID: {ID: speciesID, FamilyID: familyID, Name: "Gierzwaluw"}},
		Functions: map[model.ID]model.Function{functionID: {ID: functionID, Name: "Nest"}},
		Protocols: map[model.ID]model.Protocol{},
	}
	return cat, speciesID, functionID
}

func TestBuild_AssignedVisitCountsAgainstItsOwnWeek(t *testing.T) {
	cat, speciesID, functionID := birdCatalogue()
	week := 202612
	v := model.Visit{
		ID: 1, ClusterID: 10,
		FromDate: time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC),
		RequiredResearchers: 1, PartOfDay: model.PartOchtend,
		SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		ProvisionalWeek: &week,
	}
	u := model.User{ID: 100, Qualifications: model.QualificationFlags{Zwaluw: true}}

	grid := Build(BuildInput{
		Visits:       []model.Visit{v},
		Users:        []model.User{u},
		Availability: []model.AvailabilityWeek{{UserID: u.ID, WeekOrdinal: week, MorningDays: 5}},
		Catalogue:    cat,
		Weeks:        []int{week},
	})

	cell := grid.DeadlineView["Zwaluw"][string(model.PartOchtend)][week]
	require.Equal(t, 1, cell.Required)
	require.Equal(t, 1, cell.Assigned)
	require.Equal(t, 0, cell.Shortfall)
	require.Equal(t, 4, cell.Spare)
}

func TestSimulate_IgnoresStoredAssignment(t *testing.T) {
	cat, speciesID, functionID := birdCatalogue()
	week := 202612
	v := model.Visit{
		ID: 1, ClusterID: 10,
		FromDate: time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2026, time.March, 20, 0, 0, 0, 0, time.UTC),
		RequiredResearchers: 1, PartOfDay: model.PartOchtend,
		SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		ProvisionalWeek: &week,
	}

	in := BuildInput{
		Visits:    []model.Visit{v},
		Catalogue: cat,
		Weeks:     []int{week},
	}

	simulated := Simulate(in)
	cell := simulated.DeadlineView["Zwaluw"][string(model.PartOchtend)][week]
	require.Equal(t, 0, cell.Assigned, "Simulate projects demand without crediting the stored assignment")
	require.Equal(t, 1, cell.Required)
}

func TestRunHistory_LastLockedStartRespectsLookbackWindow(t *testing.T) {
	h := NewRunHistory()
	protocolID, clusterID := model.ID(5), model.ID(10)
	target := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	recent := model.Visit{ID: 1, ClusterID: clusterID, ProtocolIDs: []model.ID{protocolID}, FromDate: target.AddDate(0, 0, -14)}
	h.Record(recent, target.AddDate(0, 0, -14))

	stale := model.Visit{ID: 2, ClusterID: clusterID, ProtocolIDs: []model.ID{protocolID}, FromDate: target.AddDate(0, 0, -70)}
	h.Record(stale, target.AddDate(0, 0, -70))

	last, ok := h.LastLockedStart(protocolID, clusterID, target)
	require.True(t, ok)
	require.True(t, last.Equal(recent.FromDate))
}

func TestRunHistory_LastLockedStartNoneWithinWindow(t *testing.T) {
	h := NewRunHistory()
	protocolID, clusterID := model.ID(5), model.ID(10)
	target := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	stale := model.Visit{ID: 2, ClusterID: clusterID, ProtocolIDs: []model.ID{protocolID}, FromDate: target.AddDate(0, 0, -70)}
	h.Record(stale, target.AddDate(0, 0, -70))

	_, ok := h.LastLockedStart(protocolID, clusterID, target)
	require.False(t, ok)
}
