// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package sp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/store"
)

const testYear = 2026

func jan(day int) time.Time { return time.Date(testYear, time.January, day, 0, 0, 0, 0, time.UTC) }
func apr(day int) time.Time { return time.Date(testYear, time.April, day, 0, 0, 0, 0, time.UTC) }
func dec(day int) time.Time { return time.Date(testYear, time.December, day, 0, 0, 0, 0, time.UTC) }

func baseCatalogue() (store.MapCatalogue, model.ID, model.ID, model.ID) {
	familyID := model.ID(1)
	speciesID := model.ID(2)
	functionID := model.ID(3)
	cat := store.MapCatalogue{
		Families:  map[model.ID]model.Family{familyID: {ID: familyID, Name: "Vleermuis", Priority: 1}},
		Speciess:  map[model.ID]model.Species{speciesID: {ID: speciesID, FamilyID: familyID, Name: "Gewone dwergvleermuis"}},
		Functions: map[model.ID]model.Function{functionID: {ID: functionID, Name: "Nest"}},
		Protocols: map[model.ID]model.Protocol{},
	}
	return cat, familyID, speciesID, functionID
}

// Sequencing and gap: two visits sharing a protocol with a
// 21-day minimum gap must land at least 3 ISO weeks apart.
func TestPlan_SequencingGap(t *testing.T) {
	cat, _, speciesID, functionID := baseCatalogue()
	protocolID := model.ID(10)
	cat.Protocols[protocolID] = model.Protocol{
		ID: protocolID, SpeciesID: speciesID, FunctionID: functionID,
		MinGapValue: 21, MinGapUnit: model.GapUnitDays,
	}

	v1 := model.Visit{
		ID: 100, ClusterID: 1, FromDate: jan(1), ToDate: dec(31),
		RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		ProtocolIDs: []model.ID{protocolID}, ProtocolVisitIndex: map[model.ID]int{protocolID: 1},
		State: model.StateOpen,
	}
	v2 := model.Visit{
		ID: 101, ClusterID: 1, FromDate: jan(1), ToDate: dec(31),
		RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		ProtocolIDs: []model.ID{protocolID}, ProtocolVisitIndex: map[model.ID]int{protocolID: 2},
		State: model.StateOpen,
	}

	in := Input{
		Visits:    []model.Visit{v1, v2},
		Catalogue: cat,
		Protocol:  func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
		CurrentYear: testYear,
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	byID := map[model.ID]model.Visit{}
	for _, v := range out {
		byID[v.ID] = v
	}
	require.NotNil(t, byID[100].ProvisionalWeek)
	require.NotNil(t, byID[101].ProvisionalWeek)

	_, w1 := calendar.WeekFromOrdinal(*byID[100].ProvisionalWeek)
	_, w2 := calendar.WeekFromOrdinal(*byID[101].ProvisionalWeek)
	require.GreaterOrEqual(t, w2, w1+3)
}

// Daypart capacity steers the chosen week: an evening visit raises
// demand on the Avond bucket, so weeks where the only qualified
// researcher has morning days free (and no flex) score a daypart
// overflow even though their total availability is identical.
func TestPlan_DaypartOverflowSteersWeek(t *testing.T) {
	cat, _, speciesID, functionID := baseCatalogue()

	v := model.Visit{
		ID: 300, ClusterID: 1, FromDate: jan(1), ToDate: apr(30),
		RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		PartOfDay: model.PartAvond, State: model.StateOpen,
	}

	userID := model.ID(60)
	u := model.User{ID: userID, Qualifications: model.QualificationFlags{Vleermuis: true}}

	var availability []model.AvailabilityWeek
	for week := 1; week <= 17; week++ {
		a := model.AvailabilityWeek{UserID: userID, WeekOrdinal: calendar.WeekOrdinal(testYear, week)}
		if week >= 11 {
			a.NighttimeDays = 5
		} else {
			a.MorningDays = 5
		}
		availability = append(availability, a)
	}

	in := Input{
		Visits:       []model.Visit{v},
		Users:        []model.User{u},
		Availability: availability,
		Catalogue:    cat,
		Protocol:     func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
		CurrentYear:  testYear,
		HorizonStart: jan(1),
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].ProvisionalWeek)

	_, week := calendar.WeekFromOrdinal(*out[0].ProvisionalWeek)
	require.GreaterOrEqual(t, week, 11)
}

// Flex days absorb shortfalls from any daypart, but only up to the
// pool's size.
func TestFlexedOverflow(t *testing.T) {
	partDemand := map[model.PartOfDay]int{model.PartOchtend: 3, model.PartAvond: 1}
	dedicated := map[model.PartOfDay]int{model.PartOchtend: 2}

	require.Equal(t, 2, flexedOverflow(partDemand, dedicated, 0))
	require.Equal(t, 1, flexedOverflow(partDemand, dedicated, 1))
	require.Equal(t, 0, flexedOverflow(partDemand, dedicated, 2))
	require.Equal(t, 0, flexedOverflow(partDemand, dedicated, 5))
	require.Equal(t, 0, flexedOverflow(nil, nil, 0))
}

// Sleutel consumes intern capacity: a visit requiring the intern-held key can
// only land on or after the first week an intern has availability.
func TestPlan_SleutelRequiresInternCapacity(t *testing.T) {
	cat, _, speciesID, functionID := baseCatalogue()

	v := model.Visit{
		ID: 200, ClusterID: 1, FromDate: jan(1), ToDate: apr(30),
		RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		Flags: model.VisitFlags{Sleutel: true}, State: model.StateOpen,
	}

	internID := model.ID(50)
	intern := model.User{ID: internID, Contract: model.ContractIntern, ExperienceBat: model.ExperienceJunior}

	var availability []model.AvailabilityWeek
	for week := 1; week <= 17; week++ {
		days := 0
		if week >= 11 {
			days = 5
		}
		availability = append(availability, model.AvailabilityWeek{
			UserID: internID, WeekOrdinal: calendar.WeekOrdinal(testYear, week), FlexDays: days,
		})
	}

	in := Input{
		Visits:       []model.Visit{v},
		Users:        []model.User{intern},
		Availability: availability,
		Catalogue:    cat,
		Protocol:     func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
		CurrentYear:  testYear,
		HorizonStart: jan(1),
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].ProvisionalWeek)

	_, week := calendar.WeekFromOrdinal(*out[0].ProvisionalWeek)
	require.GreaterOrEqual(t, week, 11)
}
