// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package was

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/store"
	"github.com/vwp-nl/fieldplan-core/pkg/config"
)

var testMonday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC) // an arbitrary ISO Monday

func vleermuisCatalogue() (store.MapCatalogue, model.ID, model.ID) {
	familyID := model.ID(1)
	speciesID := model.ID(2)
	functionID := model.ID(3)
	cat := store.MapCatalogue{
		Families:  map[model.ID]model.Family{familyID: {ID: familyID, Name: "Vleermuis", Priority: 2}},
		Speciess:  map[model.ID]model.Species{speciesID: {ID: speciesID, FamilyID: familyID, Name: "Gewone dwergvleermuis"}},
		Functions: map[model.ID]model.Function{functionID: {ID: functionID, Name: "Nest"}},
		Protocols: map[model.ID]model.Protocol{},
	}
	return cat, speciesID, functionID
}

func weekAvailability(userID model.ID, morning, daytime, night, flex int) model.AvailabilityWeek {
	return model.AvailabilityWeek{UserID: userID, MorningDays: morning, DaytimeDays: daytime, NighttimeDays: night, FlexDays: flex}
}

// With two qualified users at 70 and 10
// minutes travel, the closer researcher is assigned.
func TestPlan_PrefersLowerTravel(t *testing.T) {
	cat, speciesID, functionID := vleermuisCatalogue()
	v := model.Visit{
		ID: 1, ClusterID: 10, FromDate: testMonday, ToDate: testMonday.AddDate(0, 0, 4),
		RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		PartOfDay: model.PartOchtend, State: model.StateOpen,
	}

	far := model.User{ID: 100, Qualifications: model.QualificationFlags{Vleermuis: true}}
	near := model.User{ID: 101, Qualifications: model.QualificationFlags{Vleermuis: true}}

	in := Input{
		WeekMonday:  testMonday,
		CurrentWeek: 202609,
		Visits:      []model.Visit{v},
		Users:       []model.User{far, near},
		Availability: []model.AvailabilityWeek{
			weekAvailability(far.ID, 5, 0, 0, 0),
			weekAvailability(near.ID, 5, 0, 0, 0),
		},
		Catalogue: cat,
		UserTravel: func(userID, clusterID model.ID) (int, bool) {
			if userID == far.ID {
				return 70, true
			}
			return 10, true
		},
		Settings: config.Default(),
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)
	require.Empty(t, out.SkippedVisitIDs)

	var planned model.Visit
	for _, pv := range out.Visits {
		if pv.ID == v.ID {
			planned = pv
		}
	}
	require.Equal(t, []model.ID{near.ID}, planned.ResearcherIDs)
}

// Capacity shortage: three single-researcher Ochtend visits
// competing for one user with morning_days=2, flex_days=0; the two
// highest-priority (lowest-ID, equal-priority tie-break) visits win.
func TestPlan_CapacityShortageSkipsLowestPriority(t *testing.T) {
	cat, speciesID, functionID := vleermuisCatalogue()
	mkVisit := func(id model.ID) model.Visit {
		return model.Visit{
			ID: id, ClusterID: 10, FromDate: testMonday, ToDate: testMonday.AddDate(0, 0, 4),
			RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
			PartOfDay: model.PartOchtend, State: model.StateOpen,
		}
	}
	v1, v2, v3 := mkVisit(1), mkVisit(2), mkVisit(3)

	u := model.User{ID: 200, Qualifications: model.QualificationFlags{Vleermuis: true}}

	in := Input{
		WeekMonday:   testMonday,
		CurrentWeek:  202609,
		Visits:       []model.Visit{v1, v2, v3},
		Users:        []model.User{u},
		Availability: []model.AvailabilityWeek{weekAvailability(u.ID, 2, 0, 0, 0)},
		Catalogue:    cat,
		Settings:     config.Default(),
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)
	require.Equal(t, []model.ID{v3.ID}, out.SkippedVisitIDs)
}

// Frequency lockout: a protocol locked two weeks ago with a
// 21-day minimum gap excludes every candidate of that (protocol,
// cluster) pair, regardless of capacity.
func TestPlan_FrequencyLockout(t *testing.T) {
	cat, speciesID, functionID := vleermuisCatalogue()
	protocolID := model.ID(5)
	cat.Protocols[protocolID] = model.Protocol{ID: protocolID, MinGapValue: 21, MinGapUnit: model.GapUnitDays}

	v := model.Visit{
		ID: 1, ClusterID: 10, FromDate: testMonday, ToDate: testMonday.AddDate(0, 0, 4),
		RequiredResearchers: 1, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		ProtocolIDs: []model.ID{protocolID}, PartOfDay: model.PartOchtend, State: model.StateOpen,
	}
	u := model.User{ID: 200, Qualifications: model.QualificationFlags{Vleermuis: true}}

	lastLockedStart := testMonday.AddDate(0, 0, -14) // two weeks ago

	in := Input{
		WeekMonday:   testMonday,
		CurrentWeek:  202609,
		Visits:       []model.Visit{v},
		Users:        []model.User{u},
		Availability: []model.AvailabilityWeek{weekAvailability(u.ID, 5, 0, 0, 0)},
		Catalogue:    cat,
		Protocol:     func(id model.ID) (model.Protocol, bool) { p, ok := cat.Protocols[id]; return p, ok },
		LastLocked: func(protocolID, clusterID model.ID) (time.Time, bool) {
			return lastLockedStart, true
		},
		Settings: config.Default(),
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)
	require.Equal(t, []model.ID{v.ID}, out.SkippedVisitIDs)
}

// Vleermuis coupling: the coupling penalty for an
// unsupervised team of juniors makes the solver prefer substituting a
// senior into the team over leaving both juniors as the only pair,
// when both are available at equal travel cost.
func TestPlan_CouplingPrefersSupervisor(t *testing.T) {
	cat, speciesID, functionID := vleermuisCatalogue()
	v := model.Visit{
		ID: 1, ClusterID: 10, FromDate: testMonday, ToDate: testMonday.AddDate(0, 0, 4),
		RequiredResearchers: 2, SpeciesIDs: []model.ID{speciesID}, FunctionIDs: []model.ID{functionID},
		PartOfDay: model.PartOchtend, State: model.StateOpen,
	}

	juniorA := model.User{ID: 10, ExperienceBat: model.ExperienceJunior, Qualifications: model.QualificationFlags{Vleermuis: true}}
	juniorB := model.User{ID: 11, ExperienceBat: model.ExperienceJunior, Qualifications: model.QualificationFlags{Vleermuis: true}}
	senior := model.User{ID: 12, ExperienceBat: model.ExperienceSenior, Qualifications: model.QualificationFlags{Vleermuis: true}}

	in := Input{
		WeekMonday:  testMonday,
		CurrentWeek: 202609,
		Visits:      []model.Visit{v},
		Users:       []model.User{juniorA, juniorB, senior},
		Availability: []model.AvailabilityWeek{
			weekAvailability(juniorA.ID, 5, 0, 0, 0),
			weekAvailability(juniorB.ID, 5, 0, 0, 0),
			weekAvailability(senior.ID, 5, 0, 0, 0),
		},
		Catalogue: cat,
		Settings:  config.Default(),
	}

	out, err := Plan(context.Background(), in, nil)
	require.NoError(t, err)

	var planned model.Visit
	for _, pv := range out.Visits {
		if pv.ID == v.ID {
			planned = pv
		}
	}
	require.Contains(t, planned.ResearcherIDs, senior.ID)
}
