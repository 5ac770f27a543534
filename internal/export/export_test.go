// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/store"
)

func TestWeekCalendar_IncludesOnlyAssignedVisits(t *testing.T) {
	cat := store.MapCatalogue{
		Families:  map[model.ID]model.Family{1: {ID: 1, Name: "Vleermuis"}},
		Speciess:  map[model.ID]model.Species{2: {ID: 2, FamilyID: 1, Name: "Gewone dwergvleermuis"}},
		Functions: map[model.ID]model.Function{3: {ID: 3, Name: "Nest"}},
		Protocols: map[model.ID]model.Protocol{},
	}
	date := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	mine := model.Visit{
		ID: 1, ClusterID: 10, DurationMinutes: 90, PartOfDay: model.PartAvond,
		SpeciesIDs: []model.ID{2}, FunctionIDs: []model.ID{3},
		PlannedDate: &date, ResearcherIDs: []model.ID{100},
	}
	other := model.Visit{
		ID: 2, ClusterID: 11, DurationMinutes: 60, PartOfDay: model.PartOchtend,
		PlannedDate: &date, ResearcherIDs: []model.ID{200},
	}
	unplanned := model.Visit{ID: 3, ClusterID: 12, ResearcherIDs: []model.ID{100}}

	out, err := WeekCalendar([]model.Visit{mine, other, unplanned}, cat, nil, 100, date)
	require.NoError(t, err)
	require.Contains(t, out, "BEGIN:VCALENDAR")
	require.Contains(t, out, "visit-1@fieldplan.vwp.nl")
	require.NotContains(t, out, "visit-2@fieldplan.vwp.nl")
	require.NotContains(t, out, "visit-3@fieldplan.vwp.nl")
	require.True(t, strings.Count(out, "BEGIN:VEVENT") == 1)
}

func TestWeekCalendar_FallsBackToPlannedWeekMonday(t *testing.T) {
	week := calendar.WeekOrdinal(2026, 25)
	v := model.Visit{
		ID: 7, ClusterID: 10, DurationMinutes: 60, PartOfDay: model.PartDag,
		PlannedWeek: &week, ResearcherIDs: []model.ID{100},
	}

	out, err := WeekCalendar([]model.Visit{v}, nil, nil, 100, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Contains(t, out, "visit-7@fieldplan.vwp.nl")
	// ISO week 25 of 2026 starts Monday June 15; PartDag maps to 12:00.
	require.Contains(t, out, "DTSTART:20260615T120000Z")
}

func TestWeekCalendar_NoAssignmentsStillProducesValidCalendar(t *testing.T) {
	out, err := WeekCalendar(nil, nil, nil, 100, time.Now())
	require.NoError(t, err)
	require.Contains(t, out, "BEGIN:VCALENDAR")
	require.Contains(t, out, "END:VCALENDAR")
}
