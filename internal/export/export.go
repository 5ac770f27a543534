// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package export renders a researcher's planned week as a
// downloadable iCalendar document, one VEVENT per assignment, so a
// field worker can pull their schedule into any calendar client
// instead of waiting for a notification email.
package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
	"github.com/vwp-nl/fieldplan-core/internal/model"
	"github.com/vwp-nl/fieldplan-core/internal/qualify"
)

// ClusterName resolves a Cluster to its display name.
type ClusterName func(id model.ID) (name string, ok bool)

// partStartHour gives each daypart a representative local start hour;
// Visit.StartTimeText carries the authoritative free-form Dutch phrase
// but is not a parseable clock time, so the calendar event uses this
// fixed approximation instead.
var partStartHour = map[model.PartOfDay]int{
	model.PartOchtend: 7,
	model.PartDag:      12,
	model.PartAvond:    20,
}

// WeekCalendar renders every visit assigned to forUserID (its
// ResearcherIDs includes the user and a planned week or date is set)
// as one VEVENT, and returns the serialized .ics document. When the
// daily-planning feature is off the solver sets only PlannedWeek, so
// the event falls on that week's Monday. now stamps every event's
// DTSTAMP/CREATED, standing in for the injectable clock solver entry
// points accept.
func WeekCalendar(visits []model.Visit, cat qualify.Catalogue, clusterName ClusterName, forUserID model.ID, now time.Time) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)

	for _, v := range visits {
		day, planned := plannedDay(v)
		if !planned || !assignedTo(v, forUserID) {
			continue
		}

		start := eventStart(v, day)
		end := start.Add(time.Duration(v.DurationMinutes) * time.Minute)

		event := cal.AddEvent(fmt.Sprintf("visit-%d@fieldplan.vwp.nl", v.ID))
		event.SetCreatedTime(now)
		event.SetDtStampTime(now)
		event.SetModifiedAt(now)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(summary(v, cat))
		event.SetDescription(description(v))
		if clusterName != nil {
			if name, ok := clusterName(v.ClusterID); ok {
				event.SetLocation(name)
			}
		}
	}

	return cal.Serialize(), nil
}

func assignedTo(v model.Visit, userID model.ID) bool {
	for _, id := range v.ResearcherIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// plannedDay resolves the concrete calendar day a visit lands on:
// PlannedDate when the daily-planning feature filled it in, else the
// Monday of PlannedWeek.
func plannedDay(v model.Visit) (time.Time, bool) {
	if v.PlannedDate != nil {
		return *v.PlannedDate, true
	}
	if v.PlannedWeek != nil {
		year, week := calendar.WeekFromOrdinal(*v.PlannedWeek)
		return calendar.WeekMonday(year, week), true
	}
	return time.Time{}, false
}

func eventStart(v model.Visit, day time.Time) time.Time {
	hour := partStartHour[v.PartOfDay]
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
}

func summary(v model.Visit, cat qualify.Catalogue) string {
	if v.CustomName != nil && *v.CustomName != "" {
		return *v.CustomName
	}
	if cat != nil {
		if tag := qualify.RequiredSkillTag(v, cat); tag != "" {
			return fmt.Sprintf("Veldbezoek %s", tag)
		}
	}
	return "Veldbezoek"
}

func description(v model.Visit) string {
	return fmt.Sprintf("Visit #%d, cluster %d, %d researcher(s) required.", v.ID, v.ClusterID, v.RequiredResearchers)
}
