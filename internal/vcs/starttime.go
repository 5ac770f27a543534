// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package vcs

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

var dutchTitle = cases.Title(language.Dutch)

const (
	speciesAbbrevMV = "MV"
	speciesAbbrevHM = "HM"

	familyVlinder = "vlinder"

	functionPaarverblijf          = "Paarverblijf"
	functionMassawinterverblijf   = "Massawinterverblijfplaats"
)

// deriveStartTimeText computes the human Dutch start-time phrasing for
// a clique's constituent protocols. Species- and function-specific
// special cases are checked first; the default falls back to a
// sunrise/sunset-relative phrase rounded to the half hour.
func deriveStartTimeText(protocols []model.Protocol, cat Catalogue) string {
	hasMassawinterverblijf, hasPaarverblijfMV, hasPaarverblijfNonMV := false, false, false
	var massawinterverblijfOnly = len(protocols) == 1

	for _, p := range protocols {
		fn, _ := cat.Function(p.FunctionID)
		sp, _ := cat.Species(p.SpeciesID)

		if fn.Name == functionMassawinterverblijf {
			hasMassawinterverblijf = true
		}
		if strings.Contains(fn.Name, functionPaarverblijf) {
			if sp.Abbreviation == speciesAbbrevMV {
				hasPaarverblijfMV = true
			} else {
				hasPaarverblijfNonMV = true
			}
		}
	}

	if hasMassawinterverblijf {
		if massawinterverblijfOnly {
			return "00:00"
		}
		if hasPaarverblijfMV {
			return "Zonsondergang"
		}
		if hasPaarverblijfNonMV {
			return "00:00"
		}
	}

	for _, p := range protocols {
		sp, _ := cat.Species(p.SpeciesID)
		fn, _ := cat.Function(p.FunctionID)
		fam, _ := cat.Family(sp.FamilyID)

		if sp.Abbreviation == speciesAbbrevMV && strings.Contains(fn.Name, functionPaarverblijf) {
			if partOfDayFor(p) == model.PartAvond {
				return "Zonsondergang"
			}
			return "3 uur voor zonsopgang"
		}
		if sp.Abbreviation == speciesAbbrevHM {
			return "1-2 uur na zonsopkomst"
		}
		if strings.EqualFold(fam.Name, familyVlinder) {
			return dutchTitle.String("tussen 10:00 en 15:00")
		}
		if p.StartTimingRef == model.TimingAbsolute && isMultiProtocolEveningBucket(protocols) {
			if p.AbsoluteStart != nil {
				return p.AbsoluteStart.Format("15:04")
			}
		}
	}

	return deriveStartTimeTextDefault(protocols[0].StartTimingRef, deriveStartTimeMinutesDefault(protocols[0]))
}

func partOfDayFor(p model.Protocol) model.PartOfDay {
	domain := partOfDayDomain(p, true)
	if len(domain) == 0 {
		return model.PartDag
	}
	return domain[0]
}

func isMultiProtocolEveningBucket(protocols []model.Protocol) bool {
	return len(protocols) > 1
}

// deriveStartTimeMinutesDefault returns a protocol's configured start
// offset in minutes, relative to its timing reference. Used for the
// default-case phrasing above.
func deriveStartTimeMinutesDefault(p model.Protocol) int {
	if p.StartOffsetMin != nil {
		return roundToHalfHour(*p.StartOffsetMin)
	}
	return 0
}

// roundToHalfHour rounds to the nearest half hour, away from zero on
// ties, for both before-reference (negative) and after-reference
// offsets.
func roundToHalfHour(minutes int) int {
	if minutes < 0 {
		return -((-minutes + 15) / 30 * 30)
	}
	return (minutes + 15) / 30 * 30
}

// deriveStartTimeTextDefault formats an offset in minutes as Dutch
// text relative to its reference; for the SUNRISE/SUNSET frames,
// starttime_test.go parses the text back and expects the same offset.
func deriveStartTimeTextDefault(ref model.TimingReference, minutes int) string {
	switch ref {
	case model.TimingSunset:
		return relativePhrase(minutes, "zonsondergang")
	case model.TimingSunrise:
		return relativePhrase(minutes, "zonsopgang")
	default:
		return dutchTitle.String(fmt.Sprintf("%s, %d minuten", strings.ToLower(string(ref)), minutes))
	}
}

func relativePhrase(minutes int, reference string) string {
	if minutes == 0 {
		return dutchTitle.String(reference)
	}
	if minutes < 0 {
		return fmt.Sprintf("%d minuten voor %s", -minutes, reference)
	}
	return fmt.Sprintf("%d minuten na %s", minutes, reference)
}
