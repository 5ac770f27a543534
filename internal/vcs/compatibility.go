// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package vcs

import (
	"strings"

	"github.com/vwp-nl/fieldplan-core/internal/calendar"
)

// crossFamilyAllowList is the one allow-listed cross-family merge pair.
var crossFamilyAllowList = [2]string{"vleermuis", "zwaluw"}

func isAllowListedCrossFamily(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	x, y := crossFamilyAllowList[0], crossFamilyAllowList[1]
	return (a == x && b == y) || (a == y && b == x)
}

const rugstreeppadSpecies = "rugstreeppad"

// compatible reports whether requests r1 and r2 may be merged into the
// same clique.
func compatible(r1, r2 request, cat Catalogue, minWindowDays int) bool {
	if r1.ProtocolID == r2.ProtocolID {
		return false
	}

	p1, ok1 := cat.Protocol(r1.ProtocolID)
	p2, ok2 := cat.Protocol(r2.ProtocolID)
	if !ok1 || !ok2 {
		return false
	}

	sp1, _ := cat.Species(p1.SpeciesID)
	sp2, _ := cat.Species(p2.SpeciesID)
	fam1, _ := cat.Family(sp1.FamilyID)
	fam2, _ := cat.Family(sp2.FamilyID)
	fn1, _ := cat.Function(p1.FunctionID)
	fn2, _ := cat.Function(p2.FunctionID)

	// SMP and non-SMP functions never merge, regardless of family.
	if fn1.IsSMP() != fn2.IsSMP() {
		return false
	}

	sameFamily := fam1.ID != 0 && fam1.ID == fam2.ID
	crossFamilyOK := isAllowListedCrossFamily(fam1.Name, fam2.Name)
	if !sameFamily && !crossFamilyOK {
		return false
	}

	// Rugstreeppad protocols never merge across different functions.
	if strings.EqualFold(sp1.Name, rugstreeppadSpecies) || strings.EqualFold(sp2.Name, rugstreeppadSpecies) {
		if fn1.ID != fn2.ID {
			return false
		}
	}

	if calendar.OverlapDays(r1.WindowFrom, r1.WindowTo, r2.WindowFrom, r2.WindowTo) < minWindowDays {
		return false
	}

	if len(intersectPartOfDay(r1.PartOfDay, r2.PartOfDay)) == 0 {
		return false
	}

	return true
}
