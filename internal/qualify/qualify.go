// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package qualify holds the two deterministic functions shared by the
// Seasonal Planner and the Weekly Assignment Solver: the skill tag a
// Visit projects onto, and the qualification predicate that decides
// whether a User may be assigned to a Visit.
package qualify

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

var dutchTitle = cases.Title(language.Dutch)

// Catalogue resolves the catalogue entities a Visit references by id.
// Both SP and WAS hold the full protocol catalogue in memory for the
// duration of a solver run and can satisfy this trivially.
type Catalogue interface {
	Species(id model.ID) (model.Species, bool)
	Function(id model.ID) (model.Function, bool)
	Family(id model.ID) (model.Family, bool)
}

const (
	tagVRFG = "VR/FG"
)

// smpFamilyTags maps the three families with a specialised-monitoring
// variant to the tag an "SMP "-prefixed function on that family
// produces.
var smpFamilyTags = map[string]string{
	"vleermuis":  "SMP Vleermuis",
	"gierzwaluw": "SMP Gierzwaluw",
	"huismus":    "SMP Huismus",
}

// RequiredSkillTag projects a Visit onto the single capacity bucket it
// competes for in the Seasonal Planner's supply/demand model.
func RequiredSkillTag(v model.Visit, cat Catalogue) string {
	families := visitFamilyNames(v, cat)

	for _, fid := range v.FunctionIDs {
		fn, ok := cat.Function(fid)
		if !ok {
			continue
		}
		if fn.IsSMP() {
			for _, family := range families {
				if tag, ok := smpFamilyTags[strings.ToLower(family)]; ok {
					return tag
				}
			}
		}
		if strings.Contains(fn.Name, "Vliegroute") || strings.Contains(fn.Name, "Foerageegebied") || strings.Contains(fn.Name, "Foerageergebied") {
			return tagVRFG
		}
	}

	if len(families) > 0 {
		return dutchTitle.String(strings.ToLower(families[0]))
	}
	return ""
}

func visitFamilyNames(v model.Visit, cat Catalogue) []string {
	seen := map[string]bool{}
	var names []string
	for _, sid := range v.SpeciesIDs {
		sp, ok := cat.Species(sid)
		if !ok {
			continue
		}
		fam, ok := cat.Family(sp.FamilyID)
		if !ok {
			continue
		}
		if seen[fam.Name] {
			continue
		}
		seen[fam.Name] = true
		names = append(names, fam.Name)
	}
	return names
}

// familyFlag maps a family name (lower-cased) to the generic
// qualification flag a researcher needs to survey it.
var familyFlag = map[string]func(model.QualificationFlags) bool{
	"pad":                   func(q model.QualificationFlags) bool { return q.Pad },
	"langoor":               func(q model.QualificationFlags) bool { return q.Langoor },
	"roofvogel":             func(q model.QualificationFlags) bool { return q.Roofvogel },
	"vleermuis":             func(q model.QualificationFlags) bool { return q.Vleermuis },
	"zwaluw":                func(q model.QualificationFlags) bool { return q.Zwaluw },
	"vlinder":               func(q model.QualificationFlags) bool { return q.Vlinder },
	"teunisbloempijlstaart": func(q model.QualificationFlags) bool { return q.Teunisbloempijlstaart },
	"zangvogel":             func(q model.QualificationFlags) bool { return q.Zangvogel },
	"biggenkruid":           func(q model.QualificationFlags) bool { return q.Biggenkruid },
	"schijfhoren":           func(q model.QualificationFlags) bool { return q.Schijfhoren },
}

// smpFlag maps a family name to its specialised-monitoring flag, which
// substitutes for the generic familyFlag check on SMP visits.
var smpFlag = map[string]func(model.QualificationFlags) bool{
	"vleermuis":  func(q model.QualificationFlags) bool { return q.SMPVleermuis },
	"gierzwaluw": func(q model.QualificationFlags) bool { return q.SMPGierzwaluw },
	"huismus":    func(q model.QualificationFlags) bool { return q.SMPHuismus },
}

// UserSkillSet is the deterministic set of skill tags a User's
// qualification flags project onto, used by SP's supply aggregation.
func UserSkillSet(u model.User) map[string]bool {
	set := map[string]bool{}
	for family, has := range familyFlag {
		if has(u.Qualifications) {
			set[dutchTitle.String(family)] = true
		}
	}
	for family, has := range smpFlag {
		if has(u.Qualifications) {
			set["SMP "+dutchTitle.String(family)] = true
		}
	}
	if u.Qualifications.VRFG {
		set[tagVRFG] = true
	}
	return set
}

// isSMPVisit reports whether any function on v begins with "SMP ".
func isSMPVisit(v model.Visit, cat Catalogue) bool {
	for _, fid := range v.FunctionIDs {
		fn, ok := cat.Function(fid)
		if ok && fn.IsSMP() {
			return true
		}
	}
	return false
}

// needsVRFG reports whether any function on v requires the vrfg flag.
func needsVRFG(v model.Visit, cat Catalogue) bool {
	for _, fid := range v.FunctionIDs {
		fn, ok := cat.Function(fid)
		if !ok {
			continue
		}
		if strings.Contains(fn.Name, "Vliegroute") || strings.Contains(fn.Name, "Foerageegebied") || strings.Contains(fn.Name, "Foerageergebied") {
			return true
		}
	}
	return false
}

// Qualifies reports whether user u is allowed to be assigned to visit
// v: every clause below must hold.
func Qualifies(v model.Visit, u model.User, cat Catalogue) bool {
	smp := isSMPVisit(v, cat)

	// 1. Family/species flags.
	for _, sid := range v.SpeciesIDs {
		sp, ok := cat.Species(sid)
		if !ok {
			continue
		}
		fam, ok := cat.Family(sp.FamilyID)
		if !ok {
			continue
		}
		name := strings.ToLower(fam.Name)

		if smp {
			if has, ok := smpFlag[name]; ok {
				if has(u.Qualifications) {
					continue
				}
				return false
			}
			// Families with no SMP variant fall through to the
			// generic check even on an SMP visit.
		}

		has, ok := familyFlag[name]
		if !ok {
			// No flag governs this family; nothing to check.
			continue
		}
		if !has(u.Qualifications) {
			return false
		}
	}

	// 2. Specialisation.
	if needsVRFG(v, cat) && !u.Qualifications.VRFG {
		return false
	}

	// 3. Expertise.
	if v.ExpertiseLevel != nil && hasVleermuisSpecies(v, cat) {
		if !u.ExperienceBat.Meets(*v.ExpertiseLevel) {
			return false
		}
	}

	// 4. Visit flags.
	if v.Flags.Hub && !u.Qualifications.Hub {
		return false
	}
	if v.Flags.Fiets && !u.Qualifications.Fiets {
		return false
	}
	if v.Flags.WBC && !u.Qualifications.WBC {
		return false
	}
	if v.Flags.DVP && !u.Qualifications.DVP {
		return false
	}
	if v.Flags.VOG && !u.Qualifications.VOG {
		return false
	}
	// Sleutel is enforced at assignment time via Intern supply, not here.

	return true
}

func hasVleermuisSpecies(v model.Visit, cat Catalogue) bool {
	for _, sid := range v.SpeciesIDs {
		sp, ok := cat.Species(sid)
		if !ok {
			continue
		}
		fam, ok := cat.Family(sp.FamilyID)
		if ok && strings.EqualFold(fam.Name, "vleermuis") {
			return true
		}
	}
	return false
}
