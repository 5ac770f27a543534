// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package qualify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

type fakeCatalogue struct {
	species   map[model.ID]model.Species
	functions map[model.ID]model.Function
	families  map[model.ID]model.Family
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		species:   map[model.ID]model.Species{},
		functions: map[model.ID]model.Function{},
		families:  map[model.ID]model.Family{},
	}
}

func (c *fakeCatalogue) Species(id model.ID) (model.Species, bool) {
	s, ok := c.species[id]
	return s, ok
}

func (c *fakeCatalogue) Function(id model.ID) (model.Function, bool) {
	f, ok := c.functions[id]
	return f, ok
}

func (c *fakeCatalogue) Family(id model.ID) (model.Family, bool) {
	f, ok := c.families[id]
	return f, ok
}

const (
	familyVleermuis model.ID = 1
	familyZwaluw    model.ID = 2

	speciesVleermuis model.ID = 10
	speciesZwaluw    model.ID = 11

	functionSMPKraam model.ID = 20
	functionNest     model.ID = 21
	functionVliegroute model.ID = 22
)

func baseCatalogue() *fakeCatalogue {
	cat := newFakeCatalogue()
	cat.families[familyVleermuis] = model.Family{ID: familyVleermuis, Name: "Vleermuis", Priority: 1}
	cat.families[familyZwaluw] = model.Family{ID: familyZwaluw, Name: "Zwaluw", Priority: 2}
	cat.species[speciesVleermuis] = model.Species{ID: speciesVleermuis, FamilyID: familyVleermuis, Name: "Gewone dwergvleermuis"}
	cat.species[speciesZwaluw] = model.Species{ID: speciesZwaluw, FamilyID: familyZwaluw, Name: "Huiszwaluw"}
	cat.functions[functionSMPKraam] = model.Function{ID: functionSMPKraam, Name: "SMP Kraamverblijf"}
	cat.functions[functionNest] = model.Function{ID: functionNest, Name: "Nest"}
	cat.functions[functionVliegroute] = model.Function{ID: functionVliegroute, Name: "Vliegroute"}
	return cat
}

func TestRequiredSkillTagSMP(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{SpeciesIDs: []model.ID{speciesVleermuis}, FunctionIDs: []model.ID{functionSMPKraam}}
	assert.Equal(t, "SMP Vleermuis", RequiredSkillTag(v, cat))
}

func TestRequiredSkillTagVRFG(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{SpeciesIDs: []model.ID{speciesZwaluw}, FunctionIDs: []model.ID{functionVliegroute}}
	assert.Equal(t, "VR/FG", RequiredSkillTag(v, cat))
}

func TestRequiredSkillTagGenericFamily(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{SpeciesIDs: []model.ID{speciesVleermuis}, FunctionIDs: []model.ID{functionNest}}
	assert.Equal(t, "Vleermuis", RequiredSkillTag(v, cat))
}

func TestUserSkillSet(t *testing.T) {
	u := model.User{Qualifications: model.QualificationFlags{Vleermuis: true, SMPVleermuis: true, VRFG: true}}
	set := UserSkillSet(u)
	assert.True(t, set["Vleermuis"])
	assert.True(t, set["SMP Vleermuis"])
	assert.True(t, set["VR/FG"])
	assert.False(t, set["Zwaluw"])
}

func TestQualifiesGenericFamily(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{SpeciesIDs: []model.ID{speciesVleermuis}, FunctionIDs: []model.ID{functionNest}}

	qualified := model.User{Qualifications: model.QualificationFlags{Vleermuis: true}}
	assert.True(t, Qualifies(v, qualified, cat))

	unqualified := model.User{Qualifications: model.QualificationFlags{}}
	assert.False(t, Qualifies(v, unqualified, cat))
}

func TestQualifiesSMPSuffices(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{SpeciesIDs: []model.ID{speciesVleermuis}, FunctionIDs: []model.ID{functionSMPKraam}}

	// SMP flag alone suffices; the generic family flag is not required.
	u := model.User{Qualifications: model.QualificationFlags{SMPVleermuis: true}}
	assert.True(t, Qualifies(v, u, cat))

	noSMP := model.User{Qualifications: model.QualificationFlags{Vleermuis: true}}
	assert.False(t, Qualifies(v, noSMP, cat))
}

func TestQualifiesVRFGRequired(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{SpeciesIDs: []model.ID{speciesZwaluw}, FunctionIDs: []model.ID{functionVliegroute}}

	u := model.User{Qualifications: model.QualificationFlags{Zwaluw: true, VRFG: true}}
	assert.True(t, Qualifies(v, u, cat))

	missingVRFG := model.User{Qualifications: model.QualificationFlags{Zwaluw: true}}
	assert.False(t, Qualifies(v, missingVRFG, cat))
}

func TestQualifiesExpertiseLevel(t *testing.T) {
	cat := baseCatalogue()
	medior := model.ExperienceMedior
	v := model.Visit{SpeciesIDs: []model.ID{speciesVleermuis}, FunctionIDs: []model.ID{functionNest}, ExpertiseLevel: &medior}

	senior := model.User{ExperienceBat: model.ExperienceSenior, Qualifications: model.QualificationFlags{Vleermuis: true}}
	assert.True(t, Qualifies(v, senior, cat))

	junior := model.User{ExperienceBat: model.ExperienceJunior, Qualifications: model.QualificationFlags{Vleermuis: true}}
	assert.False(t, Qualifies(v, junior, cat))
}

func TestQualifiesVisitFlags(t *testing.T) {
	cat := baseCatalogue()
	v := model.Visit{
		SpeciesIDs:  []model.ID{speciesVleermuis},
		FunctionIDs: []model.ID{functionNest},
		Flags:       model.VisitFlags{Hub: true},
	}

	withHub := model.User{Qualifications: model.QualificationFlags{Vleermuis: true, Hub: true}}
	assert.True(t, Qualifies(v, withHub, cat))

	withoutHub := model.User{Qualifications: model.QualificationFlags{Vleermuis: true}}
	assert.False(t, Qualifies(v, withoutHub, cat))
}
