// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionIsSMP(t *testing.T) {
	assert.True(t, Function{Name: "SMP Kraamverblijf"}.IsSMP())
	assert.False(t, Function{Name: "Nest"}.IsSMP())
	assert.False(t, Function{Name: "SM"}.IsSMP())
}

func TestStricterPrecipitation(t *testing.T) {
	assert.Equal(t, PrecipitationMotregen, StricterPrecipitation(PrecipitationMotregen, PrecipitationDroog))
	assert.Equal(t, PrecipitationGeenRegen, StricterPrecipitation(PrecipitationDroog, PrecipitationGeenRegen))
	assert.Equal(t, PrecipitationGeenNeerslagGeenMist, StricterPrecipitation(PrecipitationGeenNeerslagGeenMist, PrecipitationGeenNeerslagGeenMist))
}

func TestExperienceLevelMeets(t *testing.T) {
	assert.True(t, ExperienceSenior.Meets(ExperienceJunior))
	assert.True(t, ExperienceMedior.Meets(ExperienceMedior))
	assert.False(t, ExperienceJunior.Meets(ExperienceSenior))
	assert.False(t, ExperienceNieuw.Meets(ExperienceJunior))
	assert.False(t, ExperienceGZ.Meets(ExperienceJunior))
}

func TestExperienceLevelIsSupervisor(t *testing.T) {
	assert.True(t, ExperienceSenior.IsSupervisor())
	assert.True(t, ExperienceMedior.IsSupervisor())
	assert.False(t, ExperienceJunior.IsSupervisor())
	assert.False(t, ExperienceNieuw.IsSupervisor())
}

func TestUserIsSupervisor(t *testing.T) {
	senior := User{Contract: ContractZZP, ExperienceBat: ExperienceSenior}
	assert.True(t, senior.IsSupervisor())

	internNonJunior := User{Contract: ContractIntern, ExperienceBat: ExperienceMedior}
	assert.True(t, internNonJunior.IsSupervisor())

	internJunior := User{Contract: ContractIntern, ExperienceBat: ExperienceJunior}
	assert.False(t, internJunior.IsSupervisor())

	flexJunior := User{Contract: ContractFlex, ExperienceBat: ExperienceJunior}
	assert.False(t, flexJunior.IsSupervisor())
}

func TestAvailabilityWeekTotalDays(t *testing.T) {
	a := AvailabilityWeek{MorningDays: 1, DaytimeDays: 2, NighttimeDays: 3, FlexDays: 4}
	assert.Equal(t, 10, a.TotalDays())
}

func TestVisitRequiredResearchersSatisfied(t *testing.T) {
	v := Visit{RequiredResearchers: 2, ResearcherIDs: []ID{1, 2}}
	assert.True(t, v.RequiredResearchersSatisfied())

	v.ResearcherIDs = []ID{1}
	assert.False(t, v.RequiredResearchersSatisfied())
}

func TestClusterSoftDeleted(t *testing.T) {
	c := Cluster{}
	assert.False(t, c.SoftDeleted())
}

func TestUserSoftDeleted(t *testing.T) {
	u := User{}
	assert.False(t, u.SoftDeleted())
}
