// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

// Package store defines the persistence interfaces the three solvers
// consume and a deterministic in-memory implementation used by the
// CLI, the HTTP surface's test doubles, and solver tests. The planning
// core never talks to a database directly; every solver takes a Store
// (or the narrower Catalogue/qualify.Catalogue views built from one)
// as a plain value.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// Clock is the injectable now()/today() boundary so tests can pin
// "current year" and "current week" without real wall-clock
// dependence.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time   { return time.Now().UTC() }
func (SystemClock) Today() time.Time { return time.Now().UTC().Truncate(24 * time.Hour) }

// Store is the full persistence interface the planning core relies on.
// All reads return non-deleted rows only; soft-deleted Clusters and
// Users are hidden from the solvers.
type Store interface {
	LoadProtocols(ids []model.ID) ([]model.Protocol, error)
	LoadEligibleVisits(weekMonday time.Time) ([]model.Visit, error)
	LoadAvailability(weekOrdinal int) ([]model.AvailabilityWeek, error)
	LoadUsers() ([]model.User, error)
	LoadClusters(ids []model.ID) ([]model.Cluster, error)
	LoadProjects(ids []model.ID) ([]model.Project, error)

	PersistVisits(visits []model.Visit) error
	UpdateVisit(visit model.Visit) error

	CacheGet(origin, destination model.ID) (minutes int, ok bool)
	CachePutMany(rows []model.TravelTimeCache)
}

// MemoryStore is a deterministic, in-process Store. It exists for the
// CLI, which has no database of its own, and for tests that want a
// real Store implementation rather than hand-rolled fixtures.
type MemoryStore struct {
	mu sync.RWMutex

	Families  map[model.ID]model.Family
	Species   map[model.ID]model.Species
	Functions map[model.ID]model.Function
	Protocols map[model.ID]model.Protocol
	Clusters  map[model.ID]model.Cluster
	Projects  map[model.ID]model.Project
	Visits    map[model.ID]model.Visit
	Users     map[model.ID]model.User
	Avails    map[int]map[model.ID]model.AvailabilityWeek // weekOrdinal -> userID -> row
	Travel    map[travelKey]int
}

type travelKey struct{ origin, destination model.ID }

// NewMemoryStore returns an empty MemoryStore ready for fixtures to
// populate.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Families:  map[model.ID]model.Family{},
		Species:   map[model.ID]model.Species{},
		Functions: map[model.ID]model.Function{},
		Protocols: map[model.ID]model.Protocol{},
		Clusters:  map[model.ID]model.Cluster{},
		Projects:  map[model.ID]model.Project{},
		Visits:    map[model.ID]model.Visit{},
		Users:     map[model.ID]model.User{},
		Avails:    map[int]map[model.ID]model.AvailabilityWeek{},
		Travel:    map[travelKey]int{},
	}
}

func (s *MemoryStore) LoadProtocols(ids []model.ID) ([]model.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Protocol
	if len(ids) == 0 {
		for _, p := range s.Protocols {
			out = append(out, p)
		}
	} else {
		for _, id := range ids {
			if p, ok := s.Protocols[id]; ok {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadEligibleVisits returns every non-cancelled visit overlapping the
// work week starting weekMonday. "Eligible" here is the raw temporal
// overlap; WAS applies its own candidate filtering (quote projects,
// custom names, frequency lockout, protocol ordering) on top.
func (s *MemoryStore) LoadEligibleVisits(weekMonday time.Time) ([]model.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	friday := weekMonday.AddDate(0, 0, 4)
	var out []model.Visit
	for _, v := range s.Visits {
		if v.State == model.StateCancelled {
			continue
		}
		if v.ToDate.Before(weekMonday) || v.FromDate.After(friday) {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) LoadAvailability(weekOrdinal int) ([]model.AvailabilityWeek, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.AvailabilityWeek
	for _, row := range s.Avails[weekOrdinal] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *MemoryStore) LoadUsers() ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.User
	for _, u := range s.Users {
		if u.SoftDeleted() {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) LoadClusters(ids []model.ID) ([]model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Cluster
	for _, id := range ids {
		if c, ok := s.Clusters[id]; ok && !c.SoftDeleted() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) LoadProjects(ids []model.ID) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Project
	for _, id := range ids {
		if p, ok := s.Projects[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PersistVisits inserts or overwrites visits in a single atomic step.
func (s *MemoryStore) PersistVisits(visits []model.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range visits {
		s.Visits[v.ID] = v
	}
	return nil
}

func (s *MemoryStore) UpdateVisit(visit model.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Visits[visit.ID] = visit
	return nil
}

func (s *MemoryStore) CacheGet(origin, destination model.ID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	minutes, ok := s.Travel[travelKey{origin, destination}]
	return minutes, ok
}

func (s *MemoryStore) CachePutMany(rows []model.TravelTimeCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.Travel[travelKey{r.OriginClusterID, r.DestinationClusterID}] = r.Minutes
	}
}

// Catalogue returns the vcs.Catalogue/qualify.Catalogue-shaped view of
// this store's static catalogue tables, eager-loading function,
// species, and family rows in one pass.
func (s *MemoryStore) Catalogue() MapCatalogue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MapCatalogue{
		Protocols: copyProtocolMap(s.Protocols),
		Speciess:  copySpeciesMap(s.Species),
		Functions: copyFunctionMap(s.Functions),
		Families:  copyFamilyMap(s.Families),
	}
}

// MapCatalogue is a read-only, map-backed catalogue snapshot
// satisfying both internal/vcs.Catalogue and internal/qualify.Catalogue.
type MapCatalogue struct {
	Protocols map[model.ID]model.Protocol
	Speciess  map[model.ID]model.Species
	Functions map[model.ID]model.Function
	Families  map[model.ID]model.Family
}

func (c MapCatalogue) Protocol(id model.ID) (model.Protocol, bool) { p, ok := c.Protocols[id]; return p, ok }
func (c MapCatalogue) Species(id model.ID) (model.Species, bool)  { s, ok := c.Speciess[id]; return s, ok }
func (c MapCatalogue) Function(id model.ID) (model.Function, bool) {
	f, ok := c.Functions[id]
	return f, ok
}
func (c MapCatalogue) Family(id model.ID) (model.Family, bool) { f, ok := c.Families[id]; return f, ok }

func copyProtocolMap(m map[model.ID]model.Protocol) map[model.ID]model.Protocol {
	out := make(map[model.ID]model.Protocol, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySpeciesMap(m map[model.ID]model.Species) map[model.ID]model.Species {
	out := make(map[model.ID]model.Species, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFunctionMap(m map[model.ID]model.Function) map[model.ID]model.Function {
	out := make(map[model.ID]model.Function, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFamilyMap(m map[model.ID]model.Family) map[model.ID]model.Family {
	out := make(map[model.ID]model.Family, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
