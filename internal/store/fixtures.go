// SPDX-FileCopyrightText: 2025 vwp-nl
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vwp-nl/fieldplan-core/internal/model"
)

// Snapshot is the on-disk shape the CLI hydrates a MemoryStore from in
// place of a real database — the planning core has no persistence
// layer or migrations of its own, so the CLI needs some deterministic
// stand-in to drive the solvers against. It mirrors Store's table set
// one field at a time rather than embedding *MemoryStore directly so
// the JSON shape stays stable even if MemoryStore's internals change.
type Snapshot struct {
	Families     []model.Family           `json:"families"`
	Species      []model.Species          `json:"species"`
	Functions    []model.Function         `json:"functions"`
	Protocols    []model.Protocol         `json:"protocols"`
	Clusters     []model.Cluster          `json:"clusters"`
	Projects     []model.Project          `json:"projects"`
	Visits       []model.Visit            `json:"visits"`
	Users        []model.User             `json:"users"`
	Availability []model.AvailabilityWeek `json:"availability"`
	Travel       []model.TravelTimeCache  `json:"travel"`
}

// LoadFixtures reads a Snapshot document from path and returns a
// populated MemoryStore. An empty path yields an empty store ready for
// a caller to populate programmatically (used by tests); a path to a
// file that does not exist is an error.
func LoadFixtures(path string) (*MemoryStore, error) {
	ms := NewMemoryStore()
	if path == "" {
		return ms, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing fixtures %s: %w", path, err)
	}
	ms.Hydrate(snap)
	return ms, nil
}

// Hydrate loads a Snapshot's rows into an already-constructed
// MemoryStore, overwriting any row with a matching id.
func (s *MemoryStore) Hydrate(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range snap.Families {
		s.Families[f.ID] = f
	}
	for _, sp := range snap.Species {
		s.Species[sp.ID] = sp
	}
	for _, fn := range snap.Functions {
		s.Functions[fn.ID] = fn
	}
	for _, p := range snap.Protocols {
		s.Protocols[p.ID] = p
	}
	for _, c := range snap.Clusters {
		s.Clusters[c.ID] = c
	}
	for _, p := range snap.Projects {
		s.Projects[p.ID] = p
	}
	for _, v := range snap.Visits {
		s.Visits[v.ID] = v
	}
	for _, u := range snap.Users {
		s.Users[u.ID] = u
	}
	for _, a := range snap.Availability {
		if s.Avails[a.WeekOrdinal] == nil {
			s.Avails[a.WeekOrdinal] = map[model.ID]model.AvailabilityWeek{}
		}
		s.Avails[a.WeekOrdinal][a.UserID] = a
	}
	for _, t := range snap.Travel {
		s.Travel[travelKey{t.OriginClusterID, t.DestinationClusterID}] = t.Minutes
	}
}

// Dump returns a Snapshot of the store's current contents, the inverse
// of Hydrate, used by the CLI to write back a fixtures file after a
// solver run mutates visits in place.
func (s *MemoryStore) Dump() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{}
	for _, f := range s.Families {
		snap.Families = append(snap.Families, f)
	}
	for _, sp := range s.Species {
		snap.Species = append(snap.Species, sp)
	}
	for _, fn := range s.Functions {
		snap.Functions = append(snap.Functions, fn)
	}
	for _, p := range s.Protocols {
		snap.Protocols = append(snap.Protocols, p)
	}
	for _, c := range s.Clusters {
		snap.Clusters = append(snap.Clusters, c)
	}
	for _, p := range s.Projects {
		snap.Projects = append(snap.Projects, p)
	}
	for _, v := range s.Visits {
		snap.Visits = append(snap.Visits, v)
	}
	for _, u := range s.Users {
		snap.Users = append(snap.Users, u)
	}
	for _, byUser := range s.Avails {
		for _, a := range byUser {
			snap.Availability = append(snap.Availability, a)
		}
	}
	for k, m := range s.Travel {
		snap.Travel = append(snap.Travel, model.TravelTimeCache{OriginClusterID: k.origin, DestinationClusterID: k.destination, Minutes: m})
	}
	return snap
}
