package registry

import (
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Snapshot is an immutable, fully built view of the known identities.
// A Snapshot is never modified after it is published; rebuilds create a new one.
type Snapshot struct {
	version    uint64
	builtAt    time.Time
	identities []facematch.Identity
	byName     map[string]int
	distance   facematch.DistanceFunc
	index      *nearestIndex
}

func newSnapshot(version uint64, builtAt time.Time, identities []facematch.Identity, distance facematch.DistanceFunc) *Snapshot {
	byName := make(map[string]int, len(identities))
	for i, id := range identities {
		byName[facematch.NormalizeName(id.Name)] = i
	}
	return &Snapshot{
		version:    version,
		builtAt:    builtAt,
		identities: identities,
		byName:     byName,
		distance:   distance,
		index:      buildIndex(identities, distance),
	}
}

// Version increases by one with every successful rebuild. The initial empty snapshot is version 0.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// BuiltAt returns when the snapshot was published.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Size returns the number of identities.
func (s *Snapshot) Size() int {
	return len(s.identities)
}

// All returns a copy of the identities in registry order.
func (s *Snapshot) All() []facematch.Identity {
	out := make([]facematch.Identity, len(s.identities))
	for i, id := range s.identities {
		out[i] = facematch.Identity{Name: id.Name, Embedding: slices.Clone(id.Embedding)}
	}
	return out
}

// Names returns identity names in registry order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.identities))
	for i, id := range s.identities {
		names[i] = id.Name
	}
	return names
}

// Lookup finds an identity by case-insensitive name.
func (s *Snapshot) Lookup(name string) (facematch.Identity, bool) {
	i, ok := s.byName[facematch.NormalizeName(name)]
	if !ok {
		return facematch.Identity{}, false
	}
	id := s.identities[i]
	return facematch.Identity{Name: id.Name, Embedding: slices.Clone(id.Embedding)}, true
}

// Match identifies probe against this snapshot with a linear scan.
func (s *Snapshot) Match(probe []float32, threshold float64) facematch.MatchResult {
	return facematch.Match(probe, s.identities, threshold, s.distance)
}

// Nearest returns up to k identities closest to probe, closest first.
// It is approximate (HNSW) and meant for diagnostics; Match decides identity.
func (s *Snapshot) Nearest(probe []float32, k int) []Candidate {
	return s.index.search(probe, k, s.identities, s.distance)
}
