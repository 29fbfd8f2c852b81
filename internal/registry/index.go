package registry

import (
	"cmp"
	"slices"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// HNSW index parameters. Registries hold people, not photos, so they stay small.
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// hnswEfSearch is the search candidate pool size.
	hnswEfSearch = 64

	// hnswSearchMultiplier asks the graph for more candidates than requested
	// so exact re-ranking can fix approximate ordering.
	hnswSearchMultiplier = 3
)

// Candidate is a registry identity ranked by distance to a probe.
type Candidate struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// nearestIndex wraps the HNSW graph over a snapshot's identities.
// Graph keys are positions in the snapshot's identity slice.
type nearestIndex struct {
	graph *hnsw.Graph[int]
}

// buildIndex builds the graph. Identities whose dimension differs from the
// first one are left out of the graph.
func buildIndex(identities []facematch.Identity, distance facematch.DistanceFunc) *nearestIndex {
	if len(identities) == 0 || distance == nil {
		return nil
	}

	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.EfSearch = hnswEfSearch
	g.Distance = func(a, b []float32) float32 {
		return float32(distance(a, b))
	}

	dim := len(identities[0].Embedding)
	for i := range identities {
		if len(identities[i].Embedding) != dim {
			continue
		}
		g.Add(hnsw.MakeNode(i, identities[i].Embedding))
	}
	return &nearestIndex{graph: g}
}

// search returns up to k candidates ordered by exact distance.
func (ix *nearestIndex) search(probe []float32, k int, identities []facematch.Identity, distance facematch.DistanceFunc) []Candidate {
	if ix == nil || ix.graph == nil || ix.graph.Len() == 0 || k <= 0 {
		return nil
	}
	if len(identities) > 0 && len(probe) != len(identities[0].Embedding) {
		return nil
	}

	neighbors := ix.graph.Search(probe, k*hnswSearchMultiplier)
	candidates := make([]Candidate, 0, len(neighbors))
	for _, n := range neighbors {
		id := identities[n.Key]
		candidates = append(candidates, Candidate{Name: id.Name, Distance: distance(probe, id.Embedding)})
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}
