// Package facematch turns probe embeddings into identity names.
// It holds the nearest-neighbour policy shared by the CLI, the web handlers and recognition sessions.
package facematch

import "encoding/json"

// Unknown is the name reported when no enrolled identity is close enough.
const Unknown = "unknown"

// DefaultThreshold is the maximum accepted distance for a positive identification.
// It matches the tolerance used by dlib-style 128-d embeddings with Euclidean distance.
const DefaultThreshold = 0.6

// Identity is a named face embedding held by the registry.
type Identity struct {
	Name      string
	Embedding []float32
}

// DistanceFunc measures how far apart two embeddings are. Smaller means more similar.
type DistanceFunc func(a, b []float32) float64

// MatchResult is the outcome of matching one probe embedding.
type MatchResult struct {
	Name        string  `json:"name"`
	Distance    float64 `json:"distance"`
	HasDistance bool    `json:"-"` // false when the registry was empty
}

// matchJSON is the wire form of MatchResult; distance is null when there was
// nothing to compare against.
type matchJSON struct {
	Name     string   `json:"name"`
	Distance *float64 `json:"distance"`
}

// MarshalJSON encodes a missing distance as null so an exact match at 0 stays distinguishable.
func (r MatchResult) MarshalJSON() ([]byte, error) {
	out := matchJSON{Name: r.Name}
	if r.HasDistance {
		d := r.Distance
		out.Distance = &d
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *MatchResult) UnmarshalJSON(data []byte) error {
	var in matchJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = MatchResult{Name: in.Name}
	if in.Distance != nil {
		r.Distance = *in.Distance
		r.HasDistance = true
	}
	return nil
}

// Known reports whether the probe was identified.
func (r MatchResult) Known() bool {
	return r.Name != Unknown
}
