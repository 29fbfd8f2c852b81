package facematch

// Accept is the binary accept/reject test of a single distance against the threshold.
func Accept(distance, threshold float64) bool {
	return distance <= threshold
}

// Match finds the identity closest to probe and accepts it only when it is
// strictly below threshold and passes Accept.
//
// The scan is linear. Ties keep the first identity in slice order, so callers
// that need a deterministic answer must pass identities in a stable order.
func Match(probe []float32, identities []Identity, threshold float64, distance DistanceFunc) MatchResult {
	if len(identities) == 0 {
		return MatchResult{Name: Unknown}
	}

	best := -1
	var bestDistance float64
	for i := range identities {
		d := distance(probe, identities[i].Embedding)
		if best == -1 || d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	result := MatchResult{Name: Unknown, Distance: bestDistance, HasDistance: true}
	if bestDistance < threshold && Accept(bestDistance, threshold) {
		result.Name = identities[best].Name
	}
	return result
}

// MatchAll matches every probe independently. Faces found in the same frame
// never influence each other.
func MatchAll(probes [][]float32, identities []Identity, threshold float64, distance DistanceFunc) []MatchResult {
	results := make([]MatchResult, len(probes))
	for i, p := range probes {
		results[i] = Match(p, identities, threshold, distance)
	}
	return results
}
