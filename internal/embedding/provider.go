// Package embedding talks to the face embedding model.
// The model is a black box: it finds faces in an image and describes each with a fixed-length vector.
package embedding

import (
	"context"
)

// Region is a face bounding box [x1, y1, x2, y2] in image pixels.
type Region struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// RegionFromBBox converts a [x1, y1, x2, y2] slice. Short slices yield a zero region.
func RegionFromBBox(bbox []float64) Region {
	if len(bbox) != 4 {
		return Region{}
	}
	return Region{X1: bbox[0], Y1: bbox[1], X2: bbox[2], Y2: bbox[3]}
}

// BBox returns the region as a [x1, y1, x2, y2] slice.
func (r Region) BBox() []float64 {
	return []float64{r.X1, r.Y1, r.X2, r.Y2}
}

// Face is one detected face.
type Face struct {
	Index     int       `json:"face_index"`
	Region    Region    `json:"region"`
	Embedding []float32 `json:"-"`
	Score     float64   `json:"det_score"`
}

// Provider detects faces and measures distances between their embeddings.
type Provider interface {
	// Detect returns every face found in image, possibly none.
	Detect(ctx context.Context, image []byte) ([]Face, error)
	// Distance is the metric the model's embeddings are meant to be compared with.
	Distance(a, b []float32) float64
}
