package embedding

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/zeebo/blake3"
)

// modelDetector is implemented by providers that report which model produced the detections.
type modelDetector interface {
	DetectWithModel(ctx context.Context, image []byte) ([]Face, string, error)
}

// CachedProvider memoises Detect results by image digest.
// Enrollment images rarely change, so registry rebuilds mostly hit the cache.
// Cache failures are logged and never fail a detection.
type CachedProvider struct {
	inner  Provider
	cache  database.DetectionCache
	logger *slog.Logger
}

// NewCachedProvider wraps inner with cache. A nil logger uses slog.Default().
func NewCachedProvider(inner Provider, cache database.DetectionCache, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{inner: inner, cache: cache, logger: logger}
}

// Digest returns the cache key of an image.
func Digest(image []byte) string {
	sum := blake3.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// Detect returns cached detections when available and fills the cache otherwise.
func (p *CachedProvider) Detect(ctx context.Context, image []byte) ([]Face, error) {
	digest := Digest(image)

	cached, ok, err := p.cache.GetDetections(ctx, digest)
	if err != nil {
		p.logger.Warn("detection cache read failed", "digest", digest, "error", err)
	} else if ok {
		return facesFromStored(cached), nil
	}

	var (
		faces []Face
		model string
	)
	if md, ok := p.inner.(modelDetector); ok {
		faces, model, err = md.DetectWithModel(ctx, image)
	} else {
		faces, err = p.inner.Detect(ctx, image)
	}
	if err != nil {
		return nil, err
	}

	if err := p.cache.SaveDetections(ctx, digest, model, storedFromFaces(faces)); err != nil {
		p.logger.Warn("detection cache write failed", "digest", digest, "error", err)
	}
	return faces, nil
}

// Distance delegates to the wrapped provider.
func (p *CachedProvider) Distance(a, b []float32) float64 {
	return p.inner.Distance(a, b)
}

func facesFromStored(stored []database.StoredDetection) []Face {
	faces := make([]Face, len(stored))
	for i, d := range stored {
		faces[i] = Face{
			Index:     d.FaceIndex,
			Region:    RegionFromBBox(d.BBox),
			Embedding: d.Embedding,
			Score:     d.DetScore,
		}
	}
	return faces
}

func storedFromFaces(faces []Face) []database.StoredDetection {
	stored := make([]database.StoredDetection, len(faces))
	for i, f := range faces {
		stored[i] = database.StoredDetection{
			FaceIndex: f.Index,
			Embedding: f.Embedding,
			BBox:      f.Region.BBox(),
			DetScore:  f.Score,
		}
	}
	return stored
}
