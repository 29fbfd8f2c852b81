package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// DetectionCacheRepository caches face detections per image digest.
// face_detections_processed marks a digest as done so images without
// faces are cached as well.
type DetectionCacheRepository struct {
	pool *Pool
}

// NewDetectionCacheRepository creates a new PostgreSQL detection cache.
func NewDetectionCacheRepository(pool *Pool) *DetectionCacheRepository {
	return &DetectionCacheRepository{pool: pool}
}

// GetDetections returns the cached detections for digest. The bool is false on a cache miss.
func (r *DetectionCacheRepository) GetDetections(ctx context.Context, digest string) ([]database.StoredDetection, bool, error) {
	var processed bool
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM face_detections_processed WHERE image_digest = $1)", digest,
	).Scan(&processed)
	if err != nil {
		return nil, false, database.Unavailable("check detections processed", err)
	}
	if !processed {
		return nil, false, nil
	}

	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT face_index, embedding, bbox, det_score, model, created_at
		FROM face_detections
		WHERE image_digest = $1
		ORDER BY face_index
	`, digest)
	if err != nil {
		return nil, false, database.Unavailable("query detections", err)
	}
	defer rows.Close()

	detections := []database.StoredDetection{}
	for rows.Next() {
		var d database.StoredDetection
		var vec pgvector.Vector
		var bbox pq.Float64Array
		if err := rows.Scan(&d.FaceIndex, &vec, &bbox, &d.DetScore, &d.Model, &d.CreatedAt); err != nil {
			return nil, false, database.Unavailable("scan detection", err)
		}
		d.Embedding = vec.Slice()
		d.BBox = []float64(bbox)
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, false, database.Unavailable("iterate detections", err)
	}
	return detections, true, nil
}

// SaveDetections replaces the cached detections for digest in one transaction.
func (r *DetectionCacheRepository) SaveDetections(ctx context.Context, digest, model string, detections []database.StoredDetection) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return database.Unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_detections WHERE image_digest = $1", digest); err != nil {
		return database.Unavailable("clear detections", err)
	}

	for _, d := range detections {
		if len(d.BBox) != 4 {
			return fmt.Errorf("detection %d: bbox has %d values, expected 4", d.FaceIndex, len(d.BBox))
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO face_detections (image_digest, face_index, embedding, bbox, det_score, model)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, digest, d.FaceIndex, pgvector.NewVector(d.Embedding), pq.Array(d.BBox), d.DetScore, model)
		if err != nil {
			return database.Unavailable("insert detection", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO face_detections_processed (image_digest, face_count, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (image_digest) DO UPDATE
		SET face_count = EXCLUDED.face_count, model = EXCLUDED.model, processed_at = NOW()
	`, digest, len(detections), model)
	if err != nil {
		return database.Unavailable("mark detections processed", err)
	}

	if err := tx.Commit(); err != nil {
		return database.Unavailable("commit detections", err)
	}
	return nil
}

var _ database.DetectionCache = (*DetectionCacheRepository)(nil)
