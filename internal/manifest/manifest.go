package manifest

import (
	"context"

	"github.com/starford/assetforge/internal/models"
)

// Recorder defines the manifest operations used by the application.
// Consumers should depend on this interface rather than the concrete *DB type.
type Recorder interface {
	Record(ctx context.Context, run Run, artifacts []models.Artifact) (int64, error)
	LatestRun(ctx context.Context, tool string) (*Run, error)
	Artifacts(ctx context.Context, runID int64) ([]models.Artifact, error)
	Close() error
}

// Verify *DB satisfies Recorder at compile time.
var _ Recorder = (*DB)(nil)
