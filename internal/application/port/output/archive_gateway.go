package output

import (
	"context"
	"time"
)

// ArchiveGateway stores a final snapshot of a job and its ledger when the
// job reaches the archived phase. Implementations cover local filesystem,
// S3 and an in-memory mock.
type ArchiveGateway interface {
	// SaveSnapshot persists the snapshot content and returns its metadata
	SaveSnapshot(ctx context.Context, req SnapshotRequest) (*SnapshotMetadata, error)

	// LoadSnapshot retrieves a previously archived snapshot
	LoadSnapshot(ctx context.Context, jobID string) ([]byte, error)
}

// SnapshotRequest is the content to archive for one job
type SnapshotRequest struct {
	JobID       string
	Content     []byte
	ContentType string
	Metadata    map[string]string
}

// SnapshotMetadata describes a stored snapshot
type SnapshotMetadata struct {
	JobID       string
	StoragePath string
	Size        int64
	ArchivedAt  time.Time
}
