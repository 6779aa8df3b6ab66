package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/fieldworks/jobflow/internal/application/port/output"
)

// LocalArchiveGateway stores job snapshots on the local filesystem.
// Layout: <baseDir>/snapshots/<jobID>/snapshot.json
type LocalArchiveGateway struct {
	fs      afero.Fs
	baseDir string
}

// NewLocalArchiveGateway creates a filesystem-backed archive gateway.
// Pass afero.NewMemMapFs() in tests.
func NewLocalArchiveGateway(fs afero.Fs, baseDir string) *LocalArchiveGateway {
	return &LocalArchiveGateway{fs: fs, baseDir: baseDir}
}

// SaveSnapshot writes the snapshot content to disk
func (g *LocalArchiveGateway) SaveSnapshot(ctx context.Context, req output.SnapshotRequest) (*output.SnapshotMetadata, error) {
	dir := filepath.Join(g.baseDir, "snapshots", req.JobID)
	if err := g.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, "snapshot.json")
	if err := afero.WriteFile(g.fs, path, req.Content, 0o644); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	return &output.SnapshotMetadata{
		JobID:       req.JobID,
		StoragePath: path,
		Size:        int64(len(req.Content)),
		ArchivedAt:  time.Now().UTC(),
	}, nil
}

// LoadSnapshot reads a previously archived snapshot
func (g *LocalArchiveGateway) LoadSnapshot(ctx context.Context, jobID string) ([]byte, error) {
	path := filepath.Join(g.baseDir, "snapshots", jobID, "snapshot.json")
	content, err := afero.ReadFile(g.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return content, nil
}

var _ output.ArchiveGateway = (*LocalArchiveGateway)(nil)
