package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldworks/jobflow/internal/application/port/output"
)

// S3ArchiveGateway stores job snapshots in S3.
// Key layout: s3://<bucket>/<prefix>/snapshots/<jobID>/snapshot.json
type S3ArchiveGateway struct {
	client S3API
	bucket string
	prefix string
}

// S3Config holds S3 archive gateway configuration
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3ArchiveGateway creates an S3-backed archive gateway using the
// default AWS credential chain
func NewS3ArchiveGateway(cfg S3Config) (*S3ArchiveGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return &S3ArchiveGateway{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewS3ArchiveGatewayWithClient creates a gateway with a custom S3 client,
// primarily for tests
func NewS3ArchiveGatewayWithClient(client S3API, bucket, prefix string) *S3ArchiveGateway {
	return &S3ArchiveGateway{client: client, bucket: bucket, prefix: prefix}
}

// SaveSnapshot uploads the snapshot content
func (g *S3ArchiveGateway) SaveSnapshot(ctx context.Context, req output.SnapshotRequest) (*output.SnapshotMetadata, error) {
	key := g.buildKey(req.JobID)

	s3Metadata := map[string]string{
		"job-id":      req.JobID,
		"archived-at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range req.Metadata {
		s3Metadata[k] = v
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/json"
	}

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(req.Content),
		ContentType: aws.String(contentType),
		Metadata:    s3Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("upload snapshot to S3: %w", err)
	}

	return &output.SnapshotMetadata{
		JobID:       req.JobID,
		StoragePath: fmt.Sprintf("s3://%s/%s", g.bucket, key),
		Size:        int64(len(req.Content)),
		ArchivedAt:  time.Now().UTC(),
	}, nil
}

// LoadSnapshot downloads a previously archived snapshot
func (g *S3ArchiveGateway) LoadSnapshot(ctx context.Context, jobID string) ([]byte, error) {
	result, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(g.buildKey(jobID)),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot from S3: %w", err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return content, nil
}

func (g *S3ArchiveGateway) buildKey(jobID string) string {
	key := fmt.Sprintf("snapshots/%s/snapshot.json", jobID)
	if g.prefix != "" {
		return g.prefix + "/" + key
	}
	return key
}

var _ output.ArchiveGateway = (*S3ArchiveGateway)(nil)
