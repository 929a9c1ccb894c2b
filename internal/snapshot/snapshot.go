// Package snapshot archives the raw HTML of monitored pages in object storage.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/watchtower/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver stores a fetched page and returns its object key.
type Archiver interface {
	Archive(ctx context.Context, tenantID uuid.UUID, sourceURL string, body []byte, at time.Time) (string, error)
}

// Key returns <tenant>/<yyyy>/<mm>/<dd>/<sha256>.html. Identical content on
// the same day maps to the same key.
func Key(tenantID uuid.UUID, body []byte, at time.Time) string {
	sum := sha256.Sum256(body)
	at = at.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.html",
		tenantID, at.Year(), int(at.Month()), at.Day(), hex.EncodeToString(sum[:]))
}

// MinioArchiver writes snapshots to an S3-compatible bucket.
type MinioArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinioArchiver connects to the endpoint and creates the bucket if missing.
func NewMinioArchiver(ctx context.Context, cfg config.SnapshotConfig) (*MinioArchiver, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinioArchiver{client: cli, bucket: cfg.Bucket}, nil
}

func (a *MinioArchiver) Archive(ctx context.Context, tenantID uuid.UUID, sourceURL string, body []byte, at time.Time) (string, error) {
	key := Key(tenantID, body, at)
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  "text/html; charset=utf-8",
		UserMetadata: map[string]string{"source-url": sourceURL},
	})
	if err != nil {
		return "", fmt.Errorf("uploading snapshot %s: %w", key, err)
	}
	return key, nil
}

// Noop discards snapshots. Used when object storage is not configured.
type Noop struct{}

func (Noop) Archive(context.Context, uuid.UUID, string, []byte, time.Time) (string, error) {
	return "", nil
}

var (
	_ Archiver = (*MinioArchiver)(nil)
	_ Archiver = Noop{}
)
