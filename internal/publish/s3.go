package publish

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yugabyte/build-gcc/internal/config"
)

const defaultRegion = "us-east-1"

// objectStore is the subset of the minio client the mirror uses
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Mirror copies release artifacts to an S3-compatible bucket as <tag>/<file>
type Mirror struct {
	logger hclog.Logger
	client objectStore
	bucket string
}

// NewMirror connects to the bucket described by cfg
func NewMirror(logger hclog.Logger, cfg config.S3Config) (*Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &Mirror{logger: logger, client: client, bucket: cfg.Bucket}, nil
}

func (m *Mirror) Name() string { return "s3" }

// Publish uploads the archive and its checksum. The bucket must already exist.
func (m *Mirror) Publish(ctx context.Context, r Release) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", m.bucket, err)
	}

	if !exists {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}

	uploads := []struct {
		path        string
		contentType string
	}{
		{r.Archive, "application/gzip"},
		{r.Checksum, "text/plain"},
	}

	for _, u := range uploads {
		key := ObjectKey(r.Tag, u.path)
		m.logger.Info("Uploading to mirror", "bucket", m.bucket, "key", key)

		info, err := m.client.FPutObject(ctx, m.bucket, key, u.path, minio.PutObjectOptions{ContentType: u.contentType})
		if err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}

		m.logger.Debug("Uploaded", "key", key, "size", info.Size, "etag", info.ETag)
	}

	return nil
}

// ObjectKey names a release file inside the bucket
func ObjectKey(tag, path string) string {
	return strings.Trim(tag, "/") + "/" + filepath.Base(path)
}
