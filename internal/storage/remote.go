package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ajranjith/fixzit-agent/internal/config"
	"github.com/ajranjith/fixzit-agent/internal/delta"
)

// ErrNotConfigured is returned when no endpoint or bucket is set.
var ErrNotConfigured = errors.New("storage endpoint and bucket must be configured")

// Remote stores baselines in a MinIO/S3 bucket under a key prefix.
type Remote struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// NewRemote connects to the configured bucket. The bucket is not created
// here; Push does that on first use.
func NewRemote(cfg config.StorageConfig) (*Remote, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, ErrNotConfigured
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	return &Remote{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix, region: cfg.Region}, nil
}

// Key returns the object key for an artifact name.
func (r *Remote) Key(name string) string {
	return objectKey(r.prefix, name)
}

func objectKey(prefix, name string) string {
	prefix = strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (r *Remote) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{Region: r.region})
}

// Push uploads the baseline artifacts found in dir and returns their keys.
func (r *Remote) Push(ctx context.Context, dir string) ([]string, error) {
	if _, err := delta.Load("baseline", dir); err != nil {
		return nil, err
	}
	if err := r.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("bucket %s: %w", r.bucket, err)
	}
	var keys []string
	for _, name := range existing(dir) {
		key := r.Key(name)
		_, err := r.client.FPutObject(ctx, r.bucket, key, filepath.Join(dir, name), minio.PutObjectOptions{
			ContentType: contentType(name),
		})
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", key, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Pull downloads the baseline artifacts into dir. A missing aggregate object
// is an error; the optional artifacts are skipped when absent.
func (r *Remote) Pull(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var got []string
	for _, name := range baselineFiles {
		key := r.Key(name)
		if _, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err != nil {
			if name != delta.AggregateFile && minio.ToErrorResponse(err).Code == "NoSuchKey" {
				continue
			}
			return got, fmt.Errorf("stat %s: %w", key, err)
		}
		if err := r.client.FGetObject(ctx, r.bucket, key, filepath.Join(dir, name), minio.GetObjectOptions{}); err != nil {
			return got, fmt.Errorf("download %s: %w", key, err)
		}
		got = append(got, name)
	}
	if _, err := delta.Load("baseline", dir); err != nil {
		return got, err
	}
	return got, nil
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
