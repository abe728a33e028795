// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package storage mirrors converted files to an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/pkg/types"
)

// objectStore is the subset of the minio client the publisher uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Publisher uploads converted files under a key prefix in one bucket.
type Publisher struct {
	client objectStore
	bucket string
	prefix string
	logger *slog.Logger
}

// New connects to the endpoint in cfg and makes sure the bucket exists.
func New(ctx context.Context, cfg types.StorageConfig, logger *slog.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("storage: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return newPublisher(ctx, client, cfg, logger)
}

func newPublisher(ctx context.Context, client objectStore, cfg types.StorageConfig, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logging.Component(logger, "storage"),
	}
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", p.bucket, err)
	}
	if exists {
		p.logger.Debug("bucket ready", slog.String("bucket", p.bucket))
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", p.bucket, err)
	}
	p.logger.Info("bucket created", slog.String("bucket", p.bucket))
	return nil
}

// Key returns the object key for a converted file name.
func (p *Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Publish uploads the file at localPath as name and returns its object key.
func (p *Publisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	key := p.Key(name)
	info, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: ContentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	p.logger.Debug("object uploaded",
		slog.String("bucket", p.bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)
	return key, nil
}

// ContentType returns the MIME type for a converted file name.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
