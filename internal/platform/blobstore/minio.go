package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for an S3-compatible endpoint.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// MinioBlobStore stores blobs in a single MinIO/S3 bucket.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects to the endpoint and creates the bucket when it
// does not exist yet.
func NewMinioBlobStore(ctx context.Context, cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioBlobStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioBlobStore) Upload(ctx context.Context, key, contentType string, content io.Reader) (*BlobMetadata, error) {
	if key == "" {
		return nil, ErrMissingObjectKey
	}
	if contentType == "" {
		contentType = defaultBlobCType
	}

	// Size -1 lets the client stream with multipart upload.
	info, err := s.client.PutObject(ctx, s.bucket, key, io.LimitReader(content, MaxFileSize), -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s/%s: %w", s.bucket, key, err)
	}
	return &BlobMetadata{
		Key:         key,
		ContentType: contentType,
		Size:        info.Size,
		Hash:        strings.Trim(info.ETag, `"`),
		CreatedAt:   info.LastModified,
	}, nil
}

func (s *MinioBlobStore) Download(ctx context.Context, key string) (io.ReadCloser, *BlobMetadata, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("get object %s/%s: %w", s.bucket, key, err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("stat object %s/%s: %w", s.bucket, key, err)
	}
	return obj, objectMetadata(stat), nil
}

func (s *MinioBlobStore) List(ctx context.Context, prefix string) ([]*BlobMetadata, error) {
	var out []*BlobMetadata
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", s.bucket, prefix, info.Err)
		}
		out = append(out, objectMetadata(info))
	}
	return out, nil
}

func objectMetadata(info minio.ObjectInfo) *BlobMetadata {
	return &BlobMetadata{
		Key:         info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		Hash:        strings.Trim(info.ETag, `"`),
		CreatedAt:   info.LastModified,
	}
}
