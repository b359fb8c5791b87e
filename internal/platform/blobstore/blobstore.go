// Package blobstore stores generated accumulation files. It defines the
// BlobStore interface, an in-memory implementation for tests and local runs,
// and a MinIO/S3 implementation for deployed environments.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound     = errors.New("blob not found")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrMissingObjectKey = errors.New("object key is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (100 MB).
const MaxFileSize = 100 * 1024 * 1024

// ContentType values for the generated file families.
const (
	ContentTypeCSV   = "text/csv"
	ContentTypeText  = "text/plain"
	ContentTypeX12   = "application/edi-x12"
	defaultBlobCType = "application/octet-stream"
)

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// BlobMetadata describes a stored blob.
type BlobMetadata struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore defines the contract for blob storage backends.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, content io.Reader) (*BlobMetadata, error)
	Download(ctx context.Context, key string) (io.ReadCloser, *BlobMetadata, error)
	List(ctx context.Context, prefix string) ([]*BlobMetadata, error)
}

// ObjectKey returns the key a payer's generated file is stored under.
func ObjectKey(payer, fileName string) string {
	return strings.ToLower(payer) + "/" + fileName
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

// NewInMemoryBlobStore returns a ready-to-use InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs: make(map[string]*storedBlob),
	}
}

// Upload reads the content, computes a SHA-256 hash and stores the blob under
// key, replacing any previous object with the same key.
func (s *InMemoryBlobStore) Upload(_ context.Context, key, contentType string, content io.Reader) (*BlobMetadata, error) {
	if key == "" {
		return nil, ErrMissingObjectKey
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if contentType == "" {
		contentType = defaultBlobCType
	}

	meta := BlobMetadata{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", sha256.Sum256(data)),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta // copy
	return &out, nil
}

// Download returns an io.ReadCloser over the blob content and its metadata.
func (s *InMemoryBlobStore) Download(_ context.Context, key string) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	meta := blob.metadata // copy
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

// List returns the metadata of every blob whose key starts with prefix,
// sorted by key.
func (s *InMemoryBlobStore) List(_ context.Context, prefix string) ([]*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*BlobMetadata
	for k, b := range s.blobs {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		m := b.metadata // copy
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
