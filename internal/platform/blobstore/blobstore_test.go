package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("BCBS_MA", "Maven_20240101000000.csv"); got != "bcbs_ma/Maven_20240101000000.csv" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestInMemoryBlobStore_UploadDownload(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	content := "header\nrow\n"

	meta, err := store.Upload(ctx, "esi/file.txt", ContentTypeText, strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), meta.Size)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256([]byte(content))); meta.Hash != want {
		t.Errorf("expected hash %s, got %s", want, meta.Hash)
	}

	rc, got, err := store.Download(ctx, "esi/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != content {
		t.Errorf("expected %q, got %q", content, string(data))
	}
	if got.ContentType != ContentTypeText {
		t.Errorf("expected content type %s, got %s", ContentTypeText, got.ContentType)
	}
}

func TestInMemoryBlobStore_UploadReplaces(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	_, _ = store.Upload(ctx, "k", "", strings.NewReader("one"))
	_, _ = store.Upload(ctx, "k", "", strings.NewReader("two"))

	rc, meta, err := store.Download(ctx, "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "two" {
		t.Errorf("expected replaced content, got %q", string(data))
	}
	if meta.ContentType != defaultBlobCType {
		t.Errorf("expected default content type, got %s", meta.ContentType)
	}
}

func TestInMemoryBlobStore_DownloadNotFound(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, _, err := store.Download(context.Background(), "missing")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_MissingKey(t *testing.T) {
	store := NewInMemoryBlobStore()
	_, err := store.Upload(context.Background(), "", ContentTypeCSV, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingObjectKey) {
		t.Errorf("expected ErrMissingObjectKey, got %v", err)
	}
}

func TestInMemoryBlobStore_FileTooLarge(t *testing.T) {
	store := NewInMemoryBlobStore()
	big := io.LimitReader(zeroReader{}, MaxFileSize+1)
	_, err := store.Upload(context.Background(), "big", ContentTypeText, big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestInMemoryBlobStore_List(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()
	for _, k := range []string{"esi/b.txt", "bcbs_ma/a.csv", "esi/a.txt"} {
		if _, err := store.Upload(ctx, k, "", strings.NewReader(k)); err != nil {
			t.Fatalf("upload %s: %v", k, err)
		}
	}

	got, err := store.List(ctx, "esi/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Key != "esi/a.txt" || got[1].Key != "esi/b.txt" {
		t.Errorf("unexpected listing: %+v", got)
	}
}

func TestInMemoryBlobStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryBlobStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("p/%d", i)
			if _, err := store.Upload(ctx, key, "", strings.NewReader(key)); err != nil {
				t.Errorf("upload: %v", err)
				return
			}
			if _, _, err := store.Download(ctx, key); err != nil {
				t.Errorf("download: %v", err)
			}
		}(i)
	}
	wg.Wait()

	all, _ := store.List(ctx, "p/")
	if len(all) != 50 {
		t.Errorf("expected 50 blobs, got %d", len(all))
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
