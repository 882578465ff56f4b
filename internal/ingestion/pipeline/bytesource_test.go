package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/athro-ingest/internal/platform/gcp"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

func TestBucketByteSourceTriesBucketsInOrder(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]map[string][]byte{
		"legacy": {"a/b.pdf": []byte("data")},
	}}
	src, err := NewBucketByteSource(logger.Nop(), bucket, []string{" primary ", "", "legacy"}, 0)
	if err != nil {
		t.Fatalf("NewBucketByteSource: %v", err)
	}
	got, err := src.Fetch(context.Background(), "/a/b.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "data" {
		t.Fatalf("data: got=%q", got)
	}
	want := []string{"primary/a/b.pdf", "legacy/a/b.pdf"}
	if len(bucket.calls) != len(want) || bucket.calls[0] != want[0] || bucket.calls[1] != want[1] {
		t.Fatalf("calls: want=%v got=%v", want, bucket.calls)
	}
}

func TestBucketByteSourceReportsEveryAttempt(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]map[string][]byte{
		"legacy": {"big.pdf": make([]byte, 64)},
	}}
	src, err := NewBucketByteSource(logger.Nop(), bucket, []string{"primary", "legacy"}, 16)
	if err != nil {
		t.Fatalf("NewBucketByteSource: %v", err)
	}
	_, err = src.Fetch(context.Background(), "big.pdf")
	var fe *StorageFetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *StorageFetchError got=%v", err)
	}
	if len(fe.Attempts) != 2 {
		t.Fatalf("attempts: want=2 got=%d", len(fe.Attempts))
	}
	if fe.NotFound() {
		t.Fatalf("NotFound: want=false when one bucket had the object")
	}
	if !errors.Is(err, gcp.ErrObjectTooLarge) || !errors.Is(err, gcp.ErrObjectNotFound) {
		t.Fatalf("unwrap: got=%v", err)
	}
}

func TestNewBucketByteSourceNeedsBuckets(t *testing.T) {
	if _, err := NewBucketByteSource(logger.Nop(), &fakeBucket{}, []string{" "}, 0); err == nil {
		t.Fatalf("want error for empty bucket list")
	}
	if _, err := NewBucketByteSource(logger.Nop(), nil, []string{"b"}, 0); err == nil {
		t.Fatalf("want error for nil bucket service")
	}
}

func TestFileByteSourceStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := FileByteSource{Root: root}

	got, err := src.Fetch(context.Background(), "../../notes.txt")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("data: got=%q", got)
	}

	_, err = src.Fetch(context.Background(), "missing.txt")
	var fe *StorageFetchError
	if !errors.As(err, &fe) || !fe.NotFound() {
		t.Fatalf("want not-found StorageFetchError got=%v", err)
	}
}

func TestFileByteSourceMaxBytes(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "big.txt"), make([]byte, 32), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := FileByteSource{Root: root, MaxBytes: 8}.Fetch(context.Background(), "big.txt")
	if !errors.Is(err, gcp.ErrObjectTooLarge) {
		t.Fatalf("want ErrObjectTooLarge got=%v", err)
	}
}
