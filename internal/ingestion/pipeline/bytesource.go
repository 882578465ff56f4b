package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yungbote/athro-ingest/internal/observability"
	"github.com/yungbote/athro-ingest/internal/platform/ctxutil"
	"github.com/yungbote/athro-ingest/internal/platform/gcp"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

// ByteSource fetches the raw bytes stored at a resource path.
type ByteSource interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

type FetchAttempt struct {
	Location string
	Err      error
}

// StorageFetchError means no candidate location produced the object.
type StorageFetchError struct {
	Path     string
	Attempts []FetchAttempt
}

func (e *StorageFetchError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("storage fetch %q: no locations configured", e.Path)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Location, a.Err))
	}
	return fmt.Sprintf("storage fetch %q failed (%s)", e.Path, strings.Join(parts, "; "))
}

func (e *StorageFetchError) Unwrap() []error {
	out := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			out = append(out, a.Err)
		}
	}
	return out
}

// NotFound reports whether every location answered "not found".
func (e *StorageFetchError) NotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !errors.Is(a.Err, gcp.ErrObjectNotFound) && !errors.Is(a.Err, os.ErrNotExist) {
			return false
		}
	}
	return true
}

// BucketByteSource tries each configured bucket in order.
type BucketByteSource struct {
	log      *logger.Logger
	bucket   gcp.BucketService
	buckets  []string
	maxBytes int64
}

func NewBucketByteSource(log *logger.Logger, bucket gcp.BucketService, buckets []string, maxBytes int64) (*BucketByteSource, error) {
	if bucket == nil {
		return nil, fmt.Errorf("bucket service required")
	}
	var names []string
	for _, b := range buckets {
		if b = strings.TrimSpace(b); b != "" {
			names = append(names, b)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one bucket is required")
	}
	return &BucketByteSource{
		log:      log.With("component", "BucketByteSource"),
		bucket:   bucket,
		buckets:  names,
		maxBytes: maxBytes,
	}, nil
}

func (s *BucketByteSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	ctx = ctxutil.Default(ctx)
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	fe := &StorageFetchError{Path: key}
	for _, b := range s.buckets {
		data, err := s.bucket.Download(ctx, b, key, s.maxBytes)
		if err == nil {
			observability.Current().IncStorageFetch(b, "hit")
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		outcome := "error"
		if errors.Is(err, gcp.ErrObjectNotFound) {
			outcome = "miss"
		}
		observability.Current().IncStorageFetch(b, outcome)
		s.log.Debug("storage location failed", "bucket", b, "key", key, "error", err)
		fe.Attempts = append(fe.Attempts, FetchAttempt{Location: b, Err: err})
	}
	s.log.Warn("document not retrievable from any bucket", "key", key, "attempts", len(fe.Attempts))
	return nil, fe
}

// FileByteSource reads documents below a local directory.
type FileByteSource struct {
	Root     string
	MaxBytes int64
}

func (s FileByteSource) Fetch(ctx context.Context, p string) ([]byte, error) {
	if err := ctxutil.Default(ctx).Err(); err != nil {
		return nil, err
	}
	rel := path.Clean("/" + strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"))
	full := filepath.Join(s.Root, filepath.FromSlash(rel))
	data, err := s.read(full)
	if err != nil {
		return nil, &StorageFetchError{Path: p, Attempts: []FetchAttempt{{Location: s.Root, Err: err}}}
	}
	return data, nil
}

func (s FileByteSource) read(full string) ([]byte, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if s.MaxBytes <= 0 {
		return io.ReadAll(f)
	}
	data, err := io.ReadAll(io.LimitReader(f, s.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.MaxBytes {
		return nil, gcp.ErrObjectTooLarge
	}
	return data, nil
}
