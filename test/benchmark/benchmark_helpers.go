package benchmark

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/seaflowlab/seafilter/internal/storage"
)

// PrefixedStorage wraps an ObjectStorage and prepends a prefix to all object keys.
type PrefixedStorage struct {
	inner  storage.ObjectStorage
	prefix string
}

func (s *PrefixedStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+"/"+key)
}

func (s *PrefixedStorage) Put(ctx context.Context, key string, data []byte) error {
	return s.inner.Put(ctx, s.prefix+"/"+key, data)
}

func (s *PrefixedStorage) Exists(ctx context.Context, key string) (bool, error) {
	return s.inner.Exists(ctx, s.prefix+"/"+key)
}

func (s *PrefixedStorage) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.List(ctx, s.prefix+"/"+prefix)
	if err != nil {
		return nil, err
	}
	stripped := make([]string, len(keys))
	for i, k := range keys {
		stripped[i] = strings.TrimPrefix(k, s.prefix+"/")
	}
	return stripped, nil
}

// getBenchmarkStorage returns a storage interface for EVT objects.
// It respects SEAFILTER_STORAGE_TYPE=s3 from .env or environment.
// For S3: keys are isolated under "bench/<benchName>/<timestamp>".
// For Local: objects go to a temp dir.
func getBenchmarkStorage(b *testing.B, benchName string) (storage.ObjectStorage, func()) {
	// Try loading .env from project root (../../.env relative to test/benchmark)
	_ = godotenv.Load("../../.env")

	if os.Getenv("SEAFILTER_STORAGE_TYPE") == "s3" {
		if v := os.Getenv("SEAFILTER_AWS_ACCESS_KEY_ID"); v != "" {
			os.Setenv("AWS_ACCESS_KEY_ID", v)
		}
		if v := os.Getenv("SEAFILTER_AWS_SECRET_ACCESS_KEY"); v != "" {
			os.Setenv("AWS_SECRET_ACCESS_KEY", v)
		}

		bucket := os.Getenv("SEAFILTER_S3_BUCKET")
		if bucket == "" {
			b.Fatal("SEAFILTER_S3_BUCKET is required for s3 benchmark")
		}

		cfg := storage.S3Config{
			Region:   os.Getenv("SEAFILTER_S3_REGION"),
			Endpoint: os.Getenv("SEAFILTER_S3_ENDPOINT"),
		}
		st, err := storage.NewS3Storage(context.Background(), bucket, cfg)
		if err != nil {
			b.Fatalf("Failed to initialize S3 storage: %v", err)
		}

		prefix := fmt.Sprintf("bench/%s/%d", benchName, time.Now().UnixNano())
		b.Logf("Running benchmark against S3 Bucket: %s Prefix: %s", bucket, prefix)

		// Cleanup is manual for S3 to keep uploaded datasets around when
		// debugging.
		return &PrefixedStorage{inner: st, prefix: prefix}, func() {}
	}

	dir, err := os.MkdirTemp("", "seafilter-bench-"+benchName+"-*")
	if err != nil {
		b.Fatal(err)
	}
	st, err := storage.NewLocalStorage(path.Join(dir, "storage"))
	if err != nil {
		b.Fatal(err)
	}
	return st, func() { os.RemoveAll(dir) }
}
