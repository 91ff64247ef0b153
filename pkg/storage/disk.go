// Package storage writes files to a local directory or an S3-compatible
// bucket. It holds the CSV export archives.
//
//	disk, err := storage.Open(ctx)
//	_ = disk.Put(ctx, "exports/inventory.csv", data)
//	url := disk.URL("exports/inventory.csv")
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/invictusops/invictus/config"
	"github.com/invictusops/invictus/pkg/logger"
)

// ErrNotFound is returned by Get for a missing file.
var ErrNotFound = errors.New("storage: file not found")

// Disk is a flat file namespace with slash-separated paths.
type Disk interface {
	Put(ctx context.Context, path string, content []byte) error
	// Get returns ErrNotFound when path does not exist.
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	// Delete is a no-op for a missing file.
	Delete(ctx context.Context, path string) error
	// Files lists the files directly inside directory, sorted.
	Files(ctx context.Context, directory string) ([]string, error)
	URL(path string) string
	Name() string
}

// Open returns the disk named by STORAGE_DISK ("local" or "s3").
func Open(ctx context.Context) (Disk, error) {
	switch name := config.StorageDefault(); name {
	case "", "local":
		return NewLocal(config.StorageLocalRoot(), config.StorageURL()), nil
	case "s3":
		d, err := NewS3(ctx, S3Options{
			Bucket:   config.StorageS3Bucket(),
			Region:   config.StorageS3Region(),
			Key:      config.StorageS3Key(),
			Secret:   config.StorageS3Secret(),
			Endpoint: config.StorageS3Endpoint(),
			BaseURL:  config.StorageS3URL(),
		})
		if err != nil {
			return nil, err
		}
		logger.Component("storage").Info("s3 disk ready", "bucket", config.StorageS3Bucket())
		return d, nil
	default:
		return nil, fmt.Errorf("storage: unknown disk %q", name)
	}
}
