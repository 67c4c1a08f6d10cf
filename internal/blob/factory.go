package blob

import (
	"context"
	"fmt"

	"vivariumcore/internal/infra/blob/fs"
	"vivariumcore/internal/infra/blob/memory"
	"vivariumcore/internal/infra/blob/s3"
)

// S3Config configures the S3 driver.
type S3Config = s3.Config

// Config selects a backend. Driver defaults to the filesystem.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open returns the Store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an in-process store.
func NewMemory() Store { return memory.New() }

// NewS3 returns a bucket-backed store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3.New(ctx, cfg) }
