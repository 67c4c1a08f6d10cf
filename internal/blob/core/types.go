// Package core defines the blob storage contract shared by the backend implementations
// under internal/infra/blob and re-exported by internal/blob.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// Driver identifies a concrete blob storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local directory tree
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // process memory (tests)
)

// PutOptions carries optional object attributes.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures PresignURL.
type SignedURLOptions struct {
	Method string        // only GET is supported
	Expiry time.Duration // default DefaultPresignExpiry
}

// DefaultPresignExpiry applies when SignedURLOptions.Expiry is zero.
const DefaultPresignExpiry = 15 * time.Minute

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key" yaml:"key"`
	Size         int64             `json:"sizeBytes" yaml:"sizeBytes"`
	ContentType  string            `json:"contentType,omitempty" yaml:"contentType,omitempty"`
	ETag         string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	LastModified time.Time         `json:"lastModified" yaml:"lastModified"`
	URL          string            `json:"url,omitempty" yaml:"url,omitempty"`
}

// Store is a minimal create-only object store. Put fails with ErrExists when the key is
// taken; Get and Head fail with ErrNotFound; List is ordered by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

var (
	ErrUnsupported = errors.New("blob: unsupported operation")
	ErrExists      = errors.New("blob: already exists")
	ErrNotFound    = errors.New("blob: not found")
	ErrInvalidKey  = errors.New("blob: invalid key")
)

// ValidateKey rejects empty, absolute and traversing keys and returns the cleaned form.
func ValidateKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return "", fmt.Errorf("%w: %q must be relative and slash separated", ErrInvalidKey, key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q traverses upwards", ErrInvalidKey, key)
		}
	}
	return path.Clean(key), nil
}

// CheckMethod resolves the presign method, allowing only GET.
func CheckMethod(opts SignedURLOptions) error {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return ErrUnsupported
	}
	return nil
}

// CloneMetadata copies a metadata map; nil stays nil.
func CloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
