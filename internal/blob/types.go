// Package blob is the entry point for object storage. Callers depend on Store and open a
// backend with Open; the implementations live under internal/infra/blob.
package blob

import "vivariumcore/internal/blob/core"

type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
	ErrInvalidKey  = core.ErrInvalidKey
)
