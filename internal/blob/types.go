// Package blob is the entry point for blob storage. It re-exports the
// contract from internal/blob/core and builds the configured backend; other
// packages depend on blob.Store rather than on a concrete backend.
package blob

import (
	"todoapi/internal/blob/core"
)

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
