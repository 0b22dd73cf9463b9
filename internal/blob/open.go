package blob

import (
	"context"
	"fmt"

	"todoapi/internal/infra/blob/fs"
	memorystore "todoapi/internal/infra/blob/memory"
	infraS3 "todoapi/internal/infra/blob/s3"
)

// S3Config configures the s3 driver.
type S3Config = infraS3.Config

// Options selects the backend. An empty Driver means DriverFilesystem.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, opts.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}

// NewFilesystem returns a directory-backed store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns a process-local store.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store on the configured bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests returns an s3 store backed by an in-process fake bucket.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
