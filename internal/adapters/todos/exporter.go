package todos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"todoapi/internal/blob"
	"todoapi/internal/core"

	"github.com/google/uuid"
)

// ExportPrefix is the key prefix export blobs are written under.
const ExportPrefix = "exports/"

const exportKeyAttempts = 3

// Snapshotter yields a consistent copy of the collection.
type Snapshotter interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
}

var _ Snapshotter = (*core.Service)(nil)

// Exporter writes the collection as a JSON array to a blob store.
type Exporter struct {
	source Snapshotter
	store  blob.Store
	newID  func() string
	expiry time.Duration
}

// ExporterOption customises an Exporter.
type ExporterOption func(*Exporter)

// WithExportIDGenerator overrides the suffix generator used in export keys.
func WithExportIDGenerator(fn func() string) ExporterOption {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithURLExpiry sets how long presigned export URLs stay valid.
func WithURLExpiry(d time.Duration) ExporterOption {
	return func(e *Exporter) {
		if d > 0 {
			e.expiry = d
		}
	}
}

// NewExporter builds an exporter reading from source and writing to store.
func NewExporter(source Snapshotter, store blob.Store, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		newID:  func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Driver reports the backing blob driver.
func (e *Exporter) Driver() blob.Driver { return e.store.Driver() }

// ExportKey formats the blob key for an export taken at ts.
func ExportKey(ts time.Time, id string) string {
	return fmt.Sprintf("%stodos-%s-%s.json", ExportPrefix, ts.UTC().Format("20060102T150405Z"), id)
}

// Export stores the current collection and returns the blob description,
// including a presigned URL when the backend can produce one.
func (e *Exporter) Export(ctx context.Context) (blob.Info, error) {
	snap, err := e.source.Snapshot(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("snapshot todos: %w", err)
	}
	payload, err := json.Marshal(snap.Todos)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode export: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"count": strconv.Itoa(len(snap.Todos))},
	}

	var info blob.Info
	for attempt := 0; ; attempt++ {
		info, err = e.store.Put(ctx, ExportKey(snap.GeneratedAt, e.newID()), bytes.NewReader(payload), opts)
		if err == nil {
			break
		}
		if !errors.Is(err, blob.ErrExists) || attempt+1 >= exportKeyAttempts {
			return blob.Info{}, fmt.Errorf("store export: %w", err)
		}
	}

	url, err := e.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Expiry: e.expiry})
	switch {
	case err == nil:
		info.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return blob.Info{}, fmt.Errorf("presign export %s: %w", info.Key, err)
	}
	return info, nil
}

// List returns the stored exports ordered by key, oldest first.
func (e *Exporter) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := e.store.List(ctx, ExportPrefix)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	return infos, nil
}
