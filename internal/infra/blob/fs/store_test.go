package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"todoapi/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetList(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)

	info, err := store.Put(ctx, "exports/a.json", strings.NewReader(`[{"id":"1"}]`), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"count": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/a.json" || info.Size != 12 || len(info.ETag) != 64 {
		t.Fatalf("unexpected info %+v", info)
	}
	if !strings.HasPrefix(info.URL, "file://") || !strings.HasSuffix(info.URL, "/exports/a.json") {
		t.Fatalf("unexpected url %s", info.URL)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "exports", "a.json"+sidecarSuffix)); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}

	got, rc, err := store.Get(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != `[{"id":"1"}]` || got.ETag != info.ETag || got.Metadata["count"] != "1" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}

	if _, err := store.Put(ctx, "exports/b.json", strings.NewReader(`[]`), core.PutOptions{}); err != nil {
		t.Fatalf("put b: %v", err)
	}
	if _, err := store.Put(ctx, "misc.txt", strings.NewReader(`x`), core.PutOptions{}); err != nil {
		t.Fatalf("put misc: %v", err)
	}
	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "exports/a.json" || list[1].Key != "exports/b.json" {
		t.Fatalf("unexpected list %+v", list)
	}

	url, err := store.PresignURL(ctx, "exports/a.json", core.SignedURLOptions{})
	if err != nil || url != info.URL {
		t.Fatalf("unexpected presign %q %v", url, err)
	}
}

func TestStorePutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "k.json", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, "k.json", strings.NewReader("two"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "k.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "one" {
		t.Fatalf("original blob overwritten: %q", body)
	}
	entries, _ := os.ReadDir(store.Root())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".put-") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", ".", "/abs", "../escape", "a/../../b", "x" + sidecarSuffix} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected invalid key for %q, got %v", key, err)
		}
	}
	if _, _, err := store.Get(ctx, "missing.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewDefaultsRoot(t *testing.T) {
	wd, _ := os.Getwd()
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	store, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if filepath.Base(store.Root()) != "exports" {
		t.Fatalf("unexpected default root %s", store.Root())
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
