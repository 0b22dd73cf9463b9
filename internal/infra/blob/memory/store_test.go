package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"todoapi/internal/blob/core"
)

func TestMemoryStorePutGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"count": "2"}
	info, err := s.Put(ctx, "exports/a.json", strings.NewReader(`[1,2]`), core.PutOptions{ContentType: "application/json", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["count"] = "changed"
	if info.Size != 5 || info.ETag == "" || info.Metadata["count"] != "2" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "other/b.json", strings.NewReader(`{}`), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got, rc, err := s.Get(ctx, "exports/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "[1,2]" || got.ContentType != "application/json" {
		t.Fatalf("unexpected blob %q %+v", body, got)
	}

	list, err := s.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "exports/a.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "exports/a.json" {
		t.Fatalf("expected sorted list of two, got %+v", all)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Put(ctx, "k", strings.NewReader("y"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected exists, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected unsupported, got %v", err)
	}
}
