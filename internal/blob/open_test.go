package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		opts Options
		want Driver
	}{
		{Options{FSRoot: t.TempDir()}, DriverFilesystem},
		{Options{Driver: DriverFilesystem, FSRoot: t.TempDir()}, DriverFilesystem},
		{Options{Driver: DriverMemory}, DriverMemory},
		{Options{Driver: DriverS3, S3: S3Config{Bucket: "exports", AccessKeyID: "k", SecretAccessKey: "s"}}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.opts)
		if err != nil {
			t.Fatalf("open %+v: %v", tc.opts, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
	if _, err := Open(ctx, Options{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Options{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestStoresShareContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		if _, err := store.Put(ctx, "exports/x.json", strings.NewReader("[]"), PutOptions{ContentType: "application/json"}); err != nil {
			t.Fatalf("%s put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "exports/x.json", strings.NewReader("[]"), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", store.Driver(), err)
		}
		if _, _, err := store.Get(ctx, "exports/missing.json"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", store.Driver(), err)
		}
		list, err := store.List(ctx, "exports/")
		if err != nil || len(list) != 1 {
			t.Fatalf("%s list: %v %+v", store.Driver(), err, list)
		}
	}
}
