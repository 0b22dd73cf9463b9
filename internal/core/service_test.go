package core_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"todoapi/internal/core"
	"todoapi/internal/infra/persistence/memory"
	"todoapi/pkg/domain"
)

func newService(t *testing.T, opts ...core.Option) *core.Service {
	t.Helper()
	return core.NewService(memory.NewStore(), opts...)
}

func TestServiceRoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, res, err := svc.CreateTodo(ctx, map[string]any{"text": "buy milk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Count(domain.ActionCreate) != 1 {
		t.Fatalf("expected create change, got %+v", res.Changes)
	}
	got, err := svc.GetTodo(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != created.ID || got.Text != "buy milk" {
		t.Fatalf("unexpected todo: %+v", got)
	}
}

func TestServiceIdempotentRead(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for _, text := range []string{"a", "b", "c"} {
		if _, _, err := svc.CreateTodo(ctx, map[string]any{"text": text}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	first, err := svc.ListTodos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := svc.ListTodos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reads differ:\n%+v\n%+v", first, second)
	}
	if first[0].Text != "a" || first[2].Text != "c" {
		t.Fatalf("expected insertion order, got %+v", first)
	}
}

func TestServiceUpdatePreservesIdentity(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a, _, _ := svc.CreateTodo(ctx, map[string]any{"text": "a"})
	b, _, _ := svc.CreateTodo(ctx, map[string]any{"text": "b", "owner": "sam"})

	updated, _, err := svc.UpdateTodoText(ctx, b.ID, "b2")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != b.ID || updated.Text != "b2" || updated.Attributes["owner"] != "sam" {
		t.Fatalf("unexpected updated todo: %+v", updated)
	}
	list, _ := svc.ListTodos(ctx)
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("position changed: %+v", list)
	}

	if _, _, err := svc.UpdateTodoText(ctx, "missing", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceDeleteThenGet(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a, _, _ := svc.CreateTodo(ctx, map[string]any{"text": "a"})
	b, _, _ := svc.CreateTodo(ctx, map[string]any{"text": "b"})

	remaining, res, err := svc.DeleteTodo(ctx, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.Count(domain.ActionDelete) != 1 {
		t.Fatalf("expected delete change, got %+v", res.Changes)
	}
	if len(remaining) != 1 || remaining[0].ID != b.ID {
		t.Fatalf("unexpected remaining: %+v", remaining)
	}
	if _, err := svc.GetTodo(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, _, err := svc.DeleteTodo(ctx, a.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestServiceListEmptyIsNotNil(t *testing.T) {
	svc := newService(t)
	list, err := svc.ListTodos(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestServiceSnapshotUsesClock(t *testing.T) {
	freeze := time.Date(2024, 4, 20, 12, 34, 56, 0, time.UTC)
	svc := newService(t, core.WithClock(core.ClockFunc(func() time.Time { return freeze })))
	ctx := context.Background()
	if _, _, err := svc.CreateTodo(ctx, map[string]any{"text": "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.GeneratedAt.Equal(freeze) || !svc.Now().Equal(freeze) {
		t.Fatalf("expected frozen clock, got %v", snap.GeneratedAt)
	}
	if len(snap.Todos) != 1 {
		t.Fatalf("expected one todo in snapshot, got %d", len(snap.Todos))
	}
	if svc.Store() == nil {
		t.Fatalf("expected store accessor")
	}
}

func TestServiceConcurrentCreates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	const n = 50
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, _, err := svc.CreateTodo(ctx, map[string]any{"text": "x"})
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, _ := svc.ListTodos(ctx)
	if len(list) != n {
		t.Fatalf("expected %d todos, got %d", n, len(list))
	}
	seen := make(map[string]struct{}, n)
	for _, todo := range list {
		if _, dup := seen[todo.ID]; dup {
			t.Fatalf("duplicate id %s", todo.ID)
		}
		seen[todo.ID] = struct{}{}
	}
}
