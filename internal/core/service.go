package core

import (
	"context"
	"errors"
	"time"

	"todoapi/pkg/domain"
)

type (
	Todo            = domain.Todo
	Change          = domain.Change
	Result          = domain.Result
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// Operation names reported to loggers, metrics, and tracers.
const (
	OpListTodos      = "list_todos"
	OpGetTodo        = "get_todo"
	OpCreateTodo     = "create_todo"
	OpUpdateTodoText = "update_todo_text"
	OpDeleteTodo     = "delete_todo"
	OpSnapshot       = "snapshot_todos"
)

// Service exposes the todo collection operations over a persistent store.
type Service struct {
	store PersistentStore
	clock Clock
	opts  serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{store: store, clock: o.clock, opts: o}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Now returns the current time according to the service clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// ListTodos returns the whole collection in insertion order.
func (s *Service) ListTodos(ctx context.Context) ([]Todo, error) {
	var todos []Todo
	err := s.run(ctx, OpListTodos, func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			todos = view.ListTodos()
			return nil
		})
	})
	if todos == nil && err == nil {
		todos = []Todo{}
	}
	return todos, err
}

// GetTodo finds a todo by id. It returns a domain.NotFoundError when absent.
func (s *Service) GetTodo(ctx context.Context, id string) (Todo, error) {
	var todo Todo
	err := s.run(ctx, OpGetTodo, func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			found, ok := view.FindTodo(id)
			if !ok {
				return domain.NotFoundError{ID: id}
			}
			todo = found
			return nil
		})
	})
	return todo, err
}

// CreateTodo stores a new todo built from fields, assigning a fresh id.
func (s *Service) CreateTodo(ctx context.Context, fields map[string]any) (Todo, Result, error) {
	var created Todo
	var res Result
	err := s.run(ctx, OpCreateTodo, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.InsertTodo(fields)
			return err
		})
		return err
	})
	s.logChanges(res)
	return created, res, err
}

// UpdateTodoText replaces the text of an existing todo, keeping its id,
// position, and other fields.
func (s *Service) UpdateTodoText(ctx context.Context, id, text string) (Todo, Result, error) {
	var updated Todo
	var res Result
	err := s.run(ctx, OpUpdateTodoText, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateTodoText(id, text)
			return err
		})
		return err
	})
	s.logChanges(res)
	return updated, res, err
}

// DeleteTodo removes a todo and returns the remaining collection.
func (s *Service) DeleteTodo(ctx context.Context, id string) ([]Todo, Result, error) {
	var remaining []Todo
	var res Result
	err := s.run(ctx, OpDeleteTodo, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			removed, rest := tx.RemoveTodo(id)
			if !removed {
				return domain.NotFoundError{ID: id}
			}
			remaining = rest
			return nil
		})
		return err
	})
	s.logChanges(res)
	return remaining, res, err
}

// Snapshot is a point-in-time copy of the collection.
type Snapshot struct {
	Todos       []Todo    `json:"todos"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Snapshot copies the collection under a consistent view.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.run(ctx, OpSnapshot, func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			snap = Snapshot{Todos: view.ListTodos(), GeneratedAt: s.clock.Now()}
			return nil
		})
	})
	return snap, err
}

func (s *Service) run(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := s.opts.tracer.Start(ctx, operation)
	started := time.Now()
	err := fn(ctx)
	elapsed := time.Since(started)
	span.End(err)
	s.opts.metrics.Observe(ctx, operation, err == nil, elapsed)

	switch {
	case err == nil:
		s.opts.logger.Debug("operation completed", "operation", operation, "duration", elapsed)
	case errors.Is(err, domain.ErrNotFound), domain.IsValidation(err):
		s.opts.logger.Info("operation rejected", "operation", operation, "error", err)
	default:
		s.opts.logger.Error("operation failed", "operation", operation, "error", err)
	}
	return err
}

func (s *Service) logChanges(res Result) {
	for _, change := range res.Changes {
		s.opts.logger.Debug("todo changed", "action", string(change.Action), "id", change.TodoID, "at", change.At)
	}
}
