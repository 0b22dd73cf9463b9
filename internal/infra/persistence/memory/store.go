// Package memory implements the process-local todo collection. It is the
// default backend and the base the snapshotting SQL stores build on.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todoapi/pkg/domain"

	"github.com/google/uuid"
)

type (
	Todo            = domain.Todo
	Change          = domain.Change
	Result          = domain.Result
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// maxIDAttempts bounds regeneration when a fresh id collides with a held one.
const maxIDAttempts = 8

// Snapshot is the serialisable form of the collection, in collection order.
type Snapshot struct {
	Todos []Todo `json:"todos"`
}

type memoryState struct {
	todos []Todo
}

func (s memoryState) clone() memoryState {
	return memoryState{todos: domain.CloneTodos(s.todos)}
}

func (s memoryState) indexOf(id string) int {
	for i, t := range s.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator overrides the id source. Intended for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithNowFunc overrides the clock used to stamp changes.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// CommitHook receives the collection a transaction is about to commit. A
// non-nil error aborts the commit and leaves the store unchanged.
type CommitHook func(ctx context.Context, snapshot Snapshot) error

// WithCommitHook runs hook under the store lock before every transaction that
// recorded changes is committed.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) {
		s.beforeCommit = hook
	}
}

// Store holds the authoritative insertion-ordered sequence of todos. A single
// coarse lock serialises every operation; transactions hold it for their
// whole duration.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	newID func() string
	nowFn func() time.Time

	beforeCommit CommitHook
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		newID: uuid.NewString,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState returns a deep copy of the collection.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Todos: domain.CloneTodos(s.state.todos)}
}

// ImportState replaces the collection. Records with an empty or repeated id
// are dropped so the uniqueness invariant survives a bad snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	seen := make(map[string]struct{}, len(snapshot.Todos))
	todos := make([]Todo, 0, len(snapshot.Todos))
	for _, t := range snapshot.Todos {
		if t.ID == "" {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		todos = append(todos, t.Clone())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryState{todos: todos}
}

// NowFunc exposes the store clock.
func (s *Store) NowFunc() func() time.Time {
	return s.nowFn
}

// RunInTransaction executes fn against a copy of the collection and commits the
// copy only when fn and the commit hook succeed.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}
	if s.beforeCommit != nil && len(tx.changes) > 0 {
		if err := s.beforeCommit(ctx, Snapshot{Todos: domain.CloneTodos(tx.state.todos)}); err != nil {
			return Result{}, err
		}
	}
	s.state = tx.state
	return Result{Changes: tx.changes}, nil
}

// View runs fn against a read-only snapshot.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(transactionView{state: &snapshot})
}

// ListTodos returns the collection in insertion order. The result is never nil.
func (s *Store) ListTodos() []Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CloneTodos(s.state.todos)
}

// GetTodo finds a todo by exact id.
func (s *Store) GetTodo(id string) (Todo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.FindTodo(id)
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func (v transactionView) ListTodos() []Todo {
	return domain.CloneTodos(v.state.todos)
}

func (v transactionView) FindTodo(id string) (Todo, bool) {
	idx := v.state.indexOf(id)
	if idx < 0 {
		return Todo{}, false
	}
	return v.state.todos[idx].Clone(), true
}

func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

func (tx *transaction) InsertTodo(fields map[string]any) (Todo, error) {
	todo, err := domain.NewTodoFromFields(fields)
	if err != nil {
		return Todo{}, err
	}
	id, err := tx.freshID()
	if err != nil {
		return Todo{}, err
	}
	todo.ID = id
	tx.state.todos = append(tx.state.todos, todo)
	tx.record(domain.ActionCreate, id, nil, &todo)
	return todo.Clone(), nil
}

func (tx *transaction) UpdateTodoText(id, text string) (Todo, error) {
	idx := tx.state.indexOf(id)
	if idx < 0 {
		return Todo{}, domain.NotFoundError{ID: id}
	}
	before := tx.state.todos[idx].Clone()
	tx.state.todos[idx].Text = text
	after := tx.state.todos[idx]
	tx.record(domain.ActionUpdate, id, &before, &after)
	return after.Clone(), nil
}

func (tx *transaction) RemoveTodo(id string) (bool, []Todo) {
	idx := tx.state.indexOf(id)
	if idx < 0 {
		return false, domain.CloneTodos(tx.state.todos)
	}
	removed := tx.state.todos[idx]
	tx.state.todos = append(tx.state.todos[:idx], tx.state.todos[idx+1:]...)
	tx.record(domain.ActionDelete, id, &removed, nil)
	return true, domain.CloneTodos(tx.state.todos)
}

func (tx *transaction) freshID() (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := tx.store.newID()
		if id == "" {
			continue
		}
		if tx.state.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate todo id: %d attempts collided", maxIDAttempts)
}

func (tx *transaction) record(action domain.Action, id string, before, after *Todo) {
	change := Change{
		Action: action,
		TodoID: id,
		Before: payloadOf(before),
		After:  payloadOf(after),
		At:     tx.now,
	}
	tx.changes = append(tx.changes, change)
}

func payloadOf(todo *Todo) domain.ChangePayload {
	if todo == nil {
		return domain.UndefinedChangePayload()
	}
	payload, err := domain.NewChangePayloadFromTodo(*todo)
	if err != nil {
		return domain.UndefinedChangePayload()
	}
	return payload
}
