package domain

import "context"

// Transaction exposes the store primitives a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	// InsertTodo assigns a fresh id, appends the record built from fields to the
	// end of the collection, and returns it.
	InsertTodo(fields map[string]any) (Todo, error)
	// UpdateTodoText replaces the text of the record in place. It returns a
	// NotFoundError when id does not resolve.
	UpdateTodoText(id, text string) (Todo, error)
	// RemoveTodo removes the first record whose id matches and returns whether a
	// removal occurred along with the remaining collection.
	RemoveTodo(id string) (bool, []Todo)
}

// TransactionView provides read-only access to a consistent snapshot.
type TransactionView interface {
	ListTodos() []Todo
	FindTodo(id string) (Todo, bool)
}

// PersistentStore is the abstraction over the collection backends used by the
// service layer.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetTodo(id string) (Todo, bool)
	ListTodos() []Todo
}
