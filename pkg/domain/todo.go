// Package domain defines the todo record, the store contracts, and the error
// taxonomy shared by the persistence, service, and HTTP layers of todoapi.
package domain

import (
	"encoding/json"
	"fmt"
)

// Reserved JSON keys of a todo record. Every other key of a stored record is
// an attribute supplied by the caller at creation time.
const (
	FieldID   = "id"
	FieldText = "text"
)

// Todo is the sole entity of the collection. The stored shape is the request
// body the record was created from merged with the generated ID, so callers
// may attach arbitrary extra fields which are kept in Attributes.
type Todo struct {
	ID         string
	Text       string
	Attributes map[string]any
}

// NewTodoFromFields builds a record from a decoded request body. The id key is
// ignored; the store assigns identifiers.
func NewTodoFromFields(fields map[string]any) (Todo, error) {
	var todo Todo
	for key, value := range fields {
		switch key {
		case FieldID:
			continue
		case FieldText:
			text, ok := value.(string)
			if !ok {
				return Todo{}, fmt.Errorf("text must be a string, got %T", value)
			}
			todo.Text = text
		default:
			if todo.Attributes == nil {
				todo.Attributes = make(map[string]any, len(fields))
			}
			todo.Attributes[key] = value
		}
	}
	return todo, nil
}

// Clone returns a deep copy so callers cannot mutate state held by a store.
func (t Todo) Clone() Todo {
	cp := t
	if t.Attributes != nil {
		cp.Attributes = make(map[string]any, len(t.Attributes))
		for k, v := range t.Attributes {
			cp.Attributes[k] = cloneValue(v)
		}
	}
	return cp
}

// Fields flattens the record into a single map, the way it travels on the wire.
func (t Todo) Fields() map[string]any {
	out := make(map[string]any, len(t.Attributes)+2)
	for k, v := range t.Attributes {
		out[k] = v
	}
	out[FieldID] = t.ID
	out[FieldText] = t.Text
	return out
}

// MarshalJSON renders the record as one flat object.
func (t Todo) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Fields())
}

// UnmarshalJSON accepts the flat object produced by MarshalJSON.
func (t *Todo) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	todo, err := NewTodoFromFields(fields)
	if err != nil {
		return err
	}
	if raw, ok := fields[FieldID]; ok {
		id, ok := raw.(string)
		if !ok {
			return fmt.Errorf("id must be a string, got %T", raw)
		}
		todo.ID = id
	}
	*t = todo
	return nil
}

// CloneTodos deep copies a sequence, preserving order. The result is never nil.
func CloneTodos(in []Todo) []Todo {
	out := make([]Todo, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(val))
		for k, inner := range val {
			cp[k] = cloneValue(inner)
		}
		return cp
	case []any:
		cp := make([]any, len(val))
		for i, inner := range val {
			cp[i] = cloneValue(inner)
		}
		return cp
	default:
		return val
	}
}
