package domain

import "encoding/json"

// ChangePayload wraps a JSON snapshot of a todo before or after a change.
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// NewChangePayload builds a payload from raw JSON. The bytes are cloned.
func NewChangePayload(raw json.RawMessage) ChangePayload {
	payload := ChangePayload{defined: true}
	if raw != nil {
		payload.raw = cloneRawMessage(raw)
	}
	return payload
}

// NewChangePayloadFromTodo marshals a todo into a ChangePayload.
func NewChangePayloadFromTodo(todo Todo) (ChangePayload, error) {
	raw, err := json.Marshal(todo)
	if err != nil {
		return ChangePayload{}, err
	}
	return NewChangePayload(raw), nil
}

// UndefinedChangePayload returns an unset payload, used for the missing side
// of a create or delete.
func UndefinedChangePayload() ChangePayload {
	return ChangePayload{}
}

// Defined reports whether the payload has been set.
func (p ChangePayload) Defined() bool {
	return p.defined
}

// Raw returns a copy of the JSON bytes, or nil when undefined or empty.
func (p ChangePayload) Raw() json.RawMessage {
	if !p.defined || len(p.raw) == 0 {
		return nil
	}
	return cloneRawMessage(p.raw)
}

// Todo decodes the payload back into a record.
func (p ChangePayload) Todo() (Todo, bool) {
	if !p.defined || len(p.raw) == 0 {
		return Todo{}, false
	}
	var todo Todo
	if err := json.Unmarshal(p.raw, &todo); err != nil {
		return Todo{}, false
	}
	return todo, true
}

// MarshalJSON renders undefined payloads as null.
func (p ChangePayload) MarshalJSON() ([]byte, error) {
	if !p.defined || len(p.raw) == 0 {
		return []byte("null"), nil
	}
	return cloneRawMessage(p.raw), nil
}

func cloneRawMessage(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
