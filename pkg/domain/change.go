package domain

import "time"

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the mutations captured per transaction.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change records a single mutation applied within a transaction.
type Change struct {
	Action Action        `json:"action"`
	TodoID string        `json:"todo_id"`
	Before ChangePayload `json:"before"`
	After  ChangePayload `json:"after"`
	At     time.Time     `json:"at"`
}

// Result summarises a committed transaction.
type Result struct {
	Changes []Change `json:"changes,omitempty"`
}

// Count returns the number of changes by action.
func (r Result) Count(action Action) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == action {
			n++
		}
	}
	return n
}
