package domain

import "time"

// Priority classifies a task's urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is an ordered item within a card. Order is a zero-based dense integer
// among the card's tasks. BoardID is denormalized from the parent card so
// broadcast routing and authorization never need an extra card lookup.
type Task struct {
	ID              string     `json:"id"`
	CardID          string     `json:"cardId"`
	BoardID         string     `json:"boardId"`
	OwnerID         string     `json:"ownerId,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Order           int        `json:"order"`
	AssignedMembers []string   `json:"assignedMembers"`
	Priority        Priority   `json:"priority"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
	DueComplete     bool       `json:"dueComplete"`
}

// Assigned reports whether memberID is already assigned to the task.
func (t *Task) Assigned(memberID string) bool {
	for _, m := range t.AssignedMembers {
		if m == memberID {
			return true
		}
	}
	return false
}

// TaskDraft carries the caller-supplied fields for a new task.
type TaskDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// TaskPatch holds optional task fields for partial updates.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *Priority  `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	DueComplete *bool      `json:"dueComplete"`
}

// TaskFilter narrows task list reads.
type TaskFilter struct {
	Priority    Priority
	DueComplete *bool
	Member      string
}

// Match reports whether the task passes every set filter field.
func (f TaskFilter) Match(t Task) bool {
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.DueComplete != nil && t.DueComplete != *f.DueComplete {
		return false
	}
	if f.Member != "" && !t.Assigned(f.Member) {
		return false
	}
	return true
}
