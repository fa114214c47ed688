package domain

import "encoding/json"

// EventKind names a board-scoped push event.
type EventKind string

const (
	TaskCreated          EventKind = "task:created"
	TaskUpdated          EventKind = "task:updated"
	TaskDeleted          EventKind = "task:deleted"
	TaskReordered        EventKind = "task:reordered"
	TaskMoved            EventKind = "task:moved"
	TaskMemberAssigned   EventKind = "task:member-assigned"
	TaskMemberUnassigned EventKind = "task:member-unassigned"
	CardReordered        EventKind = "card:reordered"
)

// Envelope is the wire form of a push event. Timestamp is stamped by the
// broadcaster at send time, not by the originating mutation.
type Envelope struct {
	BoardID   string          `json:"boardId"`
	Event     EventKind       `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// One payload struct per event kind so dispatch on either side of the wire
// stays exhaustive.

type TaskCreatedData struct {
	Task Task `json:"task"`
}

type TaskUpdatedData struct {
	Task Task `json:"task"`
}

type TaskDeletedData struct {
	TaskID string `json:"taskId"`
	CardID string `json:"cardId"`
}

// TaskOrder is one (task, position) pair of a batch reorder.
type TaskOrder struct {
	TaskID string `json:"taskId"`
	Order  int    `json:"order"`
}

type TaskReorderedData struct {
	CardID     string      `json:"cardId"`
	TaskOrders []TaskOrder `json:"taskOrders"`
}

type TaskMovedData struct {
	TaskID       string `json:"taskId"`
	SourceCardID string `json:"sourceCardId"`
	DestCardID   string `json:"destCardId"`
	NewOrder     int    `json:"newOrder"`
	Task         Task   `json:"task"`
}

// TaskMemberData is shared by member-assigned and member-unassigned events;
// Task carries the canonical post-mutation state.
type TaskMemberData struct {
	TaskID   string `json:"taskId"`
	MemberID string `json:"memberId"`
	Task     Task   `json:"task"`
}

// CardOrder is one (card, position) pair of a batch reorder.
type CardOrder struct {
	CardID string `json:"cardId"`
	Order  int    `json:"order"`
}

type CardReorderedData struct {
	BoardID    string      `json:"boardId"`
	CardOrders []CardOrder `json:"cardOrders"`
}

// Publisher delivers an event to every connection observing a board.
// Fire-and-forget: no acknowledgement, no retry, and it is only invoked
// after the originating mutation has committed.
type Publisher interface {
	Publish(boardID string, kind EventKind, data any)
}
