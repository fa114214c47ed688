package domain

import "context"

// Storage abstracts the document store. Get methods return (nil, nil) when
// the entity does not exist.
type Storage interface {
	GetBoard(ctx context.Context, boardID string) (*Board, error)
	InsertBoard(ctx context.Context, b Board) error
	UpdateBoard(ctx context.Context, b Board) error

	GetCard(ctx context.Context, boardID, cardID string) (*Card, error)
	ListCards(ctx context.Context, boardID string) ([]Card, error)
	InsertCard(ctx context.Context, c Card) error
	UpdateCard(ctx context.Context, c Card) error
	DeleteCard(ctx context.Context, boardID, cardID string) error

	GetTask(ctx context.Context, boardID, taskID string) (*Task, error)
	ListTasks(ctx context.Context, boardID, cardID string) ([]Task, error)
	InsertTask(ctx context.Context, t Task) error
	UpdateTask(ctx context.Context, t Task) error
	DeleteTask(ctx context.Context, boardID, taskID string) error
}

// Notifier enqueues user notifications for the downstream delivery worker.
type Notifier interface {
	EnqueueNotification(ctx context.Context, n Notification) error
}

// Notification describes an event a user should be told about out-of-band.
type Notification struct {
	UserID  string `json:"userId"`
	ActorID string `json:"actorId"`
	Kind    string `json:"kind"`
	BoardID string `json:"boardId"`
	TaskID  string `json:"taskId,omitempty"`
}

const (
	NotificationTaskAssigned = "task-assigned"
	NotificationBoardInvite  = "board-invite"
)
