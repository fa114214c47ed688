package api

import (
	"context"

	"boardsync/domain"
)

// Boards exposes board lifecycle and membership operations to handlers.
type Boards interface {
	Create(ctx context.Context, ownerID string, draft domain.BoardDraft) (domain.Board, error)
	Get(ctx context.Context, boardID, userID string) (domain.Board, error)
	InviteMember(ctx context.Context, boardID, actorID, memberID string) (domain.Board, error)
	RemoveMember(ctx context.Context, boardID, actorID, memberID string) (domain.Board, error)
}

// Cards exposes card operations to handlers.
type Cards interface {
	Create(ctx context.Context, boardID, userID string, draft domain.CardDraft) (domain.Card, error)
	BoardView(ctx context.Context, boardID, userID string) ([]domain.Card, error)
	Update(ctx context.Context, boardID, cardID, userID string, patch domain.CardPatch) (domain.Card, error)
	Delete(ctx context.Context, boardID, cardID, userID string) error
	Reorder(ctx context.Context, boardID, userID string, orders []domain.CardOrder) error
}

// Tasks exposes task operations to handlers.
type Tasks interface {
	Create(ctx context.Context, boardID, cardID, ownerID string, draft domain.TaskDraft) (domain.Task, error)
	Get(ctx context.Context, boardID, taskID string) (domain.Task, error)
	List(ctx context.Context, boardID, cardID string, filter domain.TaskFilter) ([]domain.Task, error)
	Update(ctx context.Context, boardID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	Delete(ctx context.Context, boardID, cardID, taskID string) error
	Reorder(ctx context.Context, boardID, cardID string, orders []domain.TaskOrder) error
	Move(ctx context.Context, boardID, taskID, sourceCardID, destCardID string, newOrder int) (domain.Task, error)
	Assign(ctx context.Context, boardID, taskID, memberID, actorID string) (domain.Task, error)
	Unassign(ctx context.Context, boardID, taskID, memberID string) (domain.Task, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
