package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BoardService manages board lifecycle and membership.
type BoardService struct {
	st     Storage
	notify Notifier
}

func NewBoardService(st Storage, notify Notifier) BoardService {
	return BoardService{st: st, notify: notify}
}

// Create makes a new board owned by ownerID. The owner counts as the first
// member but is not stored in the members set.
func (s BoardService) Create(ctx context.Context, ownerID string, draft BoardDraft) (Board, error) {
	b := Board{
		ID:          uuid.NewString(),
		Name:        draft.Name,
		Description: draft.Description,
		OwnerID:     ownerID,
		Members:     []string{},
		MemberCount: 1,
	}
	if err := s.st.InsertBoard(ctx, b); err != nil {
		return Board{}, err
	}
	return b, nil
}

// Get loads a board the user has access to.
func (s BoardService) Get(ctx context.Context, boardID, userID string) (Board, error) {
	b, err := accessBoard(ctx, s.st, boardID, userID)
	if err != nil {
		return Board{}, err
	}
	return *b, nil
}

// InviteMember adds memberID to the board and enqueues an invitation
// notification. Inviting the owner or an existing member is a no-op.
func (s BoardService) InviteMember(ctx context.Context, boardID, actorID, memberID string) (Board, error) {
	b, err := accessBoard(ctx, s.st, boardID, actorID)
	if err != nil {
		return Board{}, err
	}
	if memberID == b.OwnerID || b.HasAccess(memberID) {
		return *b, nil
	}
	b.Members = append(b.Members, memberID)
	b.MemberCount++
	if err := s.st.UpdateBoard(ctx, *b); err != nil {
		return Board{}, err
	}

	if s.notify != nil {
		n := Notification{
			UserID:  memberID,
			ActorID: actorID,
			Kind:    NotificationBoardInvite,
			BoardID: boardID,
		}
		if err := s.notify.EnqueueNotification(ctx, n); err != nil {
			log.WithFields(log.Fields{"board": boardID, "member": memberID}).Warnf("notification enqueue failed: %v", err)
		}
	}
	return *b, nil
}

// RemoveMember drops memberID from the board's members set. The owner cannot
// be removed.
func (s BoardService) RemoveMember(ctx context.Context, boardID, actorID, memberID string) (Board, error) {
	b, err := accessBoard(ctx, s.st, boardID, actorID)
	if err != nil {
		return Board{}, err
	}
	if memberID == b.OwnerID {
		return Board{}, fmt.Errorf("cannot remove board owner: %w", ErrPreconditionFailed)
	}
	members := b.Members[:0:0]
	removed := false
	for _, m := range b.Members {
		if m == memberID {
			removed = true
			continue
		}
		members = append(members, m)
	}
	if !removed {
		return *b, nil
	}
	b.Members = members
	b.MemberCount--
	if err := s.st.UpdateBoard(ctx, *b); err != nil {
		return Board{}, err
	}
	return *b, nil
}
