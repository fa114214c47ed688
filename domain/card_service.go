package domain

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// CardService performs card mutations: create, update, cascading delete and
// batch reorder within a board.
type CardService struct {
	st  Storage
	pub Publisher
}

func NewCardService(st Storage, pub Publisher) CardService {
	return CardService{st: st, pub: pub}
}

// accessBoard loads the board and checks that userID owns it or is a member.
func accessBoard(ctx context.Context, st Storage, boardID, userID string) (*Board, error) {
	board, err := st.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, fmt.Errorf("board %s: %w", boardID, ErrNotFound)
	}
	if !board.HasAccess(userID) {
		return nil, fmt.Errorf("board %s: %w", boardID, ErrForbidden)
	}
	return board, nil
}

// Create appends a card at the end of the board's sequence and increments
// the board's card count.
func (s CardService) Create(ctx context.Context, boardID, userID string, draft CardDraft) (Card, error) {
	board, err := accessBoard(ctx, s.st, boardID, userID)
	if err != nil {
		return Card{}, err
	}
	existing, err := s.st.ListCards(ctx, boardID)
	if err != nil {
		return Card{}, err
	}

	c := Card{
		ID:          uuid.NewString(),
		BoardID:     boardID,
		Title:       draft.Title,
		Description: draft.Description,
		Order:       len(existing),
		CreatedBy:   userID,
	}

	board.CardCount++
	if err := s.st.UpdateBoard(ctx, *board); err != nil {
		return Card{}, err
	}
	if err := s.st.InsertCard(ctx, c); err != nil {
		return Card{}, err
	}
	return c, nil
}

// BoardView returns the board's cards sorted by order, each populated with
// its tasks sorted by order. This is the read path clients hydrate their
// cache from.
func (s CardService) BoardView(ctx context.Context, boardID, userID string) ([]Card, error) {
	if _, err := accessBoard(ctx, s.st, boardID, userID); err != nil {
		return nil, err
	}
	cards, err := s.st.ListCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	for i := range cards {
		tasks, err := s.st.ListTasks(ctx, boardID, cards[i].ID)
		if err != nil {
			return nil, err
		}
		sort.Slice(tasks, func(a, b int) bool { return tasks[a].Order < tasks[b].Order })
		cards[i].Tasks = tasks
	}
	return cards, nil
}

// Update applies the set fields of patch to the card.
func (s CardService) Update(ctx context.Context, boardID, cardID, userID string, patch CardPatch) (Card, error) {
	if _, err := accessBoard(ctx, s.st, boardID, userID); err != nil {
		return Card{}, err
	}
	card, err := s.st.GetCard(ctx, boardID, cardID)
	if err != nil {
		return Card{}, err
	}
	if card == nil {
		return Card{}, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	if patch.Title != nil {
		card.Title = *patch.Title
	}
	if patch.Description != nil {
		card.Description = *patch.Description
	}
	if err := s.st.UpdateCard(ctx, *card); err != nil {
		return Card{}, err
	}
	return *card, nil
}

// Delete removes the card and every task it contains, then decrements the
// board's card count. Remaining card orders are left with a gap; the range
// becomes dense again on the next reorder.
func (s CardService) Delete(ctx context.Context, boardID, cardID, userID string) error {
	board, err := accessBoard(ctx, s.st, boardID, userID)
	if err != nil {
		return err
	}
	card, err := s.st.GetCard(ctx, boardID, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}

	tasks, err := s.st.ListTasks(ctx, boardID, cardID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := s.st.DeleteTask(ctx, boardID, t.ID); err != nil {
			return err
		}
	}

	if board.CardCount > 0 {
		board.CardCount--
	}
	if err := s.st.UpdateBoard(ctx, *board); err != nil {
		return err
	}
	return s.st.DeleteCard(ctx, boardID, cardID)
}

// Reorder overwrites the order of every card in the board. The supplied
// pairs must cover the board's cards exactly once each with orders forming
// the range [0, n-1].
func (s CardService) Reorder(ctx context.Context, boardID, userID string, orders []CardOrder) error {
	if _, err := accessBoard(ctx, s.st, boardID, userID); err != nil {
		return err
	}
	cards, err := s.st.ListCards(ctx, boardID)
	if err != nil {
		return err
	}
	byID := make(map[string]*Card, len(cards))
	for i := range cards {
		byID[cards[i].ID] = &cards[i]
	}
	if len(orders) != len(cards) {
		return fmt.Errorf("got %d orders for %d cards: %w", len(orders), len(cards), ErrInvalidOrder)
	}
	seenID := make(map[string]struct{}, len(orders))
	seenOrder := make(map[int]struct{}, len(orders))
	for _, o := range orders {
		if _, ok := byID[o.CardID]; !ok {
			return fmt.Errorf("card %s is not in board %s: %w", o.CardID, boardID, ErrInvalidOrder)
		}
		if _, dup := seenID[o.CardID]; dup {
			return fmt.Errorf("card %s listed twice: %w", o.CardID, ErrInvalidOrder)
		}
		seenID[o.CardID] = struct{}{}
		if o.Order < 0 || o.Order >= len(orders) {
			return fmt.Errorf("order %d out of range: %w", o.Order, ErrInvalidOrder)
		}
		if _, dup := seenOrder[o.Order]; dup {
			return fmt.Errorf("order %d assigned twice: %w", o.Order, ErrInvalidOrder)
		}
		seenOrder[o.Order] = struct{}{}
	}

	for _, o := range orders {
		c := byID[o.CardID]
		c.Order = o.Order
		if err := s.st.UpdateCard(ctx, *c); err != nil {
			return err
		}
	}

	s.pub.Publish(boardID, CardReordered, CardReorderedData{BoardID: boardID, CardOrders: orders})
	return nil
}
