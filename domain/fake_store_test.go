package domain

import (
	"context"
	"fmt"
)

type fakeStore struct {
	boards map[string]Board
	cards  map[string]Card
	tasks  map[string]Task

	failUpdateTask string // task ID whose update returns an error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		boards: map[string]Board{},
		cards:  map[string]Card{},
		tasks:  map[string]Task{},
	}
}

func (f *fakeStore) GetBoard(ctx context.Context, boardID string) (*Board, error) {
	b, ok := f.boards[boardID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) InsertBoard(ctx context.Context, b Board) error {
	f.boards[b.ID] = b
	return nil
}

func (f *fakeStore) UpdateBoard(ctx context.Context, b Board) error {
	f.boards[b.ID] = b
	return nil
}

func (f *fakeStore) GetCard(ctx context.Context, boardID, cardID string) (*Card, error) {
	c, ok := f.cards[cardID]
	if !ok || c.BoardID != boardID {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) ListCards(ctx context.Context, boardID string) ([]Card, error) {
	out := []Card{}
	for _, c := range f.cards {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertCard(ctx context.Context, c Card) error {
	f.cards[c.ID] = c
	return nil
}

func (f *fakeStore) UpdateCard(ctx context.Context, c Card) error {
	f.cards[c.ID] = c
	return nil
}

func (f *fakeStore) DeleteCard(ctx context.Context, boardID, cardID string) error {
	delete(f.cards, cardID)
	return nil
}

func (f *fakeStore) GetTask(ctx context.Context, boardID, taskID string) (*Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.BoardID != boardID {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, boardID, cardID string) ([]Task, error) {
	out := []Task{}
	for _, t := range f.tasks {
		if t.BoardID == boardID && t.CardID == cardID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, t Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, t Task) error {
	if f.failUpdateTask != "" && t.ID == f.failUpdateTask {
		return fmt.Errorf("update task %s: injected failure", t.ID)
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, boardID, taskID string) error {
	delete(f.tasks, taskID)
	return nil
}

type publishedEvent struct {
	boardID string
	kind    EventKind
	data    any
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(boardID string, kind EventKind, data any) {
	f.events = append(f.events, publishedEvent{boardID: boardID, kind: kind, data: data})
}

type fakeNotifier struct {
	sent []Notification
}

func (f *fakeNotifier) EnqueueNotification(ctx context.Context, n Notification) error {
	f.sent = append(f.sent, n)
	return nil
}
