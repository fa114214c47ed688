package domain

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestCardCreateAppendsAtEnd(t *testing.T) {
	f := newFakeStore()
	pub := &fakePublisher{}
	seedBoard(f, "B1", "u1")
	seedCard(f, "B1", "C1", 0, 0)
	svc := NewCardService(f, pub)

	card, err := svc.Create(context.Background(), "B1", "u1", CardDraft{Title: "todo"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if card.Order != 1 {
		t.Fatalf("expected order 1, got %d", card.Order)
	}
	if got := f.boards["B1"].CardCount; got != 1 {
		t.Fatalf("card count = %d, want 1", got)
	}
}

func TestCardCreateRequiresMembership(t *testing.T) {
	f := newFakeStore()
	seedBoard(f, "B1", "u1")
	svc := NewCardService(f, &fakePublisher{})

	if _, err := svc.Create(context.Background(), "B1", "intruder", CardDraft{Title: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Create(context.Background(), "nope", "u1", CardDraft{Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCardCascades(t *testing.T) {
	f := newFakeStore()
	seedBoard(f, "B1", "u1")
	f.boards["B1"] = Board{ID: "B1", OwnerID: "u1", Members: []string{}, CardCount: 2, MemberCount: 1}
	seedCard(f, "B1", "C1", 0, 2)
	seedCard(f, "B1", "C2", 1, 0)
	seedTask(f, "B1", "C1", "t1", 0)
	seedTask(f, "B1", "C1", "t2", 1)
	svc := NewCardService(f, &fakePublisher{})

	if err := svc.Delete(context.Background(), "B1", "C1", "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := f.cards["C1"]; ok {
		t.Fatal("card not deleted")
	}
	if len(f.tasks) != 0 {
		t.Fatalf("tasks not cascaded: %v", f.tasks)
	}
	if got := f.boards["B1"].CardCount; got != 1 {
		t.Fatalf("card count = %d, want 1", got)
	}
}

func TestBoardViewSortsCardsAndTasks(t *testing.T) {
	f := newFakeStore()
	seedBoard(f, "B1", "u1")
	seedCard(f, "B1", "C1", 1, 2)
	seedCard(f, "B1", "C2", 0, 1)
	seedTask(f, "B1", "C1", "t2", 1)
	seedTask(f, "B1", "C1", "t1", 0)
	seedTask(f, "B1", "C2", "x", 0)
	svc := NewCardService(f, &fakePublisher{})

	cards, err := svc.BoardView(context.Background(), "B1", "u1")
	if err != nil {
		t.Fatalf("board view: %v", err)
	}
	if len(cards) != 2 || cards[0].ID != "C2" || cards[1].ID != "C1" {
		t.Fatalf("cards out of order: %+v", cards)
	}
	if len(cards[1].Tasks) != 2 || cards[1].Tasks[0].ID != "t1" || cards[1].Tasks[1].ID != "t2" {
		t.Fatalf("tasks out of order: %+v", cards[1].Tasks)
	}
}

func TestCardReorder(t *testing.T) {
	f := newFakeStore()
	pub := &fakePublisher{}
	seedBoard(f, "B1", "u1")
	seedCard(f, "B1", "C1", 0, 0)
	seedCard(f, "B1", "C2", 1, 0)
	seedCard(f, "B1", "C3", 2, 0)
	svc := NewCardService(f, pub)

	orders := []CardOrder{{CardID: "C3", Order: 0}, {CardID: "C1", Order: 1}, {CardID: "C2", Order: 2}}
	if err := svc.Reorder(context.Background(), "B1", "u1", orders); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got := map[string]int{}
	for id, c := range f.cards {
		got[id] = c.Order
	}
	want := map[string]int{"C3": 0, "C1": 1, "C2": 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("orders = %v, want %v", got, want)
	}
	if len(pub.events) != 1 || pub.events[0].kind != CardReordered {
		t.Fatalf("unexpected events: %+v", pub.events)
	}
}

func TestCardReorderRejectsPartialSets(t *testing.T) {
	f := newFakeStore()
	seedBoard(f, "B1", "u1")
	seedCard(f, "B1", "C1", 0, 0)
	seedCard(f, "B1", "C2", 1, 0)
	svc := NewCardService(f, &fakePublisher{})

	err := svc.Reorder(context.Background(), "B1", "u1", []CardOrder{{CardID: "C1", Order: 0}})
	if !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}
