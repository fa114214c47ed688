// Package reconcile keeps a client-local view of one board consistent as
// REST responses and asynchronous push events arrive. Merges are keyed on
// entity id, so applying the same event twice never duplicates or corrupts
// a list, and events referencing cards the client has not loaded mark the
// cache stale instead of guessing at a partial patch.
package reconcile

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bytedance/sonic"

	"boardsync/domain"
)

// BoardCache is the reconciler's cached {cards -> tasks} view of a board.
// A stale cache must be rehydrated from the REST board view before it is
// trusted again.
type BoardCache struct {
	boardID string

	mu    sync.Mutex
	cards []domain.Card
	stale bool
}

func NewBoardCache(boardID string) *BoardCache {
	return &BoardCache{boardID: boardID, stale: true}
}

// BoardID returns the board this cache observes.
func (c *BoardCache) BoardID() string { return c.boardID }

// Hydrate replaces the cached view with a fresh REST board view and clears
// the stale flag.
func (c *BoardCache) Hydrate(cards []domain.Card) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards = make([]domain.Card, len(cards))
	copy(c.cards, cards)
	for i := range c.cards {
		tasks := make([]domain.Task, len(cards[i].Tasks))
		copy(tasks, cards[i].Tasks)
		c.cards[i].Tasks = tasks
		sortTasks(c.cards[i].Tasks)
	}
	sortCards(c.cards)
	c.stale = false
}

// Stale reports whether an observed event could not be merged and the view
// must be refetched.
func (c *BoardCache) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Cards returns a snapshot of the cached view, cards and tasks in order.
func (c *BoardCache) Cards() []domain.Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Card, len(c.cards))
	copy(out, c.cards)
	for i := range out {
		tasks := make([]domain.Task, len(c.cards[i].Tasks))
		copy(tasks, c.cards[i].Tasks)
		out[i].Tasks = tasks
	}
	return out
}

// UpsertTask merges a task obtained directly from a REST response: replace
// if present, insert if the parent card is cached, otherwise mark stale.
// The push event echoing the same mutation reconciles to the same state.
func (c *BoardCache) UpsertTask(t domain.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.upsertTask(t)
}

// RemoveTask drops a task by id from the named card's list.
func (c *BoardCache) RemoveTask(cardID, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if card := c.card(cardID); card != nil {
		card.Tasks = removeTask(card.Tasks, taskID)
		return
	}
	c.stale = true
}

// Apply merges one push event into the cached view. Events scoped to other
// boards are ignored. Dispatch is exhaustive over the event catalogue; an
// unknown kind is an error, not a silent skip.
func (c *BoardCache) Apply(env domain.Envelope) error {
	if env.BoardID != c.boardID {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch env.Event {
	case domain.TaskCreated:
		var data domain.TaskCreatedData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		c.upsertTask(data.Task)

	case domain.TaskUpdated:
		var data domain.TaskUpdatedData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		c.upsertTask(data.Task)

	case domain.TaskDeleted:
		var data domain.TaskDeletedData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		card := c.card(data.CardID)
		if card == nil {
			c.stale = true
			return nil
		}
		card.Tasks = removeTask(card.Tasks, data.TaskID)

	case domain.TaskReordered:
		var data domain.TaskReorderedData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		card := c.card(data.CardID)
		if card == nil {
			c.stale = true
			return nil
		}
		byID := map[string]int{}
		for _, o := range data.TaskOrders {
			byID[o.TaskID] = o.Order
		}
		for i := range card.Tasks {
			if order, ok := byID[card.Tasks[i].ID]; ok {
				card.Tasks[i].Order = order
			}
		}
		sortTasks(card.Tasks)

	case domain.TaskMoved:
		var data domain.TaskMovedData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		source := c.card(data.SourceCardID)
		dest := c.card(data.DestCardID)
		if source == nil || dest == nil {
			c.stale = true
			return nil
		}
		source.Tasks = removeTask(source.Tasks, data.TaskID)
		dest.Tasks = removeTask(dest.Tasks, data.TaskID)
		dest.Tasks = append(dest.Tasks, data.Task)
		sortTasks(dest.Tasks)

	case domain.TaskMemberAssigned, domain.TaskMemberUnassigned:
		var data domain.TaskMemberData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		// The server sends the canonical task; replace it wholesale rather
		// than patching the member list.
		c.upsertTask(data.Task)

	case domain.CardReordered:
		var data domain.CardReorderedData
		if err := sonic.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		byID := map[string]int{}
		for _, o := range data.CardOrders {
			byID[o.CardID] = o.Order
		}
		for i := range c.cards {
			if order, ok := byID[c.cards[i].ID]; ok {
				c.cards[i].Order = order
			}
		}
		sortCards(c.cards)

	default:
		return fmt.Errorf("unknown event kind %q", env.Event)
	}
	return nil
}

func (c *BoardCache) card(cardID string) *domain.Card {
	for i := range c.cards {
		if c.cards[i].ID == cardID {
			return &c.cards[i]
		}
	}
	return nil
}

func (c *BoardCache) upsertTask(t domain.Task) {
	card := c.card(t.CardID)
	if card == nil {
		c.stale = true
		return
	}
	// The task may have moved here from another cached card.
	for i := range c.cards {
		if c.cards[i].ID != t.CardID {
			c.cards[i].Tasks = removeTask(c.cards[i].Tasks, t.ID)
		}
	}
	replaced := false
	for i := range card.Tasks {
		if card.Tasks[i].ID == t.ID {
			card.Tasks[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		card.Tasks = append(card.Tasks, t)
	}
	sortTasks(card.Tasks)
}

func removeTask(tasks []domain.Task, taskID string) []domain.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != taskID {
			out = append(out, t)
		}
	}
	return out
}

func sortTasks(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
}

func sortCards(cards []domain.Card) {
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
}
