package domain

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TaskService performs task mutations against the store, keeps sibling order
// values dense, and pushes the committed state to board observers.
type TaskService struct {
	st     Storage
	pub    Publisher
	notify Notifier
}

func NewTaskService(st Storage, pub Publisher, notify Notifier) TaskService {
	return TaskService{st: st, pub: pub, notify: notify}
}

// Create appends a task at the end of the card's sequence: the new order is
// the current sibling count. The card's task count is incremented.
func (s TaskService) Create(ctx context.Context, boardID, cardID, ownerID string, draft TaskDraft) (Task, error) {
	card, err := s.st.GetCard(ctx, boardID, cardID)
	if err != nil {
		return Task{}, err
	}
	if card == nil {
		return Task{}, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
	}
	siblings, err := s.st.ListTasks(ctx, boardID, cardID)
	if err != nil {
		return Task{}, err
	}

	priority := draft.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Task{}, fmt.Errorf("priority %q: %w", priority, ErrPreconditionFailed)
	}

	t := Task{
		ID:              uuid.NewString(),
		CardID:          cardID,
		BoardID:         boardID,
		OwnerID:         ownerID,
		Title:           draft.Title,
		Description:     draft.Description,
		Order:           len(siblings),
		AssignedMembers: []string{},
		Priority:        priority,
		DueDate:         draft.DueDate,
	}

	card.TaskCount++
	if err := s.st.UpdateCard(ctx, *card); err != nil {
		return Task{}, err
	}
	if err := s.st.InsertTask(ctx, t); err != nil {
		return Task{}, err
	}

	s.pub.Publish(boardID, TaskCreated, TaskCreatedData{Task: t})
	return t, nil
}

// Get loads a single task.
func (s TaskService) Get(ctx context.Context, boardID, taskID string) (Task, error) {
	t, err := s.st.GetTask(ctx, boardID, taskID)
	if err != nil {
		return Task{}, err
	}
	if t == nil {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return *t, nil
}

// List returns the card's tasks matching the filter, sorted by order.
func (s TaskService) List(ctx context.Context, boardID, cardID string, filter TaskFilter) ([]Task, error) {
	tasks, err := s.st.ListTasks(ctx, boardID, cardID)
	if err != nil {
		return nil, err
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Update applies the set fields of patch and pushes the updated task.
func (s TaskService) Update(ctx context.Context, boardID, taskID string, patch TaskPatch) (Task, error) {
	t, err := s.st.GetTask(ctx, boardID, taskID)
	if err != nil {
		return Task{}, err
	}
	if t == nil {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return Task{}, fmt.Errorf("priority %q: %w", *patch.Priority, ErrPreconditionFailed)
		}
		t.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		t.DueDate = patch.DueDate
	}
	if patch.DueComplete != nil {
		t.DueComplete = *patch.DueComplete
	}
	if err := s.st.UpdateTask(ctx, *t); err != nil {
		return Task{}, err
	}

	s.pub.Publish(boardID, TaskUpdated, TaskUpdatedData{Task: *t})
	return *t, nil
}

// Delete removes the task and decrements the card's task count. Remaining
// sibling orders are left with a gap; the range becomes dense again on the
// next reorder.
func (s TaskService) Delete(ctx context.Context, boardID, cardID, taskID string) error {
	t, err := s.st.GetTask(ctx, boardID, taskID)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if t.CardID != cardID {
		return fmt.Errorf("task %s is not in card %s: %w", taskID, cardID, ErrPreconditionFailed)
	}
	if err := s.st.DeleteTask(ctx, boardID, taskID); err != nil {
		return err
	}
	card, err := s.st.GetCard(ctx, boardID, cardID)
	if err != nil {
		return err
	}
	if card != nil {
		if card.TaskCount > 0 {
			card.TaskCount--
		}
		if err := s.st.UpdateCard(ctx, *card); err != nil {
			return err
		}
	}

	s.pub.Publish(boardID, TaskDeleted, TaskDeletedData{TaskID: taskID, CardID: cardID})
	return nil
}

// Reorder overwrites the order of every task in the card. The supplied pairs
// must cover the card's tasks exactly once each with orders forming the
// range [0, n-1].
func (s TaskService) Reorder(ctx context.Context, boardID, cardID string, orders []TaskOrder) error {
	siblings, err := s.st.ListTasks(ctx, boardID, cardID)
	if err != nil {
		return err
	}
	byID := make(map[string]*Task, len(siblings))
	for i := range siblings {
		byID[siblings[i].ID] = &siblings[i]
	}
	if len(orders) != len(siblings) {
		return fmt.Errorf("got %d orders for %d tasks: %w", len(orders), len(siblings), ErrInvalidOrder)
	}
	seenID := make(map[string]struct{}, len(orders))
	seenOrder := make(map[int]struct{}, len(orders))
	for _, o := range orders {
		if _, ok := byID[o.TaskID]; !ok {
			return fmt.Errorf("task %s is not in card %s: %w", o.TaskID, cardID, ErrInvalidOrder)
		}
		if _, dup := seenID[o.TaskID]; dup {
			return fmt.Errorf("task %s listed twice: %w", o.TaskID, ErrInvalidOrder)
		}
		seenID[o.TaskID] = struct{}{}
		if o.Order < 0 || o.Order >= len(orders) {
			return fmt.Errorf("order %d out of range: %w", o.Order, ErrInvalidOrder)
		}
		if _, dup := seenOrder[o.Order]; dup {
			return fmt.Errorf("order %d assigned twice: %w", o.Order, ErrInvalidOrder)
		}
		seenOrder[o.Order] = struct{}{}
	}

	for _, o := range orders {
		t := byID[o.TaskID]
		t.Order = o.Order
		if err := s.st.UpdateTask(ctx, *t); err != nil {
			return err
		}
	}

	s.pub.Publish(boardID, TaskReordered, TaskReorderedData{CardID: cardID, TaskOrders: orders})
	return nil
}

// Move transfers the task from sourceCardID to destCardID at newOrder as one
// logical operation: destination siblings at or after newOrder shift up,
// source siblings after the old position shift down, then the task itself is
// repointed. There is no rollback; an error mid-way leaves the store as far
// as the steps reached.
func (s TaskService) Move(ctx context.Context, boardID, taskID, sourceCardID, destCardID string, newOrder int) (Task, error) {
	t, err := s.st.GetTask(ctx, boardID, taskID)
	if err != nil {
		return Task{}, err
	}
	if t == nil {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if t.CardID != sourceCardID {
		return Task{}, fmt.Errorf("task %s is not in card %s: %w", taskID, sourceCardID, ErrPreconditionFailed)
	}

	destTasks, err := s.st.ListTasks(ctx, boardID, destCardID)
	if err != nil {
		return Task{}, err
	}
	for _, dt := range destTasks {
		if dt.Order >= newOrder {
			dt.Order++
			if err := s.st.UpdateTask(ctx, dt); err != nil {
				return Task{}, err
			}
		}
	}

	sourceTasks, err := s.st.ListTasks(ctx, boardID, sourceCardID)
	if err != nil {
		return Task{}, err
	}
	originalOrder := t.Order
	for _, src := range sourceTasks {
		if src.ID == taskID {
			continue
		}
		if src.Order > originalOrder {
			src.Order--
			if err := s.st.UpdateTask(ctx, src); err != nil {
				return Task{}, err
			}
		}
	}

	t.CardID = destCardID
	t.Order = newOrder
	if err := s.st.UpdateTask(ctx, *t); err != nil {
		return Task{}, err
	}

	if err := s.adjustTaskCount(ctx, boardID, sourceCardID, -1); err != nil {
		return Task{}, err
	}
	if err := s.adjustTaskCount(ctx, boardID, destCardID, +1); err != nil {
		return Task{}, err
	}

	s.pub.Publish(boardID, TaskMoved, TaskMovedData{
		TaskID:       taskID,
		SourceCardID: sourceCardID,
		DestCardID:   destCardID,
		NewOrder:     newOrder,
		Task:         *t,
	})
	return *t, nil
}

func (s TaskService) adjustTaskCount(ctx context.Context, boardID, cardID string, delta int) error {
	card, err := s.st.GetCard(ctx, boardID, cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return nil
	}
	card.TaskCount += delta
	if card.TaskCount < 0 {
		card.TaskCount = 0
	}
	return s.st.UpdateCard(ctx, *card)
}

// Assign adds memberID to the task's assigned set and pushes the canonical
// task state. Assigning an already-assigned member is a no-op in the store
// but still broadcast.
func (s TaskService) Assign(ctx context.Context, boardID, taskID, memberID, actorID string) (Task, error) {
	t, err := s.st.GetTask(ctx, boardID, taskID)
	if err != nil {
		return Task{}, err
	}
	if t == nil {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	newlyAssigned := !t.Assigned(memberID)
	if newlyAssigned {
		t.AssignedMembers = append(t.AssignedMembers, memberID)
		if err := s.st.UpdateTask(ctx, *t); err != nil {
			return Task{}, err
		}
	}

	s.pub.Publish(boardID, TaskMemberAssigned, TaskMemberData{TaskID: taskID, MemberID: memberID, Task: *t})

	if newlyAssigned && memberID != actorID && s.notify != nil {
		n := Notification{
			UserID:  memberID,
			ActorID: actorID,
			Kind:    NotificationTaskAssigned,
			BoardID: boardID,
			TaskID:  taskID,
		}
		if err := s.notify.EnqueueNotification(ctx, n); err != nil {
			log.WithFields(log.Fields{"task": taskID, "member": memberID}).Warnf("notification enqueue failed: %v", err)
		}
	}
	return *t, nil
}

// Unassign removes memberID from the task's assigned set and pushes the
// canonical task state.
func (s TaskService) Unassign(ctx context.Context, boardID, taskID, memberID string) (Task, error) {
	t, err := s.st.GetTask(ctx, boardID, taskID)
	if err != nil {
		return Task{}, err
	}
	if t == nil {
		return Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if t.Assigned(memberID) {
		members := t.AssignedMembers[:0:0]
		for _, m := range t.AssignedMembers {
			if m != memberID {
				members = append(members, m)
			}
		}
		t.AssignedMembers = members
		if err := s.st.UpdateTask(ctx, *t); err != nil {
			return Task{}, err
		}
	}

	s.pub.Publish(boardID, TaskMemberUnassigned, TaskMemberData{TaskID: taskID, MemberID: memberID, Task: *t})
	return *t, nil
}
