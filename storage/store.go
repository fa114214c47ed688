package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"boardsync/domain"
)

// Store is the aztables-backed document store. Boards, cards and tasks each
// live in their own table; cards and tasks are partitioned by board id so a
// board's contents are a single-partition scan.
type Store struct {
	boardTable *aztables.Client
	cardTable  *aztables.Client
	taskTable  *aztables.Client
}

// New creates a Store from the given connection string.
func New(connStr, boardsTable, cardsTable, tasksTable string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		boardTable: svc.NewClient(boardsTable),
		cardTable:  svc.NewClient(cardsTable),
		taskTable:  svc.NewClient(tasksTable),
	}, nil
}

// Table entities keep member sets as JSON-encoded strings: table storage
// has no array property type.

type boardEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	Description string `json:"Description"`
	OwnerID     string `json:"OwnerId"`
	Members     string `json:"Members"`
	CardCount   int    `json:"CardCount"`
	MemberCount int    `json:"MemberCount"`
}

type cardEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Order       int    `json:"Order"`
	TaskCount   int    `json:"TaskCount"`
	CreatedBy   string `json:"CreatedBy"`
}

type taskEntity struct {
	aztables.Entity
	CardID          string `json:"CardId"`
	OwnerID         string `json:"OwnerId"`
	Title           string `json:"Title"`
	Description     string `json:"Description"`
	Order           int    `json:"Order"`
	AssignedMembers string `json:"AssignedMembers"`
	Priority        string `json:"Priority"`
	DueDate         string `json:"DueDate"`
	DueComplete     bool   `json:"DueComplete"`
}

func encodeMembers(members []string) (string, error) {
	if members == nil {
		members = []string{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMembers(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var members []string
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func boardToEntity(b domain.Board) (boardEntity, error) {
	members, err := encodeMembers(b.Members)
	if err != nil {
		return boardEntity{}, err
	}
	return boardEntity{
		Entity:      aztables.Entity{PartitionKey: b.ID, RowKey: b.ID},
		Name:        b.Name,
		Description: b.Description,
		OwnerID:     b.OwnerID,
		Members:     members,
		CardCount:   b.CardCount,
		MemberCount: b.MemberCount,
	}, nil
}

func entityToBoard(ent boardEntity) (domain.Board, error) {
	members, err := decodeMembers(ent.Members)
	if err != nil {
		return domain.Board{}, fmt.Errorf("board %s members: %w", ent.RowKey, err)
	}
	return domain.Board{
		ID:          ent.RowKey,
		Name:        ent.Name,
		Description: ent.Description,
		OwnerID:     ent.OwnerID,
		Members:     members,
		CardCount:   ent.CardCount,
		MemberCount: ent.MemberCount,
	}, nil
}

func cardToEntity(c domain.Card) cardEntity {
	return cardEntity{
		Entity:      aztables.Entity{PartitionKey: c.BoardID, RowKey: c.ID},
		Title:       c.Title,
		Description: c.Description,
		Order:       c.Order,
		TaskCount:   c.TaskCount,
		CreatedBy:   c.CreatedBy,
	}
}

func entityToCard(ent cardEntity) domain.Card {
	return domain.Card{
		ID:          ent.RowKey,
		BoardID:     ent.PartitionKey,
		Title:       ent.Title,
		Description: ent.Description,
		Order:       ent.Order,
		TaskCount:   ent.TaskCount,
		CreatedBy:   ent.CreatedBy,
	}
}

func taskToEntity(t domain.Task) (taskEntity, error) {
	members, err := encodeMembers(t.AssignedMembers)
	if err != nil {
		return taskEntity{}, err
	}
	due := ""
	if t.DueDate != nil {
		due = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	return taskEntity{
		Entity:          aztables.Entity{PartitionKey: t.BoardID, RowKey: t.ID},
		CardID:          t.CardID,
		OwnerID:         t.OwnerID,
		Title:           t.Title,
		Description:     t.Description,
		Order:           t.Order,
		AssignedMembers: members,
		Priority:        string(t.Priority),
		DueDate:         due,
		DueComplete:     t.DueComplete,
	}, nil
}

func entityToTask(ent taskEntity) (domain.Task, error) {
	members, err := decodeMembers(ent.AssignedMembers)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s members: %w", ent.RowKey, err)
	}
	var due *time.Time
	if ent.DueDate != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ent.DueDate)
		if err != nil {
			return domain.Task{}, fmt.Errorf("task %s due date: %w", ent.RowKey, err)
		}
		due = &parsed
	}
	return domain.Task{
		ID:              ent.RowKey,
		CardID:          ent.CardID,
		BoardID:         ent.PartitionKey,
		OwnerID:         ent.OwnerID,
		Title:           ent.Title,
		Description:     ent.Description,
		Order:           ent.Order,
		AssignedMembers: members,
		Priority:        domain.Priority(ent.Priority),
		DueDate:         due,
		DueComplete:     ent.DueComplete,
	}, nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}

func (s *Store) GetBoard(ctx context.Context, boardID string) (*domain.Board, error) {
	resp, err := s.boardTable.GetEntity(ctx, boardID, boardID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent boardEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	b, err := entityToBoard(ent)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) InsertBoard(ctx context.Context, b domain.Board) error {
	ent, err := boardToEntity(b)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.boardTable.AddEntity(ctx, payload, nil)
	return err
}

func (s *Store) UpdateBoard(ctx context.Context, b domain.Board) error {
	ent, err := boardToEntity(b)
	if err != nil {
		return err
	}
	return s.replace(ctx, s.boardTable, ent)
}

func (s *Store) GetCard(ctx context.Context, boardID, cardID string) (*domain.Card, error) {
	resp, err := s.cardTable.GetEntity(ctx, boardID, cardID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent cardEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	c := entityToCard(ent)
	return &c, nil
}

func (s *Store) ListCards(ctx context.Context, boardID string) ([]domain.Card, error) {
	filter := "PartitionKey eq '" + boardID + "'"
	pager := s.cardTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	cards := []domain.Card{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent cardEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			cards = append(cards, entityToCard(ent))
		}
	}
	return cards, nil
}

func (s *Store) InsertCard(ctx context.Context, c domain.Card) error {
	payload, err := json.Marshal(cardToEntity(c))
	if err != nil {
		return err
	}
	_, err = s.cardTable.AddEntity(ctx, payload, nil)
	return err
}

func (s *Store) UpdateCard(ctx context.Context, c domain.Card) error {
	return s.replace(ctx, s.cardTable, cardToEntity(c))
}

func (s *Store) DeleteCard(ctx context.Context, boardID, cardID string) error {
	_, err := s.cardTable.DeleteEntity(ctx, boardID, cardID, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) GetTask(ctx context.Context, boardID, taskID string) (*domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, boardID, taskID, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	t, err := entityToTask(ent)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, boardID, cardID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + boardID + "' and CardId eq '" + cardID + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			t, err := entityToTask(ent)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *Store) InsertTask(ctx context.Context, t domain.Task) error {
	ent, err := taskToEntity(t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

func (s *Store) UpdateTask(ctx context.Context, t domain.Task) error {
	ent, err := taskToEntity(t)
	if err != nil {
		return err
	}
	return s.replace(ctx, s.taskTable, ent)
}

func (s *Store) DeleteTask(ctx context.Context, boardID, taskID string) error {
	_, err := s.taskTable.DeleteEntity(ctx, boardID, taskID, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) replace(ctx context.Context, table *aztables.Client, ent any) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = table.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeReplace})
	return err
}
