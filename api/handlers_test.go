package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"boardsync/domain"
)

type mockAuth struct{}

func (mockAuth) UserIDFromAuthHeader(string) (string, error) { return "user", nil }

type failAuth struct{}

func (failAuth) UserIDFromAuthHeader(string) (string, error) {
	return "", errMissingAuthorization
}

type mockBoards struct {
	board domain.Board
	err   error

	invited string
}

func (m *mockBoards) Create(ctx context.Context, ownerID string, draft domain.BoardDraft) (domain.Board, error) {
	return m.board, m.err
}

func (m *mockBoards) Get(ctx context.Context, boardID, userID string) (domain.Board, error) {
	return m.board, m.err
}

func (m *mockBoards) InviteMember(ctx context.Context, boardID, actorID, memberID string) (domain.Board, error) {
	m.invited = memberID
	return m.board, m.err
}

func (m *mockBoards) RemoveMember(ctx context.Context, boardID, actorID, memberID string) (domain.Board, error) {
	return m.board, m.err
}

type mockCards struct {
	view []domain.Card
	card domain.Card
	err  error

	reordered []domain.CardOrder
}

func (m *mockCards) Create(ctx context.Context, boardID, userID string, draft domain.CardDraft) (domain.Card, error) {
	return m.card, m.err
}

func (m *mockCards) BoardView(ctx context.Context, boardID, userID string) ([]domain.Card, error) {
	return m.view, m.err
}

func (m *mockCards) Update(ctx context.Context, boardID, cardID, userID string, patch domain.CardPatch) (domain.Card, error) {
	return m.card, m.err
}

func (m *mockCards) Delete(ctx context.Context, boardID, cardID, userID string) error {
	return m.err
}

func (m *mockCards) Reorder(ctx context.Context, boardID, userID string, orders []domain.CardOrder) error {
	m.reordered = orders
	return m.err
}

type mockTasks struct {
	task domain.Task
	list []domain.Task
	err  error

	created    int
	lastFilter domain.TaskFilter
	lastMove   moveTaskRequest
}

func (m *mockTasks) Create(ctx context.Context, boardID, cardID, ownerID string, draft domain.TaskDraft) (domain.Task, error) {
	m.created++
	return m.task, m.err
}

func (m *mockTasks) Get(ctx context.Context, boardID, taskID string) (domain.Task, error) {
	return m.task, m.err
}

func (m *mockTasks) List(ctx context.Context, boardID, cardID string, filter domain.TaskFilter) ([]domain.Task, error) {
	m.lastFilter = filter
	return m.list, m.err
}

func (m *mockTasks) Update(ctx context.Context, boardID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	return m.task, m.err
}

func (m *mockTasks) Delete(ctx context.Context, boardID, cardID, taskID string) error {
	return m.err
}

func (m *mockTasks) Reorder(ctx context.Context, boardID, cardID string, orders []domain.TaskOrder) error {
	return m.err
}

func (m *mockTasks) Move(ctx context.Context, boardID, taskID, sourceCardID, destCardID string, newOrder int) (domain.Task, error) {
	m.lastMove = moveTaskRequest{SourceCardID: sourceCardID, DestCardID: destCardID, NewOrder: newOrder}
	return m.task, m.err
}

func (m *mockTasks) Assign(ctx context.Context, boardID, taskID, memberID, actorID string) (domain.Task, error) {
	return m.task, m.err
}

func (m *mockTasks) Unassign(ctx context.Context, boardID, taskID, memberID string) (domain.Task, error) {
	return m.task, m.err
}

func newRequestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func nullTestLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestGetBoardView(t *testing.T) {
	cards := &mockCards{view: []domain.Card{
		{ID: "c1", BoardID: "B1", Title: "Backlog", Order: 0, Tasks: []domain.Task{{ID: "t1", CardID: "c1", BoardID: "B1"}}},
		{ID: "c2", BoardID: "B1", Title: "Doing", Order: 1},
	}}
	c, rec := newRequestContext(t, http.MethodGet, "/api/boards/B1/cards", "")
	c.SetParamNames("boardId")
	c.SetParamValues("B1")

	if err := getBoardView(cards, mockAuth{}, nullTestLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"cards"`) {
		t.Fatalf("expected cards wrapper in body: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"Backlog"`) {
		t.Fatalf("expected card title in body: %s", rec.Body.String())
	}
}

func TestGetBoardViewUnauthorized(t *testing.T) {
	c, rec := newRequestContext(t, http.MethodGet, "/api/boards/B1/cards", "")
	c.SetParamNames("boardId")
	c.SetParamValues("B1")

	if err := getBoardView(&mockCards{}, failAuth{}, nullTestLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestGetBoardViewForbidden(t *testing.T) {
	cards := &mockCards{err: fmt.Errorf("board B1: %w", domain.ErrForbidden)}
	c, rec := newRequestContext(t, http.MethodGet, "/api/boards/B1/cards", "")
	c.SetParamNames("boardId")
	c.SetParamValues("B1")

	if err := getBoardView(cards, mockAuth{}, nullTestLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
}

func TestCreateTask(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{task: domain.Task{ID: "t1", CardID: "c1", BoardID: "B1", Title: "Ship"}}
	c, rec := newRequestContext(t, http.MethodPost, "/api/boards/B1/cards/c1/tasks", `{"title":"Ship"}`)
	c.SetParamNames("boardId", "cardId")
	c.SetParamValues("B1", "c1")

	if err := createTask(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	if tasks.created != 1 {
		t.Fatalf("expected one create call, got %d", tasks.created)
	}
}

func TestCreateTaskDeniedWithoutBoardAccess(t *testing.T) {
	boards := &mockBoards{err: fmt.Errorf("board B1: %w", domain.ErrForbidden)}
	tasks := &mockTasks{}
	c, rec := newRequestContext(t, http.MethodPost, "/api/boards/B1/cards/c1/tasks", `{"title":"Ship"}`)
	c.SetParamNames("boardId", "cardId")
	c.SetParamValues("B1", "c1")

	if err := createTask(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
	if tasks.created != 0 {
		t.Fatalf("task must not be created without board access")
	}
}

func TestCreateTaskRejectsUnknownFields(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{}
	c, rec := newRequestContext(t, http.MethodPost, "/api/boards/B1/cards/c1/tasks", `{"title":"Ship","bogus":1}`)
	c.SetParamNames("boardId", "cardId")
	c.SetParamValues("B1", "c1")

	if err := createTask(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if tasks.created != 0 {
		t.Fatalf("task must not be created from a malformed body")
	}
}

func TestReorderTasksInvalidOrder(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{err: fmt.Errorf("order 5 out of range: %w", domain.ErrInvalidOrder)}
	c, rec := newRequestContext(t, http.MethodPut, "/api/boards/B1/cards/c1/tasks/order", `{"taskOrders":[{"taskId":"t1","order":5}]}`)
	c.SetParamNames("boardId", "cardId")
	c.SetParamValues("B1", "c1")

	if err := reorderTasks(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestDeleteTaskWrongCardConflicts(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{err: fmt.Errorf("task t1 is not in card c2: %w", domain.ErrPreconditionFailed)}
	c, rec := newRequestContext(t, http.MethodDelete, "/api/boards/B1/cards/c2/tasks/t1", "")
	c.SetParamNames("boardId", "cardId", "taskId")
	c.SetParamValues("B1", "c2", "t1")

	if err := deleteTask(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
}

func TestMoveTask(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{task: domain.Task{ID: "x", CardID: "C2", BoardID: "B1", Order: 1}}
	c, rec := newRequestContext(t, http.MethodPost, "/api/boards/B1/tasks/x/move", `{"sourceCardId":"C1","destCardId":"C2","newOrder":1}`)
	c.SetParamNames("boardId", "taskId")
	c.SetParamValues("B1", "x")

	if err := moveTask(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	want := moveTaskRequest{SourceCardID: "C1", DestCardID: "C2", NewOrder: 1}
	if tasks.lastMove != want {
		t.Fatalf("unexpected move arguments: %+v", tasks.lastMove)
	}
}

func TestMoveTaskBadBody(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{}
	c, rec := newRequestContext(t, http.MethodPost, "/api/boards/B1/tasks/x/move", `{"sourceCardId":"C1"}`)
	c.SetParamNames("boardId", "taskId")
	c.SetParamValues("B1", "x")

	if err := moveTask(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestListTasksFilter(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	tasks := &mockTasks{list: []domain.Task{}}
	c, rec := newRequestContext(t, http.MethodGet, "/api/boards/B1/cards/c1/tasks?priority=high&dueComplete=true&member=u2", "")
	c.SetParamNames("boardId", "cardId")
	c.SetParamValues("B1", "c1")

	if err := listTasks(boards, tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if tasks.lastFilter.Priority != domain.PriorityHigh {
		t.Fatalf("priority filter not forwarded: %+v", tasks.lastFilter)
	}
	if tasks.lastFilter.DueComplete == nil || !*tasks.lastFilter.DueComplete {
		t.Fatalf("dueComplete filter not forwarded: %+v", tasks.lastFilter)
	}
	if tasks.lastFilter.Member != "u2" {
		t.Fatalf("member filter not forwarded: %+v", tasks.lastFilter)
	}
}

func TestListTasksBadDueCompleteValue(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user"}}
	c, rec := newRequestContext(t, http.MethodGet, "/api/boards/B1/cards/c1/tasks?dueComplete=maybe", "")
	c.SetParamNames("boardId", "cardId")
	c.SetParamValues("B1", "c1")

	if err := listTasks(boards, &mockTasks{}, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestInviteMember(t *testing.T) {
	boards := &mockBoards{board: domain.Board{ID: "B1", OwnerID: "user", MemberCount: 2}}
	c, rec := newRequestContext(t, http.MethodPost, "/api/boards/B1/members", `{"memberId":"u2"}`)
	c.SetParamNames("boardId")
	c.SetParamValues("B1")

	if err := inviteMember(boards, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if boards.invited != "u2" {
		t.Fatalf("expected invite for u2, got %q", boards.invited)
	}
}

func TestReorderCards(t *testing.T) {
	cards := &mockCards{}
	c, rec := newRequestContext(t, http.MethodPut, "/api/boards/B1/cards/order", `{"cardOrders":[{"cardId":"c2","order":0},{"cardId":"c1","order":1}]}`)
	c.SetParamNames("boardId")
	c.SetParamValues("B1")

	if err := reorderCards(cards, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if len(cards.reordered) != 2 || cards.reordered[0].CardID != "c2" {
		t.Fatalf("unexpected reorder payload: %+v", cards.reordered)
	}
}
