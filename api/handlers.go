package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, boards Boards, cards Cards, tasks Tasks, auth Authenticator, logger *log.Logger) {
	e.POST("/api/boards", createBoard(boards, auth))
	e.GET("/api/boards/:boardId", getBoard(boards, auth))
	e.POST("/api/boards/:boardId/members", inviteMember(boards, auth))
	e.DELETE("/api/boards/:boardId/members/:memberId", removeMember(boards, auth))

	e.GET("/api/boards/:boardId/cards", getBoardView(cards, auth, logger))
	e.POST("/api/boards/:boardId/cards", createCard(cards, auth))
	e.PATCH("/api/boards/:boardId/cards/:cardId", updateCard(cards, auth))
	e.DELETE("/api/boards/:boardId/cards/:cardId", deleteCard(cards, auth))
	e.PUT("/api/boards/:boardId/cards/order", reorderCards(cards, auth))

	e.POST("/api/boards/:boardId/cards/:cardId/tasks", createTask(boards, tasks, auth))
	e.GET("/api/boards/:boardId/cards/:cardId/tasks", listTasks(boards, tasks, auth))
	e.PUT("/api/boards/:boardId/cards/:cardId/tasks/order", reorderTasks(boards, tasks, auth))
	e.DELETE("/api/boards/:boardId/cards/:cardId/tasks/:taskId", deleteTask(boards, tasks, auth))
	e.GET("/api/boards/:boardId/tasks/:taskId", getTask(boards, tasks, auth))
	e.PATCH("/api/boards/:boardId/tasks/:taskId", updateTask(boards, tasks, auth))
	e.POST("/api/boards/:boardId/tasks/:taskId/move", moveTask(boards, tasks, auth))
	e.POST("/api/boards/:boardId/tasks/:taskId/members", assignMember(boards, tasks, auth))
	e.DELETE("/api/boards/:boardId/tasks/:taskId/members/:memberId", unassignMember(boards, tasks, auth))

	e.GET("/healthz", healthz())
}

type inviteRequest struct {
	MemberID string `json:"memberId"`
}

type reorderCardsRequest struct {
	CardOrders []domain.CardOrder `json:"cardOrders"`
}

type reorderTasksRequest struct {
	TaskOrders []domain.TaskOrder `json:"taskOrders"`
}

type moveTaskRequest struct {
	SourceCardID string `json:"sourceCardId"`
	DestCardID   string `json:"destCardId"`
	NewOrder     int    `json:"newOrder"`
}

type boardViewResponse struct {
	Cards []domain.Card `json:"cards"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeDomainError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.String(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return c.String(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidOrder):
		return c.String(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPreconditionFailed):
		return c.String(http.StatusConflict, err.Error())
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}

func createBoard(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var draft domain.BoardDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		b, err := boards.Create(c.Request().Context(), userID, draft)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, b)
	}
}

func getBoard(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		b, err := boards.Get(c.Request().Context(), c.Param("boardId"), userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

func inviteMember(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req inviteRequest
		if err := decodeBody(c, &req); err != nil || req.MemberID == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		b, err := boards.InviteMember(c.Request().Context(), c.Param("boardId"), userID, req.MemberID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

func removeMember(boards Boards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		b, err := boards.RemoveMember(c.Request().Context(), c.Param("boardId"), userID, c.Param("memberId"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, b)
	}
}

func getBoardView(cards Cards, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardViewMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		view, fetchErr := cards.BoardView(ctx, c.Param("boardId"), userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			err = writeDomainError(c, fetchErr)
			return err
		}
		metrics.SetCardsReturned(len(view))
		taskTotal := 0
		for _, card := range view {
			taskTotal += len(card.Tasks)
		}
		metrics.SetTasksReturned(taskTotal)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, boardViewResponse{Cards: view})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func createCard(cards Cards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var draft domain.CardDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		card, err := cards.Create(c.Request().Context(), c.Param("boardId"), userID, draft)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, card)
	}
}

func updateCard(cards Cards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var patch domain.CardPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		card, err := cards.Update(c.Request().Context(), c.Param("boardId"), c.Param("cardId"), userID, patch)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, card)
	}
}

func deleteCard(cards Cards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := cards.Delete(c.Request().Context(), c.Param("boardId"), c.Param("cardId"), userID); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func reorderCards(cards Cards, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		var req reorderCardsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := cards.Reorder(c.Request().Context(), c.Param("boardId"), userID, req.CardOrders); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// requireBoardAccess authenticates the request and verifies the user can see
// the board. Task handlers rely on this; the task service itself does not
// re-check membership.
func requireBoardAccess(c echo.Context, boards Boards, auth Authenticator) (string, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
	if err != nil {
		return "", c.String(http.StatusUnauthorized, err.Error())
	}
	if _, err := boards.Get(c.Request().Context(), c.Param("boardId"), userID); err != nil {
		return "", writeDomainError(c, err)
	}
	return userID, nil
}

func createTask(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		var draft domain.TaskDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		t, err := tasks.Create(c.Request().Context(), c.Param("boardId"), c.Param("cardId"), userID, draft)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusCreated, t)
	}
}

func listTasks(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		filter := domain.TaskFilter{
			Priority: domain.Priority(c.QueryParam("priority")),
			Member:   c.QueryParam("member"),
		}
		if raw := c.QueryParam("dueComplete"); raw != "" {
			done, parseErr := strconv.ParseBool(raw)
			if parseErr != nil {
				return c.String(http.StatusBadRequest, "invalid dueComplete")
			}
			filter.DueComplete = &done
		}
		list, err := tasks.List(c.Request().Context(), c.Param("boardId"), c.Param("cardId"), filter)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getTask(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		t, err := tasks.Get(c.Request().Context(), c.Param("boardId"), c.Param("taskId"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func updateTask(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		t, err := tasks.Update(c.Request().Context(), c.Param("boardId"), c.Param("taskId"), patch)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func deleteTask(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		if err := tasks.Delete(c.Request().Context(), c.Param("boardId"), c.Param("cardId"), c.Param("taskId")); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func reorderTasks(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		var req reorderTasksRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := tasks.Reorder(c.Request().Context(), c.Param("boardId"), c.Param("cardId"), req.TaskOrders); err != nil {
			return writeDomainError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func moveTask(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		var req moveTaskRequest
		if err := decodeBody(c, &req); err != nil || req.SourceCardID == "" || req.DestCardID == "" || req.NewOrder < 0 {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		t, err := tasks.Move(c.Request().Context(), c.Param("boardId"), c.Param("taskId"), req.SourceCardID, req.DestCardID, req.NewOrder)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func assignMember(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		var req inviteRequest
		if err := decodeBody(c, &req); err != nil || req.MemberID == "" {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		t, err := tasks.Assign(c.Request().Context(), c.Param("boardId"), c.Param("taskId"), req.MemberID, userID)
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func unassignMember(boards Boards, tasks Tasks, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := requireBoardAccess(c, boards, auth)
		if err != nil || userID == "" {
			return err
		}
		t, err := tasks.Unassign(c.Request().Context(), c.Param("boardId"), c.Param("taskId"), c.Param("memberId"))
		if err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}
