// Package handlers provides HTTP API handlers for the confidant admin server.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/confidant/internal/auth"
	"github.com/memohai/confidant/internal/memory"
)

// MemoryService is the memory subsystem as seen by the admin API.
type MemoryService interface {
	Write(ctx context.Context, userID, chatID, text string, role memory.Role) (memory.Turn, error)
	Relevant(ctx context.Context, chatID, query string, opts memory.RetrieveOptions) []memory.Message
	Recent(ctx context.Context, chatID string, limit int) []memory.Message
	RecentUser(ctx context.Context, chatID string, limit int) []memory.Message
	Clear(ctx context.Context, chatID string) memory.ClearResult
	Defaults() memory.RetrieveOptions
}

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 200
	maxSearchTopK      = 50
)

// MemoryHandler serves chat-scoped memory inspection and maintenance.
type MemoryHandler struct {
	service MemoryService
	logger  *slog.Logger
}

type memorySavePayload struct {
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Role   string `json:"role"`
}

type memorySaveResponse struct {
	TurnID    string  `json:"turn_id"`
	Timestamp float64 `json:"timestamp"`
}

type memorySearchPayload struct {
	Query    string   `json:"query"`
	TopK     int      `json:"top_k,omitempty"`
	MaxChars int      `json:"max_chars,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

// MemoryListResponse is the body of search and recent listings.
type MemoryListResponse struct {
	Messages []memory.Message `json:"messages"`
	Chars    int              `json:"chars"`
}

// NewMemoryHandler creates a MemoryHandler.
func NewMemoryHandler(log *slog.Logger, service MemoryService) *MemoryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryHandler{
		service: service,
		logger:  log.With(slog.String("handler", "memory")),
	}
}

// Register registers chat-level memory routes.
func (h *MemoryHandler) Register(e *echo.Echo) {
	group := e.Group("/chats/:chat_id/memory")
	group.POST("", h.Save)
	group.POST("/search", h.Search)
	group.GET("/recent", h.Recent)
	group.DELETE("", h.Clear)
}

func (h *MemoryHandler) checkService() error {
	if h.service == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory service not available")
	}
	return nil
}

func requireChatID(c echo.Context) (string, error) {
	chatID := strings.TrimSpace(c.Param("chat_id"))
	if chatID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "chat_id is required")
	}
	return chatID, nil
}

// Save godoc
// @Summary Save a turn
// @Description Embed and store one turn in the chat's memory
// @Tags memory
// @Param chat_id path string true "Chat ID"
// @Param payload body memorySavePayload true "Turn"
// @Success 201 {object} memorySaveResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /chats/{chat_id}/memory [post].
func (h *MemoryHandler) Save(c echo.Context) error {
	if err := h.checkService(); err != nil {
		return err
	}
	chatID, err := requireChatID(c)
	if err != nil {
		return err
	}
	var req memorySavePayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	role, ok := memory.ParseRole(req.Role)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user or assistant")
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = actor(c)
	}

	turn, err := h.service.Write(c.Request().Context(), userID, chatID, req.Text, role)
	switch {
	case errors.Is(err, memory.ErrInvalidTurn):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrEmbeddingUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case err != nil:
		h.logger.Error("save turn failed", slog.String("chat_id", chatID), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, memorySaveResponse{TurnID: turn.ID, Timestamp: turn.Timestamp})
}

// Search godoc
// @Summary Relevant history
// @Description Rank stored turns by similarity and recency and pack them into a character budget
// @Tags memory
// @Param chat_id path string true "Chat ID"
// @Param payload body memorySearchPayload true "Query"
// @Success 200 {object} MemoryListResponse
// @Failure 400 {object} ErrorResponse
// @Router /chats/{chat_id}/memory/search [post].
func (h *MemoryHandler) Search(c echo.Context) error {
	if err := h.checkService(); err != nil {
		return err
	}
	chatID, err := requireChatID(c)
	if err != nil {
		return err
	}
	var req memorySearchPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	opts := h.service.Defaults()
	if req.TopK > 0 {
		opts.TopK = min(req.TopK, maxSearchTopK)
	}
	if req.MaxChars > 0 {
		opts.MaxChars = req.MaxChars
	}
	if req.MinScore != nil {
		opts.MinScore = *req.MinScore
	}
	return c.JSON(http.StatusOK, listResponse(h.service.Relevant(c.Request().Context(), chatID, req.Query, opts)))
}

// Recent godoc
// @Summary Recent history
// @Description List the newest turns of the chat, optionally only user turns
// @Tags memory
// @Param chat_id path string true "Chat ID"
// @Param limit query int false "Maximum turns (default 10)"
// @Param role query string false "Only this role (user)"
// @Success 200 {object} MemoryListResponse
// @Failure 400 {object} ErrorResponse
// @Router /chats/{chat_id}/memory/recent [get].
func (h *MemoryHandler) Recent(c echo.Context) error {
	if err := h.checkService(); err != nil {
		return err
	}
	chatID, err := requireChatID(c)
	if err != nil {
		return err
	}
	limit := defaultRecentLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	limit = min(limit, maxRecentLimit)

	ctx := c.Request().Context()
	switch role := strings.ToLower(strings.TrimSpace(c.QueryParam("role"))); role {
	case "":
		return c.JSON(http.StatusOK, listResponse(h.service.Recent(ctx, chatID, limit)))
	case string(memory.RoleUser):
		return c.JSON(http.StatusOK, listResponse(h.service.RecentUser(ctx, chatID, limit)))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "role filter supports only user")
	}
}

// Clear godoc
// @Summary Clear memory
// @Description Delete every stored turn of the chat
// @Tags memory
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} memory.ClearResult
// @Failure 500 {object} ErrorResponse
// @Router /chats/{chat_id}/memory [delete].
func (h *MemoryHandler) Clear(c echo.Context) error {
	if err := h.checkService(); err != nil {
		return err
	}
	chatID, err := requireChatID(c)
	if err != nil {
		return err
	}
	result := h.service.Clear(c.Request().Context(), chatID)
	if !result.OK {
		return echo.NewHTTPError(http.StatusInternalServerError, "clear memory failed")
	}
	h.logger.Info("memory cleared via api", slog.String("chat_id", chatID), slog.String("actor", actor(c)), slog.Int("deleted", result.Deleted))
	return c.JSON(http.StatusOK, result)
}

func listResponse(msgs []memory.Message) MemoryListResponse {
	if msgs == nil {
		msgs = []memory.Message{}
	}
	return MemoryListResponse{Messages: msgs, Chars: memory.MessageChars(msgs)}
}

// actor is the token subject, or "" on unauthenticated routes.
func actor(c echo.Context) string {
	id, err := auth.UserIDFromContext(c)
	if err != nil {
		return ""
	}
	return id
}
