package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/untibullet/sprint-rollover/internal/repository"
	"github.com/untibullet/sprint-rollover/internal/service"
	"go.uber.org/zap"
)

// Коды ошибок для API
const (
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeAlreadyExists  = "ALREADY_EXISTS"
	ErrCodePartialFailure = "PARTIAL_FAILURE"
	ErrCodeInternal       = "INTERNAL"
)

type Handler struct {
	planning *service.Planning
	backlog  *service.Backlog
	logger   *zap.Logger
}

// New создает новый экземпляр обработчика
func New(planning *service.Planning, backlog *service.Backlog, logger *zap.Logger) *Handler {
	return &Handler{
		planning: planning,
		backlog:  backlog,
		logger:   logger,
	}
}

// ErrorResponse представляет структуру ошибки API
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newErrorResponse создает стандартный ответ с ошибкой
func newErrorResponse(code, message string) ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	return resp
}

// respondError переводит ошибку сервиса в HTTP-ответ и пишет ее в лог с именем операции
func (h *Handler) respondError(c echo.Context, op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))

	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.logger.Warn(op+": сущность не найдена", fields...)
		return c.JSON(http.StatusNotFound, newErrorResponse(ErrCodeNotFound, err.Error()))
	case errors.Is(err, repository.ErrInvalidInput):
		h.logger.Warn(op+": некорректные данные", fields...)
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeInvalidInput, err.Error()))
	case errors.Is(err, repository.ErrAlreadyExists):
		h.logger.Warn(op+": сущность уже существует", fields...)
		return c.JSON(http.StatusConflict, newErrorResponse(ErrCodeAlreadyExists, err.Error()))
	}

	h.logger.Error(op+": внутренняя ошибка", fields...)
	return c.JSON(http.StatusInternalServerError, newErrorResponse(ErrCodeInternal, "internal error"))
}

// badRequest отвечает 400 на тело запроса, которое не удалось разобрать
func (h *Handler) badRequest(c echo.Context, op string, err error) error {
	h.logger.Error(op+": ошибка парсинга тела запроса", zap.Error(err))
	return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeInvalidInput, "invalid request body"))
}

// Health проверка доступности сервиса
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RegisterRoutes регистрирует все маршруты API
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	// Projects
	e.POST("/projects", h.CreateProject)
	e.GET("/projects/:id", h.GetProject)

	// Sprints
	e.POST("/sprints", h.CreateSprint)
	e.GET("/sprints/:id", h.GetSprint)
	e.PATCH("/sprints/:id/status", h.UpdateSprintStatus)
	e.GET("/sprints/:id/stories", h.ListSprintStories)

	// Stories
	e.POST("/stories", h.CreateStory)
	e.GET("/stories/:id", h.GetStory)
	e.GET("/stories/:id/lineage", h.GetStoryLineage)
	e.GET("/stories/:id/tasks", h.ListStoryTasks)

	// Tasks
	e.POST("/tasks", h.CreateTask)
	e.PATCH("/tasks/:id/status", h.UpdateTaskStatus)
	e.GET("/tasks/:id/subtasks", h.ListTaskSubtasks)

	// Subtasks
	e.POST("/subtasks", h.CreateSubtask)
	e.PATCH("/subtasks/:id/completed", h.SetSubtaskCompleted)

	// Backlog
	e.POST("/backlog/sprints/:id/rollover", h.MoveSprintToBacklog)
	e.GET("/backlog/sprints/:id/stories", h.GetBacklogStoriesBySprint)
	e.GET("/backlog/projects/:id/stories", h.GetBacklogStoriesByProject)
	e.POST("/backlog/stories/clone", h.CloneStoriesFromBacklog)
	e.GET("/backlog/stories/:id", h.GetBacklogStory)
	e.GET("/backlog/stories/:id/tasks", h.GetBacklogTasksByStory)
	e.POST("/backlog/stories/:id/clone", h.CloneStoryFromBacklog)
	e.GET("/backlog/tasks/:id/subtasks", h.GetBacklogSubtasksByTask)
}
