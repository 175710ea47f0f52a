package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/untibullet/sprint-rollover/internal/models"
	"go.uber.org/zap"
)

type createSprintRequest struct {
	ProjectID string              `json:"project_id"`
	Name      string              `json:"name"`
	Goal      string              `json:"goal"`
	Status    models.SprintStatus `json:"status"`
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
}

type createTaskRequest struct {
	StoryID        string            `json:"story_id"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Status         models.TaskStatus `json:"status"`
	Priority       string            `json:"priority"`
	AssigneeID     string            `json:"assignee_id"`
	ReporterID     string            `json:"reporter_id"`
	EstimatedHours float64           `json:"estimated_hours"`
	ActualHours    float64           `json:"actual_hours"`
	OrderIndex     int               `json:"order_index"`
	DueDate        string            `json:"due_date"`
	Labels         []string          `json:"labels"`
}

type createSubtaskRequest struct {
	TaskID         string   `json:"task_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	IsCompleted    bool     `json:"is_completed"`
	AssigneeID     string   `json:"assignee_id"`
	EstimatedHours float64  `json:"estimated_hours"`
	ActualHours    float64  `json:"actual_hours"`
	OrderIndex     int      `json:"order_index"`
	DueDate        string   `json:"due_date"`
	BugType        string   `json:"bug_type"`
	Severity       string   `json:"severity"`
	Category       string   `json:"category"`
	Labels         []string `json:"labels"`
}

// CreateProject создает проект
func (h *Handler) CreateProject(c echo.Context) error {
	h.logger.Info("CreateProject: начало обработки запроса")

	var req models.Project
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CreateProject", err)
	}

	project, err := h.planning.CreateProject(c.Request().Context(), req)
	if err != nil {
		return h.respondError(c, "CreateProject", err, zap.String("key", req.Key))
	}

	h.logger.Info("CreateProject: проект создан", zap.String("project_id", project.ProjectID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"project": project})
}

func (h *Handler) GetProject(c echo.Context) error {
	projectID := c.Param("id")

	project, err := h.planning.GetProject(c.Request().Context(), projectID)
	if err != nil {
		return h.respondError(c, "GetProject", err, zap.String("project_id", projectID))
	}
	return c.JSON(http.StatusOK, project)
}

// CreateSprint создает спринт проекта
func (h *Handler) CreateSprint(c echo.Context) error {
	h.logger.Info("CreateSprint: начало обработки запроса")

	var req createSprintRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CreateSprint", err)
	}

	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeInvalidInput, err.Error()))
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeInvalidInput, err.Error()))
	}

	sprint, err := h.planning.CreateSprint(c.Request().Context(), models.Sprint{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Goal:      req.Goal,
		Status:    req.Status,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return h.respondError(c, "CreateSprint", err, zap.String("project_id", req.ProjectID))
	}

	h.logger.Info("CreateSprint: спринт создан",
		zap.String("sprint_id", sprint.SprintID),
		zap.String("project_id", sprint.ProjectID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"sprint": sprint})
}

func (h *Handler) GetSprint(c echo.Context) error {
	sprintID := c.Param("id")

	sprint, err := h.planning.GetSprint(c.Request().Context(), sprintID)
	if err != nil {
		return h.respondError(c, "GetSprint", err, zap.String("sprint_id", sprintID))
	}
	return c.JSON(http.StatusOK, sprint)
}

// UpdateSprintStatus меняет статус спринта
func (h *Handler) UpdateSprintStatus(c echo.Context) error {
	sprintID := c.Param("id")

	var req struct {
		Status models.SprintStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "UpdateSprintStatus", err)
	}

	h.logger.Info("UpdateSprintStatus: смена статуса спринта",
		zap.String("sprint_id", sprintID),
		zap.String("status", string(req.Status)))

	sprint, err := h.planning.UpdateSprintStatus(c.Request().Context(), sprintID, req.Status)
	if err != nil {
		return h.respondError(c, "UpdateSprintStatus", err, zap.String("sprint_id", sprintID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sprint": sprint})
}

// ListSprintStories возвращает истории спринта
func (h *Handler) ListSprintStories(c echo.Context) error {
	sprintID := c.Param("id")

	stories, err := h.planning.ListStoriesBySprint(c.Request().Context(), sprintID)
	if err != nil {
		return h.respondError(c, "ListSprintStories", err, zap.String("sprint_id", sprintID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sprint_id": sprintID,
		"stories":   stories,
	})
}

// CreateStory создает историю
func (h *Handler) CreateStory(c echo.Context) error {
	h.logger.Info("CreateStory: начало обработки запроса")

	var req models.Story
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CreateStory", err)
	}
	// происхождение выставляется только при клонировании из бэклога
	req.Lineage = nil
	req.ParentID = nil

	story, err := h.planning.CreateStory(c.Request().Context(), req)
	if err != nil {
		return h.respondError(c, "CreateStory", err, zap.String("project_id", req.ProjectID))
	}

	h.logger.Info("CreateStory: история создана", zap.String("story_id", story.StoryID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"story": story})
}

func (h *Handler) GetStory(c echo.Context) error {
	storyID := c.Param("id")

	story, err := h.planning.GetStory(c.Request().Context(), storyID)
	if err != nil {
		return h.respondError(c, "GetStory", err, zap.String("story_id", storyID))
	}
	return c.JSON(http.StatusOK, story)
}

// GetStoryLineage возвращает цепочку переносов истории
func (h *Handler) GetStoryLineage(c echo.Context) error {
	storyID := c.Param("id")
	h.logger.Info("GetStoryLineage: получение цепочки происхождения", zap.String("story_id", storyID))

	lineage, err := h.backlog.GetStoryLineage(c.Request().Context(), storyID)
	if err != nil {
		return h.respondError(c, "GetStoryLineage", err, zap.String("story_id", storyID))
	}
	return c.JSON(http.StatusOK, lineage)
}

func (h *Handler) ListStoryTasks(c echo.Context) error {
	storyID := c.Param("id")

	tasks, err := h.planning.ListTasksByStory(c.Request().Context(), storyID)
	if err != nil {
		return h.respondError(c, "ListStoryTasks", err, zap.String("story_id", storyID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"story_id": storyID,
		"tasks":    tasks,
	})
}

// CreateTask создает задачу истории
func (h *Handler) CreateTask(c echo.Context) error {
	h.logger.Info("CreateTask: начало обработки запроса")

	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CreateTask", err)
	}

	due, err := models.ParseDate(req.DueDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeInvalidInput, err.Error()))
	}

	task, err := h.planning.CreateTask(c.Request().Context(), models.Task{
		StoryID:        req.StoryID,
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		AssigneeID:     req.AssigneeID,
		ReporterID:     req.ReporterID,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		OrderIndex:     req.OrderIndex,
		DueDate:        due,
		Labels:         req.Labels,
	})
	if err != nil {
		return h.respondError(c, "CreateTask", err, zap.String("story_id", req.StoryID))
	}

	h.logger.Info("CreateTask: задача создана",
		zap.String("task_id", task.TaskID),
		zap.Int("task_number", task.TaskNumber))
	return c.JSON(http.StatusCreated, map[string]interface{}{"task": task})
}

// UpdateTaskStatus меняет статус задачи
func (h *Handler) UpdateTaskStatus(c echo.Context) error {
	taskID := c.Param("id")

	var req struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "UpdateTaskStatus", err)
	}

	h.logger.Info("UpdateTaskStatus: смена статуса задачи",
		zap.String("task_id", taskID),
		zap.String("status", string(req.Status)))

	task, err := h.planning.UpdateTaskStatus(c.Request().Context(), taskID, req.Status)
	if err != nil {
		return h.respondError(c, "UpdateTaskStatus", err, zap.String("task_id", taskID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"task": task})
}

func (h *Handler) ListTaskSubtasks(c echo.Context) error {
	taskID := c.Param("id")

	subtasks, err := h.planning.ListSubtasksByTask(c.Request().Context(), taskID)
	if err != nil {
		return h.respondError(c, "ListTaskSubtasks", err, zap.String("task_id", taskID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"task_id":  taskID,
		"subtasks": subtasks,
	})
}

// CreateSubtask создает подзадачу
func (h *Handler) CreateSubtask(c echo.Context) error {
	h.logger.Info("CreateSubtask: начало обработки запроса")

	var req createSubtaskRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CreateSubtask", err)
	}

	due, err := models.ParseDate(req.DueDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, newErrorResponse(ErrCodeInvalidInput, err.Error()))
	}

	subtask, err := h.planning.CreateSubtask(c.Request().Context(), models.Subtask{
		TaskID:         req.TaskID,
		Title:          req.Title,
		Description:    req.Description,
		IsCompleted:    req.IsCompleted,
		AssigneeID:     req.AssigneeID,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		OrderIndex:     req.OrderIndex,
		DueDate:        due,
		BugType:        req.BugType,
		Severity:       req.Severity,
		Category:       req.Category,
		Labels:         req.Labels,
	})
	if err != nil {
		return h.respondError(c, "CreateSubtask", err, zap.String("task_id", req.TaskID))
	}

	h.logger.Info("CreateSubtask: подзадача создана", zap.String("subtask_id", subtask.SubtaskID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"subtask": subtask})
}

// SetSubtaskCompleted отмечает подзадачу выполненной или снимает отметку
func (h *Handler) SetSubtaskCompleted(c echo.Context) error {
	subtaskID := c.Param("id")

	var req struct {
		IsCompleted bool `json:"is_completed"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "SetSubtaskCompleted", err)
	}

	subtask, err := h.planning.SetSubtaskCompleted(c.Request().Context(), subtaskID, req.IsCompleted)
	if err != nil {
		return h.respondError(c, "SetSubtaskCompleted", err, zap.String("subtask_id", subtaskID))
	}

	h.logger.Info("SetSubtaskCompleted: отметка обновлена",
		zap.String("subtask_id", subtaskID),
		zap.Bool("is_completed", subtask.IsCompleted))
	return c.JSON(http.StatusOK, map[string]interface{}{"subtask": subtask})
}
