package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type cloneFailure struct {
	BacklogStoryID string `json:"backlog_story_id"`
	Error          string `json:"error"`
}

// MoveSprintToBacklog переносит незавершенную работу спринта в бэклог
func (h *Handler) MoveSprintToBacklog(c echo.Context) error {
	sprintID := c.Param("id")
	h.logger.Info("MoveSprintToBacklog: перенос спринта в бэклог", zap.String("sprint_id", sprintID))

	created, err := h.backlog.MoveSprintToBacklog(c.Request().Context(), sprintID)
	if err != nil {
		return h.respondError(c, "MoveSprintToBacklog", err, zap.String("sprint_id", sprintID))
	}

	h.logger.Info("MoveSprintToBacklog: спринт перенесен",
		zap.String("sprint_id", sprintID),
		zap.Int("backlog_stories_count", len(created)))
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"sprint_id":       sprintID,
		"backlog_stories": created,
	})
}

// CloneStoryFromBacklog возвращает историю из бэклога в спринт
func (h *Handler) CloneStoryFromBacklog(c echo.Context) error {
	backlogStoryID := c.Param("id")

	var req struct {
		TargetSprintID string `json:"target_sprint_id"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CloneStoryFromBacklog", err)
	}

	h.logger.Info("CloneStoryFromBacklog: клонирование истории",
		zap.String("backlog_story_id", backlogStoryID),
		zap.String("target_sprint_id", req.TargetSprintID))

	story, err := h.backlog.CloneStoryFromBacklog(c.Request().Context(), backlogStoryID, req.TargetSprintID)
	if err != nil {
		return h.respondError(c, "CloneStoryFromBacklog", err, zap.String("backlog_story_id", backlogStoryID))
	}

	h.logger.Info("CloneStoryFromBacklog: история склонирована", zap.String("story_id", story.StoryID))
	return c.JSON(http.StatusCreated, map[string]interface{}{"story": story})
}

// CloneStoriesFromBacklog клонирует несколько историй; ошибки отдельных историй не прерывают пакет
func (h *Handler) CloneStoriesFromBacklog(c echo.Context) error {
	h.logger.Info("CloneStoriesFromBacklog: начало обработки запроса")

	var req struct {
		BacklogStoryIDs []string `json:"backlog_story_ids"`
		TargetSprintID  string   `json:"target_sprint_id"`
	}
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "CloneStoriesFromBacklog", err)
	}

	results := h.backlog.CloneStoriesFromBacklog(c.Request().Context(), req.BacklogStoryIDs, req.TargetSprintID)

	failed := []cloneFailure{}
	for _, res := range results.Failures() {
		failed = append(failed, cloneFailure{BacklogStoryID: res.BacklogStoryID, Error: res.Err.Error()})
	}
	stories := results.Stories()

	h.logger.Info("CloneStoriesFromBacklog: пакет обработан",
		zap.String("target_sprint_id", req.TargetSprintID),
		zap.Int("cloned_count", len(stories)),
		zap.Int("failed_count", len(failed)))

	response := map[string]interface{}{
		"stories": stories,
		"failed":  failed,
	}
	if len(failed) == 0 {
		return c.JSON(http.StatusCreated, response)
	}

	errResp := newErrorResponse(ErrCodePartialFailure,
		fmt.Sprintf("%d of %d stories were not cloned", len(failed), len(req.BacklogStoryIDs)))
	response["error"] = errResp.Error
	return c.JSON(http.StatusMultiStatus, response)
}

func (h *Handler) GetBacklogStoriesByProject(c echo.Context) error {
	projectID := c.Param("id")

	stories, err := h.backlog.GetBacklogStoriesByProject(c.Request().Context(), projectID)
	if err != nil {
		return h.respondError(c, "GetBacklogStoriesByProject", err, zap.String("project_id", projectID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"project_id":      projectID,
		"backlog_stories": stories,
	})
}

func (h *Handler) GetBacklogStoriesBySprint(c echo.Context) error {
	sprintID := c.Param("id")

	stories, err := h.backlog.GetBacklogStoriesBySprint(c.Request().Context(), sprintID)
	if err != nil {
		return h.respondError(c, "GetBacklogStoriesBySprint", err, zap.String("sprint_id", sprintID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sprint_id":       sprintID,
		"backlog_stories": stories,
	})
}

func (h *Handler) GetBacklogStory(c echo.Context) error {
	backlogStoryID := c.Param("id")

	story, err := h.backlog.GetBacklogStoryByID(c.Request().Context(), backlogStoryID)
	if err != nil {
		return h.respondError(c, "GetBacklogStory", err, zap.String("backlog_story_id", backlogStoryID))
	}
	return c.JSON(http.StatusOK, story)
}

func (h *Handler) GetBacklogTasksByStory(c echo.Context) error {
	backlogStoryID := c.Param("id")

	tasks, err := h.backlog.GetBacklogTasksByStory(c.Request().Context(), backlogStoryID)
	if err != nil {
		return h.respondError(c, "GetBacklogTasksByStory", err, zap.String("backlog_story_id", backlogStoryID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"backlog_story_id": backlogStoryID,
		"backlog_tasks":    tasks,
	})
}

func (h *Handler) GetBacklogSubtasksByTask(c echo.Context) error {
	backlogTaskID := c.Param("id")

	subtasks, err := h.backlog.GetBacklogSubtasksByTask(c.Request().Context(), backlogTaskID)
	if err != nil {
		return h.respondError(c, "GetBacklogSubtasksByTask", err, zap.String("backlog_task_id", backlogTaskID))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"backlog_task_id":  backlogTaskID,
		"backlog_subtasks": subtasks,
	})
}
