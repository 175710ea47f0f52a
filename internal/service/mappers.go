package service

import (
	"time"

	"github.com/untibullet/sprint-rollover/internal/models"
)

// shadowStory копирует историю в бэклог; статус всегда BACKLOG
func shadowStory(s *models.Story, sprintID string, now time.Time) *models.BacklogStory {
	return &models.BacklogStory{
		ProjectID:           s.ProjectID,
		OriginalStoryID:     ptr(s.StoryID),
		OriginalSprintID:    ptr(sprintID),
		CreatedFromSprintID: ptr(sprintID),
		Title:               s.Title,
		Description:         s.Description,
		AcceptanceCriteria:  nonNil(s.AcceptanceCriteria),
		Status:              models.StoryStatusBacklog,
		Priority:            s.Priority,
		StoryPoints:         s.StoryPoints,
		AssigneeID:          s.AssigneeID,
		ReporterID:          s.ReporterID,
		EpicID:              s.EpicID,
		ReleaseID:           s.ReleaseID,
		Labels:              nonNil(s.Labels),
		OrderIndex:          s.OrderIndex,
		EstimatedHours:      s.EstimatedHours,
		ActualHours:         s.ActualHours,
		CreatedAt:           now,
	}
}

func shadowTask(t *models.Task, backlogStoryID, sprintID string, today, now time.Time) *models.BacklogTask {
	return &models.BacklogTask{
		BacklogStoryID:      backlogStoryID,
		OriginalTaskID:      ptr(t.TaskID),
		CreatedFromSprintID: ptr(sprintID),
		Title:               t.Title,
		Description:         t.Description,
		Status:              t.Status,
		Priority:            t.Priority,
		AssigneeID:          t.AssigneeID,
		ReporterID:          t.ReporterID,
		EstimatedHours:      t.EstimatedHours,
		ActualHours:         t.ActualHours,
		OrderIndex:          t.OrderIndex,
		TaskNumber:          t.TaskNumber,
		DueDate:             dateOnly(t.DueDate),
		Labels:              nonNil(t.Labels),
		IsOverdue:           t.IsOverdue(today),
		CreatedAt:           now,
	}
}

// shadowSubtask копирует незавершенную подзадачу; отметка выполнения всегда снята
func shadowSubtask(st *models.Subtask, backlogTaskID, sprintID string, now time.Time) *models.BacklogSubtask {
	return &models.BacklogSubtask{
		BacklogTaskID:       backlogTaskID,
		OriginalSubtaskID:   ptr(st.SubtaskID),
		CreatedFromSprintID: ptr(sprintID),
		Title:               st.Title,
		Description:         st.Description,
		IsCompleted:         false,
		AssigneeID:          st.AssigneeID,
		EstimatedHours:      st.EstimatedHours,
		ActualHours:         st.ActualHours,
		OrderIndex:          st.OrderIndex,
		DueDate:             dateOnly(st.DueDate),
		BugType:             st.BugType,
		Severity:            st.Severity,
		Category:            st.Category,
		Labels:              nonNil(st.Labels),
		CreatedAt:           now,
	}
}

// storyFromBacklog готовит новую историю спринта: статус TODO, фактические часы обнулены,
// происхождение указывает на исходную историю или на саму запись бэклога
func storyFromBacklog(bs *models.BacklogStory, targetSprintID string) *models.Story {
	lineage := models.LineageOf(bs)
	s := &models.Story{
		ProjectID:          bs.ProjectID,
		Lineage:            &lineage,
		Title:              bs.Title,
		Description:        bs.Description,
		AcceptanceCriteria: nonNil(bs.AcceptanceCriteria),
		Status:             models.StoryStatusTodo,
		Priority:           bs.Priority,
		StoryPoints:        bs.StoryPoints,
		AssigneeID:         bs.AssigneeID,
		ReporterID:         bs.ReporterID,
		EpicID:             bs.EpicID,
		ReleaseID:          bs.ReleaseID,
		Labels:             nonNil(bs.Labels),
		OrderIndex:         bs.OrderIndex,
		EstimatedHours:     bs.EstimatedHours,
		ActualHours:        0,
	}
	if targetSprintID != "" {
		s.SprintID = ptr(targetSprintID)
	}
	return s
}

// taskFromBacklog копирует задачу бэклога без сброса статуса и оценок
func taskFromBacklog(bt *models.BacklogTask, storyID string) *models.Task {
	return &models.Task{
		StoryID:             storyID,
		Title:               bt.Title,
		Description:         bt.Description,
		Status:              bt.Status,
		Priority:            bt.Priority,
		AssigneeID:          bt.AssigneeID,
		ReporterID:          bt.ReporterID,
		EstimatedHours:      bt.EstimatedHours,
		ActualHours:         bt.ActualHours,
		OrderIndex:          bt.OrderIndex,
		DueDate:             dateOnly(bt.DueDate),
		Labels:              nonNil(bt.Labels),
		IsPulledFromBacklog: true,
	}
}

func subtaskFromBacklog(bst *models.BacklogSubtask, taskID string) *models.Subtask {
	return &models.Subtask{
		TaskID:         taskID,
		Title:          bst.Title,
		Description:    bst.Description,
		IsCompleted:    bst.IsCompleted,
		AssigneeID:     bst.AssigneeID,
		EstimatedHours: bst.EstimatedHours,
		ActualHours:    bst.ActualHours,
		OrderIndex:     bst.OrderIndex,
		DueDate:        dateOnly(bst.DueDate),
		BugType:        bst.BugType,
		Severity:       bst.Severity,
		Category:       bst.Category,
		Labels:         nonNil(bst.Labels),
	}
}

func ptr(s string) *string {
	return &s
}
