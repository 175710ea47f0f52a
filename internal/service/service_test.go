package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/untibullet/sprint-rollover/internal/idgen"
	"github.com/untibullet/sprint-rollover/internal/models"
	"github.com/untibullet/sprint-rollover/internal/repository"
	"go.uber.org/zap"
)

var (
	refNow    = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	yesterday = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	tomorrow  = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	ctx      context.Context
	repo     *repository.Repository
	planning *Planning
	backlog  *Backlog
	project  *models.Project
	sprint   *models.Sprint
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOptions(t, BacklogOptions{})
}

func newFixtureWithOptions(t *testing.T, opts BacklogOptions) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewSQLite(db)
	require.NoError(t, repo.Migrate(ctx))

	ids := idgen.New(repo)
	logger := zap.NewNop()
	planning := NewPlanning(repo, ids, logger)
	planning.now = func() time.Time { return refNow }
	backlog := NewBacklog(repo, planning, ids, logger, opts)
	backlog.now = func() time.Time { return refNow }

	f := &fixture{ctx: ctx, repo: repo, planning: planning, backlog: backlog}

	f.project, err = planning.CreateProject(ctx, models.Project{Key: "CORE", Name: "Core platform"})
	require.NoError(t, err)
	f.sprint = f.newSprint(t, "Sprint 1")
	return f
}

func (f *fixture) newSprint(t *testing.T, name string) *models.Sprint {
	t.Helper()
	sprint, err := f.planning.CreateSprint(f.ctx, models.Sprint{ProjectID: f.project.ProjectID, Name: name})
	require.NoError(t, err)
	return sprint
}

func (f *fixture) newStory(t *testing.T, sprintID, title string) *models.Story {
	t.Helper()
	story, err := f.planning.CreateStory(f.ctx, models.Story{
		ProjectID:          f.project.ProjectID,
		SprintID:           &sprintID,
		Title:              title,
		Description:        "As a user I want " + title,
		AcceptanceCriteria: []string{"works", "is tested"},
		Status:             models.StoryStatusInProgress,
		Priority:           "HIGH",
		StoryPoints:        5,
		AssigneeID:         "USR1",
		ReporterID:         "USR2",
		EpicID:             "EPIC001",
		ReleaseID:          "RELS001",
		Labels:             []string{"backend"},
		OrderIndex:         3,
		EstimatedHours:     16,
		ActualHours:        9.5,
	})
	require.NoError(t, err)
	return story
}

func (f *fixture) newTask(t *testing.T, storyID, title string, status models.TaskStatus, due *time.Time) *models.Task {
	t.Helper()
	task, err := f.planning.CreateTask(f.ctx, models.Task{
		StoryID:        storyID,
		Title:          title,
		Status:         status,
		Priority:       "MEDIUM",
		AssigneeID:     "USR3",
		EstimatedHours: 4,
		ActualHours:    2.5,
		DueDate:        due,
		Labels:         []string{"api"},
	})
	require.NoError(t, err)
	return task
}

func (f *fixture) newSubtask(t *testing.T, taskID, title string, completed bool) *models.Subtask {
	t.Helper()
	subtask, err := f.planning.CreateSubtask(f.ctx, models.Subtask{
		TaskID:      taskID,
		Title:       title,
		IsCompleted: completed,
		Severity:    "MINOR",
	})
	require.NoError(t, err)
	return subtask
}

func datePtr(t time.Time) *time.Time {
	return &t
}
