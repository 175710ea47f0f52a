package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/sprint-rollover/internal/models"
	"github.com/untibullet/sprint-rollover/internal/repository"
)

func TestMoveSprintToBacklog_OverdueAndDoneTasks(t *testing.T) {
	f := newFixture(t)
	story := f.newStory(t, f.sprint.SprintID, "Checkout")
	overdue := f.newTask(t, story.StoryID, "Payment form", models.TaskStatusInProgress, datePtr(yesterday))
	f.newTask(t, story.StoryID, "Cart totals", models.TaskStatusDone, nil)

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	bs := created[0]
	require.NotNil(t, bs.OriginalStoryID)
	assert.Equal(t, story.StoryID, *bs.OriginalStoryID)
	assert.Equal(t, f.sprint.SprintID, *bs.OriginalSprintID)
	assert.Equal(t, f.sprint.SprintID, *bs.CreatedFromSprintID)
	assert.Equal(t, models.StoryStatusBacklog, bs.Status)
	assert.Equal(t, story.Title, bs.Title)
	assert.Equal(t, story.AcceptanceCriteria, bs.AcceptanceCriteria)
	assert.Equal(t, story.ActualHours, bs.ActualHours)
	assert.NotEqual(t, story.StoryID, bs.BacklogStoryID)

	tasks, err := f.backlog.GetBacklogTasksByStory(f.ctx, bs.BacklogStoryID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, overdue.TaskID, *tasks[0].OriginalTaskID)
	assert.True(t, tasks[0].IsOverdue)
	assert.Equal(t, models.TaskStatusInProgress, tasks[0].Status)
	assert.Equal(t, yesterday, *tasks[0].DueDate)

	// живые записи не меняются
	live, err := f.planning.GetStory(f.ctx, story.StoryID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusInProgress, live.Status)
	assert.Equal(t, f.sprint.SprintID, *live.SprintID)
}

func TestMoveSprintToBacklog_FullyResolvedStoryIsDropped(t *testing.T) {
	f := newFixture(t)
	done := f.newStory(t, f.sprint.SprintID, "Done story")
	f.newTask(t, done.StoryID, "Shipped", models.TaskStatusDone, datePtr(yesterday))
	f.newTask(t, done.StoryID, "Dropped", models.TaskStatusCancelled, nil)
	f.newStory(t, f.sprint.SprintID, "Story without tasks")

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Empty(t, created)

	stored, err := f.backlog.GetBacklogStoriesByProject(f.ctx, f.project.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMoveSprintToBacklog_EmptySprint(t *testing.T) {
	f := newFixture(t)

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.NotNil(t, created)
	assert.Empty(t, created)
}

func TestMoveSprintToBacklog_UnknownSprint(t *testing.T) {
	f := newFixture(t)

	_, err := f.backlog.MoveSprintToBacklog(f.ctx, "SPNT999")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "SPNT999", nf.ID)
}

func TestMoveSprintToBacklog_OverdueFlag(t *testing.T) {
	cases := []struct {
		name     string
		status   models.TaskStatus
		due      *time.Time
		migrated bool
		overdue  bool
	}{
		{name: "in progress, due yesterday", status: models.TaskStatusInProgress, due: datePtr(yesterday), migrated: true, overdue: true},
		{name: "blocked, due today", status: models.TaskStatusBlocked, due: datePtr(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)), migrated: true},
		{name: "to do, due tomorrow", status: models.TaskStatusToDo, due: datePtr(tomorrow), migrated: true},
		{name: "qa review, no due date", status: models.TaskStatusQAReview, migrated: true},
		{name: "done, due yesterday", status: models.TaskStatusDone, due: datePtr(yesterday)},
		{name: "cancelled, due yesterday", status: models.TaskStatusCancelled, due: datePtr(yesterday)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			story := f.newStory(t, f.sprint.SprintID, "Story")
			f.newTask(t, story.StoryID, "Task", tc.status, tc.due)

			created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
			require.NoError(t, err)
			if !tc.migrated {
				assert.Empty(t, created)
				return
			}
			require.Len(t, created, 1)

			tasks, err := f.backlog.GetBacklogTasksByStory(f.ctx, created[0].BacklogStoryID)
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, tc.overdue, tasks[0].IsOverdue)
		})
	}
}

func TestMoveSprintToBacklog_OnlyIncompleteSubtasks(t *testing.T) {
	f := newFixture(t)
	story := f.newStory(t, f.sprint.SprintID, "Search")
	task := f.newTask(t, story.StoryID, "Indexer", models.TaskStatusInProgress, nil)
	open := f.newSubtask(t, task.TaskID, "Tokenizer", false)
	f.newSubtask(t, task.TaskID, "Schema", true)

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	tasks, err := f.backlog.GetBacklogTasksByStory(f.ctx, created[0].BacklogStoryID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	subtasks, err := f.backlog.GetBacklogSubtasksByTask(f.ctx, tasks[0].BacklogTaskID)
	require.NoError(t, err)
	require.Len(t, subtasks, 1)
	assert.Equal(t, open.SubtaskID, *subtasks[0].OriginalSubtaskID)
	assert.False(t, subtasks[0].IsCompleted)
	assert.Equal(t, "MINOR", subtasks[0].Severity)
}

func TestMoveSprintToBacklog_OnePerQualifyingStory(t *testing.T) {
	f := newFixture(t)
	first := f.newStory(t, f.sprint.SprintID, "First")
	f.newTask(t, first.StoryID, "a", models.TaskStatusToDo, nil)
	f.newTask(t, first.StoryID, "b", models.TaskStatusBlocked, nil)
	second := f.newStory(t, f.sprint.SprintID, "Second")
	f.newTask(t, second.StoryID, "c", models.TaskStatusInProgress, nil)

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	require.Len(t, created, 2)

	origins := map[string]int{}
	for _, bs := range created {
		origins[*bs.OriginalStoryID]++
	}
	assert.Equal(t, map[string]int{first.StoryID: 1, second.StoryID: 1}, origins)

	bySprint, err := f.backlog.GetBacklogStoriesBySprint(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Len(t, bySprint, 2)
}

func TestMoveSprintToBacklog_RepeatedCallDuplicatesByDefault(t *testing.T) {
	f := newFixture(t)
	story := f.newStory(t, f.sprint.SprintID, "Story")
	f.newTask(t, story.StoryID, "Task", models.TaskStatusToDo, nil)

	_, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	second, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Len(t, second, 1)

	stored, err := f.backlog.GetBacklogStoriesBySprint(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestMoveSprintToBacklog_SkipMigrated(t *testing.T) {
	f := newFixtureWithOptions(t, BacklogOptions{SkipMigrated: true})
	story := f.newStory(t, f.sprint.SprintID, "Story")
	f.newTask(t, story.StoryID, "Task", models.TaskStatusToDo, nil)

	first, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Empty(t, second)
}

// failingStore ломает сохранение задач бэклога после заданного числа вызовов
type failingStore struct {
	repository.Store
	failOn int
	calls  *int
}

func (s *failingStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(&failingStore{Store: tx, failOn: s.failOn, calls: s.calls})
	})
}

func (s *failingStore) CreateBacklogTask(ctx context.Context, bt *models.BacklogTask) error {
	*s.calls++
	if *s.calls >= s.failOn {
		return errors.New("disk full")
	}
	return s.Store.CreateBacklogTask(ctx, bt)
}

func TestMoveSprintToBacklog_IsAtomic(t *testing.T) {
	f := newFixture(t)
	first := f.newStory(t, f.sprint.SprintID, "First")
	f.newTask(t, first.StoryID, "a", models.TaskStatusToDo, nil)
	second := f.newStory(t, f.sprint.SprintID, "Second")
	f.newTask(t, second.StoryID, "b", models.TaskStatusToDo, nil)

	calls := 0
	store := &failingStore{Store: f.repo, failOn: 2, calls: &calls}
	backlog := NewBacklog(store, f.planning, f.backlog.ids, f.backlog.logger, BacklogOptions{})
	backlog.now = f.backlog.now

	_, err := backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	stored, err := f.backlog.GetBacklogStoriesBySprint(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestCloneStoryFromBacklog_ResetsStoryKeepsTasks(t *testing.T) {
	f := newFixture(t)
	story := f.newStory(t, f.sprint.SprintID, "Reports")
	task := f.newTask(t, story.StoryID, "Export CSV", models.TaskStatusBlocked, datePtr(yesterday))
	f.newSubtask(t, task.TaskID, "Escape quotes", false)

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	require.Len(t, created, 1)
	bs := created[0]

	next := f.newSprint(t, "Sprint 2")
	clone, err := f.backlog.CloneStoryFromBacklog(f.ctx, bs.BacklogStoryID, next.SprintID)
	require.NoError(t, err)

	assert.NotEqual(t, story.StoryID, clone.StoryID)
	assert.NotEqual(t, bs.BacklogStoryID, clone.StoryID)
	assert.Equal(t, next.SprintID, *clone.SprintID)
	assert.Equal(t, models.StoryStatusTodo, clone.Status)
	assert.Zero(t, clone.ActualHours)
	require.NotNil(t, clone.ParentID)
	assert.Equal(t, story.StoryID, *clone.ParentID)
	assert.Equal(t, models.RolloverLineage(story.StoryID), *clone.Lineage)

	assert.Equal(t, story.Title, clone.Title)
	assert.Equal(t, story.Description, clone.Description)
	assert.Equal(t, story.AcceptanceCriteria, clone.AcceptanceCriteria)
	assert.Equal(t, story.Priority, clone.Priority)
	assert.Equal(t, story.StoryPoints, clone.StoryPoints)
	assert.Equal(t, story.AssigneeID, clone.AssigneeID)
	assert.Equal(t, story.ReporterID, clone.ReporterID)
	assert.Equal(t, story.EpicID, clone.EpicID)
	assert.Equal(t, story.ReleaseID, clone.ReleaseID)
	assert.Equal(t, story.Labels, clone.Labels)
	assert.Equal(t, story.OrderIndex, clone.OrderIndex)
	assert.Equal(t, story.EstimatedHours, clone.EstimatedHours)

	stored, err := f.planning.GetStory(f.ctx, clone.StoryID)
	require.NoError(t, err)
	assert.Equal(t, *clone.Lineage, *stored.Lineage)

	tasks, err := f.planning.ListTasksByStory(f.ctx, clone.StoryID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.NotEqual(t, task.TaskID, tasks[0].TaskID)
	assert.Equal(t, models.TaskStatusBlocked, tasks[0].Status)
	assert.Equal(t, task.AssigneeID, tasks[0].AssigneeID)
	assert.Equal(t, task.ActualHours, tasks[0].ActualHours)
	assert.Equal(t, yesterday, *tasks[0].DueDate)
	assert.True(t, tasks[0].IsPulledFromBacklog)
	assert.Equal(t, 1, tasks[0].TaskNumber)

	subtasks, err := f.planning.ListSubtasksByTask(f.ctx, tasks[0].TaskID)
	require.NoError(t, err)
	require.Len(t, subtasks, 1)
	assert.Equal(t, "Escape quotes", subtasks[0].Title)
	assert.False(t, subtasks[0].IsCompleted)

	// запись бэклога не тронута
	again, err := f.backlog.GetBacklogStoryByID(f.ctx, bs.BacklogStoryID)
	require.NoError(t, err)
	assert.Equal(t, models.StoryStatusBacklog, again.Status)
	assert.Equal(t, bs.ActualHours, again.ActualHours)
}

func TestCloneStoryFromBacklog_PreservesSubtaskCompletion(t *testing.T) {
	f := newFixture(t)
	bs := &models.BacklogStory{
		BacklogStoryID: "BSTRMANUAL",
		ProjectID:      f.project.ProjectID,
		Title:          "Imported",
		Status:         models.StoryStatusBacklog,
		ActualHours:    7,
		CreatedAt:      refNow,
	}
	require.NoError(t, f.repo.CreateBacklogStory(f.ctx, bs))
	bt := &models.BacklogTask{
		BacklogTaskID:  "BTSKMANUAL",
		BacklogStoryID: bs.BacklogStoryID,
		Title:          "Review",
		Status:         models.TaskStatusQAReview,
		CreatedAt:      refNow,
	}
	require.NoError(t, f.repo.CreateBacklogTask(f.ctx, bt))
	require.NoError(t, f.repo.CreateBacklogSubtask(f.ctx, &models.BacklogSubtask{
		BacklogSubtaskID: "BSUBMANUAL",
		BacklogTaskID:    bt.BacklogTaskID,
		Title:            "Done already",
		IsCompleted:      true,
		OrderIndex:       4,
		CreatedAt:        refNow,
	}))

	clone, err := f.backlog.CloneStoryFromBacklog(f.ctx, bs.BacklogStoryID, f.sprint.SprintID)
	require.NoError(t, err)
	assert.Zero(t, clone.ActualHours)

	tasks, err := f.planning.ListTasksByStory(f.ctx, clone.StoryID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskStatusQAReview, tasks[0].Status)

	subtasks, err := f.planning.ListSubtasksByTask(f.ctx, tasks[0].TaskID)
	require.NoError(t, err)
	require.Len(t, subtasks, 1)
	assert.True(t, subtasks[0].IsCompleted)
	assert.Equal(t, 4, subtasks[0].OrderIndex)
}

func TestCloneStoryFromBacklog_SelfOriginParent(t *testing.T) {
	f := newFixture(t)
	bs := &models.BacklogStory{
		BacklogStoryID: "BSTRORPHAN",
		ProjectID:      f.project.ProjectID,
		Title:          "No origin",
		Status:         models.StoryStatusBacklog,
		CreatedAt:      refNow,
	}
	require.NoError(t, f.repo.CreateBacklogStory(f.ctx, bs))

	clone, err := f.backlog.CloneStoryFromBacklog(f.ctx, bs.BacklogStoryID, "SPNT002")
	require.NoError(t, err)
	require.NotNil(t, clone.ParentID)
	assert.Equal(t, bs.BacklogStoryID, *clone.ParentID)
	assert.Equal(t, models.LineageSelfOrigin, clone.Lineage.Kind)
	assert.Equal(t, "SPNT002", *clone.SprintID)
}

func TestCloneStoryFromBacklog_RepeatableIntoTwoSprints(t *testing.T) {
	f := newFixture(t)
	story := f.newStory(t, f.sprint.SprintID, "Notifications")
	f.newTask(t, story.StoryID, "Email", models.TaskStatusToDo, nil)

	created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	require.Len(t, created, 1)

	t1 := f.newSprint(t, "Sprint 2")
	t2 := f.newSprint(t, "Sprint 3")
	first, err := f.backlog.CloneStoryFromBacklog(f.ctx, created[0].BacklogStoryID, t1.SprintID)
	require.NoError(t, err)
	second, err := f.backlog.CloneStoryFromBacklog(f.ctx, created[0].BacklogStoryID, t2.SprintID)
	require.NoError(t, err)

	assert.NotEqual(t, first.StoryID, second.StoryID)
	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, *first.ParentID, *second.ParentID)
	assert.Equal(t, story.StoryID, *first.ParentID)
}

func TestCloneStoryFromBacklog_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.backlog.CloneStoryFromBacklog(f.ctx, "BSTRMISSING", f.sprint.SprintID)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Contains(t, err.Error(), "BSTRMISSING")
}

func TestCloneStoriesFromBacklog_PartialFailure(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		f := newFixtureWithOptions(t, BacklogOptions{CloneConcurrency: concurrency})
		first := f.newStory(t, f.sprint.SprintID, "First")
		f.newTask(t, first.StoryID, "a", models.TaskStatusToDo, nil)
		second := f.newStory(t, f.sprint.SprintID, "Second")
		f.newTask(t, second.StoryID, "b", models.TaskStatusToDo, nil)

		created, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
		require.NoError(t, err)
		require.Len(t, created, 2)

		target := f.newSprint(t, "Sprint 3")
		ids := []string{created[0].BacklogStoryID, "BAD_ID", created[1].BacklogStoryID}
		results := f.backlog.CloneStoriesFromBacklog(f.ctx, ids, target.SprintID)

		require.Len(t, results, 3)
		stories := results.Stories()
		require.Len(t, stories, 2)
		assert.Equal(t, created[0].Title, stories[0].Title)
		assert.Equal(t, created[1].Title, stories[1].Title)

		failures := results.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, "BAD_ID", failures[0].BacklogStoryID)
		assert.ErrorIs(t, failures[0].Err, repository.ErrNotFound)

		inSprint, err := f.planning.ListStoriesBySprint(f.ctx, target.SprintID)
		require.NoError(t, err)
		assert.Len(t, inSprint, 2)
	}
}

func TestGetBacklogStoryByID_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.backlog.GetBacklogStoryByID(f.ctx, "BSTRNOPE")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetStoryLineage_CountsRollovers(t *testing.T) {
	f := newFixture(t)
	story := f.newStory(t, f.sprint.SprintID, "Long running")
	f.newTask(t, story.StoryID, "Never done", models.TaskStatusInProgress, nil)

	sprint2 := f.newSprint(t, "Sprint 2")
	sprint3 := f.newSprint(t, "Sprint 3")

	moved, err := f.backlog.MoveSprintToBacklog(f.ctx, f.sprint.SprintID)
	require.NoError(t, err)
	second, err := f.backlog.CloneStoryFromBacklog(f.ctx, moved[0].BacklogStoryID, sprint2.SprintID)
	require.NoError(t, err)

	moved, err = f.backlog.MoveSprintToBacklog(f.ctx, sprint2.SprintID)
	require.NoError(t, err)
	require.Len(t, moved, 1)
	third, err := f.backlog.CloneStoryFromBacklog(f.ctx, moved[0].BacklogStoryID, sprint3.SprintID)
	require.NoError(t, err)

	lineage, err := f.backlog.GetStoryLineage(f.ctx, third.StoryID)
	require.NoError(t, err)
	assert.Equal(t, []string{third.StoryID, second.StoryID, story.StoryID}, lineage.Chain)
	assert.Equal(t, 2, lineage.RolloverCount)
	assert.Empty(t, lineage.RootBacklogStoryID)
}

func TestGetStoryLineage_SelfOriginRoot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.CreateBacklogStory(f.ctx, &models.BacklogStory{
		BacklogStoryID: "BSTRROOT",
		ProjectID:      f.project.ProjectID,
		Title:          "Seeded",
		Status:         models.StoryStatusBacklog,
		CreatedAt:      refNow,
	}))
	clone, err := f.backlog.CloneStoryFromBacklog(f.ctx, "BSTRROOT", f.sprint.SprintID)
	require.NoError(t, err)

	lineage, err := f.backlog.GetStoryLineage(f.ctx, clone.StoryID)
	require.NoError(t, err)
	assert.Equal(t, []string{clone.StoryID, "BSTRROOT"}, lineage.Chain)
	assert.Equal(t, 1, lineage.RolloverCount)
	assert.Equal(t, "BSTRROOT", lineage.RootBacklogStoryID)
}
