package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/untibullet/sprint-rollover/internal/models"
)

func dockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// newPostgresRepo поднимает PostgreSQL в контейнере; без Docker тест пропускается
func newPostgresRepo(t *testing.T) *Repository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	if !dockerAvailable() {
		t.Skip("Docker not available, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("rollover"),
		postgres.WithUsername("rollover"),
		postgres.WithPassword("rollover"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := New(pool)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx))
	return repo
}

func TestPostgresBackend(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	seed(t, repo)

	seq, err := repo.NextSequence(ctx, "SPNT")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	err = repo.CreateProject(ctx, &models.Project{ProjectID: "PROJ002", Key: "CORE", Name: "Dup", CreatedAt: created})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	sprintID := "SPNT001"
	lineage := models.SelfOriginLineage("BSTR9")
	require.NoError(t, repo.CreateStory(ctx, &models.Story{
		StoryID: "STRY1", ProjectID: "PROJ001", SprintID: &sprintID, ParentID: &lineage.OriginID,
		Lineage: &lineage, Title: "Story", Status: models.StoryStatusTodo,
		Labels: []string{"x"}, CreatedAt: created, UpdatedAt: created,
	}))
	due := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateTask(ctx, &models.Task{
		TaskID: "TASK1", StoryID: "STRY1", Title: "Task", Status: models.TaskStatusToDo,
		TaskNumber: 1, DueDate: &due, CreatedAt: created,
	}))

	story, err := repo.GetStory(ctx, "STRY1")
	require.NoError(t, err)
	assert.Equal(t, lineage, *story.Lineage)
	assert.Equal(t, []string{"x"}, story.Labels)

	tasks, err := repo.ListTasksByStory(ctx, "STRY1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due, *tasks[0].DueDate)

	number, err := repo.NextTaskNumber(ctx, "STRY1")
	require.NoError(t, err)
	assert.Equal(t, 2, number)

	err = repo.WithTx(ctx, func(tx Store) error {
		require.NoError(t, tx.CreateBacklogStory(ctx, &models.BacklogStory{
			BacklogStoryID: "BSTR1", ProjectID: "PROJ001", Title: "Lost",
			Status: models.StoryStatusBacklog, CreatedAt: created,
		}))
		return ErrInvalidInput
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = repo.GetBacklogStory(ctx, "BSTR1")
	assert.ErrorIs(t, err, ErrNotFound)
}
