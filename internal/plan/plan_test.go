package plan

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/untibullet/sprint-rollover/internal/idgen"
	"github.com/untibullet/sprint-rollover/internal/models"
	"github.com/untibullet/sprint-rollover/internal/repository"
	"github.com/untibullet/sprint-rollover/internal/service"
	"go.uber.org/zap"
)

const samplePlan = `
project:
  key: MOB
  name: Mobile app
sprints:
  - name: Sprint 1
    goal: Login and onboarding
    status: ACTIVE
    start: 2026-10-01
    end: 2026-10-14
    stories:
      - title: Login
        acceptance_criteria:
          - email login works
          - errors are shown
        story_points: 5
        labels: [auth]
        tasks:
          - title: Login screen
            status: IN_PROGRESS
            due: 2026-10-10
            subtasks:
              - title: Layout
                completed: true
              - title: Error states
          - title: API client
            status: DONE
  - name: Sprint 2
`

func TestParse(t *testing.T) {
	p, err := Parse(strings.NewReader(samplePlan))
	require.NoError(t, err)

	assert.Equal(t, "MOB", p.Project.Key)
	require.Len(t, p.Sprints, 2)
	story := p.Sprints[0].Stories[0]
	assert.Equal(t, []string{"email login works", "errors are shown"}, story.AcceptanceCriteria)
	require.Len(t, story.Tasks, 2)
	assert.Equal(t, "2026-10-10", story.Tasks[0].Due)
	assert.True(t, story.Tasks[0].Subtasks[0].Completed)
}

func TestParseRejectsInvalidPlans(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "plan is empty"},
		{name: "unknown key", doc: "project: {key: A, name: B}\nsprint: []\n", want: "sprint"},
		{name: "no project", doc: "sprints: []\n", want: "key and name are required"},
		{
			name: "bad task status",
			doc:  "project: {key: A, name: B}\nsprints:\n  - name: S\n    stories:\n      - title: T\n        tasks:\n          - title: X\n            status: WAITING\n",
			want: `sprints[0].stories[0].tasks[0]: unknown status "WAITING"`,
		},
		{
			name: "bad date",
			doc:  "project: {key: A, name: B}\nsprints:\n  - name: S\n    start: 10/01/2026\n",
			want: "sprints[0].start",
		},
		{
			name: "missing titles",
			doc:  "project: {key: A, name: B}\nsprints:\n  - name: \"\"\n    stories:\n      - title: \"\"\n",
			want: "sprints[0].stories[0]: title is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, filepath.Join(t.TempDir(), "plan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := repository.NewSQLite(db)
	require.NoError(t, repo.Migrate(ctx))
	planning := service.NewPlanning(repo, idgen.New(repo), zap.NewNop())

	p, err := Parse(strings.NewReader(samplePlan))
	require.NoError(t, err)

	res, err := Apply(ctx, planning, p)
	require.NoError(t, err)
	assert.Equal(t, "PROJ001", res.ProjectID)
	assert.Equal(t, []string{"SPNT001", "SPNT002"}, res.SprintIDs)
	assert.Equal(t, 1, res.Stories)
	assert.Equal(t, 2, res.Tasks)
	assert.Equal(t, 2, res.Subtasks)

	sprint, err := planning.GetSprint(ctx, "SPNT001")
	require.NoError(t, err)
	assert.Equal(t, models.SprintStatusActive, sprint.Status)

	stories, err := planning.ListStoriesBySprint(ctx, "SPNT001")
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, models.StoryStatusTodo, stories[0].Status)

	tasks, err := planning.ListTasksByStory(ctx, stories[0].StoryID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, 1, tasks[0].TaskNumber)
	assert.Equal(t, 2, tasks[1].TaskNumber)

	subtasks, err := planning.ListSubtasksByTask(ctx, tasks[0].TaskID)
	require.NoError(t, err)
	require.Len(t, subtasks, 2)
	assert.True(t, subtasks[0].IsCompleted)
	assert.Equal(t, 2, subtasks[1].OrderIndex)

	// повторный импорт в тот же проект по ID
	again := &Plan{Project: Project{ID: res.ProjectID}, Sprints: []Sprint{{Name: "Sprint 3"}}}
	res, err = Apply(ctx, planning, again)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPNT003"}, res.SprintIDs)
}
