package service

import (
	"context"
	"errors"
	"time"

	"github.com/untibullet/sprint-rollover/internal/idgen"
	"github.com/untibullet/sprint-rollover/internal/models"
	"github.com/untibullet/sprint-rollover/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BacklogOptions настройки переноса спринта в бэклог
type BacklogOptions struct {
	// CloneConcurrency сколько историй пакетного клонирования обрабатывается одновременно
	CloneConcurrency int
	// SkipMigrated пропускать истории, уже перенесенные в бэклог из того же спринта.
	// По умолчанию повторный перенос создает новые теневые копии.
	SkipMigrated bool
	// Location часовой пояс, в котором определяется текущая дата для просрочки
	Location *time.Location
}

// Backlog переносит незавершенную работу спринта в бэклог и возвращает ее в новые спринты
type Backlog struct {
	store    repository.Store
	planning *Planning
	ids      IDGenerator
	logger   *zap.Logger
	opts     BacklogOptions
	now      func() time.Time
}

func NewBacklog(store repository.Store, planning *Planning, ids IDGenerator, logger *zap.Logger, opts BacklogOptions) *Backlog {
	if opts.CloneConcurrency < 1 {
		opts.CloneConcurrency = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Backlog{
		store:    store,
		planning: planning,
		ids:      ids,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

func (b *Backlog) today() time.Time {
	return models.DateOf(b.now().In(b.opts.Location))
}

// MoveSprintToBacklog создает теневые копии историй спринта, у которых есть незавершенные
// или просроченные задачи. Живые записи не меняются. Все копии сохраняются в одной
// транзакции: при ошибке не остается ни одной.
func (b *Backlog) MoveSprintToBacklog(ctx context.Context, sprintID string) ([]models.BacklogStory, error) {
	today := b.today()
	created := []models.BacklogStory{}

	err := b.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.GetSprint(ctx, sprintID); err != nil {
			return notFound(err, "sprint", sprintID)
		}

		stories, err := tx.ListStoriesBySprint(ctx, sprintID)
		if err != nil {
			return err
		}

		for i := range stories {
			story := &stories[i]
			if b.opts.SkipMigrated {
				migrated, err := tx.HasBacklogShadow(ctx, story.StoryID, sprintID)
				if err != nil {
					return err
				}
				if migrated {
					b.logger.Debug("story already in backlog, skipping",
						zap.String("story_id", story.StoryID), zap.String("sprint_id", sprintID))
					continue
				}
			}

			bs, err := b.migrateStory(ctx, tx, story, sprintID, today)
			if err != nil {
				return err
			}
			if bs != nil {
				created = append(created, *bs)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("sprint moved to backlog",
		zap.String("sprint_id", sprintID),
		zap.Int("backlog_stories", len(created)),
		zap.Time("reference_date", today))
	return created, nil
}

// migrateStory переносит одну историю; nil без ошибки означает, что переносить нечего
func (b *Backlog) migrateStory(ctx context.Context, tx repository.Store, story *models.Story, sprintID string, today time.Time) (*models.BacklogStory, error) {
	tasks, err := tx.ListTasksByStory(ctx, story.StoryID)
	if err != nil {
		return nil, err
	}

	var pending []models.Task
	for _, t := range tasks {
		if t.NeedsRollover(today) {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	now := b.now().UTC()
	bs := shadowStory(story, sprintID, now)
	if bs.BacklogStoryID, err = b.ids.Next(ctx, idgen.KindBacklogStory); err != nil {
		return nil, err
	}
	if err := tx.CreateBacklogStory(ctx, bs); err != nil {
		return nil, err
	}

	for i := range pending {
		task := &pending[i]
		bt := shadowTask(task, bs.BacklogStoryID, sprintID, today, now)
		if bt.BacklogTaskID, err = b.ids.Next(ctx, idgen.KindBacklogTask); err != nil {
			return nil, err
		}
		if err := tx.CreateBacklogTask(ctx, bt); err != nil {
			return nil, err
		}

		subtasks, err := tx.ListSubtasksByTask(ctx, task.TaskID)
		if err != nil {
			return nil, err
		}
		for j := range subtasks {
			if subtasks[j].IsCompleted {
				continue
			}
			bst := shadowSubtask(&subtasks[j], bt.BacklogTaskID, sprintID, now)
			if bst.BacklogSubtaskID, err = b.ids.Next(ctx, idgen.KindBacklogSubtask); err != nil {
				return nil, err
			}
			if err := tx.CreateBacklogSubtask(ctx, bst); err != nil {
				return nil, err
			}
		}
	}

	return bs, nil
}

// CloneStoryFromBacklog создает в спринте targetSprintID новую историю с задачами и подзадачами
// из записи бэклога. Запись бэклога не меняется, поэтому клонировать ее можно повторно.
func (b *Backlog) CloneStoryFromBacklog(ctx context.Context, backlogStoryID, targetSprintID string) (*models.Story, error) {
	var story *models.Story

	err := b.store.WithTx(ctx, func(tx repository.Store) error {
		bs, err := tx.GetBacklogStory(ctx, backlogStoryID)
		if err != nil {
			return notFound(err, "backlog story", backlogStoryID)
		}

		s := storyFromBacklog(bs, targetSprintID)
		if err := b.planning.createStory(ctx, tx, s); err != nil {
			return err
		}

		backlogTasks, err := tx.ListBacklogTasksByStory(ctx, bs.BacklogStoryID)
		if err != nil {
			return err
		}
		for i := range backlogTasks {
			t := taskFromBacklog(&backlogTasks[i], s.StoryID)
			if err := b.planning.createTask(ctx, tx, t); err != nil {
				return err
			}

			backlogSubtasks, err := tx.ListBacklogSubtasksByTask(ctx, backlogTasks[i].BacklogTaskID)
			if err != nil {
				return err
			}
			for j := range backlogSubtasks {
				st := subtaskFromBacklog(&backlogSubtasks[j], t.TaskID)
				if err := b.planning.createSubtask(ctx, tx, st); err != nil {
					return err
				}
			}
		}

		story = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("story cloned from backlog",
		zap.String("backlog_story_id", backlogStoryID),
		zap.String("story_id", story.StoryID),
		zap.String("target_sprint_id", targetSprintID))
	return story, nil
}

// CloneResult итог клонирования одной истории пакета
type CloneResult struct {
	BacklogStoryID string
	Story          *models.Story
	Err            error
}

type CloneResults []CloneResult

// Stories возвращает успешно созданные истории в порядке запроса
func (r CloneResults) Stories() []models.Story {
	stories := []models.Story{}
	for _, res := range r {
		if res.Err == nil && res.Story != nil {
			stories = append(stories, *res.Story)
		}
	}
	return stories
}

// Failures возвращает неудачные элементы пакета
func (r CloneResults) Failures() []CloneResult {
	var failed []CloneResult
	for _, res := range r {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// CloneStoriesFromBacklog клонирует несколько историй. Ошибка одной истории не прерывает
// остальные: каждая клонируется в своей транзакции, результат содержит исход каждой.
func (b *Backlog) CloneStoriesFromBacklog(ctx context.Context, backlogStoryIDs []string, targetSprintID string) CloneResults {
	results := make(CloneResults, len(backlogStoryIDs))

	var g errgroup.Group
	g.SetLimit(b.opts.CloneConcurrency)
	for i, id := range backlogStoryIDs {
		g.Go(func() error {
			story, err := b.CloneStoryFromBacklog(ctx, id, targetSprintID)
			results[i] = CloneResult{BacklogStoryID: id, Story: story, Err: err}
			if err != nil {
				b.logger.Warn("failed to clone story from backlog",
					zap.String("backlog_story_id", id),
					zap.String("target_sprint_id", targetSprintID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// GetBacklogStoriesByProject возвращает все истории бэклога проекта
func (b *Backlog) GetBacklogStoriesByProject(ctx context.Context, projectID string) ([]models.BacklogStory, error) {
	return b.store.ListBacklogStoriesByProject(ctx, projectID)
}

// GetBacklogStoriesBySprint возвращает истории, перенесенные из спринта
func (b *Backlog) GetBacklogStoriesBySprint(ctx context.Context, sprintID string) ([]models.BacklogStory, error) {
	return b.store.ListBacklogStoriesBySprint(ctx, sprintID)
}

func (b *Backlog) GetBacklogStoryByID(ctx context.Context, backlogStoryID string) (*models.BacklogStory, error) {
	bs, err := b.store.GetBacklogStory(ctx, backlogStoryID)
	if err != nil {
		return nil, notFound(err, "backlog story", backlogStoryID)
	}
	return bs, nil
}

func (b *Backlog) GetBacklogTasksByStory(ctx context.Context, backlogStoryID string) ([]models.BacklogTask, error) {
	return b.store.ListBacklogTasksByStory(ctx, backlogStoryID)
}

func (b *Backlog) GetBacklogSubtasksByTask(ctx context.Context, backlogTaskID string) ([]models.BacklogSubtask, error) {
	return b.store.ListBacklogSubtasksByTask(ctx, backlogTaskID)
}

// GetStoryLineage проходит по parent_id от истории к самому раннему известному предку
func (b *Backlog) GetStoryLineage(ctx context.Context, storyID string) (*models.StoryLineage, error) {
	story, err := b.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, notFound(err, "story", storyID)
	}

	lineage := &models.StoryLineage{StoryID: storyID, Chain: []string{storyID}}
	seen := map[string]bool{storyID: true}

	for story.ParentID != nil && *story.ParentID != "" {
		parentID := *story.ParentID
		if seen[parentID] {
			break
		}
		seen[parentID] = true
		lineage.Chain = append(lineage.Chain, parentID)
		lineage.RolloverCount++

		if story.Lineage != nil && story.Lineage.Kind == models.LineageSelfOrigin {
			lineage.RootBacklogStoryID = parentID
			break
		}

		parent, err := b.store.GetStory(ctx, parentID)
		if errors.Is(err, repository.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		story = parent
	}

	return lineage, nil
}
