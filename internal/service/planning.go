package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/untibullet/sprint-rollover/internal/idgen"
	"github.com/untibullet/sprint-rollover/internal/models"
	"github.com/untibullet/sprint-rollover/internal/repository"
	"go.uber.org/zap"
)

// IDGenerator выдает идентификаторы сущностей
type IDGenerator interface {
	Next(ctx context.Context, kind idgen.Kind) (string, error)
}

// Planning обычные операции планирования спринта: создание и чтение живых сущностей.
// Клонирование из бэклога использует те же пути создания задач и подзадач.
type Planning struct {
	store  repository.Store
	ids    IDGenerator
	logger *zap.Logger
	now    func() time.Time
}

func NewPlanning(store repository.Store, ids IDGenerator, logger *zap.Logger) *Planning {
	return &Planning{
		store:  store,
		ids:    ids,
		logger: logger,
		now:    time.Now,
	}
}

// CreateProject создает проект
func (p *Planning) CreateProject(ctx context.Context, in models.Project) (*models.Project, error) {
	in.Key = strings.TrimSpace(in.Key)
	in.Name = strings.TrimSpace(in.Name)
	if in.Key == "" {
		return nil, invalidInput("project key is required")
	}
	if in.Name == "" {
		return nil, invalidInput("project name is required")
	}

	id, err := p.ids.Next(ctx, idgen.KindProject)
	if err != nil {
		return nil, err
	}
	in.ProjectID = id
	in.CreatedAt = p.now().UTC()

	if err := p.store.CreateProject(ctx, &in); err != nil {
		return nil, err
	}
	p.logger.Debug("project created", zap.String("project_id", in.ProjectID), zap.String("key", in.Key))
	return &in, nil
}

func (p *Planning) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := p.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "project", projectID)
	}
	return project, nil
}

// CreateSprint создает спринт в существующем проекте
func (p *Planning) CreateSprint(ctx context.Context, in models.Sprint) (*models.Sprint, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalidInput("sprint name is required")
	}
	if in.Status == "" {
		in.Status = models.SprintStatusPlanned
	}
	if !in.Status.IsValid() {
		return nil, invalidInput("unknown sprint status %q", in.Status)
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, invalidInput("sprint end date is before start date")
	}
	if _, err := p.store.GetProject(ctx, in.ProjectID); err != nil {
		return nil, notFound(err, "project", in.ProjectID)
	}

	id, err := p.ids.Next(ctx, idgen.KindSprint)
	if err != nil {
		return nil, err
	}
	in.SprintID = id
	in.CreatedAt = p.now().UTC()

	if err := p.store.CreateSprint(ctx, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (p *Planning) GetSprint(ctx context.Context, sprintID string) (*models.Sprint, error) {
	sprint, err := p.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, notFound(err, "sprint", sprintID)
	}
	return sprint, nil
}

// UpdateSprintStatus переводит спринт в новый статус
func (p *Planning) UpdateSprintStatus(ctx context.Context, sprintID string, status models.SprintStatus) (*models.Sprint, error) {
	if !status.IsValid() {
		return nil, invalidInput("unknown sprint status %q", status)
	}
	if err := p.store.UpdateSprintStatus(ctx, sprintID, status); err != nil {
		return nil, notFound(err, "sprint", sprintID)
	}
	return p.GetSprint(ctx, sprintID)
}

// CreateStory создает историю
func (p *Planning) CreateStory(ctx context.Context, in models.Story) (*models.Story, error) {
	if in.SprintID != nil {
		if _, err := p.store.GetSprint(ctx, *in.SprintID); err != nil {
			return nil, notFound(err, "sprint", *in.SprintID)
		}
	}
	if err := p.createStory(ctx, p.store, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

func (p *Planning) GetStory(ctx context.Context, storyID string) (*models.Story, error) {
	story, err := p.store.GetStory(ctx, storyID)
	if err != nil {
		return nil, notFound(err, "story", storyID)
	}
	return story, nil
}

func (p *Planning) ListStoriesBySprint(ctx context.Context, sprintID string) ([]models.Story, error) {
	return p.store.ListStoriesBySprint(ctx, sprintID)
}

// CreateTask создает задачу и присваивает ей следующий номер в истории
func (p *Planning) CreateTask(ctx context.Context, in models.Task) (*models.Task, error) {
	err := p.store.WithTx(ctx, func(tx repository.Store) error {
		return p.createTask(ctx, tx, &in)
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (p *Planning) ListTasksByStory(ctx context.Context, storyID string) ([]models.Task, error) {
	return p.store.ListTasksByStory(ctx, storyID)
}

// UpdateTaskStatus переводит задачу в новый статус
func (p *Planning) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) (*models.Task, error) {
	if !status.IsValid() {
		return nil, invalidInput("unknown task status %q", status)
	}
	if err := p.store.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return nil, notFound(err, "task", taskID)
	}
	task, err := p.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}
	return task, nil
}

// CreateSubtask создает подзадачу
func (p *Planning) CreateSubtask(ctx context.Context, in models.Subtask) (*models.Subtask, error) {
	err := p.store.WithTx(ctx, func(tx repository.Store) error {
		return p.createSubtask(ctx, tx, &in)
	})
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (p *Planning) ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error) {
	return p.store.ListSubtasksByTask(ctx, taskID)
}

// SetSubtaskCompleted отмечает подзадачу выполненной или снимает отметку
func (p *Planning) SetSubtaskCompleted(ctx context.Context, subtaskID string, completed bool) (*models.Subtask, error) {
	if err := p.store.SetSubtaskCompleted(ctx, subtaskID, completed); err != nil {
		return nil, notFound(err, "subtask", subtaskID)
	}
	subtask, err := p.store.GetSubtask(ctx, subtaskID)
	if err != nil {
		return nil, notFound(err, "subtask", subtaskID)
	}
	return subtask, nil
}

// createStory проверяет и сохраняет историю через переданное хранилище (возможно, транзакционное)
func (p *Planning) createStory(ctx context.Context, store repository.Store, s *models.Story) error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return invalidInput("story title is required")
	}
	if s.Status == "" {
		s.Status = models.StoryStatusTodo
	}
	if !s.Status.IsValid() {
		return invalidInput("unknown story status %q", s.Status)
	}
	if s.Lineage != nil {
		if !s.Lineage.Kind.IsValid() || s.Lineage.OriginID == "" {
			return invalidInput("invalid story lineage")
		}
		parentID := s.Lineage.OriginID
		s.ParentID = &parentID
	}
	if _, err := store.GetProject(ctx, s.ProjectID); err != nil {
		return notFound(err, "project", s.ProjectID)
	}

	id, err := p.ids.Next(ctx, idgen.KindStory)
	if err != nil {
		return err
	}
	now := p.now().UTC()
	s.StoryID = id
	s.CreatedAt = now
	s.UpdatedAt = now
	s.AcceptanceCriteria = nonNil(s.AcceptanceCriteria)
	s.Labels = nonNil(s.Labels)

	if err := store.CreateStory(ctx, s); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

// createTask проверяет задачу, присваивает ей ID и следующий номер в истории и сохраняет
func (p *Planning) createTask(ctx context.Context, store repository.Store, t *models.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return invalidInput("task title is required")
	}
	if t.Status == "" {
		t.Status = models.TaskStatusToDo
	}
	if !t.Status.IsValid() {
		return invalidInput("unknown task status %q", t.Status)
	}
	if _, err := store.GetStory(ctx, t.StoryID); err != nil {
		return notFound(err, "story", t.StoryID)
	}

	number, err := store.NextTaskNumber(ctx, t.StoryID)
	if err != nil {
		return err
	}
	id, err := p.ids.Next(ctx, idgen.KindTask)
	if err != nil {
		return err
	}
	t.TaskID = id
	t.TaskNumber = number
	t.DueDate = dateOnly(t.DueDate)
	t.Labels = nonNil(t.Labels)
	t.CreatedAt = p.now().UTC()

	if err := store.CreateTask(ctx, t); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// createSubtask проверяет подзадачу, при нулевом порядке ставит ее в конец списка и сохраняет
func (p *Planning) createSubtask(ctx context.Context, store repository.Store, st *models.Subtask) error {
	st.Title = strings.TrimSpace(st.Title)
	if st.Title == "" {
		return invalidInput("subtask title is required")
	}
	if _, err := store.GetTask(ctx, st.TaskID); err != nil {
		return notFound(err, "task", st.TaskID)
	}

	if st.OrderIndex == 0 {
		order, err := store.NextSubtaskOrder(ctx, st.TaskID)
		if err != nil {
			return err
		}
		st.OrderIndex = order
	}
	id, err := p.ids.Next(ctx, idgen.KindSubtask)
	if err != nil {
		return err
	}
	st.SubtaskID = id
	st.DueDate = dateOnly(st.DueDate)
	st.Labels = nonNil(st.Labels)
	st.CreatedAt = p.now().UTC()

	if err := store.CreateSubtask(ctx, st); err != nil {
		return fmt.Errorf("failed to save subtask: %w", err)
	}
	return nil
}

func nonNil(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func dateOnly(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOf(*t)
	return &d
}
