package repository

import (
	"context"
	"fmt"

	"github.com/untibullet/sprint-rollover/internal/models"
)

const storyColumns = `id, project_id, sprint_id, parent_id, lineage_kind, title, description, acceptance_criteria,
	status, priority, story_points, assignee_id, reporter_id, epic_id, release_id, labels,
	order_index, estimated_hours, actual_hours, created_at, updated_at`

const taskColumns = `id, story_id, title, description, status, priority, assignee_id, reporter_id,
	estimated_hours, actual_hours, order_index, task_number, due_date, labels, is_pulled_from_backlog, created_at`

const subtaskColumns = `id, task_id, title, description, is_completed, assignee_id, estimated_hours, actual_hours,
	order_index, due_date, bug_type, severity, category, labels, created_at`

func scanStory(row rowScanner) (*models.Story, error) {
	var s models.Story
	var lineageKind *string
	var criteria, labels string

	err := row.Scan(
		&s.StoryID, &s.ProjectID, &s.SprintID, &s.ParentID, &lineageKind, &s.Title, &s.Description, &criteria,
		&s.Status, &s.Priority, &s.StoryPoints, &s.AssigneeID, &s.ReporterID, &s.EpicID, &s.ReleaseID, &labels,
		&s.OrderIndex, &s.EstimatedHours, &s.ActualHours, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if s.AcceptanceCriteria, err = decodeStrings(criteria); err != nil {
		return nil, err
	}
	if s.Labels, err = decodeStrings(labels); err != nil {
		return nil, err
	}
	if lineageKind != nil && s.ParentID != nil {
		s.Lineage = &models.Lineage{Kind: models.LineageKind(*lineageKind), OriginID: *s.ParentID}
	}
	return &s, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var labels string

	err := row.Scan(
		&t.TaskID, &t.StoryID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssigneeID, &t.ReporterID,
		&t.EstimatedHours, &t.ActualHours, &t.OrderIndex, &t.TaskNumber, &t.DueDate, &labels,
		&t.IsPulledFromBacklog, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.Labels, err = decodeStrings(labels); err != nil {
		return nil, err
	}
	t.DueDate = normalizeDate(t.DueDate)
	return &t, nil
}

func scanSubtask(row rowScanner) (*models.Subtask, error) {
	var st models.Subtask
	var labels string

	err := row.Scan(
		&st.SubtaskID, &st.TaskID, &st.Title, &st.Description, &st.IsCompleted, &st.AssigneeID,
		&st.EstimatedHours, &st.ActualHours, &st.OrderIndex, &st.DueDate, &st.BugType, &st.Severity,
		&st.Category, &labels, &st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if st.Labels, err = decodeStrings(labels); err != nil {
		return nil, err
	}
	st.DueDate = normalizeDate(st.DueDate)
	return &st, nil
}

// CreateStory сохраняет новую историю
func (r *Repository) CreateStory(ctx context.Context, s *models.Story) error {
	criteria, err := encodeStrings(s.AcceptanceCriteria)
	if err != nil {
		return err
	}
	labels, err := encodeStrings(s.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO stories (` + storyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err = r.db.Exec(ctx, query,
		s.StoryID, s.ProjectID, s.SprintID, s.ParentID, lineageKindArg(s.Lineage), s.Title, s.Description, criteria,
		s.Status, s.Priority, s.StoryPoints, s.AssigneeID, s.ReporterID, s.EpicID, s.ReleaseID, labels,
		s.OrderIndex, s.EstimatedHours, s.ActualHours, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetStory получает историю по ID
func (r *Repository) GetStory(ctx context.Context, storyID string) (*models.Story, error) {
	row := r.db.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, storyID)
	s, err := scanStory(row)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return s, nil
}

// ListStoriesBySprint получает все истории спринта
func (r *Repository) ListStoriesBySprint(ctx context.Context, sprintID string) ([]models.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE sprint_id = $1 ORDER BY order_index, created_at, id`
	rows, err := r.db.Query(ctx, query, sprintID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories by sprint: %w", err)
	}
	defer rows.Close()

	stories := []models.Story{}
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		stories = append(stories, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stories: %w", err)
	}
	return stories, nil
}

// CreateTask сохраняет новую задачу
func (r *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	labels, err := encodeStrings(t.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err = r.db.Exec(ctx, query,
		t.TaskID, t.StoryID, t.Title, t.Description, t.Status, t.Priority, t.AssigneeID, t.ReporterID,
		t.EstimatedHours, t.ActualHours, t.OrderIndex, t.TaskNumber, dateArg(t.DueDate), labels,
		t.IsPulledFromBacklog, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask получает задачу по ID
func (r *Repository) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, taskID)
	t, err := scanTask(row)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// ListTasksByStory получает задачи истории в порядке номеров
func (r *Repository) ListTasksByStory(ctx context.Context, storyID string) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE story_id = $1 ORDER BY task_number, id`
	rows, err := r.db.Query(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by story: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// NextTaskNumber возвращает следующий свободный номер задачи в истории
func (r *Repository) NextTaskNumber(ctx context.Context, storyID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(task_number), 0) + 1 FROM tasks WHERE story_id = $1`, storyID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to get next task number: %w", err)
	}
	return next, nil
}

// UpdateTaskStatus меняет статус задачи
func (r *Repository) UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	affected, err := r.db.Exec(ctx, `UPDATE tasks SET status = $1 WHERE id = $2`, status, taskID)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSubtask сохраняет новую подзадачу
func (r *Repository) CreateSubtask(ctx context.Context, st *models.Subtask) error {
	labels, err := encodeStrings(st.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO subtasks (` + subtaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.db.Exec(ctx, query,
		st.SubtaskID, st.TaskID, st.Title, st.Description, st.IsCompleted, st.AssigneeID,
		st.EstimatedHours, st.ActualHours, st.OrderIndex, dateArg(st.DueDate), st.BugType, st.Severity,
		st.Category, labels, st.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create subtask: %w", err)
	}
	return nil
}

// GetSubtask получает подзадачу по ID
func (r *Repository) GetSubtask(ctx context.Context, subtaskID string) (*models.Subtask, error) {
	row := r.db.QueryRow(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id = $1`, subtaskID)
	st, err := scanSubtask(row)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtask: %w", err)
	}
	return st, nil
}

// ListSubtasksByTask получает подзадачи задачи
func (r *Repository) ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE task_id = $1 ORDER BY order_index, id`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks by task: %w", err)
	}
	defer rows.Close()

	subtasks := []models.Subtask{}
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subtasks: %w", err)
	}
	return subtasks, nil
}

// NextSubtaskOrder возвращает следующий порядковый индекс подзадачи
func (r *Repository) NextSubtaskOrder(ctx context.Context, taskID string) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(order_index), 0) + 1 FROM subtasks WHERE task_id = $1`, taskID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to get next subtask order: %w", err)
	}
	return next, nil
}

// SetSubtaskCompleted отмечает подзадачу выполненной или снимает отметку
func (r *Repository) SetSubtaskCompleted(ctx context.Context, subtaskID string, completed bool) error {
	affected, err := r.db.Exec(ctx, `UPDATE subtasks SET is_completed = $1 WHERE id = $2`, completed, subtaskID)
	if err != nil {
		return fmt.Errorf("failed to update subtask: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
