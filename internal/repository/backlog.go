package repository

import (
	"context"
	"fmt"

	"github.com/untibullet/sprint-rollover/internal/models"
)

const backlogStoryColumns = `id, project_id, original_story_id, original_sprint_id, created_from_sprint_id,
	title, description, acceptance_criteria, status, priority, story_points, assignee_id, reporter_id,
	epic_id, release_id, labels, order_index, estimated_hours, actual_hours, created_at`

const backlogTaskColumns = `id, backlog_story_id, original_task_id, created_from_sprint_id, title, description,
	status, priority, assignee_id, reporter_id, estimated_hours, actual_hours, order_index, task_number,
	due_date, labels, is_overdue, created_at`

const backlogSubtaskColumns = `id, backlog_task_id, original_subtask_id, created_from_sprint_id, title, description,
	is_completed, assignee_id, estimated_hours, actual_hours, order_index, due_date, bug_type, severity,
	category, labels, created_at`

func scanBacklogStory(row rowScanner) (*models.BacklogStory, error) {
	var bs models.BacklogStory
	var criteria, labels string

	err := row.Scan(
		&bs.BacklogStoryID, &bs.ProjectID, &bs.OriginalStoryID, &bs.OriginalSprintID, &bs.CreatedFromSprintID,
		&bs.Title, &bs.Description, &criteria, &bs.Status, &bs.Priority, &bs.StoryPoints, &bs.AssigneeID,
		&bs.ReporterID, &bs.EpicID, &bs.ReleaseID, &labels, &bs.OrderIndex, &bs.EstimatedHours,
		&bs.ActualHours, &bs.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bs.AcceptanceCriteria, err = decodeStrings(criteria); err != nil {
		return nil, err
	}
	if bs.Labels, err = decodeStrings(labels); err != nil {
		return nil, err
	}
	return &bs, nil
}

func scanBacklogTask(row rowScanner) (*models.BacklogTask, error) {
	var bt models.BacklogTask
	var labels string

	err := row.Scan(
		&bt.BacklogTaskID, &bt.BacklogStoryID, &bt.OriginalTaskID, &bt.CreatedFromSprintID, &bt.Title,
		&bt.Description, &bt.Status, &bt.Priority, &bt.AssigneeID, &bt.ReporterID, &bt.EstimatedHours,
		&bt.ActualHours, &bt.OrderIndex, &bt.TaskNumber, &bt.DueDate, &labels, &bt.IsOverdue, &bt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bt.Labels, err = decodeStrings(labels); err != nil {
		return nil, err
	}
	bt.DueDate = normalizeDate(bt.DueDate)
	return &bt, nil
}

func scanBacklogSubtask(row rowScanner) (*models.BacklogSubtask, error) {
	var bst models.BacklogSubtask
	var labels string

	err := row.Scan(
		&bst.BacklogSubtaskID, &bst.BacklogTaskID, &bst.OriginalSubtaskID, &bst.CreatedFromSprintID,
		&bst.Title, &bst.Description, &bst.IsCompleted, &bst.AssigneeID, &bst.EstimatedHours,
		&bst.ActualHours, &bst.OrderIndex, &bst.DueDate, &bst.BugType, &bst.Severity, &bst.Category,
		&labels, &bst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if bst.Labels, err = decodeStrings(labels); err != nil {
		return nil, err
	}
	bst.DueDate = normalizeDate(bst.DueDate)
	return &bst, nil
}

// CreateBacklogStory сохраняет теневую копию истории
func (r *Repository) CreateBacklogStory(ctx context.Context, bs *models.BacklogStory) error {
	criteria, err := encodeStrings(bs.AcceptanceCriteria)
	if err != nil {
		return err
	}
	labels, err := encodeStrings(bs.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO backlog_stories (` + backlogStoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err = r.db.Exec(ctx, query,
		bs.BacklogStoryID, bs.ProjectID, bs.OriginalStoryID, bs.OriginalSprintID, bs.CreatedFromSprintID,
		bs.Title, bs.Description, criteria, bs.Status, bs.Priority, bs.StoryPoints, bs.AssigneeID,
		bs.ReporterID, bs.EpicID, bs.ReleaseID, labels, bs.OrderIndex, bs.EstimatedHours,
		bs.ActualHours, bs.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create backlog story: %w", err)
	}
	return nil
}

// GetBacklogStory получает историю бэклога по ID
func (r *Repository) GetBacklogStory(ctx context.Context, backlogStoryID string) (*models.BacklogStory, error) {
	row := r.db.QueryRow(ctx, `SELECT `+backlogStoryColumns+` FROM backlog_stories WHERE id = $1`, backlogStoryID)
	bs, err := scanBacklogStory(row)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backlog story: %w", err)
	}
	return bs, nil
}

// ListBacklogStoriesByProject получает все истории бэклога проекта
func (r *Repository) ListBacklogStoriesByProject(ctx context.Context, projectID string) ([]models.BacklogStory, error) {
	query := `
		SELECT ` + backlogStoryColumns + `
		FROM backlog_stories
		WHERE project_id = $1
		ORDER BY created_at, order_index, id
	`
	return r.listBacklogStories(ctx, query, projectID)
}

// ListBacklogStoriesBySprint получает истории, перенесенные в бэклог из спринта
func (r *Repository) ListBacklogStoriesBySprint(ctx context.Context, sprintID string) ([]models.BacklogStory, error) {
	query := `
		SELECT ` + backlogStoryColumns + `
		FROM backlog_stories
		WHERE created_from_sprint_id = $1
		ORDER BY created_at, order_index, id
	`
	return r.listBacklogStories(ctx, query, sprintID)
}

func (r *Repository) listBacklogStories(ctx context.Context, query string, arg string) ([]models.BacklogStory, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list backlog stories: %w", err)
	}
	defer rows.Close()

	stories := []models.BacklogStory{}
	for rows.Next() {
		bs, err := scanBacklogStory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backlog story: %w", err)
		}
		stories = append(stories, *bs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backlog stories: %w", err)
	}
	return stories, nil
}

// HasBacklogShadow проверяет, переносилась ли история в бэклог из указанного спринта
func (r *Repository) HasBacklogShadow(ctx context.Context, storyID, sprintID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM backlog_stories
			WHERE original_story_id = $1 AND created_from_sprint_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, storyID, sprintID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check backlog shadow: %w", err)
	}
	return exists, nil
}

// CreateBacklogTask сохраняет теневую копию задачи
func (r *Repository) CreateBacklogTask(ctx context.Context, bt *models.BacklogTask) error {
	labels, err := encodeStrings(bt.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO backlog_tasks (` + backlogTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = r.db.Exec(ctx, query,
		bt.BacklogTaskID, bt.BacklogStoryID, bt.OriginalTaskID, bt.CreatedFromSprintID, bt.Title,
		bt.Description, bt.Status, bt.Priority, bt.AssigneeID, bt.ReporterID, bt.EstimatedHours,
		bt.ActualHours, bt.OrderIndex, bt.TaskNumber, dateArg(bt.DueDate), labels, bt.IsOverdue, bt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create backlog task: %w", err)
	}
	return nil
}

// GetBacklogTask получает задачу бэклога по ID
func (r *Repository) GetBacklogTask(ctx context.Context, backlogTaskID string) (*models.BacklogTask, error) {
	row := r.db.QueryRow(ctx, `SELECT `+backlogTaskColumns+` FROM backlog_tasks WHERE id = $1`, backlogTaskID)
	bt, err := scanBacklogTask(row)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backlog task: %w", err)
	}
	return bt, nil
}

// ListBacklogTasksByStory получает задачи истории бэклога
func (r *Repository) ListBacklogTasksByStory(ctx context.Context, backlogStoryID string) ([]models.BacklogTask, error) {
	query := `
		SELECT ` + backlogTaskColumns + `
		FROM backlog_tasks
		WHERE backlog_story_id = $1
		ORDER BY task_number, id
	`
	rows, err := r.db.Query(ctx, query, backlogStoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backlog tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.BacklogTask{}
	for rows.Next() {
		bt, err := scanBacklogTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backlog task: %w", err)
		}
		tasks = append(tasks, *bt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backlog tasks: %w", err)
	}
	return tasks, nil
}

// CreateBacklogSubtask сохраняет теневую копию подзадачи
func (r *Repository) CreateBacklogSubtask(ctx context.Context, bst *models.BacklogSubtask) error {
	labels, err := encodeStrings(bst.Labels)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO backlog_subtasks (` + backlogSubtaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.Exec(ctx, query,
		bst.BacklogSubtaskID, bst.BacklogTaskID, bst.OriginalSubtaskID, bst.CreatedFromSprintID,
		bst.Title, bst.Description, bst.IsCompleted, bst.AssigneeID, bst.EstimatedHours,
		bst.ActualHours, bst.OrderIndex, dateArg(bst.DueDate), bst.BugType, bst.Severity, bst.Category,
		labels, bst.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create backlog subtask: %w", err)
	}
	return nil
}

// ListBacklogSubtasksByTask получает подзадачи задачи бэклога
func (r *Repository) ListBacklogSubtasksByTask(ctx context.Context, backlogTaskID string) ([]models.BacklogSubtask, error) {
	query := `
		SELECT ` + backlogSubtaskColumns + `
		FROM backlog_subtasks
		WHERE backlog_task_id = $1
		ORDER BY order_index, id
	`
	rows, err := r.db.Query(ctx, query, backlogTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list backlog subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := []models.BacklogSubtask{}
	for rows.Next() {
		bst, err := scanBacklogSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backlog subtask: %w", err)
		}
		subtasks = append(subtasks, *bst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backlog subtasks: %w", err)
	}
	return subtasks, nil
}
