package repository

import (
	"context"
	"fmt"

	"github.com/untibullet/sprint-rollover/internal/models"
)

// CreateProject сохраняет новый проект
func (r *Repository) CreateProject(ctx context.Context, p *models.Project) error {
	query := `
		INSERT INTO projects (id, project_key, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, p.ProjectID, p.Key, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetProject получает проект по ID
func (r *Repository) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	query := `SELECT id, project_key, name, description, created_at FROM projects WHERE id = $1`

	var p models.Project
	err := r.db.QueryRow(ctx, query, projectID).Scan(&p.ProjectID, &p.Key, &p.Name, &p.Description, &p.CreatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// CreateSprint сохраняет новый спринт
func (r *Repository) CreateSprint(ctx context.Context, s *models.Sprint) error {
	query := `
		INSERT INTO sprints (id, project_id, name, goal, status, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		s.SprintID, s.ProjectID, s.Name, s.Goal, s.Status,
		dateArg(s.StartDate), dateArg(s.EndDate), s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create sprint: %w", err)
	}
	return nil
}

// GetSprint получает спринт по ID
func (r *Repository) GetSprint(ctx context.Context, sprintID string) (*models.Sprint, error) {
	query := `
		SELECT id, project_id, name, goal, status, start_date, end_date, created_at
		FROM sprints
		WHERE id = $1
	`

	var s models.Sprint
	err := r.db.QueryRow(ctx, query, sprintID).Scan(
		&s.SprintID, &s.ProjectID, &s.Name, &s.Goal, &s.Status, &s.StartDate, &s.EndDate, &s.CreatedAt,
	)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sprint: %w", err)
	}

	s.StartDate = normalizeDate(s.StartDate)
	s.EndDate = normalizeDate(s.EndDate)
	return &s, nil
}

// UpdateSprintStatus меняет статус спринта
func (r *Repository) UpdateSprintStatus(ctx context.Context, sprintID string, status models.SprintStatus) error {
	affected, err := r.db.Exec(ctx, `UPDATE sprints SET status = $1 WHERE id = $2`, status, sprintID)
	if err != nil {
		return fmt.Errorf("failed to update sprint status: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
