// repository/repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/untibullet/sprint-rollover/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

// Store хранилище живых сущностей спринта и их теневых копий в бэклоге
type Store interface {
	// WithTx выполняет fn в одной транзакции: либо фиксируются все записи, либо ни одной.
	// Вложенный вызов присоединяется к внешней транзакции.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	NextSequence(ctx context.Context, kind string) (int64, error)

	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	CreateSprint(ctx context.Context, s *models.Sprint) error
	GetSprint(ctx context.Context, sprintID string) (*models.Sprint, error)
	UpdateSprintStatus(ctx context.Context, sprintID string, status models.SprintStatus) error

	CreateStory(ctx context.Context, s *models.Story) error
	GetStory(ctx context.Context, storyID string) (*models.Story, error)
	ListStoriesBySprint(ctx context.Context, sprintID string) ([]models.Story, error)

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ListTasksByStory(ctx context.Context, storyID string) ([]models.Task, error)
	NextTaskNumber(ctx context.Context, storyID string) (int, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status models.TaskStatus) error

	CreateSubtask(ctx context.Context, st *models.Subtask) error
	GetSubtask(ctx context.Context, subtaskID string) (*models.Subtask, error)
	ListSubtasksByTask(ctx context.Context, taskID string) ([]models.Subtask, error)
	NextSubtaskOrder(ctx context.Context, taskID string) (int, error)
	SetSubtaskCompleted(ctx context.Context, subtaskID string, completed bool) error

	CreateBacklogStory(ctx context.Context, bs *models.BacklogStory) error
	GetBacklogStory(ctx context.Context, backlogStoryID string) (*models.BacklogStory, error)
	ListBacklogStoriesByProject(ctx context.Context, projectID string) ([]models.BacklogStory, error)
	ListBacklogStoriesBySprint(ctx context.Context, sprintID string) ([]models.BacklogStory, error)
	HasBacklogShadow(ctx context.Context, storyID, sprintID string) (bool, error)

	CreateBacklogTask(ctx context.Context, bt *models.BacklogTask) error
	GetBacklogTask(ctx context.Context, backlogTaskID string) (*models.BacklogTask, error)
	ListBacklogTasksByStory(ctx context.Context, backlogStoryID string) ([]models.BacklogTask, error)

	CreateBacklogSubtask(ctx context.Context, bst *models.BacklogSubtask) error
	ListBacklogSubtasksByTask(ctx context.Context, backlogTaskID string) ([]models.BacklogSubtask, error)
}

var _ Store = (*Repository)(nil)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

type Repository struct {
	db      conn
	begin   beginFunc
	dialect dialect
	inTx    bool
}

// New создает репозиторий поверх пула PostgreSQL
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		db: pgxConn{q: pool},
		begin: func(ctx context.Context) (txConn, error) {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return nil, err
			}
			return pgxTx{pgxConn: pgxConn{q: tx}, tx: tx}, nil
		},
		dialect: dialectPostgres,
	}
}

// NewSQLite создает репозиторий поверх базы SQLite
func NewSQLite(db *sql.DB) *Repository {
	return &Repository{
		db: sqlConn{q: db},
		begin: func(ctx context.Context) (txConn, error) {
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return nil, err
			}
			return sqlTx{sqlConn: sqlConn{q: tx}, tx: tx}, nil
		},
		dialect: dialectSQLite,
	}
}

// WithTx выполняет fn внутри транзакции
func (r *Repository) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Repository{db: tx, dialect: r.dialect, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// NextSequence увеличивает счетчик вида сущности и возвращает новое значение
func (r *Repository) NextSequence(ctx context.Context, kind string) (int64, error) {
	query := `
		INSERT INTO id_sequences (kind, value) VALUES ($1, 1)
		ON CONFLICT (kind) DO UPDATE SET value = id_sequences.value + 1
		RETURNING value
	`
	var value int64
	if err := r.db.QueryRow(ctx, query, kind).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", kind, err)
	}
	return value, nil
}
