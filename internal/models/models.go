// models/models.go
package models

import "time"

// Project представляет проект, к которому относятся спринты и истории
type Project struct {
	ProjectID   string    `json:"project_id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Sprint представляет спринт проекта
type Sprint struct {
	SprintID  string       `json:"sprint_id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Story представляет живую историю спринта
type Story struct {
	StoryID            string      `json:"story_id"`
	ProjectID          string      `json:"project_id"`
	SprintID           *string     `json:"sprint_id,omitempty"`
	ParentID           *string     `json:"parent_id,omitempty"`
	Lineage            *Lineage    `json:"lineage,omitempty"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	AcceptanceCriteria []string    `json:"acceptance_criteria"`
	Status             StoryStatus `json:"status"`
	Priority           string      `json:"priority"`
	StoryPoints        int         `json:"story_points"`
	AssigneeID         string      `json:"assignee_id"`
	ReporterID         string      `json:"reporter_id"`
	EpicID             string      `json:"epic_id"`
	ReleaseID          string      `json:"release_id"`
	Labels             []string    `json:"labels"`
	OrderIndex         int         `json:"order_index"`
	EstimatedHours     float64     `json:"estimated_hours"`
	ActualHours        float64     `json:"actual_hours"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Task представляет задачу истории
type Task struct {
	TaskID              string     `json:"task_id"`
	StoryID             string     `json:"story_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Status              TaskStatus `json:"status"`
	Priority            string     `json:"priority"`
	AssigneeID          string     `json:"assignee_id"`
	ReporterID          string     `json:"reporter_id"`
	EstimatedHours      float64    `json:"estimated_hours"`
	ActualHours         float64    `json:"actual_hours"`
	OrderIndex          int        `json:"order_index"`
	TaskNumber          int        `json:"task_number"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	Labels              []string   `json:"labels"`
	IsPulledFromBacklog bool       `json:"is_pulled_from_backlog"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Subtask представляет подзадачу
type Subtask struct {
	SubtaskID      string     `json:"subtask_id"`
	TaskID         string     `json:"task_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	IsCompleted    bool       `json:"is_completed"`
	AssigneeID     string     `json:"assignee_id"`
	EstimatedHours float64    `json:"estimated_hours"`
	ActualHours    float64    `json:"actual_hours"`
	OrderIndex     int        `json:"order_index"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	BugType        string     `json:"bug_type"`
	Severity       string     `json:"severity"`
	Category       string     `json:"category"`
	Labels         []string   `json:"labels"`
	CreatedAt      time.Time  `json:"created_at"`
}

// BacklogStory теневая копия истории, перенесенной в бэклог при закрытии спринта.
// Поля original* и created_from_sprint_id хранят только историю происхождения, не владение.
type BacklogStory struct {
	BacklogStoryID      string      `json:"backlog_story_id"`
	ProjectID           string      `json:"project_id"`
	OriginalStoryID     *string     `json:"original_story_id,omitempty"`
	OriginalSprintID    *string     `json:"original_sprint_id,omitempty"`
	CreatedFromSprintID *string     `json:"created_from_sprint_id,omitempty"`
	Title               string      `json:"title"`
	Description         string      `json:"description"`
	AcceptanceCriteria  []string    `json:"acceptance_criteria"`
	Status              StoryStatus `json:"status"`
	Priority            string      `json:"priority"`
	StoryPoints         int         `json:"story_points"`
	AssigneeID          string      `json:"assignee_id"`
	ReporterID          string      `json:"reporter_id"`
	EpicID              string      `json:"epic_id"`
	ReleaseID           string      `json:"release_id"`
	Labels              []string    `json:"labels"`
	OrderIndex          int         `json:"order_index"`
	EstimatedHours      float64     `json:"estimated_hours"`
	ActualHours         float64     `json:"actual_hours"`
	CreatedAt           time.Time   `json:"created_at"`
}

// BacklogTask теневая копия незавершенной задачи
type BacklogTask struct {
	BacklogTaskID       string     `json:"backlog_task_id"`
	BacklogStoryID      string     `json:"backlog_story_id"`
	OriginalTaskID      *string    `json:"original_task_id,omitempty"`
	CreatedFromSprintID *string    `json:"created_from_sprint_id,omitempty"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Status              TaskStatus `json:"status"`
	Priority            string     `json:"priority"`
	AssigneeID          string     `json:"assignee_id"`
	ReporterID          string     `json:"reporter_id"`
	EstimatedHours      float64    `json:"estimated_hours"`
	ActualHours         float64    `json:"actual_hours"`
	OrderIndex          int        `json:"order_index"`
	TaskNumber          int        `json:"task_number"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	Labels              []string   `json:"labels"`
	IsOverdue           bool       `json:"is_overdue"`
	CreatedAt           time.Time  `json:"created_at"`
}

// BacklogSubtask теневая копия незавершенной подзадачи
type BacklogSubtask struct {
	BacklogSubtaskID    string     `json:"backlog_subtask_id"`
	BacklogTaskID       string     `json:"backlog_task_id"`
	OriginalSubtaskID   *string    `json:"original_subtask_id,omitempty"`
	CreatedFromSprintID *string    `json:"created_from_sprint_id,omitempty"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	IsCompleted         bool       `json:"is_completed"`
	AssigneeID          string     `json:"assignee_id"`
	EstimatedHours      float64    `json:"estimated_hours"`
	ActualHours         float64    `json:"actual_hours"`
	OrderIndex          int        `json:"order_index"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	BugType             string     `json:"bug_type"`
	Severity            string     `json:"severity"`
	Category            string     `json:"category"`
	Labels              []string   `json:"labels"`
	CreatedAt           time.Time  `json:"created_at"`
}

// StoryStatus статус живой истории
type StoryStatus string

// Статусы историй
const (
	StoryStatusBacklog    StoryStatus = "BACKLOG"
	StoryStatusTodo       StoryStatus = "TODO"
	StoryStatusInProgress StoryStatus = "IN_PROGRESS"
	StoryStatusReview     StoryStatus = "REVIEW"
	StoryStatusDone       StoryStatus = "DONE"
)

func (s StoryStatus) IsValid() bool {
	switch s {
	case StoryStatusBacklog, StoryStatusTodo, StoryStatusInProgress, StoryStatusReview, StoryStatusDone:
		return true
	}
	return false
}

// TaskStatus статус задачи
type TaskStatus string

// Статусы задач
const (
	TaskStatusToDo       TaskStatus = "TO_DO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusQAReview   TaskStatus = "QA_REVIEW"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusBlocked    TaskStatus = "BLOCKED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusToDo, TaskStatusInProgress, TaskStatusQAReview,
		TaskStatusDone, TaskStatusBlocked, TaskStatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, завершена ли задача окончательно (DONE или CANCELLED)
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}

// SprintStatus статус спринта
type SprintStatus string

// Статусы спринтов
const (
	SprintStatusPlanned SprintStatus = "PLANNED"
	SprintStatusActive  SprintStatus = "ACTIVE"
	SprintStatusClosed  SprintStatus = "CLOSED"
)

func (s SprintStatus) IsValid() bool {
	switch s {
	case SprintStatusPlanned, SprintStatusActive, SprintStatusClosed:
		return true
	}
	return false
}
