// Package plan загружает план спринтов из YAML и создает по нему проект, спринты,
// истории, задачи и подзадачи через обычные пути создания.
package plan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/untibullet/sprint-rollover/internal/models"
	"gopkg.in/yaml.v3"
)

type Plan struct {
	Project Project  `yaml:"project"`
	Sprints []Sprint `yaml:"sprints"`
}

// Project описывает проект плана. Если указан ID, используется существующий проект.
type Project struct {
	ID          string `yaml:"id"`
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Sprint struct {
	Name    string  `yaml:"name"`
	Goal    string  `yaml:"goal"`
	Status  string  `yaml:"status"`
	Start   string  `yaml:"start"`
	End     string  `yaml:"end"`
	Stories []Story `yaml:"stories"`
}

type Story struct {
	Title              string   `yaml:"title"`
	Description        string   `yaml:"description"`
	AcceptanceCriteria []string `yaml:"acceptance_criteria"`
	Status             string   `yaml:"status"`
	Priority           string   `yaml:"priority"`
	StoryPoints        int      `yaml:"story_points"`
	Assignee           string   `yaml:"assignee"`
	Reporter           string   `yaml:"reporter"`
	Epic               string   `yaml:"epic"`
	Release            string   `yaml:"release"`
	Labels             []string `yaml:"labels"`
	EstimatedHours     float64  `yaml:"estimated_hours"`
	ActualHours        float64  `yaml:"actual_hours"`
	Tasks              []Task   `yaml:"tasks"`
}

type Task struct {
	Title          string    `yaml:"title"`
	Description    string    `yaml:"description"`
	Status         string    `yaml:"status"`
	Priority       string    `yaml:"priority"`
	Assignee       string    `yaml:"assignee"`
	Reporter       string    `yaml:"reporter"`
	EstimatedHours float64   `yaml:"estimated_hours"`
	ActualHours    float64   `yaml:"actual_hours"`
	Due            string    `yaml:"due"`
	Labels         []string  `yaml:"labels"`
	Subtasks       []Subtask `yaml:"subtasks"`
}

type Subtask struct {
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Completed      bool     `yaml:"completed"`
	Assignee       string   `yaml:"assignee"`
	EstimatedHours float64  `yaml:"estimated_hours"`
	ActualHours    float64  `yaml:"actual_hours"`
	Due            string   `yaml:"due"`
	BugType        string   `yaml:"bug_type"`
	Severity       string   `yaml:"severity"`
	Category       string   `yaml:"category"`
	Labels         []string `yaml:"labels"`
}

// Load читает и проверяет план из файла
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse разбирает план; неизвестные ключи считаются ошибкой
func Parse(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("plan is empty")
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate собирает все ошибки плана, а не только первую
func (p *Plan) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	checkDate := func(where, value string) {
		if _, err := models.ParseDate(value); err != nil {
			add("%s: %v", where, err)
		}
	}

	if p.Project.ID == "" && (strings.TrimSpace(p.Project.Key) == "" || strings.TrimSpace(p.Project.Name) == "") {
		add("project: key and name are required unless id is given")
	}

	for i, s := range p.Sprints {
		where := fmt.Sprintf("sprints[%d]", i)
		if strings.TrimSpace(s.Name) == "" {
			add("%s: name is required", where)
		}
		if s.Status != "" && !models.SprintStatus(s.Status).IsValid() {
			add("%s: unknown status %q", where, s.Status)
		}
		checkDate(where+".start", s.Start)
		checkDate(where+".end", s.End)

		for j, st := range s.Stories {
			where := fmt.Sprintf("%s.stories[%d]", where, j)
			if strings.TrimSpace(st.Title) == "" {
				add("%s: title is required", where)
			}
			if st.Status != "" && !models.StoryStatus(st.Status).IsValid() {
				add("%s: unknown status %q", where, st.Status)
			}

			for k, t := range st.Tasks {
				where := fmt.Sprintf("%s.tasks[%d]", where, k)
				if strings.TrimSpace(t.Title) == "" {
					add("%s: title is required", where)
				}
				if t.Status != "" && !models.TaskStatus(t.Status).IsValid() {
					add("%s: unknown status %q", where, t.Status)
				}
				checkDate(where+".due", t.Due)

				for l, sub := range t.Subtasks {
					where := fmt.Sprintf("%s.subtasks[%d]", where, l)
					if strings.TrimSpace(sub.Title) == "" {
						add("%s: title is required", where)
					}
					checkDate(where+".due", sub.Due)
				}
			}
		}
	}

	return errors.Join(errs...)
}

// Planner создает живые сущности спринта
type Planner interface {
	CreateProject(ctx context.Context, in models.Project) (*models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	CreateSprint(ctx context.Context, in models.Sprint) (*models.Sprint, error)
	CreateStory(ctx context.Context, in models.Story) (*models.Story, error)
	CreateTask(ctx context.Context, in models.Task) (*models.Task, error)
	CreateSubtask(ctx context.Context, in models.Subtask) (*models.Subtask, error)
}

// Result итог применения плана
type Result struct {
	ProjectID string
	SprintIDs []string
	Stories   int
	Tasks     int
	Subtasks  int
}

// Apply создает сущности плана по порядку. План должен быть проверен Validate.
// При ошибке уже созданные сущности остаются, Result отражает созданное до ошибки.
func Apply(ctx context.Context, planner Planner, p *Plan) (*Result, error) {
	res := &Result{}

	if p.Project.ID != "" {
		project, err := planner.GetProject(ctx, p.Project.ID)
		if err != nil {
			return res, err
		}
		res.ProjectID = project.ProjectID
	} else {
		project, err := planner.CreateProject(ctx, models.Project{
			Key:         p.Project.Key,
			Name:        p.Project.Name,
			Description: p.Project.Description,
		})
		if err != nil {
			return res, fmt.Errorf("failed to create project %s: %w", p.Project.Key, err)
		}
		res.ProjectID = project.ProjectID
	}

	for _, s := range p.Sprints {
		start, _ := models.ParseDate(s.Start)
		end, _ := models.ParseDate(s.End)
		sprint, err := planner.CreateSprint(ctx, models.Sprint{
			ProjectID: res.ProjectID,
			Name:      s.Name,
			Goal:      s.Goal,
			Status:    models.SprintStatus(s.Status),
			StartDate: start,
			EndDate:   end,
		})
		if err != nil {
			return res, fmt.Errorf("failed to create sprint %q: %w", s.Name, err)
		}
		res.SprintIDs = append(res.SprintIDs, sprint.SprintID)

		for _, st := range s.Stories {
			if err := applyStory(ctx, planner, res, sprint.SprintID, st); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

func applyStory(ctx context.Context, planner Planner, res *Result, sprintID string, st Story) error {
	story, err := planner.CreateStory(ctx, models.Story{
		ProjectID:          res.ProjectID,
		SprintID:           &sprintID,
		Title:              st.Title,
		Description:        st.Description,
		AcceptanceCriteria: st.AcceptanceCriteria,
		Status:             models.StoryStatus(st.Status),
		Priority:           st.Priority,
		StoryPoints:        st.StoryPoints,
		AssigneeID:         st.Assignee,
		ReporterID:         st.Reporter,
		EpicID:             st.Epic,
		ReleaseID:          st.Release,
		Labels:             st.Labels,
		EstimatedHours:     st.EstimatedHours,
		ActualHours:        st.ActualHours,
	})
	if err != nil {
		return fmt.Errorf("failed to create story %q: %w", st.Title, err)
	}
	res.Stories++

	for _, t := range st.Tasks {
		due, _ := models.ParseDate(t.Due)
		task, err := planner.CreateTask(ctx, models.Task{
			StoryID:        story.StoryID,
			Title:          t.Title,
			Description:    t.Description,
			Status:         models.TaskStatus(t.Status),
			Priority:       t.Priority,
			AssigneeID:     t.Assignee,
			ReporterID:     t.Reporter,
			EstimatedHours: t.EstimatedHours,
			ActualHours:    t.ActualHours,
			DueDate:        due,
			Labels:         t.Labels,
		})
		if err != nil {
			return fmt.Errorf("failed to create task %q: %w", t.Title, err)
		}
		res.Tasks++

		for _, sub := range t.Subtasks {
			due, _ := models.ParseDate(sub.Due)
			_, err := planner.CreateSubtask(ctx, models.Subtask{
				TaskID:         task.TaskID,
				Title:          sub.Title,
				Description:    sub.Description,
				IsCompleted:    sub.Completed,
				AssigneeID:     sub.Assignee,
				EstimatedHours: sub.EstimatedHours,
				ActualHours:    sub.ActualHours,
				DueDate:        due,
				BugType:        sub.BugType,
				Severity:       sub.Severity,
				Category:       sub.Category,
				Labels:         sub.Labels,
			})
			if err != nil {
				return fmt.Errorf("failed to create subtask %q: %w", sub.Title, err)
			}
			res.Subtasks++
		}
	}
	return nil
}
