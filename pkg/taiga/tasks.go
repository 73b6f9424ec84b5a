package taiga

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/util"
)

type storyJSON struct {
	ID              int    `json:"id"`
	Ref             int    `json:"ref"`
	Subject         string `json:"subject"`
	Status          int    `json:"status"`
	StatusExtraInfo struct {
		Name string `json:"name"`
	} `json:"status_extra_info"`
	TeamRequirement   bool    `json:"team_requirement"`
	ClientRequirement bool    `json:"client_requirement"`
	IsBlocked         bool    `json:"is_blocked"`
	AssignedUsers     []int   `json:"assigned_users"`
	DueDate           *string `json:"due_date"`
	IsClosed          bool    `json:"is_closed"`
	Version           int     `json:"version"`
}

func (s storyJSON) toModel() (model.Task, error) {
	task := model.Task{
		ID:         s.ID,
		Ref:        s.Ref,
		Name:       s.Subject,
		StatusID:   s.Status,
		StatusSlug: util.Slug(s.StatusExtraInfo.Name),
		Team:       s.TeamRequirement,
		Client:     s.ClientRequirement,
		Blocked:    s.IsBlocked,
		Assigned:   s.AssignedUsers,
		Closed:     s.IsClosed,
		Version:    s.Version,
	}
	if s.DueDate != nil && *s.DueDate != "" {
		due, err := model.ParseDate(*s.DueDate)
		if err != nil {
			return model.Task{}, &RemoteError{Message: fmt.Sprintf("task %d has an invalid due date", s.ID), Err: err}
		}
		task.Due = &due
	}
	return task, nil
}

// Patch lists the fields of a task to change. Nil fields are left alone.
// A nil Assigned keeps the assignees; an empty non-nil slice removes them.
type Patch struct {
	Status   *int
	Subject  *string
	Assigned []int
	Due      *model.Date
	ClearDue bool
	Team     *bool
	Client   *bool
	Blocked  *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p *Patch) IsEmpty() bool {
	return p.Status == nil && p.Subject == nil && p.Assigned == nil && p.Due == nil &&
		!p.ClearDue && p.Team == nil && p.Client == nil && p.Blocked == nil
}

// body renders the patch with the version the change is based on.
func (p *Patch) body(version int) map[string]any {
	body := map[string]any{"version": version}
	if p.Status != nil {
		body["status"] = *p.Status
	}
	if p.Subject != nil {
		body["subject"] = *p.Subject
	}
	if p.Assigned != nil {
		body["assigned_users"] = p.Assigned
	}
	if p.ClearDue {
		body["due_date"] = nil
	} else if p.Due != nil {
		body["due_date"] = p.Due.String()
	}
	if p.Team != nil {
		body["team_requirement"] = *p.Team
	}
	if p.Client != nil {
		body["client_requirement"] = *p.Client
	}
	if p.Blocked != nil {
		body["is_blocked"] = *p.Blocked
	}
	return body
}

// NewTask holds the fields a task can be created with.
type NewTask struct {
	Project    int
	Subject    string
	Status     int
	AssignedTo *int
	Team       bool
	Client     bool
	Blocked    bool
}

func (n *NewTask) body() map[string]any {
	body := map[string]any{
		"project":            n.Project,
		"subject":            n.Subject,
		"status":             n.Status,
		"team_requirement":   n.Team,
		"client_requirement": n.Client,
		"is_blocked":         n.Blocked,
		"assigned_to":        nil,
	}
	if n.AssignedTo != nil {
		body["assigned_to"] = *n.AssignedTo
	}
	return body
}

// ListTasks returns every non-archived task of a project, following the
// service's pagination.
func (c *Client) ListTasks(ctx context.Context, projectID int) ([]model.Task, error) {
	var tasks []model.Task
	next := fmt.Sprintf("/userstories?project=%d&status__is_archived=false", projectID)

	for page := 1; next != ""; page++ {
		if page > maxPages {
			return nil, &RemoteError{Message: fmt.Sprintf("listing tasks of project %d did not end after %d pages", projectID, maxPages)}
		}

		var out []storyJSON
		header, err := c.call(ctx, http.MethodGet, next, nil, &out)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks of project %d: %w", projectID, err)
		}
		for _, s := range out {
			task, err := s.toModel()
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, task)
		}

		if next, err = nextPage(header); err != nil {
			return nil, &RemoteError{Message: "invalid pagination header", Err: err}
		}
		c.log.Debug("listed task page", "project", projectID, "page", page, "count", len(out))
	}
	return tasks, nil
}

// CreateTask creates a task and returns it as stored by the service.
func (c *Client) CreateTask(ctx context.Context, n NewTask) (*model.Task, error) {
	var out storyJSON
	if _, err := c.call(ctx, http.MethodPost, "/userstories", n.body(), &out); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	task, err := out.toModel()
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// PatchTask applies p to the task id, provided it is still at version.
// A version mismatch returns *ConflictError.
func (c *Client) PatchTask(ctx context.Context, id int, p Patch, version int) (*model.Task, error) {
	var out storyJSON
	if _, err := c.call(ctx, http.MethodPatch, fmt.Sprintf("/userstories/%d", id), p.body(version), &out); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			conflict.TaskID = id
			conflict.Version = version
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to update task %d: %w", id, err)
	}
	task, err := out.toModel()
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask removes the task id.
func (c *Client) DeleteTask(ctx context.Context, id int) error {
	if _, err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/userstories/%d", id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return nil
}
