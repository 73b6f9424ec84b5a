package taiga

import (
	"context"
	"fmt"
	"net/http"

	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/util"
)

type projectJSON struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Members  []memberJSON `json:"members"`
	Statuses []statusJSON `json:"us_statuses"`
}

type memberJSON struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type statusJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsClosed bool   `json:"is_closed"`
	Order    int    `json:"order"`
}

func (p projectJSON) toModel() model.Project {
	project := model.Project{ID: p.ID, Name: p.Name}
	for _, m := range p.Members {
		project.Members = append(project.Members, model.User{ID: m.ID, Username: m.Username, FullName: m.FullName})
	}
	for _, s := range p.Statuses {
		slug := s.Slug
		if slug == "" {
			slug = util.Slug(s.Name)
		}
		project.Statuses = append(project.Statuses, model.Status{
			ID:       s.ID,
			Name:     s.Name,
			Slug:     slug,
			IsClosed: s.IsClosed,
			Order:    s.Order,
		})
	}
	return project
}

// ListProjects returns the projects memberID belongs to, without members
// or statuses.
func (c *Client) ListProjects(ctx context.Context, memberID int) ([]model.Project, error) {
	var out []projectJSON
	if _, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/projects?member=%d", memberID), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]model.Project, 0, len(out))
	for _, p := range out {
		projects = append(projects, model.Project{ID: p.ID, Name: p.Name})
	}
	c.log.Debug("listed projects", "member", memberID, "count", len(projects))
	return projects, nil
}

// GetProject returns a project with its members and task statuses.
func (c *Client) GetProject(ctx context.Context, id int) (*model.Project, error) {
	var out projectJSON
	if _, err := c.call(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get project %d: %w", id, err)
	}
	project := out.toModel()
	return &project, nil
}
