package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultPageSize is the page size used when walking all projects.
const DefaultPageSize = 100

// ListProjects returns one page of the projects visible to the user.
func (c *Client) ListProjects(ctx context.Context, skip, limit int) (*ProjectList, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	q := url.Values{"skip": {strconv.Itoa(skip)}, "limit": {strconv.Itoa(limit)}}
	var page ProjectList
	if err := c.getJSON(ctx, "/projects/", q, &page); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return &page, nil
}

// AllProjects walks every page of ListProjects.
func (c *Client) AllProjects(ctx context.Context) ([]Project, error) {
	var all []Project
	for skip := 0; ; {
		page, err := c.ListProjects(ctx, skip, DefaultPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Projects...)
		skip += len(page.Projects)
		if len(page.Projects) == 0 || skip >= page.Total {
			break
		}
		log.Debug().Int("fetched", skip).Int("total", page.Total).Msg("Fetching next page of projects")
	}
	return all, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, id int) (*Project, error) {
	var p Project
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject creates a project. Name and client name are required.
func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.ClientName == nil || strings.TrimSpace(*in.ClientName) == "" {
		return nil, fmt.Errorf("project name and client name are required")
	}
	var p Project
	if err := c.sendJSON(ctx, http.MethodPost, "/projects/", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject changes the non-nil fields of in.
func (c *Client) UpdateProject(ctx context.Context, id int, in ProjectInput) (*Project, error) {
	var p Project
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/projects/%d", id), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id int) error {
	return c.doJSON(ctx, NewRequest(http.MethodDelete, fmt.Sprintf("/projects/%d", id)), nil)
}

// SearchProjects matches projects by name or client name on the server.
func (c *Client) SearchProjects(ctx context.Context, query string) ([]Project, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/projects/search", Query: url.Values{"q": {query}}})
	if err != nil {
		return nil, err
	}
	return decodeList[Project](resp.Body, "projects")
}

// ProjectDashboard fetches the progress summary of a project.
func (c *Client) ProjectDashboard(ctx context.Context, id int) (*ProjectDashboard, error) {
	var d ProjectDashboard
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d/dashboard", id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ProjectMetrics fetches the document and adjustment counters of a project.
func (c *Client) ProjectMetrics(ctx context.Context, id int) (*ProjectMetrics, error) {
	var m ProjectMetrics
	if err := c.getJSON(ctx, fmt.Sprintf("/projects/%d/metrics", id), nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecalculateProjectMetrics asks the backend to recount a project's progress.
func (c *Client) RecalculateProjectMetrics(ctx context.Context, id int) (string, error) {
	var msg Message
	if err := c.doJSON(ctx, NewRequest(http.MethodPost, fmt.Sprintf("/projects/%d/update-metrics", id)), &msg); err != nil {
		return "", err
	}
	return msg.Message, nil
}

// UpdateProjectSettings replaces the materiality rules of a project.
func (c *Client) UpdateProjectSettings(ctx context.Context, id int, settings ProjectSettings) (*ProjectSettings, error) {
	if settings.MaterialityThreshold < 0 {
		return nil, fmt.Errorf("materiality threshold cannot be negative")
	}
	if settings.MaterialityPercentage < 0 || settings.MaterialityPercentage > 1 {
		return nil, fmt.Errorf("materiality percentage must be between 0 and 1")
	}
	var out ProjectSettings
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/projects/%d/settings", id), settings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardOverview sums the metrics of every project the user can see.
func (c *Client) DashboardOverview(ctx context.Context) (*ProjectMetrics, error) {
	var m ProjectMetrics
	if err := c.getJSON(ctx, "/projects/dashboard/overview", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MaxRecentProjects is the largest limit RecentProjects accepts.
const MaxRecentProjects = 20

// RecentProjects returns the most recently created projects, newest first.
func (c *Client) RecentProjects(ctx context.Context, limit int) ([]Project, error) {
	if limit < 1 || limit > MaxRecentProjects {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", MaxRecentProjects, limit)
	}
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/projects/recent", Query: url.Values{"limit": {strconv.Itoa(limit)}}})
	if err != nil {
		return nil, err
	}
	return decodeList[Project](resp.Body, "projects")
}
