package ticktick

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ticktick-mcp/internal/oauth"
	"ticktick-mcp/pkg/logging"
)

const requestTimeout = 30 * time.Second

// APIError is a non-2xx response from the Open API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("ticktick API returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("ticktick API returned %d", e.StatusCode)
}

// Client calls the TickTick Open API v1. All methods route through the
// session guard; a 401 from the API surfaces as AuthRequiredError so the
// caller layer can prompt re-authentication.
type Client struct {
	guard      *oauth.SessionGuard
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the given API base URL, normally
// taken from the manager's endpoints.
func NewClient(guard *oauth.SessionGuard, baseURL string) *Client {
	return &Client{
		guard:      guard,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// do performs one authenticated request. body is marshaled as JSON when
// non-nil; out is unmarshaled from the response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.guard.WithSession(ctx, func(ctx context.Context, accessToken string) error {
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("X-Request-Id", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		logging.Debug("TickTick", "%s %s", method, path)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request to %s failed: %w", path, err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			// The token was revoked server-side between refresh checks.
			return &oauth.AuthRequiredError{
				Reason: "API rejected the access token",
				Err:    &APIError{StatusCode: resp.StatusCode, Body: string(respBody)},
			}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode response from %s: %w", path, err)
			}
		}
		return nil
	})
}

// ListProjects returns all projects visible to the authorized account.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns one project by id.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	if err := c.do(ctx, http.MethodGet, "/project/"+projectID, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetProjectData returns a project together with its undone tasks and
// kanban columns.
func (c *Client) GetProjectData(ctx context.Context, projectID string) (*ProjectData, error) {
	var data ProjectData
	if err := c.do(ctx, http.MethodGet, "/project/"+projectID+"/data", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateProject creates a project and returns it with its assigned id.
func (c *Client) CreateProject(ctx context.Context, project *Project) (*Project, error) {
	var created Project
	if err := c.do(ctx, http.MethodPost, "/project", project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateProject updates a project in place.
func (c *Client) UpdateProject(ctx context.Context, project *Project) (*Project, error) {
	if project.ID == "" {
		return nil, fmt.Errorf("project id is required for update")
	}
	var updated Project
	if err := c.do(ctx, http.MethodPost, "/project/"+project.ID, project, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteProject deletes a project and everything in it.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.do(ctx, http.MethodDelete, "/project/"+projectID, nil, nil)
}

// GetTask returns one task. The API scopes tasks under their project.
func (c *Client) GetTask(ctx context.Context, projectID, taskID string) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, "/project/"+projectID+"/task/"+taskID, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task and returns it with its assigned id.
func (c *Client) CreateTask(ctx context.Context, task *Task) (*Task, error) {
	if task.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}
	var created Task
	if err := c.do(ctx, http.MethodPost, "/task", task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask updates a task in place. The task must carry both its own
// id and its project id.
func (c *Client) UpdateTask(ctx context.Context, task *Task) (*Task, error) {
	if task.ID == "" {
		return nil, fmt.Errorf("task id is required for update")
	}
	var updated Task
	if err := c.do(ctx, http.MethodPost, "/task/"+task.ID, task, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// CompleteTask marks a task as done.
func (c *Client) CompleteTask(ctx context.Context, projectID, taskID string) error {
	return c.do(ctx, http.MethodPost, "/project/"+projectID+"/task/"+taskID+"/complete", nil, nil)
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, projectID, taskID string) error {
	return c.do(ctx, http.MethodDelete, "/project/"+projectID+"/task/"+taskID, nil, nil)
}
