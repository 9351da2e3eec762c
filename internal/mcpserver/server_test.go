package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticktick-mcp/internal/oauth"
	"ticktick-mcp/internal/ticktick"
)

// callRequest builds a CallToolRequest carrying the given arguments.
func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

// newTestServer wires a Server against a stub API, authenticated or not.
func newTestServer(t *testing.T, authenticated bool, handler http.Handler) *Server {
	t.Helper()

	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	store, err := oauth.NewTokenStore(t.TempDir())
	require.NoError(t, err)
	if authenticated {
		require.NoError(t, store.Save(&oauth.Record{
			AccessToken: "access",
			TokenType:   "bearer",
			ExpiresAt:   time.Now().Add(time.Hour),
			AccountType: oauth.AccountGlobal,
			CreatedAt:   time.Now(),
		}))
	}

	mgr, err := oauth.NewManager(oauth.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AccountType:  oauth.AccountGlobal,
	}, store)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	client := ticktick.NewClient(oauth.NewSessionGuard(mgr), api.URL)
	return NewServer(mgr, client, "test")
}

func noAPI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unexpected API call", http.StatusTeapot)
	})
}

func TestHandleStatus_Unauthenticated(t *testing.T) {
	s := newTestServer(t, false, noAPI())

	result, err := s.handleStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var payload statusPayload
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	assert.Equal(t, "unauthenticated", payload.State)
	assert.Contains(t, payload.Hint, "start_authentication")
}

func TestHandleStatus_Authenticated(t *testing.T) {
	s := newTestServer(t, true, noAPI())

	result, err := s.handleStatus(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var payload statusPayload
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &payload))
	assert.Equal(t, "authenticated", payload.State)
	assert.Equal(t, "TickTick International", payload.Account)
}

func TestHandleFinishAuthentication_MissingCode(t *testing.T) {
	s := newTestServer(t, false, noAPI())

	result, err := s.handleFinishAuthentication(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "code argument is required")
}

func TestHandleFinishAuthentication_NoPendingFlow(t *testing.T) {
	s := newTestServer(t, false, noAPI())

	result, err := s.handleFinishAuthentication(context.Background(), callRequest(map[string]interface{}{
		"code":  "abc",
		"state": "stale-state",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no pending authorization")
}

func TestHandleLogout_Idempotent(t *testing.T) {
	s := newTestServer(t, true, noAPI())

	for i := 0; i < 2; i++ {
		result, err := s.handleLogout(context.Background(), callRequest(nil))
		require.NoError(t, err)
		assert.False(t, result.IsError)
	}
	assert.Equal(t, oauth.StateUnauthenticated, s.manager.Status().State)
}

func TestHandleGetAllProjects(t *testing.T) {
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]ticktick.Project{{ID: "p1", Name: "Inbox"}})
	}))

	result, err := s.handleGetAllProjects(context.Background(), callRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var projects []ticktick.Project
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Inbox", projects[0].Name)
}

func TestHandleGetAllProjects_Unauthenticated(t *testing.T) {
	s := newTestServer(t, false, noAPI())

	result, err := s.handleGetAllProjects(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "start_authentication",
		"auth failures must point at the auth tools")
}

func TestHandleCreateTask(t *testing.T) {
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var task ticktick.Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&task))
		task.ID = "t-new"
		json.NewEncoder(w).Encode(task)
	}))

	result, err := s.handleCreateTask(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
		"title":      "Buy milk",
		"priority":   "high",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var task ticktick.Task
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &task))
	assert.Equal(t, "t-new", task.ID)
	assert.Equal(t, ticktick.PriorityHigh, task.Priority)
}

func TestHandleCreateTask_BadPriority(t *testing.T) {
	s := newTestServer(t, true, noAPI())

	result, err := s.handleCreateTask(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
		"title":      "x",
		"priority":   "urgent",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown priority")
}

func TestHandleUpdateTask_PreservesUnsetFields(t *testing.T) {
	var updated ticktick.Task
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(ticktick.Task{
				ID: "t1", ProjectID: "p1", Title: "original", Content: "keep me",
				Priority: ticktick.PriorityLow,
			})
		default:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			json.NewEncoder(w).Encode(updated)
		}
	}))

	result, err := s.handleUpdateTask(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
		"task_id":    "t1",
		"title":      "renamed",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "keep me", updated.Content)
	assert.Equal(t, ticktick.PriorityLow, updated.Priority)
}

func TestHandleCreateSubtask_AppendsItem(t *testing.T) {
	var updated ticktick.Task
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(ticktick.Task{
				ID: "t1", ProjectID: "p1", Title: "parent",
				Items: []ticktick.ChecklistItem{{Title: "existing"}},
			})
		default:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			json.NewEncoder(w).Encode(updated)
		}
	}))

	result, err := s.handleCreateSubtask(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
		"task_id":    "t1",
		"title":      "new subtask",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	require.Len(t, updated.Items, 2)
	assert.Equal(t, "new subtask", updated.Items[1].Title)
}

func TestHandleCompleteTask(t *testing.T) {
	var path string
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.Method + " " + r.URL.Path
	}))

	result, err := s.handleCompleteTask(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
		"task_id":    "t1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "POST /project/p1/task/t1/complete", path)
}

func TestHandleDeleteTask_MissingArgs(t *testing.T) {
	s := newTestServer(t, true, noAPI())

	result, err := s.handleDeleteTask(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "task_id argument is required")
}

func TestHandleQueryTasks_FiltersByPriorityAndSearch(t *testing.T) {
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/project":
			json.NewEncoder(w).Encode([]ticktick.Project{{ID: "p1"}, {ID: "p2"}})
		case "/project/p1/data":
			json.NewEncoder(w).Encode(ticktick.ProjectData{Tasks: []ticktick.Task{
				{ID: "t1", Title: "Write report", Priority: ticktick.PriorityHigh},
				{ID: "t2", Title: "Write email", Priority: ticktick.PriorityLow},
			}})
		case "/project/p2/data":
			json.NewEncoder(w).Encode(ticktick.ProjectData{Tasks: []ticktick.Task{
				{ID: "t3", Title: "Report taxes", Priority: ticktick.PriorityHigh},
				{ID: "t4", Title: "Water plants", Priority: ticktick.PriorityHigh},
			}})
		default:
			http.NotFound(w, r)
		}
	}))

	result, err := s.handleQueryTasks(context.Background(), callRequest(map[string]interface{}{
		"priority": "high",
		"search":   "report",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var tasks []ticktick.Task
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, "t3", tasks[1].ID)
}

func TestHandleQueryTasks_DueWindow(t *testing.T) {
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/project":
			json.NewEncoder(w).Encode([]ticktick.Project{{ID: "p1"}})
		case "/project/p1/data":
			json.NewEncoder(w).Encode(ticktick.ProjectData{Tasks: []ticktick.Task{
				{ID: "t1", Title: "due soon", DueDate: "2026-09-03T09:00:00+0000"},
				{ID: "t2", Title: "due later", DueDate: "2026-09-20T09:00:00+0000"},
				{ID: "t3", Title: "no due date"},
			}})
		default:
			http.NotFound(w, r)
		}
	}))

	result, err := s.handleQueryTasks(context.Background(), callRequest(map[string]interface{}{
		"due_before": "2026-09-10T00:00:00+0000",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var tasks []ticktick.Task
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestHandleQueryTasks_BadDueDate(t *testing.T) {
	s := newTestServer(t, true, noAPI())

	result, err := s.handleQueryTasks(context.Background(), callRequest(map[string]interface{}{
		"due_before": "tomorrow",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "due_before")
}

func TestHandleQueryTasks_SingleProjectScope(t *testing.T) {
	var listCalled bool
	s := newTestServer(t, true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/project":
			listCalled = true
			json.NewEncoder(w).Encode([]ticktick.Project{})
		case "/project/p1/data":
			json.NewEncoder(w).Encode(ticktick.ProjectData{Tasks: []ticktick.Task{{ID: "t1", Title: "a"}}})
		default:
			http.NotFound(w, r)
		}
	}))

	result, err := s.handleQueryTasks(context.Background(), callRequest(map[string]interface{}{
		"project_id": "p1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.False(t, listCalled, "scoped queries must not enumerate all projects")
}
