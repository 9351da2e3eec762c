package ticktick

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticktick-mcp/internal/oauth"
)

// newTestClient wires a client against a stub API server, with a stored
// long-lived token so the guard passes without touching a token endpoint.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	api := httptest.NewServer(handler)
	t.Cleanup(api.Close)

	store, err := oauth.NewTokenStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(&oauth.Record{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		AccountType:  "global",
		CreatedAt:    time.Now(),
	}))

	mgr, err := oauth.NewManager(oauth.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AccountType:  oauth.AccountGlobal,
	}, store)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	return NewClient(oauth.NewSessionGuard(mgr), api.URL)
}

func TestClient_AuthorizationHeaderAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		json.NewEncoder(w).Encode([]Project{})
	}))

	_, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-access-token", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestClient_NoTokenBlocksBeforeNetwork(t *testing.T) {
	var called bool
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(api.Close)

	store, err := oauth.NewTokenStore(t.TempDir())
	require.NoError(t, err)
	mgr, err := oauth.NewManager(oauth.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AccountType:  oauth.AccountGlobal,
	}, store)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)

	client := NewClient(oauth.NewSessionGuard(mgr), api.URL)
	_, err = client.ListProjects(context.Background())

	assert.True(t, oauth.IsAuthRequired(err))
	assert.False(t, called, "unauthenticated calls must never reach the API")
}

func TestClient_UnauthorizedMapsToAuthRequired(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.ListProjects(context.Background())
	assert.True(t, oauth.IsAuthRequired(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_ServerErrorIsAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.ListProjects(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "boom")
	assert.False(t, oauth.IsAuthRequired(err))
}

func TestClient_ListProjects(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/project", r.URL.Path)
		json.NewEncoder(w).Encode([]Project{
			{ID: "p1", Name: "Inbox"},
			{ID: "p2", Name: "Work", Color: "#F18181"},
		})
	}))

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Inbox", projects[0].Name)
	assert.Equal(t, "#F18181", projects[1].Color)
}

func TestClient_GetProjectData(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/project/p1/data", r.URL.Path)
		json.NewEncoder(w).Encode(ProjectData{
			Project: Project{ID: "p1", Name: "Work"},
			Tasks: []Task{
				{ID: "t1", ProjectID: "p1", Title: "Write report", Priority: PriorityHigh},
			},
			Columns: []Column{{ID: "c1", ProjectID: "p1", Name: "Doing"}},
		})
	}))

	data, err := client.GetProjectData(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Work", data.Project.Name)
	require.Len(t, data.Tasks, 1)
	assert.Equal(t, PriorityHigh, data.Tasks[0].Priority)
	require.Len(t, data.Columns, 1)
}

func TestClient_CreateTask(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/task", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var task Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&task))
		assert.Equal(t, "Buy milk", task.Title)

		task.ID = "t-new"
		json.NewEncoder(w).Encode(task)
	}))

	created, err := client.CreateTask(context.Background(), &Task{
		ProjectID: "p1",
		Title:     "Buy milk",
		Priority:  PriorityLow,
	})
	require.NoError(t, err)
	assert.Equal(t, "t-new", created.ID)
}

func TestClient_CreateTaskRequiresTitle(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	}))

	_, err := client.CreateTask(context.Background(), &Task{ProjectID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
}

func TestClient_UpdateTaskRequiresID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	}))

	_, err := client.UpdateTask(context.Background(), &Task{ProjectID: "p1", Title: "x"})
	require.Error(t, err)
}

func TestClient_CompleteAndDeleteTask(t *testing.T) {
	var paths []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
	}))

	require.NoError(t, client.CompleteTask(context.Background(), "p1", "t1"))
	require.NoError(t, client.DeleteTask(context.Background(), "p1", "t1"))

	assert.Equal(t, []string{
		"POST /project/p1/task/t1/complete",
		"DELETE /project/p1/task/t1",
	}, paths)
}

func TestClient_DeleteProject(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/project/p9", r.URL.Path)
	}))

	require.NoError(t, client.DeleteProject(context.Background(), "p9"))
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"none", PriorityNone, false},
		{"", PriorityNone, false},
		{"LOW", PriorityLow, false},
		{" medium ", PriorityMedium, false},
		{"high", PriorityHigh, false},
		{"urgent", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPriorityName_RoundTrip(t *testing.T) {
	for _, name := range []string{"none", "low", "medium", "high"} {
		p, err := ParsePriority(name)
		require.NoError(t, err)
		assert.Equal(t, name, PriorityName(p))
	}
	assert.True(t, strings.HasPrefix(PriorityName(42), "priority("))
}
