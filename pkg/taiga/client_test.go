package taiga

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taigo/pkg/auth"
	"github.com/harrisonrobin/taigo/pkg/cache"
	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/taigatest"
)

func newTestClient(t *testing.T) (*Client, *taigatest.Server) {
	t.Helper()
	srv := taigatest.NewServer(t)
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	m := auth.NewManager(store)
	_, err = m.Authenticate(context.Background(), auth.Credentials{Username: srv.Username, Password: srv.Password}, srv.BaseURL())
	require.NoError(t, err)
	srv.ResetCalls()
	return NewClient(m, nil), srv
}

func TestListProjects(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SeedApollo()
	srv.AddProject(model.Project{ID: 9, Name: "Zephyr"})

	projects, err := c.ListProjects(context.Background(), srv.AccountID)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, model.Project{ID: 7, Name: "Apollo"}, projects[0])
	assert.Equal(t, "Zephyr", projects[1].Name)
}

func TestGetProject(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SeedApollo()

	project, err := c.GetProject(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, taigatest.Apollo, *project)
}

func TestGetProjectFillsMissingSlug(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddProject(model.Project{ID: 3, Name: "Nameless", Statuses: []model.Status{{ID: 1, Name: "Ready for QA"}}})

	project, err := c.GetProject(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, project.Statuses, 1)
	assert.Equal(t, "ready-for-qa", project.Statuses[0].Slug)
}

func TestGetProjectNotFound(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.GetProject(context.Background(), 999)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
	assert.Contains(t, remote.Message, "No Project matches")
}

func TestListTasks(t *testing.T) {
	c, srv := newTestClient(t)
	ids := srv.SeedApollo()

	tasks, err := c.ListTasks(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	due := model.NewDate(2026, time.March, 10)
	assert.Equal(t, model.Task{
		ID:         ids[1],
		Ref:        ids[1],
		Name:       "Fix login page",
		StatusID:   12,
		StatusSlug: "in-progress",
		Team:       true,
		Assigned:   []int{},
		Due:        &due,
		Version:    1,
	}, tasks[1])
	assert.Equal(t, []int{1}, tasks[0].Assigned)
	assert.Nil(t, tasks[0].Due)
}

func TestListTasksFollowsPagination(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SeedApollo()
	for i := 0; i < 3; i++ {
		srv.AddStory(taigatest.Story{Project: 7, Status: 11, Subject: "Extra"})
	}
	srv.SetPageSize(2)

	tasks, err := c.ListTasks(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, tasks, 6)
	assert.Equal(t, 3, srv.Calls(taigatest.RouteStories))
}

func TestCreateTask(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SeedApollo()
	bob := 2

	task, err := c.CreateTask(context.Background(), NewTask{Project: 7, Subject: "Plan sprint", Status: 11, AssignedTo: &bob, Client: true})
	require.NoError(t, err)
	assert.Equal(t, "Plan sprint", task.Name)
	assert.Equal(t, "new", task.StatusSlug)
	assert.Equal(t, []int{2}, task.Assigned)
	assert.True(t, task.Client)
	assert.Equal(t, 1, task.Version)

	body := srv.LastStoryBody()
	assert.Equal(t, float64(7), body["project"])
	assert.Equal(t, false, body["is_blocked"])
}

func TestPatchTask(t *testing.T) {
	c, srv := newTestClient(t)
	ids := srv.SeedApollo()
	status, name, blocked := 12, "Write the release notes", true

	task, err := c.PatchTask(context.Background(), ids[0], Patch{Status: &status, Subject: &name, Blocked: &blocked, Assigned: []int{}}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, task.Version)
	assert.Equal(t, "in-progress", task.StatusSlug)
	assert.Equal(t, name, task.Name)
	assert.True(t, task.Blocked)
	assert.Empty(t, task.Assigned)

	body := srv.LastStoryBody()
	assert.Equal(t, float64(1), body["version"])
	assert.NotContains(t, body, "due_date")
	assert.NotContains(t, body, "team_requirement")
}

func TestPatchTaskDueDate(t *testing.T) {
	c, srv := newTestClient(t)
	ids := srv.SeedApollo()
	due := model.NewDate(2026, time.April, 1)

	task, err := c.PatchTask(context.Background(), ids[0], Patch{Due: &due}, 1)
	require.NoError(t, err)
	require.NotNil(t, task.Due)
	assert.Equal(t, due, *task.Due)
	assert.Equal(t, "2026-04-01", srv.LastStoryBody()["due_date"])

	task, err = c.PatchTask(context.Background(), ids[0], Patch{ClearDue: true}, task.Version)
	require.NoError(t, err)
	assert.Nil(t, task.Due)
	body := srv.LastStoryBody()
	require.Contains(t, body, "due_date")
	assert.Nil(t, body["due_date"])
}

func TestPatchTaskConflict(t *testing.T) {
	c, srv := newTestClient(t)
	ids := srv.SeedApollo()
	srv.Touch(ids[0])
	name := "Renamed"

	_, err := c.PatchTask(context.Background(), ids[0], Patch{Subject: &name}, 1)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ids[0], conflict.TaskID)
	assert.Equal(t, 1, conflict.Version)

	var remote *RemoteError
	assert.False(t, errors.As(err, &remote))
	assert.Equal(t, 1, srv.Calls(taigatest.RoutePatchStory))

	story, _ := srv.Story(ids[0])
	assert.Equal(t, "Write release notes", story.Subject)
}

func TestDeleteTask(t *testing.T) {
	c, srv := newTestClient(t)
	ids := srv.SeedApollo()

	require.NoError(t, c.DeleteTask(context.Background(), ids[2]))
	_, ok := srv.Story(ids[2])
	assert.False(t, ok)

	err := c.DeleteTask(context.Background(), ids[2])
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
}

func TestAuthFailurePassesThrough(t *testing.T) {
	c, srv := newTestClient(t)
	srv.SeedApollo()
	srv.ExpireTokens()
	srv.SetFailRefresh(true)
	srv.SetFailAuth(true)

	_, err := c.ListTasks(context.Background(), 7)
	require.ErrorIs(t, err, auth.ErrAuth)
	var remote *RemoteError
	assert.False(t, errors.As(err, &remote))
}

func TestTransportFailureIsRemoteError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Close()

	_, err := c.ListProjects(context.Background(), 1)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Zero(t, remote.StatusCode)
	assert.NotErrorIs(t, err, auth.ErrAuth)
}

func TestCheckResponse(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		conflict   bool
		message    string
		statusCode int
	}{
		{"ok", http.StatusOK, `{}`, false, "", 0},
		{"conflict status", http.StatusConflict, `{"_error_message": "busy"}`, true, "busy", 0},
		{"version field", http.StatusBadRequest, `{"version": "The version doesn't match with the current one"}`, true, "The version doesn't match with the current one", 0},
		{"version list", http.StatusPreconditionFailed, `{"version": ["stale"]}`, true, "stale", 0},
		{"other validation", http.StatusBadRequest, `{"subject": ["This field is required."]}`, false, `{"subject": ["This field is required."]}`, http.StatusBadRequest},
		{"error message", http.StatusInternalServerError, `{"_error_message": "boom"}`, false, "boom", http.StatusInternalServerError},
		{"detail", http.StatusNotFound, `{"detail": "Not found."}`, false, "Not found.", http.StatusNotFound},
		{"plain text", http.StatusBadGateway, `bad gateway`, false, "bad gateway", http.StatusBadGateway},
		{"empty body", http.StatusServiceUnavailable, ``, false, "Service Unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}
			err := checkResponse(resp)
			if tt.status == http.StatusOK {
				assert.NoError(t, err)
				return
			}

			var conflict *ConflictError
			var remote *RemoteError
			if tt.conflict {
				require.ErrorAs(t, err, &conflict)
				assert.Equal(t, tt.message, conflict.Message)
				return
			}
			require.ErrorAs(t, err, &remote)
			assert.Equal(t, tt.statusCode, remote.StatusCode)
			assert.Equal(t, tt.message, remote.Message)
		})
	}
}

func TestNextPage(t *testing.T) {
	header := http.Header{}
	p, err := nextPage(header)
	require.NoError(t, err)
	assert.Empty(t, p)

	header.Set("x-pagination-next", "https://api.taiga.io/api/v1/userstories?page=2&project=7")
	p, err = nextPage(header)
	require.NoError(t, err)
	assert.Equal(t, "/userstories?page=2&project=7", p)
}
