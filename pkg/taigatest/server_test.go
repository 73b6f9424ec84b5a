package taigatest

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(t *testing.T, method, url, token, body string) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAuthorizedRequestsComplete(t *testing.T) {
	srv := NewServer(t)
	ids := srv.SeedApollo()
	access, _ := srv.IssueTokens()

	assert.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.BaseURL()+"/projects", access, ""))
	assert.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.BaseURL()+"/projects/7", access, ""))
	assert.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.BaseURL()+"/userstories?project=7", access, ""))

	patch := srv.BaseURL() + "/userstories/" + strconv.Itoa(ids[0])
	assert.Equal(t, http.StatusOK, send(t, http.MethodPatch, patch, access, `{"version":1,"subject":"Renamed"}`))
	st, ok := srv.Story(ids[0])
	require.True(t, ok)
	assert.Equal(t, "Renamed", st.Subject)
	assert.Equal(t, 2, st.Version)

	assert.Equal(t, 4, srv.TotalCalls())
}

func TestAuthorizeRejects(t *testing.T) {
	srv := NewServer(t)
	srv.SeedApollo()
	access, _ := srv.IssueTokens()

	assert.Equal(t, http.StatusUnauthorized, send(t, http.MethodGet, srv.BaseURL()+"/projects", "", ""))
	assert.Equal(t, http.StatusUnauthorized, send(t, http.MethodGet, srv.BaseURL()+"/projects", "bogus", ""))

	srv.RejectNext(1)
	assert.Equal(t, http.StatusUnauthorized, send(t, http.MethodGet, srv.BaseURL()+"/projects", access, ""))
	assert.Equal(t, http.StatusOK, send(t, http.MethodGet, srv.BaseURL()+"/projects", access, ""))
}
