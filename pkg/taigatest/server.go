// Package taigatest runs an in-memory Taiga API for tests. It issues JWT
// access tokens, enforces bearer authentication and story versions, and
// counts calls per route so tests can assert on network traffic.
package taigatest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/harrisonrobin/taigo/pkg/model"
)

// BasePath is the API prefix served by the fake.
const BasePath = "/api/v1"

// Route names accepted by Calls.
const (
	RouteAuth        = "POST " + BasePath + "/auth"
	RouteRefresh     = "POST " + BasePath + "/auth/refresh"
	RouteProjects    = "GET " + BasePath + "/projects"
	RouteProject     = "GET " + BasePath + "/projects/:id"
	RouteStories     = "GET " + BasePath + "/userstories"
	RouteCreateStory = "POST " + BasePath + "/userstories"
	RoutePatchStory  = "PATCH " + BasePath + "/userstories/:id"
	RouteDeleteStory = "DELETE " + BasePath + "/userstories/:id"
)

// Story is the server-side state of a user story.
type Story struct {
	ID       int
	Ref      int
	Project  int
	Status   int
	Subject  string
	Team     bool
	Client   bool
	Blocked  bool
	Assigned []int
	Due      string
	Version  int
}

// Server is a fake Taiga instance.
type Server struct {
	*httptest.Server

	Username  string
	Password  string
	AccountID int

	mu            sync.Mutex
	secret        []byte
	issued        int
	lifetime      time.Duration
	access        map[string]bool
	refresh       map[string]bool
	calls         map[string]int
	failRefresh   bool
	failAuth      bool
	rejectNext    int
	pageSize      int
	projects      map[int]model.Project
	stories       map[int]*Story
	nextStoryID   int
	lastStoryBody map[string]any
}

// NewServer starts a fake accepting username "alice" with password "secret".
// It is closed when the test ends.
func NewServer(t interface {
	Cleanup(func())
}) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		Username:    "alice",
		Password:    "secret",
		AccountID:   1,
		secret:      []byte("taigatest-signing-key"),
		lifetime:    time.Hour,
		access:      make(map[string]bool),
		refresh:     make(map[string]bool),
		calls:       make(map[string]int),
		projects:    make(map[int]model.Project),
		stories:     make(map[int]*Story),
		nextStoryID: 1000,
	}

	r := gin.New()
	r.Use(s.count)
	api := r.Group(BasePath)
	api.POST("/auth", s.handleAuth)
	api.POST("/auth/refresh", s.handleRefresh)

	protected := api.Group("", s.authorize)
	protected.GET("/projects", s.handleProjects)
	protected.GET("/projects/:id", s.handleProject)
	protected.GET("/userstories", s.handleStories)
	protected.POST("/userstories", s.handleCreateStory)
	protected.PATCH("/userstories/:id", s.handlePatchStory)
	protected.DELETE("/userstories/:id", s.handleDeleteStory)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

// Calls returns how many requests hit route so far.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests served on every route.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// ExpireTokens invalidates every access token issued so far. Refresh
// tokens stay usable.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]bool)
}

// RejectNext makes the next n protected requests fail with 401 whatever
// token they carry.
func (s *Server) RejectNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext = n
}

func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

func (s *Server) SetFailAuth(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAuth = fail
}

// SetTokenLifetime controls the exp claim of tokens issued from now on.
// A negative lifetime issues tokens that are already expired.
func (s *Server) SetTokenLifetime(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetime = d
}

// SetPageSize enables x-pagination-next paging of story listings.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// AddProject registers a project with its members and statuses.
func (s *Server) AddProject(p model.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

// AddStory stores a story, assigning an id when st.ID is zero and version 1
// when st.Version is zero. It returns the id.
func (s *Server) AddStory(st Story) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		s.nextStoryID++
		st.ID = s.nextStoryID
	}
	if st.Ref == 0 {
		st.Ref = st.ID
	}
	if st.Version == 0 {
		st.Version = 1
	}
	s.stories[st.ID] = &st
	return st.ID
}

// Story returns a copy of the stored story.
func (s *Server) Story(id int) (Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stories[id]
	if !ok {
		return Story{}, false
	}
	cp := *st
	cp.Assigned = append([]int(nil), st.Assigned...)
	return cp, true
}

// Touch bumps the version of a story as if someone else edited it.
func (s *Server) Touch(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stories[id]; ok {
		st.Version++
	}
}

// LastStoryBody returns the JSON body of the latest create or patch request.
func (s *Server) LastStoryBody() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStoryBody
}

// IssueTokens mints a valid access/refresh pair without an HTTP round trip.
func (s *Server) IssueTokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

func (s *Server) issueLocked() (string, string) {
	s.issued++
	claims := jwt.RegisteredClaims{
		Subject:   s.Username,
		ID:        strconv.Itoa(s.issued),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.lifetime)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", s.issued)
	s.access[access] = true
	s.refresh[refresh] = true
	return access, refresh
}

func (s *Server) count(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.calls[route]++
	s.mu.Unlock()
	c.Next()
}

func errorBody(msg string) gin.H {
	return gin.H{"_error_message": msg, "_error_type": "taiga.base.exceptions.WrongArguments"}
}

// authorize releases s.mu before the handler runs; handlers lock it again.
func (s *Server) authorize(c *gin.Context) {
	s.mu.Lock()
	if s.rejectNext > 0 {
		s.rejectNext--
		s.mu.Unlock()
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Invalid token"))
		return
	}
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	ok := len(header) > len(prefix) && header[:len(prefix)] == prefix && s.access[header[len(prefix):]]
	s.mu.Unlock()

	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("Invalid token"))
		return
	}
	c.Next()
}

func (s *Server) handleAuth(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Type     string `json:"type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAuth || req.Type != "normal" || req.Username != s.Username || req.Password != s.Password {
		c.JSON(http.StatusUnauthorized, errorBody("No active account found with the given credentials"))
		return
	}
	access, refresh := s.issueLocked()
	c.JSON(http.StatusOK, gin.H{"auth_token": access, "refresh": refresh, "id": s.AccountID, "username": s.Username})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRefresh || !s.refresh[req.Refresh] {
		c.JSON(http.StatusUnauthorized, errorBody("Token is invalid or expired"))
		return
	}
	delete(s.refresh, req.Refresh)
	access, refresh := s.issueLocked()
	c.JSON(http.StatusOK, gin.H{"auth_token": access, "refresh": refresh})
}

func (s *Server) handleProjects(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		p := s.projects[id]
		out = append(out, gin.H{"id": p.ID, "name": p.Name, "slug": fmt.Sprintf("project-%d", p.ID)})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleProject(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("bad id"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("No Project matches the given query."))
		return
	}
	members := make([]gin.H, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, gin.H{"id": m.ID, "username": m.Username, "full_name": m.FullName})
	}
	statuses := make([]gin.H, 0, len(p.Statuses))
	for _, st := range p.Statuses {
		statuses = append(statuses, gin.H{"id": st.ID, "name": st.Name, "slug": st.Slug, "is_closed": st.IsClosed, "order": st.Order})
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "name": p.Name, "members": members, "us_statuses": statuses})
}

func (s *Server) handleStories(c *gin.Context) {
	projectID, err := strconv.Atoi(c.Query("project"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("project is required"))
		return
	}
	page := 1
	if p := c.Query("page"); p != "" {
		page, _ = strconv.Atoi(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int
	for id, st := range s.stories {
		if st.Project == projectID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	if s.pageSize > 0 {
		start := (page - 1) * s.pageSize
		if start > len(ids) {
			start = len(ids)
		}
		end := start + s.pageSize
		if end < len(ids) {
			c.Header("x-pagination-next", fmt.Sprintf("%s%s/userstories?page=%d&project=%d", s.URL, BasePath, page+1, projectID))
		} else {
			end = len(ids)
		}
		ids = ids[start:end]
	}

	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.storyJSON(s.stories[id]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateStory(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStoryBody = body

	projectID := intValue(body["project"])
	if _, ok := s.projects[projectID]; !ok {
		c.JSON(http.StatusBadRequest, errorBody("project does not exist"))
		return
	}
	s.nextStoryID++
	st := &Story{ID: s.nextStoryID, Ref: s.nextStoryID, Project: projectID, Version: 1}
	applyStoryFields(st, body)
	if to, ok := body["assigned_to"]; ok && to != nil {
		st.Assigned = []int{intValue(to)}
	}
	s.stories[st.ID] = st
	c.JSON(http.StatusCreated, s.storyJSON(st))
}

func (s *Server) handlePatchStory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("bad id"))
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStoryBody = body

	st, ok := s.stories[id]
	if !ok {
		c.JSON(http.StatusNotFound, errorBody("No UserStory matches the given query."))
		return
	}
	if v, ok := body["version"]; !ok || intValue(v) != st.Version {
		c.JSON(http.StatusBadRequest, gin.H{"version": "The version doesn't match with the current one"})
		return
	}
	applyStoryFields(st, body)
	st.Version++
	c.JSON(http.StatusOK, s.storyJSON(st))
}

func (s *Server) handleDeleteStory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("bad id"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stories[id]; !ok {
		c.JSON(http.StatusNotFound, errorBody("No UserStory matches the given query."))
		return
	}
	delete(s.stories, id)
	c.Status(http.StatusNoContent)
}

func applyStoryFields(st *Story, body map[string]any) {
	for key, v := range body {
		switch key {
		case "status":
			st.Status = intValue(v)
		case "subject":
			st.Subject, _ = v.(string)
		case "team_requirement":
			st.Team, _ = v.(bool)
		case "client_requirement":
			st.Client, _ = v.(bool)
		case "is_blocked":
			st.Blocked, _ = v.(bool)
		case "due_date":
			st.Due, _ = v.(string)
		case "assigned_users":
			st.Assigned = nil
			items, _ := v.([]any)
			for _, item := range items {
				st.Assigned = append(st.Assigned, intValue(item))
			}
		}
	}
}

// storyJSON renders a story the way the API does. Callers hold s.mu.
func (s *Server) storyJSON(st *Story) gin.H {
	name, closed := "", false
	if p, ok := s.projects[st.Project]; ok {
		for _, status := range p.Statuses {
			if status.ID == st.Status {
				name, closed = status.Name, status.IsClosed
			}
		}
	}
	var due any
	if st.Due != "" {
		due = st.Due
	}
	assigned := st.Assigned
	if assigned == nil {
		assigned = []int{}
	}
	return gin.H{
		"id":                 st.ID,
		"ref":                st.Ref,
		"project":            st.Project,
		"subject":            st.Subject,
		"status":             st.Status,
		"status_extra_info":  gin.H{"name": name, "is_closed": closed},
		"team_requirement":   st.Team,
		"client_requirement": st.Client,
		"is_blocked":         st.Blocked,
		"assigned_users":     assigned,
		"due_date":           due,
		"is_closed":          closed,
		"version":            st.Version,
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
