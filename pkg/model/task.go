package model

import "time"

// User is a member of a project.
type User struct {
	ID       int
	Username string
	FullName string
}

// Status is a workflow state of a project. IsClosed marks terminal states.
type Status struct {
	ID       int
	Name     string
	Slug     string
	IsClosed bool
	Order    int
}

// Project is a remote project. Members and Statuses are empty in the
// listing form and only populated when the detail is fetched.
type Project struct {
	ID       int
	Name     string
	Members  []User
	Statuses []Status
}

// Task represents a user story of a project.
type Task struct {
	ID         int
	Ref        int
	Name       string
	StatusID   int
	StatusSlug string
	Team       bool
	Client     bool
	Blocked    bool
	Assigned   []int
	Due        *Date
	Closed     bool
	// Version is assigned by the server and grows with every change.
	Version int
}

// IsAssigned reports whether userID is one of the task's assignees.
func (t *Task) IsAssigned(userID int) bool {
	for _, id := range t.Assigned {
		if id == userID {
			return true
		}
	}
	return false
}

// Snapshot is the cached task list of one project together with the
// members and statuses needed to interpret it.
type Snapshot struct {
	ProjectID int
	Tasks     []Task
	Members   []User
	Statuses  []Status
	FetchedAt time.Time
}
