package model

import (
	"errors"
	"fmt"
)

var (
	ErrStatusNotFound = errors.New("status not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrTaskNotFound   = errors.New("task not found")
	ErrNoStatuses     = errors.New("project has no statuses")
)

// StatusBySlug returns the status with the given slug.
func (s *Snapshot) StatusBySlug(slug string) (Status, error) {
	for _, st := range s.Statuses {
		if st.Slug == slug {
			return st, nil
		}
	}
	return Status{}, fmt.Errorf("%w: '%s'", ErrStatusNotFound, slug)
}

// HasStatus reports whether a status with the given slug exists.
func (s *Snapshot) HasStatus(slug string) bool {
	_, err := s.StatusBySlug(slug)
	return err == nil
}

// FirstStatus returns the first status in workflow order, used for new tasks.
func (s *Snapshot) FirstStatus() (Status, error) {
	if len(s.Statuses) == 0 {
		return Status{}, ErrNoStatuses
	}
	first := s.Statuses[0]
	for _, st := range s.Statuses[1:] {
		if st.Order < first.Order {
			first = st
		}
	}
	return first, nil
}

// DoneStatus picks the status a finished task moves to: the first status
// flagged closed, else the one slugged "done", else the last in workflow order.
func (s *Snapshot) DoneStatus() (Status, error) {
	if len(s.Statuses) == 0 {
		return Status{}, ErrNoStatuses
	}
	for _, st := range s.Statuses {
		if st.IsClosed {
			return st, nil
		}
	}
	if st, err := s.StatusBySlug("done"); err == nil {
		return st, nil
	}
	last := s.Statuses[0]
	for _, st := range s.Statuses[1:] {
		if st.Order >= last.Order {
			last = st
		}
	}
	return last, nil
}

// MemberByUsername returns the member with the given username.
func (s *Snapshot) MemberByUsername(username string) (User, error) {
	for _, m := range s.Members {
		if m.Username == username {
			return m, nil
		}
	}
	return User{}, fmt.Errorf("%w: '%s'", ErrMemberNotFound, username)
}

// MemberByID returns the member with the given user id.
func (s *Snapshot) MemberByID(id int) (User, error) {
	for _, m := range s.Members {
		if m.ID == id {
			return m, nil
		}
	}
	return User{}, fmt.Errorf("%w: id %d", ErrMemberNotFound, id)
}

// HasMember reports whether a member with the given username exists.
func (s *Snapshot) HasMember(username string) bool {
	_, err := s.MemberByUsername(username)
	return err == nil
}

// TaskAt returns the task at a 1-based position of the cached listing.
func (s *Snapshot) TaskAt(position int) (*Task, error) {
	if position < 1 || position > len(s.Tasks) {
		return nil, fmt.Errorf("%w: no task at position %d", ErrTaskNotFound, position)
	}
	return &s.Tasks[position-1], nil
}

// IndexOf returns the slice index of the task with the given id, or -1.
func (s *Snapshot) IndexOf(taskID int) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == taskID {
			return i
		}
	}
	return -1
}

// Replace overwrites the task with the same id in place. It reports false
// when the snapshot does not hold that task.
func (s *Snapshot) Replace(t Task) bool {
	i := s.IndexOf(t.ID)
	if i < 0 {
		return false
	}
	s.Tasks[i] = t
	return true
}

// Append adds a task at the end of the listing.
func (s *Snapshot) Append(t Task) {
	s.Tasks = append(s.Tasks, t)
}

// Remove drops the task with the given id and reports whether it was present.
func (s *Snapshot) Remove(taskID int) bool {
	i := s.IndexOf(taskID)
	if i < 0 {
		return false
	}
	s.Tasks = append(s.Tasks[:i], s.Tasks[i+1:]...)
	return true
}
