package util

import (
	"strings"
	"unicode"

	"github.com/harrisonrobin/taigo/pkg/model"
)

// Slug lowercases s, drops everything but letters, digits and whitespace,
// and turns spaces into dashes. "In Progress!" becomes "in-progress".
func Slug(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteRune('-')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// MatchWords reports whether the words of query appear, in order, inside
// the space separated words of input. Each query word must be contained in
// a distinct input word. An empty query matches everything.
func MatchWords(input string, query []string) bool {
	if len(query) == 0 {
		return true
	}
	next := 0
	for _, word := range strings.Split(strings.ToLower(input), " ") {
		if next == len(query) {
			break
		}
		if strings.Contains(word, strings.ToLower(query[next])) {
			next++
		}
	}
	return next == len(query)
}

// Filter selects tasks of a search. Zero values disable a criterion.
type Filter struct {
	IncludeStatuses []int
	ExcludeStatuses []int
	IncludeAssigned []int
	ExcludeAssigned []int

	Team    *bool
	Client  *bool
	Blocked *bool

	// DueBy keeps tasks due on or before the date. With NoDue set, only
	// tasks without a due date are kept instead.
	DueBy *model.Date
	NoDue bool

	Query []string
}

// Match reports whether task passes every criterion of f.
func (f *Filter) Match(task *model.Task) bool {
	if f.Team != nil && task.Team != *f.Team {
		return false
	}
	if f.Client != nil && task.Client != *f.Client {
		return false
	}
	if f.Blocked != nil && task.Blocked != *f.Blocked {
		return false
	}

	if f.NoDue {
		if task.Due != nil {
			return false
		}
	} else if f.DueBy != nil {
		if task.Due == nil || task.Due.After(*f.DueBy) {
			return false
		}
	}

	if len(f.IncludeAssigned) > 0 && !anyAssigned(task, f.IncludeAssigned) {
		return false
	}
	if len(f.ExcludeAssigned) > 0 && anyAssigned(task, f.ExcludeAssigned) {
		return false
	}
	if len(f.IncludeStatuses) > 0 && !contains(f.IncludeStatuses, task.StatusID) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && contains(f.ExcludeStatuses, task.StatusID) {
		return false
	}

	return MatchWords(task.Name, f.Query)
}

// Apply returns the tasks of tasks matching f, preserving order.
func (f *Filter) Apply(tasks []model.Task) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for i := range tasks {
		if f.Match(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	return out
}

func anyAssigned(task *model.Task, ids []int) bool {
	for _, id := range ids {
		if task.IsAssigned(id) {
			return true
		}
	}
	return false
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
