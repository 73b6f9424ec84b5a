package snapshot

import "github.com/harrisonrobin/taigo/pkg/model"

// Me stands for the logged-in account wherever a username is expected.
const Me = "me"

// StaleRule reports whether a snapshot lacks something the caller needs.
type StaleRule func(*model.Snapshot) bool

func Never(*model.Snapshot) bool { return false }

func Always(*model.Snapshot) bool { return true }

// NoStatuses holds for snapshots that know no workflow states.
func NoStatuses(s *model.Snapshot) bool {
	return len(s.Statuses) == 0
}

// MissingStatus holds when no status has the given slug.
func MissingStatus(slug string) StaleRule {
	return func(s *model.Snapshot) bool {
		return !s.HasStatus(slug)
	}
}

// MissingMember holds when username is not a member. Me is never missing.
func MissingMember(username string) StaleRule {
	return func(s *model.Snapshot) bool {
		return username != Me && !s.HasMember(username)
	}
}

// MissingAssignees holds when a task is assigned to a user id the member
// list does not contain.
func MissingAssignees(s *model.Snapshot) bool {
	known := make(map[int]bool, len(s.Members))
	for _, m := range s.Members {
		known[m.ID] = true
	}
	for _, t := range s.Tasks {
		for _, id := range t.Assigned {
			if !known[id] {
				return true
			}
		}
	}
	return false
}

// Any holds when at least one of rules does.
func Any(rules ...StaleRule) StaleRule {
	return func(s *model.Snapshot) bool {
		for _, rule := range rules {
			if rule != nil && rule(s) {
				return true
			}
		}
		return false
	}
}
