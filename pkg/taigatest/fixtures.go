package taigatest

import "github.com/harrisonrobin/taigo/pkg/model"

// Apollo is the project most tests run against. Alice, the account the
// fake logs in as, is one of its members.
var Apollo = model.Project{
	ID:   7,
	Name: "Apollo",
	Members: []model.User{
		{ID: 1, Username: "alice", FullName: "Alice Liddell"},
		{ID: 2, Username: "bob", FullName: "Bob Marley"},
	},
	Statuses: []model.Status{
		{ID: 11, Name: "New", Slug: "new", Order: 1},
		{ID: 12, Name: "In Progress", Slug: "in-progress", Order: 2},
		{ID: 13, Name: "Done", Slug: "done", IsClosed: true, Order: 3},
	},
}

// SeedApollo registers Apollo with three open stories and returns their ids
// in creation order.
func (s *Server) SeedApollo() []int {
	s.AddProject(Apollo)
	return []int{
		s.AddStory(Story{Project: Apollo.ID, Status: 11, Subject: "Write release notes", Assigned: []int{1}}),
		s.AddStory(Story{Project: Apollo.ID, Status: 12, Subject: "Fix login page", Due: "2026-03-10", Team: true}),
		s.AddStory(Story{Project: Apollo.ID, Status: 11, Subject: "Triage backlog", Assigned: []int{2}}),
	}
}
