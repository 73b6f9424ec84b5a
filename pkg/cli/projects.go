package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taigo/pkg/index"
	"github.com/harrisonrobin/taigo/pkg/snapshot"
)

// runProjectNames lists the projects known from the last 'projects' call.
func (a *app) runProjectNames(cmd *cobra.Command, args []string) error {
	idx, err := index.Load(a.store)
	if err != nil {
		return err
	}
	names := idx.Names()
	if len(names) == 0 {
		fmt.Fprintln(a.out, "No projects cached. Run 'taigo projects' to fetch them.")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(a.out, name)
	}
	return nil
}

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "Fetch the projects you are a member of",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			projects, err := a.client.ListProjects(cmd.Context(), session.AccountID)
			if err != nil {
				return err
			}
			idx, err := index.Load(a.store)
			if err != nil {
				return err
			}
			idx.Replace(projects)
			if err := idx.Save(); err != nil {
				return err
			}
			return a.runProjectNames(cmd, args)
		},
	}
}

func newUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users <project>",
		Short: "List the members of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.Always)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderMembers(snap))
			return nil
		},
	}
}
