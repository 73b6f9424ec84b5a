package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/snapshot"
	"github.com/harrisonrobin/taigo/pkg/taiga"
	"github.com/harrisonrobin/taigo/pkg/when"
)

// mutate applies patch to the task at position arg of snap and reports it.
func (a *app) mutate(ctx context.Context, snap *model.Snapshot, arg string, patch taiga.Patch) error {
	task, err := taskAt(snap, arg)
	if err != nil {
		return err
	}
	updated, err := a.protocol.Mutate(ctx, snap, task.ID, patch)
	if err != nil {
		return err
	}
	a.report(snap, updated, "Updated")
	return nil
}

func (a *app) report(snap *model.Snapshot, t *model.Task, verb string) {
	fmt.Fprintf(a.out, "%s task %d: %s [%s]\n", verb, snap.IndexOf(t.ID)+1, t.Name, statusName(snap, t))
}

func (a *app) parseDue(expr string) (*model.Date, error) {
	d, err := when.Parse(expr, a.now())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func newNewCmd(a *app) *cobra.Command {
	var (
		status                string
		assign                []string
		due                   string
		team, client, blocked bool
	)
	cmd := &cobra.Command{
		Use:     "new <project> <name...>",
		Aliases: []string{"add"},
		Short:   "Create a task",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rules := append(memberRules(assign), snapshot.NoStatuses)
			if status != "" {
				rules = append(rules, snapshot.MissingStatus(status))
			}
			session, snap, err := a.open(ctx, args[0], snapshot.Any(rules...))
			if err != nil {
				return err
			}

			var st model.Status
			if status != "" {
				st, err = snap.StatusBySlug(status)
			} else {
				st, err = snap.FirstStatus()
			}
			if err != nil {
				return err
			}
			ids, err := memberIDs(snap, session, assign)
			if err != nil {
				return err
			}

			n := taiga.NewTask{
				Project: snap.ProjectID,
				Subject: strings.Join(args[1:], " "),
				Status:  st.ID,
				Team:    team,
				Client:  client,
				Blocked: blocked,
			}
			var followUp taiga.Patch
			if len(ids) > 0 {
				n.AssignedTo = &ids[0]
			}
			if all := sortedUnique(ids); len(all) > 1 {
				followUp.Assigned = all
			}
			if due != "" {
				if followUp.Due, err = a.parseDue(due); err != nil {
					return err
				}
			}

			task, err := a.protocol.Create(ctx, snap, n, &followUp)
			if err != nil {
				return err
			}
			a.report(snap, task, "Created")
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&status, "status", "s", "", "Status slug (default: first status of the workflow)")
	f.StringSliceVarP(&assign, "assign", "a", nil, "Users to assign (\"me\" for yourself)")
	f.StringVar(&due, "due", "", "Due date, e.g. 2026-11-02, tomorrow, fri, 2w, eom")
	f.BoolVar(&team, "team", false, "Needs the team")
	f.BoolVar(&client, "client", false, "Needs the client")
	f.BoolVar(&blocked, "blocked", false, "Blocked")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <project> <id> <status>",
		Short: "Move a task to another status",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.MissingStatus(args[2]))
			if err != nil {
				return err
			}
			st, err := snap.StatusBySlug(args[2])
			if err != nil {
				return err
			}
			return a.mutate(cmd.Context(), snap, args[1], taiga.Patch{Status: &st.ID})
		},
	}
}

func newDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <project> <id>",
		Short: "Move a task to the closing status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.NoStatuses)
			if err != nil {
				return err
			}
			st, err := snap.DoneStatus()
			if err != nil {
				return err
			}
			return a.mutate(cmd.Context(), snap, args[1], taiga.Patch{Status: &st.ID})
		},
	}
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project> <id> <name...>",
		Short: "Rename a task",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.Never)
			if err != nil {
				return err
			}
			name := strings.Join(args[2:], " ")
			return a.mutate(cmd.Context(), snap, args[1], taiga.Patch{Subject: &name})
		},
	}
}

func newAssignCmd(a *app) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "assign <project> <id> <username>",
		Short: "Assign a user to a task, or remove them",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, snap, err := a.open(cmd.Context(), args[0], snapshot.MissingMember(args[2]))
			if err != nil {
				return err
			}
			task, err := taskAt(snap, args[1])
			if err != nil {
				return err
			}
			ids, err := memberIDs(snap, session, args[2:])
			if err != nil {
				return err
			}
			user := ids[0]

			assigned := make([]int, 0, len(task.Assigned)+1)
			switch {
			case remove && !task.IsAssigned(user):
				return fmt.Errorf("%s is not assigned to task %s", args[2], args[1])
			case remove:
				for _, id := range task.Assigned {
					if id != user {
						assigned = append(assigned, id)
					}
				}
			case task.IsAssigned(user):
				return fmt.Errorf("%s is already assigned to task %s", args[2], args[1])
			default:
				assigned = sortedUnique(append(append(assigned, task.Assigned...), user))
			}
			return a.mutate(cmd.Context(), snap, args[1], taiga.Patch{Assigned: assigned})
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the user instead of adding them")
	return cmd
}

func newDueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "due <project> <id> [date]",
		Short: "Set the due date of a task, or clear it when no date is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.Never)
			if err != nil {
				return err
			}
			patch := taiga.Patch{ClearDue: true}
			if len(args) == 3 {
				due, err := a.parseDue(args[2])
				if err != nil {
					return err
				}
				patch = taiga.Patch{Due: due}
			}
			return a.mutate(cmd.Context(), snap, args[1], patch)
		},
	}
}

type flagField int

const (
	flagTeam flagField = iota
	flagClient
	flagBlocked
)

func (f flagField) patch(v bool) taiga.Patch {
	switch f {
	case flagTeam:
		return taiga.Patch{Team: &v}
	case flagClient:
		return taiga.Patch{Client: &v}
	default:
		return taiga.Patch{Blocked: &v}
	}
}

// newFlagCmd builds the team, client and block commands, which only differ
// in the field they set.
func newFlagCmd(a *app, use, short string, field flagField) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   use + " <project> <id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.Never)
			if err != nil {
				return err
			}
			return a.mutate(cmd.Context(), snap, args[1], field.patch(!remove))
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "Clear the flag instead of setting it")
	return cmd
}

func newModifyCmd(a *app) *cobra.Command {
	var (
		status, name, due     string
		assign                []string
		team, client, blocked bool
	)
	cmd := &cobra.Command{
		Use:     "modify <project> <id>",
		Aliases: []string{"mod"},
		Short:   "Change several fields of a task at once",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rules := memberRules(assign)
			if status != "" {
				rules = append(rules, snapshot.MissingStatus(status))
			}
			session, snap, err := a.open(ctx, args[0], snapshot.Any(rules...))
			if err != nil {
				return err
			}
			task, err := taskAt(snap, args[1])
			if err != nil {
				return err
			}

			patch := taiga.Patch{
				Team:    optionalBool(cmd, "team", team),
				Client:  optionalBool(cmd, "client", client),
				Blocked: optionalBool(cmd, "blocked", blocked),
			}
			if status != "" {
				st, err := snap.StatusBySlug(status)
				if err != nil {
					return err
				}
				patch.Status = &st.ID
			}
			if name != "" {
				patch.Subject = &name
			}
			if len(assign) > 0 {
				ids, err := memberIDs(snap, session, assign)
				if err != nil {
					return err
				}
				patch.Assigned = sortedUnique(append(append([]int(nil), task.Assigned...), ids...))
			}
			if cmd.Flags().Changed("due") {
				if due == "" {
					patch.ClearDue = true
				} else if patch.Due, err = a.parseDue(due); err != nil {
					return err
				}
			}
			return a.mutate(ctx, snap, args[1], patch)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&status, "status", "s", "", "New status slug")
	f.StringVarP(&name, "name", "n", "", "New name")
	f.StringSliceVarP(&assign, "assign", "a", nil, "Users to add to the assignees")
	f.StringVar(&due, "due", "", "New due date; \"\" clears it")
	f.BoolVar(&team, "team", false, "Set or clear (--team=false) the team flag")
	f.BoolVar(&client, "client", false, "Set or clear (--client=false) the client flag")
	f.BoolVar(&blocked, "blocked", false, "Set or clear (--blocked=false) the blocked flag")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <project> <id>",
		Aliases: []string{"del"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snap, err := a.open(cmd.Context(), args[0], snapshot.NoStatuses)
			if err != nil {
				return err
			}
			task, err := taskAt(snap, args[1])
			if err != nil {
				return err
			}
			name := task.Name
			if err := a.protocol.Delete(cmd.Context(), snap, task.ID); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted task %s: %s\n", args[1], name)
			return nil
		},
	}
}

func sortedUnique(ids []int) []int {
	out := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
