package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/snapshot"
	"github.com/harrisonrobin/taigo/pkg/util"
	"github.com/harrisonrobin/taigo/pkg/when"
)

type searchOptions struct {
	statuses        []string
	excludeStatuses []string
	assigned        []string
	excludeAssigned []string
	due             string
	team            bool
	client          bool
	blocked         bool
}

// staleRules refetch the project detail when a filter names a status or
// member it does not know yet.
func (o searchOptions) staleRules() []snapshot.StaleRule {
	rules := memberRules(append(append([]string(nil), o.assigned...), o.excludeAssigned...))
	for _, slug := range append(append([]string(nil), o.statuses...), o.excludeStatuses...) {
		rules = append(rules, snapshot.MissingStatus(slug))
	}
	return rules
}

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions
	cmd := &cobra.Command{
		Use:   "search <project> [words...]",
		Short: "Fetch and list the open tasks of a project",
		Long: `Fetch every task of a project and list the open ones matching the
filters, sorted by status. Words must appear in the task name in order.
The listing is remembered: other commands take the ID column it prints.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := a.session(ctx)
			if err != nil {
				return err
			}
			id, err := a.projectID(args[0])
			if err != nil {
				return err
			}
			if _, err := a.snapshots.Refresh(ctx, id); err != nil {
				return err
			}
			snap, err := a.snapshots.Get(ctx, id, snapshot.Any(opts.staleRules()...))
			if err != nil {
				return err
			}

			filter := util.Filter{
				Query:   args[1:],
				Team:    optionalBool(cmd, "team", opts.team),
				Client:  optionalBool(cmd, "client", opts.client),
				Blocked: optionalBool(cmd, "blocked", opts.blocked),
			}
			if filter.IncludeStatuses, err = statusIDs(snap, opts.statuses); err != nil {
				return err
			}
			if filter.ExcludeStatuses, err = statusIDs(snap, opts.excludeStatuses); err != nil {
				return err
			}
			if filter.IncludeAssigned, err = memberIDs(snap, session, opts.assigned); err != nil {
				return err
			}
			if filter.ExcludeAssigned, err = memberIDs(snap, session, opts.excludeAssigned); err != nil {
				return err
			}
			if cmd.Flags().Changed("due") {
				if opts.due == "" {
					filter.NoDue = true
				} else {
					d, err := when.Parse(opts.due, a.now())
					if err != nil {
						return err
					}
					filter.DueBy = &d
				}
			}

			snap.Tasks = filter.Apply(openByStatus(snap.Tasks))
			if err := a.snapshots.Save(snap); err != nil {
				return err
			}
			fmt.Fprintln(a.out, renderTasks(snap, a.now()))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.statuses, "status", "s", nil, "Only tasks in these statuses (slugs)")
	f.StringSliceVarP(&opts.excludeStatuses, "exclude-status", "S", nil, "Skip tasks in these statuses (slugs)")
	f.StringSliceVarP(&opts.assigned, "assigned", "a", nil, "Only tasks assigned to one of these users (\"me\" for yourself)")
	f.StringSliceVarP(&opts.excludeAssigned, "exclude-assigned", "A", nil, "Skip tasks assigned to any of these users")
	f.StringVar(&opts.due, "due", "", "Only tasks due on or before this date; \"\" for tasks without a due date")
	f.BoolVar(&opts.team, "team", false, "Only tasks needing the team (--team=false for the opposite)")
	f.BoolVar(&opts.client, "client", false, "Only tasks needing the client (--client=false for the opposite)")
	f.BoolVar(&opts.blocked, "blocked", false, "Only blocked tasks (--blocked=false for the opposite)")
	return cmd
}

// openByStatus drops closed tasks and sorts the rest by status id,
// highest first. Tasks sharing a status keep their order.
func openByStatus(tasks []model.Task) []model.Task {
	open := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Closed {
			open = append(open, t)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].StatusID > open[j].StatusID
	})
	return open
}

// optionalBool returns nil unless the flag was given on the command line.
func optionalBool(cmd *cobra.Command, name string, v bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
