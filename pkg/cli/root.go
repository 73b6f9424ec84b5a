// Package cli defines the cobra commands of taigo. Every command runs
// against the cached snapshot of a project and only talks to the service
// when the snapshot cannot answer it.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/taigo/pkg/auth"
	"github.com/harrisonrobin/taigo/pkg/cache"
	"github.com/harrisonrobin/taigo/pkg/index"
	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/snapshot"
	"github.com/harrisonrobin/taigo/pkg/taiga"
)

var version = "dev" // set via ldflags at build time

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "taigo",
		Short: "Manage Taiga user stories from the command line",
		Long: `taigo keeps a local copy of each project's task list so most commands
run without a round trip. List projects with 'taigo projects', then
'taigo search <project>' to list its tasks; other commands address tasks
by the position printed in that listing.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: a.runProjectNames,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newProjectsCmd(a),
		newUsersCmd(a),
		newSearchCmd(a),
		newNewCmd(a),
		newMoveCmd(a),
		newDoneCmd(a),
		newRenameCmd(a),
		newAssignCmd(a),
		newDueCmd(a),
		newFlagCmd(a, "team", "Mark a task as needing the team", flagTeam),
		newFlagCmd(a, "client", "Mark a task as needing the client", flagClient),
		newFlagCmd(a, "block", "Mark a task as blocked", flagBlocked),
		newModifyCmd(a),
		newDeleteCmd(a),
		newConfigCmd(a),
	)
	return root
}

// run executes args and returns the error, if any, already explained.
func run(ctx context.Context, a *app, args []string) error {
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		a.log.Error("command failed", "args", args, "error", err)
		return errors.New(explain(err))
	}
	return nil
}

// Execute runs the command line of the process and returns its exit code.
func Execute() int {
	return execute(os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
}

func execute(in io.Reader, out, errOut io.Writer, args []string) int {
	if err := run(context.Background(), newApp(in, out, errOut), args); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return 1
	}
	return 0
}

// explain adds what the user can do about err to its message.
func explain(err error) string {
	msg := err.Error()
	var conflict *taiga.ConflictError
	switch {
	case errors.Is(err, cache.ErrCorrupt):
		return msg + "\nThe local cache is unreadable. Run 'taigo logout --purge' and log in again."
	case errors.Is(err, auth.ErrNotLoggedIn):
		return msg + "\nRun 'taigo login' first."
	case errors.Is(err, auth.ErrAuth):
		return msg + "\nCheck the address and credentials with 'taigo login'."
	case errors.Is(err, index.ErrProjectNotFound):
		return msg + "\nRun 'taigo projects' to refresh the project list."
	case errors.Is(err, snapshot.ErrInvalidProjectReference):
		return msg + "\nRun 'taigo search <project>' to list its tasks first."
	case errors.As(err, &conflict):
		return msg + "\nRun 'taigo search <project>' to see its current state."
	case errors.Is(err, model.ErrTaskNotFound):
		return msg + "\nPositions refer to the last 'taigo search' listing."
	}
	return msg
}
