package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/overdue"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	overdueStyle = cellStyle.Foreground(lipgloss.Color("#EF4444"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

const dueColumn = 2

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...)
}

// renderTasks prints the listing commands address tasks by: the first
// column is the 1-based position of each task.
func renderTasks(snap *model.Snapshot, now time.Time) string {
	if len(snap.Tasks) == 0 {
		return "No tasks match."
	}

	late := make(map[int]bool)
	rows := make([][]string, 0, len(snap.Tasks))
	for i := range snap.Tasks {
		t := &snap.Tasks[i]
		due := ""
		if t.Due != nil {
			due = overdue.Label(*t.Due, now)
			late[i] = overdue.Overdue(*t.Due, now)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			statusName(snap, t),
			due,
			t.Name,
			assignees(snap, t),
			mark(t.Team),
			mark(t.Client),
			mark(t.Blocked),
		})
	}

	return newTable("ID", "STATUS", "DUE", "NAME", "ASSIGN", "T", "C", "B").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == dueColumn && late[row]:
				return overdueStyle
			}
			return cellStyle
		}).
		String()
}

func renderMembers(snap *model.Snapshot) string {
	rows := make([][]string, 0, len(snap.Members))
	for _, m := range snap.Members {
		rows = append(rows, []string{strconv.Itoa(m.ID), m.Username, m.FullName})
	}
	return newTable("ID", "USERNAME", "NAME").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func statusName(snap *model.Snapshot, t *model.Task) string {
	for _, st := range snap.Statuses {
		if st.ID == t.StatusID {
			return st.Name
		}
	}
	return t.StatusSlug
}

func assignees(snap *model.Snapshot, t *model.Task) string {
	names := make([]string, 0, len(t.Assigned))
	for _, id := range t.Assigned {
		if m, err := snap.MemberByID(id); err == nil {
			names = append(names, m.Username)
		} else {
			names = append(names, fmt.Sprintf("#%d", id))
		}
	}
	return strings.Join(names, ", ")
}

func mark(set bool) string {
	if set {
		return "x"
	}
	return ""
}
