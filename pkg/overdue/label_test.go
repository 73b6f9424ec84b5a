package overdue

import (
	"testing"
	"time"

	"github.com/harrisonrobin/taigo/pkg/model"
)

func TestLabel(t *testing.T) {
	now := time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		due  model.Date
		want string
	}{
		{model.NewDate(2026, time.March, 10), "-6h"},
		{model.NewDate(2026, time.March, 11), "18h"},
		{model.NewDate(2026, time.March, 12), "1d"},
		{model.NewDate(2026, time.March, 17), "6d"},
		{model.NewDate(2026, time.March, 18), "1w"},
		{model.NewDate(2026, time.April, 10), "1m"},
		{model.NewDate(2027, time.March, 11), "1y"},
		{model.NewDate(2026, time.March, 1), "-1w"},
		{model.NewDate(2026, time.March, 8), "-2d"},
		{model.NewDate(2025, time.January, 1), "-1y"},
	}
	for _, tt := range tests {
		if got := Label(tt.due, now); got != tt.want {
			t.Errorf("Label(%s) = %q, want %q", tt.due, got, tt.want)
		}
	}
}

func TestOverdue(t *testing.T) {
	now := time.Date(2026, time.March, 10, 23, 0, 0, 0, time.UTC)
	if Overdue(model.NewDate(2026, time.March, 10), now) {
		t.Error("a task due today is not overdue")
	}
	if !Overdue(model.NewDate(2026, time.March, 9), now) {
		t.Error("a task due yesterday is overdue")
	}
}
