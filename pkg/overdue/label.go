// Package overdue renders due dates relative to now.
package overdue

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/taigo/pkg/model"
)

const day = 24 * time.Hour

// Label describes how far due lies from now in the largest fitting unit:
// years, months (30 days), weeks, days, else hours. Past dates are
// prefixed with '-'. A due date is taken as midnight UTC of that day.
func Label(due model.Date, now time.Time) string {
	d := due.Time().Sub(now)
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}

	days := int(d / day)
	switch {
	case days >= 365:
		return fmt.Sprintf("%s%dy", sign, days/365)
	case days >= 30:
		return fmt.Sprintf("%s%dm", sign, days/30)
	case days >= 7:
		return fmt.Sprintf("%s%dw", sign, days/7)
	case days >= 1:
		return fmt.Sprintf("%s%dd", sign, days)
	}
	return fmt.Sprintf("%s%dh", sign, int(d/time.Hour))
}

// Overdue reports whether due lies before the day of now.
func Overdue(due model.Date, now time.Time) bool {
	return due.Before(model.DateOf(now))
}
