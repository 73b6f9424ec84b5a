// Package when turns date expressions such as "tomorrow", "3d", "15th",
// "fri" or "eom" into calendar dates.
package when

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taigo/pkg/model"
)

var ErrUnrecognized = errors.New("unrecognized date expression")

// Absolute layouts, tried in order before any relative form.
var layouts = []string{"2/1/2006", "2-1-2006", "2006-1-2", "2006/1/2"}

var relative = regexp.MustCompile(`^(-?\d+)([a-z]+)$`)

var weekdays = map[string]time.Weekday{
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
	"sun": time.Sunday, "sunday": time.Sunday,
}

// Parse resolves expr relative to the day of now.
func Parse(expr string, now time.Time) (model.Date, error) {
	raw := strings.TrimSpace(expr)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return model.DateOf(t), nil
		}
	}

	today := model.DateOf(now)
	s := strings.ToLower(raw)

	switch s {
	case "now", "today":
		return today, nil
	case "yes", "yesterday":
		return today.AddDays(-1), nil
	case "tom", "tomorrow":
		return today.AddDays(1), nil
	}

	if m := relative.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			if d, ok := fromNumber(today, n, m[2]); ok {
				return d, nil
			}
		}
	}

	switch s {
	case "sow", "soww", "eow":
		return nextWeekday(today, time.Monday), nil
	case "eoww":
		return nextWeekday(today, time.Saturday), nil
	case "som":
		return startOfNextMonth(today), nil
	case "soq":
		return startOfNextQuarter(today), nil
	case "soy":
		return model.NewDate(today.Year+1, time.January, 1), nil
	case "eom":
		return startOfNextMonth(today).AddDays(-1), nil
	case "eoq":
		return startOfNextQuarter(today).AddDays(-1), nil
	case "eoy":
		return model.NewDate(today.Year, time.December, 31), nil
	}
	if wd, ok := weekdays[s]; ok {
		return nextWeekday(today, wd), nil
	}

	return model.Date{}, fmt.Errorf("%w: '%s'", ErrUnrecognized, expr)
}

func fromNumber(today model.Date, n int, unit string) (model.Date, bool) {
	switch unit {
	case "st", "nd", "rd", "th":
		if ordinalSuffix(n) != unit {
			return model.Date{}, false
		}
		return nextDayOfMonth(today, n), true
	case "d", "day", "days":
		return today.AddDays(n), true
	case "w", "wk", "wks", "week", "weeks":
		return today.AddDays(7 * n), true
	case "m", "mth", "mths", "month", "months":
		return today.AddDays(30 * n), true
	case "y", "yr", "yrs", "year", "years":
		return today.AddDays(365 * n), true
	}
	return model.Date{}, false
}

// ordinalSuffix returns the suffix accepted for day n, or "" when n is not
// a day of the month.
func ordinalSuffix(n int) string {
	switch {
	case n < 1 || n > 31:
		return ""
	case n >= 11 && n <= 13:
		return "th"
	case n%10 == 1:
		return "st"
	case n%10 == 2:
		return "nd"
	case n%10 == 3:
		return "rd"
	}
	return "th"
}

// nextWeekday returns the first wd strictly after today.
func nextWeekday(today model.Date, wd time.Weekday) model.Date {
	days := (int(wd) - int(today.Time().Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDays(days)
}

// nextDayOfMonth returns the next date after today falling on day, skipping
// months too short to have it.
func nextDayOfMonth(today model.Date, day int) model.Date {
	year, month := today.Year, today.Month
	if today.Day >= day {
		year, month = addMonth(year, month)
	}
	for {
		if d := model.NewDate(year, month, day); d.Day == day {
			return d
		}
		year, month = addMonth(year, month)
	}
}

func addMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}

func startOfNextMonth(today model.Date) model.Date {
	year, month := addMonth(today.Year, today.Month)
	return model.NewDate(year, month, 1)
}

func startOfNextQuarter(today model.Date) model.Date {
	quarter := (int(today.Month) - 1) / 3
	if quarter == 3 {
		return model.NewDate(today.Year+1, time.January, 1)
	}
	return model.NewDate(today.Year, time.Month((quarter+1)*3+1), 1)
}
