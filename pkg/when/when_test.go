package when

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taigo/pkg/model"
)

func TestParse(t *testing.T) {
	// A Wednesday.
	now := time.Date(2026, time.October, 14, 16, 45, 0, 0, time.UTC)

	tests := map[string]model.Date{
		"today":      model.NewDate(2026, time.October, 14),
		"now":        model.NewDate(2026, time.October, 14),
		"Tomorrow":   model.NewDate(2026, time.October, 15),
		"tom":        model.NewDate(2026, time.October, 15),
		"yesterday":  model.NewDate(2026, time.October, 13),
		"3d":         model.NewDate(2026, time.October, 17),
		"-2d":        model.NewDate(2026, time.October, 12),
		"2w":         model.NewDate(2026, time.October, 28),
		"1weeks":     model.NewDate(2026, time.October, 21),
		"1m":         model.NewDate(2026, time.November, 13),
		"1y":         model.NewDate(2027, time.October, 14),
		"15th":       model.NewDate(2026, time.October, 15),
		"14th":       model.NewDate(2026, time.November, 14),
		"1st":        model.NewDate(2026, time.November, 1),
		"31st":       model.NewDate(2026, time.October, 31),
		"21st":       model.NewDate(2026, time.October, 21),
		"22nd":       model.NewDate(2026, time.October, 22),
		"23rd":       model.NewDate(2026, time.October, 23),
		"11th":       model.NewDate(2026, time.November, 11),
		"12th":       model.NewDate(2026, time.November, 12),
		"13th":       model.NewDate(2026, time.November, 13),
		"fri":        model.NewDate(2026, time.October, 16),
		"wednesday":  model.NewDate(2026, time.October, 21),
		"mon":        model.NewDate(2026, time.October, 19),
		"sow":        model.NewDate(2026, time.October, 19),
		"eow":        model.NewDate(2026, time.October, 19),
		"eoww":       model.NewDate(2026, time.October, 17),
		"som":        model.NewDate(2026, time.November, 1),
		"eom":        model.NewDate(2026, time.October, 31),
		"soq":        model.NewDate(2027, time.January, 1),
		"eoq":        model.NewDate(2026, time.December, 31),
		"soy":        model.NewDate(2027, time.January, 1),
		"eoy":        model.NewDate(2026, time.December, 31),
		"25/12/2026": model.NewDate(2026, time.December, 25),
		"25-12-2026": model.NewDate(2026, time.December, 25),
		"2026-12-25": model.NewDate(2026, time.December, 25),
		"2026/12/25": model.NewDate(2026, time.December, 25),
		"5/3/2026":   model.NewDate(2026, time.March, 5),
	}
	for expr, want := range tests {
		t.Run(expr, func(t *testing.T) {
			got, err := Parse(expr, now)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	now := time.Date(2026, time.October, 14, 0, 0, 0, 0, time.UTC)
	for _, expr := range []string{"", "someday", "2th", "21th", "22th", "31th", "11st", "12nd", "13rd", "32nd", "0th", "3x", "31/02/2026"} {
		_, err := Parse(expr, now)
		assert.ErrorIs(t, err, ErrUnrecognized, expr)
	}
}

func TestParseSkipsShortMonths(t *testing.T) {
	now := time.Date(2026, time.January, 31, 12, 0, 0, 0, time.UTC)
	got, err := Parse("30th", now)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2026, time.March, 30), got)
}

func TestParseQuarters(t *testing.T) {
	now := time.Date(2026, time.February, 3, 12, 0, 0, 0, time.UTC)
	got, err := Parse("soq", now)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2026, time.April, 1), got)

	got, err = Parse("eoq", now)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2026, time.March, 31), got)
}
