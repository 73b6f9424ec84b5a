package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		ProjectID: 7,
		Tasks: []Task{
			{ID: 10, Name: "first", Version: 1},
			{ID: 11, Name: "second", Version: 4},
			{ID: 12, Name: "third", Version: 2},
		},
		Members: []User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}},
		Statuses: []Status{
			{ID: 1, Slug: "new", Order: 1},
			{ID: 2, Slug: "in-progress", Order: 2},
			{ID: 3, Slug: "done", Order: 3},
		},
	}
}

func TestDoneStatus(t *testing.T) {
	t.Run("closed flag wins", func(t *testing.T) {
		snap := sampleSnapshot()
		snap.Statuses = append(snap.Statuses, Status{ID: 4, Slug: "archived", IsClosed: true, Order: 4})
		st, err := snap.DoneStatus()
		require.NoError(t, err)
		assert.Equal(t, 4, st.ID)
	})

	t.Run("done slug", func(t *testing.T) {
		snap := sampleSnapshot()
		snap.Statuses = append(snap.Statuses, Status{ID: 5, Slug: "later", Order: 9})
		st, err := snap.DoneStatus()
		require.NoError(t, err)
		assert.Equal(t, 3, st.ID)
	})

	t.Run("last in order", func(t *testing.T) {
		snap := sampleSnapshot()
		snap.Statuses = []Status{{ID: 8, Slug: "b", Order: 2}, {ID: 9, Slug: "c", Order: 3}, {ID: 7, Slug: "a", Order: 1}}
		st, err := snap.DoneStatus()
		require.NoError(t, err)
		assert.Equal(t, 9, st.ID)
	})

	t.Run("no statuses", func(t *testing.T) {
		_, err := (&Snapshot{}).DoneStatus()
		assert.ErrorIs(t, err, ErrNoStatuses)
	})
}

func TestLookups(t *testing.T) {
	snap := sampleSnapshot()

	st, err := snap.StatusBySlug("in-progress")
	require.NoError(t, err)
	assert.Equal(t, 2, st.ID)

	_, err = snap.StatusBySlug("review")
	assert.ErrorIs(t, err, ErrStatusNotFound)

	m, err := snap.MemberByUsername("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, m.ID)

	_, err = snap.MemberByID(42)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	first, err := snap.FirstStatus()
	require.NoError(t, err)
	assert.Equal(t, "new", first.Slug)
}

func TestTaskAt(t *testing.T) {
	snap := sampleSnapshot()

	task, err := snap.TaskAt(2)
	require.NoError(t, err)
	assert.Equal(t, 11, task.ID)

	for _, pos := range []int{0, 4, -1} {
		_, err := snap.TaskAt(pos)
		assert.ErrorIs(t, err, ErrTaskNotFound, "position %d", pos)
	}
}

func TestReplaceAndRemove(t *testing.T) {
	snap := sampleSnapshot()

	ok := snap.Replace(Task{ID: 11, Name: "renamed", Version: 5})
	require.True(t, ok)
	assert.Equal(t, "renamed", snap.Tasks[1].Name)
	assert.Equal(t, 5, snap.Tasks[1].Version)
	assert.Len(t, snap.Tasks, 3)

	assert.False(t, snap.Replace(Task{ID: 99}))

	require.True(t, snap.Remove(10))
	assert.Equal(t, 11, snap.Tasks[0].ID)
	assert.False(t, snap.Remove(10))

	snap.Append(Task{ID: 13})
	assert.Equal(t, 13, snap.Tasks[len(snap.Tasks)-1].ID)
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, Date{2024, time.February, 28}, d)
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.True(t, d.Before(d.AddDays(1)))

	var parsed Date
	require.NoError(t, parsed.UnmarshalText([]byte("2023-12-31")))
	text, err := parsed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", string(text))

	_, err = ParseDate("31/12/2023")
	assert.Error(t, err)
}
