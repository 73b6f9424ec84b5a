package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taigo/pkg/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	return store
}

func TestPutGet(t *testing.T) {
	store := openStore(t)

	require.NoError(t, store.Put("tasks:7", []byte("hello")))
	got, ok, err := store.Get("tasks:7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, store.Put("tasks:7", []byte("replaced")))
	got, _, err = store.Get("tasks:7")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files should be left behind")
	assert.Equal(t, FileName("tasks:7"), entries[0].Name())

	info, err := os.Stat(filepath.Join(store.Dir(), entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

func TestGetMissing(t *testing.T) {
	store := openStore(t)

	got, ok, err := store.Get("project:1")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	var snap model.Snapshot
	ok, err = store.GetValue("project:1", &snap)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFileNameIsStable(t *testing.T) {
	assert.Equal(t, FileName("project:7"), FileName("project:7"))
	assert.NotEqual(t, FileName("project:7"), FileName("tasks:7"))
	assert.Len(t, FileName("anything at all, even / slashes"), 40)
}

func TestDeleteAndClear(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Put("a", []byte("1")))
	require.NoError(t, store.Put("b", []byte("2")))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "taigo.log"), []byte("log"), 0600))

	require.NoError(t, store.Delete("a"))
	require.NoError(t, store.Delete("a"))
	_, ok, err := store.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear())
	_, ok, err = store.Get("b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, filepath.Join(store.Dir(), "taigo.log"))
}

func TestValueRoundTrip(t *testing.T) {
	store := openStore(t)
	due := model.NewDate(2024, time.March, 9)
	snap := model.Snapshot{
		ProjectID: 7,
		Tasks: []model.Task{
			{ID: 1, Ref: 12, Name: "write docs", StatusID: 2, StatusSlug: "in-progress", Team: true, Assigned: []int{3, 4}, Due: &due, Version: 9},
			{ID: 2, Name: "ship", StatusID: 1, StatusSlug: "new", Blocked: true, Client: true, Closed: true, Version: 1},
		},
		Members:   []model.User{{ID: 3, Username: "alice", FullName: "Alice A"}, {ID: 4, Username: "bob"}},
		Statuses:  []model.Status{{ID: 1, Name: "New", Slug: "new", Order: 1}, {ID: 2, Name: "In progress", Slug: "in-progress", Order: 2, IsClosed: false}},
		FetchedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.PutValue("tasks:7", snap))

	var got model.Snapshot
	ok, err := store.GetValue("tasks:7", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.FetchedAt.Equal(got.FetchedAt))
	got.FetchedAt = snap.FetchedAt
	assert.Equal(t, snap, got)

	project := model.Project{ID: 7, Name: "Website", Members: snap.Members, Statuses: snap.Statuses}
	require.NoError(t, store.PutValue("project:7", project))
	var gotProject model.Project
	ok, err = store.GetValue("project:7", &gotProject)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, project, gotProject)
}

func TestCorruptEntries(t *testing.T) {
	store := openStore(t)
	valid, err := Encode(model.Snapshot{ProjectID: 7, Tasks: []model.Task{{ID: 1, Name: "a task with a long enough name"}}})
	require.NoError(t, err)

	wrongVersion := append([]byte{}, valid...)
	wrongVersion[len(magic)] = FormatVersion + 1

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"no header", []byte("plain text")},
		{"future format", wrongVersion},
		{"truncated", valid[:len(valid)/2]},
		{"garbage payload", append([]byte(magic), FormatVersion, 0xc1, 0xc1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.Put("tasks:7", tt.data))
			var snap model.Snapshot
			ok, err := store.GetValue("tasks:7", &snap)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
