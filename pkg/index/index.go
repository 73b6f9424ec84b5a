// Package index maps project names to ids so commands can address projects
// by name without a round trip.
package index

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/harrisonrobin/taigo/pkg/cache"
	"github.com/harrisonrobin/taigo/pkg/model"
)

// Key is the cache key of the project index.
const Key = "projects"

var ErrProjectNotFound = errors.New("project not found")

type ProjectIndex struct {
	Projects map[string]int
	store    *cache.Store
	mu       sync.RWMutex
	dirty    bool
}

// Load reads the index from store. A missing index is empty.
func Load(store *cache.Store) (*ProjectIndex, error) {
	idx := &ProjectIndex{
		Projects: make(map[string]int),
		store:    store,
	}
	var projects map[string]int
	ok, err := store.GetValue(Key, &projects)
	if err != nil {
		return nil, err
	}
	if ok && projects != nil {
		idx.Projects = projects
	}
	return idx, nil
}

func (idx *ProjectIndex) Save() error {
	idx.mu.RLock()
	if !idx.dirty {
		idx.mu.RUnlock()
		return nil
	}
	idx.mu.RUnlock()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.store.PutValue(Key, idx.Projects); err != nil {
		return fmt.Errorf("failed to save project index: %w", err)
	}
	idx.dirty = false
	return nil
}

// Find returns the id of the project called name. An exact match wins over
// a case-insensitive one, which must then be unique.
func (idx *ProjectIndex) Find(name string) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if id, ok := idx.Projects[name]; ok {
		return id, nil
	}
	found, matches := 0, 0
	for n, id := range idx.Projects {
		if strings.EqualFold(n, name) {
			found = id
			matches++
		}
	}
	if matches == 1 {
		return found, nil
	}
	return 0, fmt.Errorf("%w: '%s'", ErrProjectNotFound, name)
}

// Names returns the indexed project names in alphabetical order.
func (idx *ProjectIndex) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	names := make([]string, 0, len(idx.Projects))
	for n := range idx.Projects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (idx *ProjectIndex) Set(name string, id int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if current, ok := idx.Projects[name]; !ok || current != id {
		idx.Projects[name] = id
		idx.dirty = true
	}
}

// Replace makes projects the whole content of the index.
func (idx *ProjectIndex) Replace(projects []model.Project) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next := make(map[string]int, len(projects))
	for _, p := range projects {
		next[p.Name] = p.ID
	}
	if len(next) != len(idx.Projects) {
		idx.dirty = true
	}
	for n, id := range next {
		if current, ok := idx.Projects[n]; !ok || current != id {
			idx.dirty = true
		}
	}
	idx.Projects = next
}
