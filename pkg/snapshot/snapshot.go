// Package snapshot caches the task list of a project between invocations
// and refetches it only when the caller's staleness rule asks for it.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harrisonrobin/taigo/pkg/cache"
	"github.com/harrisonrobin/taigo/pkg/logger"
	"github.com/harrisonrobin/taigo/pkg/metrics"
	"github.com/harrisonrobin/taigo/pkg/model"
)

// ErrInvalidProjectReference means the project's task list was never
// fetched through a listing, so there is nothing to address tasks in.
var ErrInvalidProjectReference = errors.New("no cached task list for this project")

// Fetcher is the part of the remote client the cache needs.
type Fetcher interface {
	GetProject(ctx context.Context, id int) (*model.Project, error)
	ListTasks(ctx context.Context, projectID int) ([]model.Task, error)
}

func TasksKey(projectID int) string {
	return fmt.Sprintf("tasks:%d", projectID)
}

func ProjectKey(projectID int) string {
	return fmt.Sprintf("project:%d", projectID)
}

// Cache reads and writes project snapshots in a cache.Store.
type Cache struct {
	store   *cache.Store
	fetch   Fetcher
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Recorder
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = logger.OrDiscard(l) }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = r }
}

func New(store *cache.Store, fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		store: store,
		fetch: fetch,
		now:   time.Now,
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot of a project. When stale reports true for
// it, the project and its tasks are fetched once, persisted, and the fresh
// snapshot is returned without consulting stale again.
func (c *Cache) Get(ctx context.Context, projectID int, stale StaleRule) (*model.Snapshot, error) {
	snap, err := c.load(projectID)
	if err != nil {
		return nil, err
	}
	if stale == nil || !stale(snap) {
		return snap, nil
	}

	c.log.Info("cached task list does not satisfy the request, refetching", "project", projectID)
	c.metrics.SnapshotFetch("stale")

	project, err := c.Project(ctx, projectID, true)
	if err != nil {
		return nil, err
	}
	tasks, err := c.fetch.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	fresh := &model.Snapshot{
		ProjectID: projectID,
		Tasks:     c.keepOrder(snap.Tasks, tasks),
		Members:   project.Members,
		Statuses:  project.Statuses,
		FetchedAt: c.now(),
	}
	if err := c.Save(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Refresh fetches every task of a project and persists the result as its
// snapshot. Members and statuses come from the cached project detail unless
// a task is assigned to someone it does not list.
func (c *Cache) Refresh(ctx context.Context, projectID int) (*model.Snapshot, error) {
	c.metrics.SnapshotFetch("explicit")

	tasks, err := c.fetch.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project, err := c.Project(ctx, projectID, false)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		ProjectID: projectID,
		Tasks:     tasks,
		Members:   project.Members,
		Statuses:  project.Statuses,
		FetchedAt: c.now(),
	}
	if MissingAssignees(snap) {
		c.log.Debug("task assigned to unknown member, refetching project", "project", projectID)
		if project, err = c.Project(ctx, projectID, true); err != nil {
			return nil, err
		}
		snap.Members = project.Members
		snap.Statuses = project.Statuses
	}

	if err := c.Save(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Save persists snap as the snapshot of its project.
func (c *Cache) Save(snap *model.Snapshot) error {
	if err := c.store.PutValue(TasksKey(snap.ProjectID), snap); err != nil {
		return fmt.Errorf("failed to save task list of project %d: %w", snap.ProjectID, err)
	}
	return nil
}

// Project returns the detail of a project, from the cache unless refresh is
// set or nothing is cached yet. Fetched details are persisted.
func (c *Cache) Project(ctx context.Context, projectID int, refresh bool) (*model.Project, error) {
	if !refresh {
		var project model.Project
		ok, err := c.store.GetValue(ProjectKey(projectID), &project)
		if err != nil {
			return nil, err
		}
		if ok {
			return &project, nil
		}
	}

	project, err := c.fetch.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := c.store.PutValue(ProjectKey(projectID), project); err != nil {
		return nil, fmt.Errorf("failed to save project %d: %w", projectID, err)
	}
	return project, nil
}

func (c *Cache) load(projectID int) (*model.Snapshot, error) {
	var snap model.Snapshot
	ok, err := c.store.GetValue(TasksKey(projectID), &snap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w (project %d)", ErrInvalidProjectReference, projectID)
	}
	return &snap, nil
}

// keepOrder lays out fresh tasks so the ones already listed keep their
// relative positions. Open tasks that are new remotely follow in remote
// order.
func (c *Cache) keepOrder(cached, fresh []model.Task) []model.Task {
	byID := make(map[int]model.Task, len(fresh))
	for _, t := range fresh {
		byID[t.ID] = t
	}

	out := make([]model.Task, 0, len(fresh))
	seen := make(map[int]bool, len(cached))
	for _, t := range cached {
		if f, ok := byID[t.ID]; ok {
			out = append(out, f)
			seen[t.ID] = true
		} else {
			c.log.Warn("cached task no longer exists remotely", "task", t.ID)
		}
	}
	for _, t := range fresh {
		if !seen[t.ID] && !t.Closed {
			out = append(out, t)
		}
	}
	return out
}
