// Package mutation applies task changes remotely under optimistic
// concurrency and mirrors each accepted change into the cached snapshot.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harrisonrobin/taigo/pkg/logger"
	"github.com/harrisonrobin/taigo/pkg/metrics"
	"github.com/harrisonrobin/taigo/pkg/model"
	"github.com/harrisonrobin/taigo/pkg/taiga"
)

// Remote is the part of the API client that writes tasks.
type Remote interface {
	PatchTask(ctx context.Context, id int, p taiga.Patch, version int) (*model.Task, error)
	CreateTask(ctx context.Context, n taiga.NewTask) (*model.Task, error)
	DeleteTask(ctx context.Context, id int) error
}

// Saver persists snapshots. *snapshot.Cache implements it.
type Saver interface {
	Save(snap *model.Snapshot) error
}

type Protocol struct {
	remote  Remote
	saver   Saver
	log     *slog.Logger
	metrics *metrics.Recorder
}

type Option func(*Protocol)

func WithLogger(l *slog.Logger) Option {
	return func(p *Protocol) { p.log = logger.OrDiscard(l) }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Protocol) { p.metrics = r }
}

func New(remote Remote, saver Saver, opts ...Option) *Protocol {
	p := &Protocol{remote: remote, saver: saver, log: logger.Discard()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mutate sends patch for the task taskID of snap, based on the version snap
// holds for it. On success the task is replaced wholesale by the server's
// copy and snap is persisted. On any failure snap is left untouched.
func (p *Protocol) Mutate(ctx context.Context, snap *model.Snapshot, taskID int, patch taiga.Patch) (*model.Task, error) {
	i := snap.IndexOf(taskID)
	if i < 0 {
		return nil, fmt.Errorf("%w: id %d", model.ErrTaskNotFound, taskID)
	}
	if patch.IsEmpty() {
		return &snap.Tasks[i], nil
	}
	expected := snap.Tasks[i].Version

	updated, err := p.remote.PatchTask(ctx, taskID, patch, expected)
	if err != nil {
		p.recordFailure(err, taskID)
		return nil, err
	}
	if err := p.accept(snap, taskID, updated, expected); err != nil {
		return nil, err
	}
	p.log.Info("task updated", "task", taskID, "version", updated.Version)
	return &snap.Tasks[snap.IndexOf(taskID)], nil
}

// Create creates a task and appends it to snap. A non-empty followUp is then
// applied as a versioned patch, for the fields creation cannot set. When the
// follow-up fails the created task is still recorded and the error returned.
func (p *Protocol) Create(ctx context.Context, snap *model.Snapshot, n taiga.NewTask, followUp *taiga.Patch) (*model.Task, error) {
	created, err := p.remote.CreateTask(ctx, n)
	if err != nil {
		p.recordFailure(err, 0)
		return nil, err
	}
	snap.Append(*created)
	if err := p.save(snap); err != nil {
		return nil, err
	}
	p.metrics.Mutation(metrics.OutcomeOK)
	p.log.Info("task created", "task", created.ID, "project", snap.ProjectID)

	if followUp == nil || followUp.IsEmpty() {
		return &snap.Tasks[len(snap.Tasks)-1], nil
	}
	task, err := p.Mutate(ctx, snap, created.ID, *followUp)
	if err != nil {
		return nil, fmt.Errorf("task %d was created but updating its fields failed: %w", created.ID, err)
	}
	return task, nil
}

// Delete removes the task remotely, then from snap, and persists snap.
func (p *Protocol) Delete(ctx context.Context, snap *model.Snapshot, taskID int) error {
	if snap.IndexOf(taskID) < 0 {
		return fmt.Errorf("%w: id %d", model.ErrTaskNotFound, taskID)
	}
	if err := p.remote.DeleteTask(ctx, taskID); err != nil {
		p.recordFailure(err, taskID)
		return err
	}
	snap.Remove(taskID)
	if err := p.save(snap); err != nil {
		return err
	}
	p.metrics.Mutation(metrics.OutcomeOK)
	p.log.Info("task deleted", "task", taskID)
	return nil
}

// accept checks the server's copy against the expected version and swaps
// it into snap before persisting.
func (p *Protocol) accept(snap *model.Snapshot, taskID int, updated *model.Task, expected int) error {
	if updated.ID != taskID {
		p.metrics.Mutation(metrics.OutcomeFailed)
		return &taiga.RemoteError{Message: fmt.Sprintf("updating task %d returned task %d", taskID, updated.ID)}
	}
	if updated.Version <= expected {
		p.metrics.Mutation(metrics.OutcomeFailed)
		return &taiga.RemoteError{Message: fmt.Sprintf("task %d came back at version %d, expected a version above %d", updated.ID, updated.Version, expected)}
	}
	snap.Replace(*updated)
	if err := p.save(snap); err != nil {
		return err
	}
	p.metrics.Mutation(metrics.OutcomeOK)
	return nil
}

func (p *Protocol) save(snap *model.Snapshot) error {
	if err := p.saver.Save(snap); err != nil {
		p.metrics.Mutation(metrics.OutcomeFailed)
		return fmt.Errorf("remote change applied but the local cache could not be updated: %w", err)
	}
	return nil
}

func (p *Protocol) recordFailure(err error, taskID int) {
	var conflict *taiga.ConflictError
	if errors.As(err, &conflict) {
		p.metrics.Mutation(metrics.OutcomeConflict)
		p.log.Warn("task changed remotely", "task", taskID, "version", conflict.Version)
		return
	}
	p.metrics.Mutation(metrics.OutcomeFailed)
	p.log.Debug("task write failed", "task", taskID, "error", err)
}
