// Package coordinator drives user-initiated task mutations end to end:
// optimistic apply to the collection, one remote call, then commit or
// rollback, followed by exactly one notification.
//
// Mutations on the same task id are queued and run one at a time, so a
// rollback can only ever restore state its own operation replaced. Remote
// calls are not cancelled once issued; callers' contexts contribute values
// only.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-tracker/internal/model"
	"github.com/BuzzLyutic/task-tracker/internal/remote"
	"github.com/BuzzLyutic/task-tracker/internal/store"
	"github.com/BuzzLyutic/task-tracker/internal/worker"
)

// Remote is the CRUD contract of the task store.
type Remote interface {
	List(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, d model.TaskDraft, idempotencyKey string) (model.Task, error)
	Update(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error)
	Remove(ctx context.Context, id int64) error
}

// Result is the outcome of one mutation. Task is the entity the store
// confirmed and is zero when Err is set.
type Result struct {
	Task model.Task
	Err  error
}

// Coordinator owns the local collection and runs every mutation against it
// and the remote store.
type Coordinator struct {
	store    *store.Store
	remote   Remote
	lanes    *worker.Lanes
	notifier Notifier
	logger   *zap.Logger
	newKey   func() string

	mu      sync.Mutex
	loading bool
	banner  string
}

// New returns a coordinator over st and rm. Notifications go to n.
func New(st *store.Store, rm Remote, n Notifier, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    st,
		remote:   rm,
		lanes:    worker.NewLanes(logger),
		notifier: n,
		logger:   logger,
		newKey:   uuid.NewString,
	}
}

// Load fetches the whole collection and blocks until it arrives. On failure
// the collection is left empty and a dismissible banner is raised.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	tasks, err := c.remote.List(context.WithoutCancel(ctx))
	for i := 0; err == nil && i < len(tasks); i++ {
		err = remote.CheckTask(tasks[i])
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.store.Load(nil)
		c.banner = failureText[OpLoad]
		c.logger.Error("initial load failed", zap.Error(err))
		c.notifier.Notify(failure(OpLoad, 0, "", err))
		return err
	}
	c.banner = ""
	c.store.Load(tasks)
	c.logger.Info("tasks loaded", zap.Int("count", len(tasks)))
	return nil
}

// Loading reports whether a Load is in flight.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Banner returns the load failure message while it is shown.
func (c *Coordinator) Banner() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner, c.banner != ""
}

// DismissBanner hides the load failure banner.
func (c *Coordinator) DismissBanner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banner = ""
}

// Snapshot returns a copy of the collection including optimistic entries.
func (c *Coordinator) Snapshot() []model.Task {
	return c.store.Snapshot()
}

func (c *Coordinator) Counts() map[model.Status]int {
	return c.store.Counts()
}

func (c *Coordinator) View(opts store.ViewOptions) []model.Task {
	return c.store.View(opts)
}

// Create, Update and Delete block until the store has answered and the
// collection is reconciled.
func (c *Coordinator) Create(ctx context.Context, d model.TaskDraft) (model.Task, error) {
	r := <-c.SubmitCreate(ctx, d)
	return r.Task, r.Err
}

func (c *Coordinator) Update(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	r := <-c.SubmitUpdate(ctx, id, p)
	return r.Task, r.Err
}

// SetStatus moves a task to any status; there are no transition rules.
func (c *Coordinator) SetStatus(ctx context.Context, id int64, s model.Status) (model.Task, error) {
	return c.Update(ctx, id, model.StatusPatch(s))
}

func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	r := <-c.SubmitDelete(ctx, id)
	return r.Err
}

// SubmitCreate starts a create and returns at once. The channel yields one
// Result.
func (c *Coordinator) SubmitCreate(ctx context.Context, d model.TaskDraft) <-chan Result {
	if err := d.Validate(); err != nil {
		return c.reject(OpCreate, 0, d.Title, err)
	}
	tmp := c.store.NextTempID()
	ctx = context.WithoutCancel(ctx)

	return c.submit(OpCreate, tmp, d.Title, func() Result {
		tok := c.store.ApplyOptimistic(store.Op{Kind: store.OpCreate, ID: tmp, Task: d.Task()})

		var created model.Task
		err := c.guard(tok, func() (err error) {
			created, err = checked(c.remote.Create(ctx, d, c.newKey()))
			return err
		})
		if err != nil {
			c.store.Rollback(tok)
			return c.fail(OpCreate, 0, d.Title, err)
		}
		c.store.Commit(tok, created)
		return c.succeed(OpCreate, created)
	})
}

// SubmitUpdate starts an update. id may be the temporary id of a create
// that is still in flight; the update then runs once the store has assigned
// the real id.
func (c *Coordinator) SubmitUpdate(ctx context.Context, id int64, p model.TaskPatch) <-chan Result {
	if err := p.Validate(); err != nil {
		return c.reject(OpUpdate, id, "", err)
	}
	if id < 0 {
		return c.afterCreate(OpUpdate, id, func(confirmed int64) <-chan Result {
			return c.SubmitUpdate(ctx, confirmed, p)
		})
	}
	ctx = context.WithoutCancel(ctx)

	return c.submit(OpUpdate, id, "", func() Result {
		cur, known := c.store.Get(id)
		if !known {
			// nothing local to show optimistically; take the store's answer
			updated, err := checked(c.remote.Update(ctx, id, p))
			if err != nil {
				return c.fail(OpUpdate, id, "", err)
			}
			c.store.Reconcile(updated)
			return c.succeed(OpUpdate, updated)
		}

		merged := p.Apply(cur)
		if err := merged.Validate(); err != nil {
			return c.fail(OpUpdate, id, cur.Title, rejected(err))
		}
		tok := c.store.ApplyOptimistic(store.Op{Kind: store.OpUpdate, ID: id, Task: merged})

		var updated model.Task
		err := c.guard(tok, func() (err error) {
			updated, err = checked(c.remote.Update(ctx, id, p))
			return err
		})
		if err != nil {
			c.store.Rollback(tok)
			return c.fail(OpUpdate, id, cur.Title, err)
		}
		c.store.Commit(tok, updated)
		return c.succeed(OpUpdate, updated)
	})
}

// SubmitDelete starts a delete. Temporary ids are handled as in SubmitUpdate.
func (c *Coordinator) SubmitDelete(ctx context.Context, id int64) <-chan Result {
	if id < 0 {
		return c.afterCreate(OpDelete, id, func(confirmed int64) <-chan Result {
			return c.SubmitDelete(ctx, confirmed)
		})
	}
	ctx = context.WithoutCancel(ctx)

	return c.submit(OpDelete, id, "", func() Result {
		cur, _ := c.store.Get(id)
		tok := c.store.ApplyOptimistic(store.Op{Kind: store.OpDelete, ID: id})

		err := c.guard(tok, func() error {
			return c.remote.Remove(ctx, id)
		})
		if err != nil {
			c.store.Rollback(tok)
			return c.fail(OpDelete, id, cur.Title, err)
		}
		c.store.Commit(tok, model.Task{})
		return c.succeed(OpDelete, cur)
	})
}

// Stop waits for every queued mutation to resolve and refuses new ones.
func (c *Coordinator) Stop() {
	c.lanes.Stop()
}

func (c *Coordinator) submit(op Op, key int64, title string, job func() Result) <-chan Result {
	ch := make(chan Result, 1)
	err := c.lanes.Submit(key, func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("mutation panicked", zap.String("op", string(op)), zap.Any("panic", r))
				ch <- c.fail(op, key, title, remote.NewError(remote.KindUnknown, fmt.Sprint(r)))
			}
		}()
		ch <- job()
	})
	if errors.Is(err, worker.ErrStopped) {
		ch <- c.fail(op, key, title, remote.NewError(remote.KindUnknown, "coordinator stopped"))
	}
	return ch
}

// afterCreate queues behind the create that issued tmp and hands the
// confirmed id to next. The operation next starts does the notifying; if the
// create never committed the operation fails here with NOT_FOUND.
func (c *Coordinator) afterCreate(op Op, tmp int64, next func(confirmed int64) <-chan Result) <-chan Result {
	return c.submit(op, tmp, "", func() Result {
		confirmed, ok := c.store.Resolve(tmp)
		if !ok {
			return c.fail(op, tmp, "", remote.NewError(remote.KindNotFound, "task was never saved"))
		}
		return <-next(confirmed)
	})
}

// guard runs the remote call of an applied op. A panic in call rolls tok back
// before it propagates to submit.
func (c *Coordinator) guard(tok store.RollbackToken, call func() error) error {
	defer func() {
		if r := recover(); r != nil {
			c.store.Rollback(tok)
			panic(r)
		}
	}()
	return call()
}

// checked refuses entities the store should never have answered with.
func checked(t model.Task, err error) (model.Task, error) {
	if err != nil {
		return model.Task{}, err
	}
	if err := remote.CheckTask(t); err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (c *Coordinator) reject(op Op, id int64, title string, err error) <-chan Result {
	ch := make(chan Result, 1)
	ch <- c.fail(op, id, title, rejected(err))
	return ch
}

func (c *Coordinator) succeed(op Op, t model.Task) Result {
	c.logger.Debug("mutation confirmed", zap.String("op", string(op)), zap.Int64("task_id", t.ID))
	c.notifier.Notify(success(op, t.ID, t.Title))
	return Result{Task: t}
}

func (c *Coordinator) fail(op Op, id int64, title string, err error) Result {
	c.logger.Warn("mutation rolled back",
		zap.String("op", string(op)),
		zap.Int64("task_id", id),
		zap.String("kind", string(remote.KindOf(err))),
		zap.Error(err),
	)
	c.notifier.Notify(failure(op, id, title, err))
	return Result{Err: err}
}

// rejected turns a local validation failure into the same error shape the
// store would have answered with.
func rejected(err error) error {
	return &remote.Error{Kind: remote.KindRejected, Message: trimValidation(err), Err: err}
}

func trimValidation(err error) string {
	return strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": ")
}
