package repo

import (
	"context"
	"sync"
	"time"

	"github.com/BuzzLyutic/task-tracker/internal/model"
)

// MemoryRepo keeps tasks in process memory. It backs taskd with
// STORAGE=memory and the end-to-end tests.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]model.Task
	order  []int64
	keys   map[string]int64
	now    func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks: make(map[int64]model.Task),
		keys:  make(map[string]int64),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t = t.Clone()
	t.ID = r.nextID
	t.CreatedAt = r.now()
	t.UpdatedAt = t.CreatedAt
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	return t.Clone(), nil
}

func (r *MemoryRepo) Get(ctx context.Context, id int64) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepo) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]model.Task, 0, len(r.order))
	for _, id := range r.order {
		t := r.tasks[id]
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		tasks = append(tasks, t.Clone())
		if limit > 0 && len(tasks) == limit {
			break
		}
	}
	return tasks, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id int64, fn func(*model.Task) error) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.tasks[id]
	if !ok {
		return model.Task{}, ErrorNotFound
	}
	t := cur.Clone()
	if err := fn(&t); err != nil {
		return cur.Clone(), err
	}
	t.ID = cur.ID
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = r.now()
	r.tasks[id] = t
	return t.Clone(), nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return ErrorNotFound
	}
	delete(r.tasks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	for k, v := range r.keys {
		if v == id {
			delete(r.keys, k)
		}
	}
	return nil
}

func (r *MemoryRepo) SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key]; !ok {
		r.keys[key] = resourceID
	}
	return nil
}

func (r *MemoryRepo) GetIdempotencyKey(ctx context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.keys[key]
	if !ok {
		return 0, ErrorNotFound
	}
	return id, nil
}

func (r *MemoryRepo) GetStats(ctx context.Context) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := newStats()
	for _, t := range r.tasks {
		stats.ByStatus[string(t.Status)]++
		stats.TotalTasks++
	}
	return stats, nil
}
