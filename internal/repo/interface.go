package repo

import (
	"context"

	"github.com/BuzzLyutic/task-tracker/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id int64) (model.Task, error)
	List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error)
	// Update loads the task, lets fn change it and stores the result as one
	// atomic step. Returning an error from fn aborts without writing.
	Update(ctx context.Context, id int64, fn func(*model.Task) error) (model.Task, error)
	Delete(ctx context.Context, id int64) error
	SaveIdempotencyKey(ctx context.Context, key string, resourceID int64) error
	GetIdempotencyKey(ctx context.Context, key string) (int64, error)
	GetStats(ctx context.Context) (Stats, error)
}

type Stats struct {
	ByStatus   map[string]int `json:"by_status"`
	TotalTasks int            `json:"total_tasks"`
}

func newStats() Stats {
	s := Stats{ByStatus: make(map[string]int, len(model.Statuses))}
	for _, st := range model.Statuses {
		s.ByStatus[string(st)] = 0
	}
	return s
}
