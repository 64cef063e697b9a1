package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/task-tracker/internal/model"
	"github.com/BuzzLyutic/task-tracker/internal/repo"
)

// ErrValidation is kept as an alias so handlers can match on the service
// package alone.
var ErrValidation = model.ErrValidation

type TaskService struct {
	repo     repo.TaskRepository
	maxLimit int
	logger   *zap.Logger
}

func NewTaskService(repo repo.TaskRepository, maxLimit int, logger *zap.Logger) *TaskService {
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	return &TaskService{repo: repo, maxLimit: maxLimit, logger: logger}
}

func (s *TaskService) Create(ctx context.Context, d model.TaskDraft, idempKey string) (model.Task, error) {
	t := d.Task()
	if err := t.Validate(); err != nil { // Валидация модели на корректность введенных данных
		return t, err
	}

	if idempKey != "" { // Обеспечение идемпотентности - если ключ с ресурсом уже существует, мы не создаем его еще раз
		if existingID, err := s.repo.GetIdempotencyKey(ctx, idempKey); err == nil {
			existing, err := s.repo.Get(ctx, existingID)
			if !errors.Is(err, repo.ErrorNotFound) {
				return existing, err
			}
		}
	}

	// Создание новой задачи
	resource, err := s.repo.Create(ctx, t)
	if err != nil {
		return resource, err
	}

	// Сохранение нового ключа; задача уже создана, поэтому ошибку только логируем
	if idempKey != "" {
		if err := s.repo.SaveIdempotencyKey(ctx, idempKey, resource.ID); err != nil {
			s.logger.Warn("Failed to save idempotency key",
				zap.String("key", idempKey),
				zap.Int64("task_id", resource.ID),
				zap.Error(err),
			)
		}
	}

	return resource, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (model.Task, error) {
	return s.repo.Get(ctx, id)
}

// List returns every matching task unless a positive limit is given; the
// limit is capped at the configured maximum.
func (s *TaskService) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrValidation
	}
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	return s.repo.List(ctx, filter, limit)
}

// Update merges the patch into the stored task; the last write wins.
func (s *TaskService) Update(ctx context.Context, id int64, p model.TaskPatch) (model.Task, error) {
	if err := p.Validate(); err != nil {
		return model.Task{}, err
	}
	return s.repo.Update(ctx, id, func(t *model.Task) error {
		merged := p.Apply(*t)
		if err := merged.Validate(); err != nil {
			return err
		}
		*t = merged
		return nil
	})
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) GetStats(ctx context.Context) (repo.Stats, error) {
	return s.repo.GetStats(ctx)
}
