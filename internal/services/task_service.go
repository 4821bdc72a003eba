package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

type taskServiceImpl struct {
	logger zerolog.Logger
	store  docstore.Store
}

func NewTaskService(
	logger zerolog.Logger,
	store docstore.Store,
) TaskService {
	return &taskServiceImpl{
		logger: logger,
		store:  store,
	}
}

func (s *taskServiceImpl) Subscribe(ctx context.Context, owner string, fn func([]models.Task)) (docstore.Subscription, error) {
	if owner == "" {
		return nil, &ValidationError{Field: "owner", Message: "no active session"}
	}

	query := docstore.NewQuery(TasksCollection).
		Where(fieldOwner, owner).
		OrderBy(fieldCreatedAt, docstore.Descending)

	sub, err := s.store.Subscribe(ctx, query, func(docs []docstore.Document) {
		tasks := make([]models.Task, 0, len(docs))
		for _, doc := range docs {
			task, err := decodeTask(doc)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("task_id", doc.ID).
					Msg("skipping malformed task")
				continue
			}
			tasks = append(tasks, *task)
		}

		s.logger.Debug().
			Str("owner", owner).
			Int("count", len(tasks)).
			Msg("delivering tasks")
		fn(tasks)
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("owner", owner).
			Msg("failed to subscribe to tasks")
		return nil, remoteError(OpRead, TasksCollection, err)
	}

	s.logger.Info().
		Str("owner", owner).
		Msg("subscribed to tasks")
	return sub, nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (string, error) {
	if strings.TrimSpace(params.Text) == "" {
		return "", &ValidationError{Field: "text", Message: "must not be empty"}
	}
	if params.Owner == "" {
		return "", &ValidationError{Field: "owner", Message: "no active session"}
	}

	task := &models.Task{
		Owner:     params.Owner,
		Text:      params.Text,
		IsPublic:  params.IsPublic,
		CreatedAt: time.Now(),
	}

	taskID, err := s.store.Add(ctx, TasksCollection, taskFields(task))
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("owner", task.Owner).
			Msg("failed to create task")
		return "", remoteError(OpWrite, TasksCollection, err)
	}
	s.logger.Debug().
		Str("task_id", taskID).
		Bool("is_public", task.IsPublic).
		Msg("stored task")

	s.logger.Info().
		Str("task_id", taskID).
		Str("owner", task.Owner).
		Msg("created task")
	return taskID, nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, taskID string) error {
	err := s.store.Delete(ctx, TasksCollection, taskID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.logger.Debug().
				Str("task_id", taskID).
				Msg("task already deleted")
			return nil
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		return remoteError(OpDelete, TasksCollection, err)
	}

	s.logger.Info().
		Str("task_id", taskID).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	doc, err := s.store.Get(ctx, TasksCollection, taskID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.logger.Debug().
				Str("task_id", taskID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to get task")
		return nil, remoteError(OpRead, TasksCollection, err)
	}

	task, err := decodeTask(*doc)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("task_id", taskID).
			Msg("malformed task")
		return nil, err
	}
	return task, nil
}
