package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/models"
)

// HomePath is where denied requests are sent.
const HomePath = "/"

type accessGuardImpl struct {
	logger zerolog.Logger
	tasks  TaskService
}

func NewAccessGuard(
	logger zerolog.Logger,
	tasks TaskService,
) AccessGuard {
	return &accessGuardImpl{
		logger: logger,
		tasks:  tasks,
	}
}

func (g *accessGuardImpl) ResolveForDirectAccess(ctx context.Context, taskID string) (*Decision, error) {
	if taskID == "" {
		return deny(), nil
	}

	task, err := g.tasks.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) || errors.Is(err, docstore.ErrMalformedDocument) {
			g.logger.Info().
				Str("task_id", taskID).
				Msg("direct access denied: no such task")
			return deny(), nil
		}
		return nil, err
	}

	if !task.IsPublic {
		g.logger.Info().
			Str("task_id", taskID).
			Msg("direct access denied: task is private")
		return deny(), nil
	}

	g.logger.Debug().
		Str("task_id", taskID).
		Msg("direct access allowed")
	return &Decision{
		Allowed: true,
		Task: &TaskView{
			TaskID:    task.ID,
			Owner:     task.Owner,
			Text:      task.Text,
			IsPublic:  task.IsPublic,
			CreatedAt: task.CreatedAt,
		},
	}, nil
}

func (g *accessGuardImpl) ResolveForDashboardAccess(identity *models.Identity) *Decision {
	if identity == nil || identity.Email == "" {
		g.logger.Debug().Msg("dashboard access denied: no session")
		return deny()
	}
	return &Decision{Allowed: true}
}

func deny() *Decision {
	return &Decision{Redirect: HomePath}
}
