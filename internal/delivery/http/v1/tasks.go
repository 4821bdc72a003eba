package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/tasks-plus/internal/models"
	"github.com/adanyl0v/tasks-plus/internal/services"
	"github.com/adanyl0v/tasks-plus/internal/sharelink"
)

const tasksEvent = "tasks"

type createTaskRequest struct {
	Text     string `json:"text" form:"text" binding:"max=4096"`
	IsPublic bool   `json:"is_public" form:"is_public"`
}

type createTaskResponse struct {
	ID           string               `json:"id"`
	Input        string               `json:"input"`
	Notification notificationResponse `json:"notification"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		h.logger.Error().Msg("no identity found in context")
		abort(c, newUnauthorizedError(errNoActiveSession.Error()))
		return
	}

	var req createTaskRequest
	err := c.ShouldBind(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	taskID, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		Owner:    identity.Email,
		Text:     req.Text,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create task")
		abort(c, newServiceError(err))
		return
	}

	c.JSON(http.StatusCreated, createTaskResponse{
		ID:           taskID,
		Notification: newNotification(services.NotificationSuccess, "Task created!"),
	})
}

type notificationEnvelope struct {
	Notification notificationResponse `json:"notification"`
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	identity := identityFromContext(c)
	taskID := c.Param("id")

	_, err := h.ownedTask(c, identity, taskID)
	if err != nil && !errors.Is(err, services.ErrTaskNotFound) {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("refusing to delete task")
		abort(c, newServiceError(err))
		return
	}

	err = h.tasks.DeleteTask(c, taskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to delete task")
		abort(c, newServiceError(err))
		return
	}

	c.JSON(http.StatusOK, notificationEnvelope{
		Notification: newNotification(services.NotificationSuccess, "Task deleted!"),
	})
}

type shareTaskResponse struct {
	URL          string               `json:"url"`
	Notification notificationResponse `json:"notification"`
}

func (h *handlerImpl) HandleShareTask(c *gin.Context) {
	identity := identityFromContext(c)
	taskID := c.Param("id")

	task, err := h.ownedTask(c, identity, taskID)
	if err == nil && !task.IsPublic {
		err = services.ErrTaskNotPublic
	}
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to share task")
		abort(c, newServiceError(err))
		return
	}

	c.JSON(http.StatusOK, shareTaskResponse{
		URL:          sharelink.Build(h.baseURL, task.ID),
		Notification: newNotification(services.NotificationInfo, "Link ready to copy."),
	})
}

// ownedTask loads a task and checks that identity owns it.
func (h *handlerImpl) ownedTask(c *gin.Context, identity *models.Identity, taskID string) (*models.Task, error) {
	task, err := h.tasks.GetTask(c, taskID)
	if err != nil {
		return nil, err
	}
	if !identity.Is(task.Owner) {
		return nil, services.ErrTaskNotOwned
	}
	return task, nil
}

// HandleTaskStream pushes the caller's complete task list as a server-sent
// event after every change until the client goes away.
func (h *handlerImpl) HandleTaskStream(c *gin.Context) {
	identity := identityFromContext(c)
	if identity == nil {
		abort(c, newUnauthorizedError(errNoActiveSession.Error()))
		return
	}
	ctx := c.Request.Context()

	// Only the newest snapshot matters, so a slow client skips stale ones.
	snapshots := make(chan []models.Task, 1)
	sub, err := h.tasks.Subscribe(ctx, identity.Email, func(tasks []models.Task) {
		select {
		case <-snapshots:
		default:
		}
		snapshots <- tasks
	})
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to subscribe to tasks")
		abort(c, newServiceError(err))
		return
	}
	defer sub.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	h.logger.Debug().
		Str("owner", identity.Email).
		Msg("streaming tasks")
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().
				Str("owner", identity.Email).
				Msg("task stream closed by client")
			return
		case tasks := <-snapshots:
			c.SSEvent(tasksEvent, newTaskListResponse(tasks))
			c.Writer.Flush()
		}
	}
}
