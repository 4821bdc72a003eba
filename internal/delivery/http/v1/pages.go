package v1

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/tasks-plus/internal/models"
	"github.com/adanyl0v/tasks-plus/internal/services"
)

const firstSnapshotTimeout = 10 * time.Second

func (h *handlerImpl) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type landingResponse struct {
	Tasks         int64     `json:"tasks"`
	Comments      int64     `json:"comments"`
	RevalidatedAt time.Time `json:"revalidated_at"`
}

func (h *handlerImpl) HandleLanding(c *gin.Context) {
	counts, err := h.stats.Counts(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to count documents")
		abort(c, newServiceError(err))
		return
	}

	c.Header("Cache-Control", "public, max-age=0, must-revalidate")
	c.JSON(http.StatusOK, landingResponse{
		Tasks:         counts.Tasks,
		Comments:      counts.Comments,
		RevalidatedAt: counts.RevalidatedAt,
	})
}

type dashboardResponse struct {
	Identity identityResponse `json:"identity"`
	Tasks    []taskResponse   `json:"tasks"`
}

func (h *handlerImpl) HandleDashboard(c *gin.Context) {
	identity := identityFromContext(c)
	decision := h.guard.ResolveForDashboardAccess(identity)
	if !decision.Allowed {
		c.Redirect(http.StatusFound, decision.Redirect)
		return
	}

	tasks, err := h.firstSnapshot(c.Request.Context(), identity.Email)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("owner", identity.Email).
			Msg("failed to load dashboard")
		abort(c, newServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dashboardResponse{
		Identity: newIdentityResponse(identity),
		Tasks:    newTaskListResponse(tasks),
	})
}

// firstSnapshot subscribes to owner's tasks just long enough to read one
// complete list.
func (h *handlerImpl) firstSnapshot(ctx context.Context, owner string) ([]models.Task, error) {
	ch := make(chan []models.Task, 1)
	sub, err := h.tasks.Subscribe(ctx, owner, func(tasks []models.Task) {
		select {
		case ch <- tasks:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer sub.Cancel()

	timer := time.NewTimer(firstSnapshotTimeout)
	defer timer.Stop()

	select {
	case tasks := <-ch:
		return tasks, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, &services.RemoteError{
			Op:         services.OpRead,
			Collection: services.TasksCollection,
			Err:        fmt.Errorf("no snapshot within %s", firstSnapshotTimeout),
		}
	}
}

type taskPageResponse struct {
	ViewID        string                 `json:"view_id"`
	Task          taskResponse           `json:"task"`
	Comments      []commentResponse      `json:"comments"`
	Notifications []notificationResponse `json:"notifications"`
}

func (h *handlerImpl) HandleTaskPage(c *gin.Context) {
	taskID := c.Param("id")

	decision, err := h.guard.ResolveForDirectAccess(c, taskID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to resolve task access")
		abort(c, newServiceError(err))
		return
	}
	if !decision.Allowed {
		c.Redirect(http.StatusFound, decision.Redirect)
		return
	}

	view, err := h.views.Open(c, *decision.Task)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to open page view")
		abort(c, newServiceError(err))
		return
	}

	viewer := identityFromContext(c)
	c.JSON(http.StatusOK, taskPageResponse{
		ViewID:        view.ID,
		Task:          newTaskViewResponse(&view.Task),
		Comments:      newCommentListResponse(view.Thread.Comments(viewer)),
		Notifications: newNotificationListResponse(view.Thread.Notifications()),
	})
}
