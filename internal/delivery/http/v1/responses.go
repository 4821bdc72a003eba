package v1

import (
	"time"

	"github.com/adanyl0v/tasks-plus/internal/models"
	"github.com/adanyl0v/tasks-plus/internal/services"
)

// createdAtLayout is how dates are shown next to tasks and comments.
const createdAtLayout = "02/01/2006 15:04"

type identityResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func newIdentityResponse(identity *models.Identity) identityResponse {
	return identityResponse{
		Email: identity.Email,
		Name:  identity.Name,
	}
}

type taskResponse struct {
	ID               string    `json:"id"`
	Text             string    `json:"text"`
	Owner            string    `json:"owner"`
	IsPublic         bool      `json:"is_public"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedAtDisplay string    `json:"created_at_display"`
}

func newTaskResponse(task *models.Task) taskResponse {
	return taskResponse{
		ID:               task.ID,
		Text:             task.Text,
		Owner:            task.Owner,
		IsPublic:         task.IsPublic,
		CreatedAt:        task.CreatedAt,
		CreatedAtDisplay: task.CreatedAt.Format(createdAtLayout),
	}
}

func newTaskViewResponse(view *services.TaskView) taskResponse {
	return newTaskResponse(&models.Task{
		ID:        view.TaskID,
		Owner:     view.Owner,
		Text:      view.Text,
		IsPublic:  view.IsPublic,
		CreatedAt: view.CreatedAt,
	})
}

func newTaskListResponse(tasks []models.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i := range tasks {
		out[i] = newTaskResponse(&tasks[i])
	}
	return out
}

type commentResponse struct {
	ID               string           `json:"id"`
	TaskID           string           `json:"task_id"`
	Author           identityResponse `json:"author"`
	Text             string           `json:"text"`
	CreatedAt        time.Time        `json:"created_at"`
	CreatedAtDisplay string           `json:"created_at_display"`
	CanDelete        bool             `json:"can_delete"`
}

func newCommentResponse(comment *models.Comment, canDelete bool) commentResponse {
	return commentResponse{
		ID:               comment.ID,
		TaskID:           comment.TaskID,
		Author:           newIdentityResponse(&comment.Author),
		Text:             comment.Text,
		CreatedAt:        comment.CreatedAt,
		CreatedAtDisplay: comment.CreatedAt.Format(createdAtLayout),
		CanDelete:        canDelete,
	}
}

func newCommentListResponse(views []services.CommentView) []commentResponse {
	out := make([]commentResponse, len(views))
	for i := range views {
		out[i] = newCommentResponse(&views[i].Comment, views[i].CanDelete)
	}
	return out
}

type notificationResponse struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func newNotification(kind services.NotificationKind, message string) notificationResponse {
	return notificationResponse{
		Kind:    string(kind),
		Message: message,
		At:      time.Now(),
	}
}

func newNotificationListResponse(notices []services.Notification) []notificationResponse {
	out := make([]notificationResponse, len(notices))
	for i, n := range notices {
		out[i] = notificationResponse{
			Kind:    string(n.Kind),
			Message: n.Message,
			At:      n.At,
		}
	}
	return out
}
