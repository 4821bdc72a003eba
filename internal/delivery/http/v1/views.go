package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/tasks-plus/internal/services"
)

type viewResponse struct {
	ViewID        string                 `json:"view_id"`
	Task          taskResponse           `json:"task"`
	Comments      []commentResponse      `json:"comments"`
	Notifications []notificationResponse `json:"notifications"`
}

func (h *handlerImpl) HandleGetView(c *gin.Context) {
	view, ok := h.pageView(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.newViewResponse(c, view))
}

type createCommentRequest struct {
	Text string `json:"text" form:"text" binding:"max=4096"`
}

type createCommentResponse struct {
	Comment       commentResponse        `json:"comment"`
	Notifications []notificationResponse `json:"notifications"`
}

func (h *handlerImpl) HandleCreateComment(c *gin.Context) {
	view, ok := h.pageView(c)
	if !ok {
		return
	}

	var req createCommentRequest
	err := c.ShouldBind(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind request body")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	comment, appended := view.Thread.Append(c.Request.Context(), identityFromContext(c), view.Task.TaskID, req.Text)
	if !appended {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusAccepted, createCommentResponse{
		Comment:       newCommentResponse(comment, true),
		Notifications: newNotificationListResponse(view.Thread.Notifications()),
	})
}

func (h *handlerImpl) HandleDeleteComment(c *gin.Context) {
	view, ok := h.pageView(c)
	if !ok {
		return
	}
	commentID := c.Param("comment")

	err := view.Thread.Remove(c, identityFromContext(c), commentID)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("view_id", view.ID).
			Str("comment_id", commentID).
			Msg("failed to delete comment")
		abort(c, newServiceError(err))
		return
	}

	c.JSON(http.StatusOK, h.newViewResponse(c, view))
}

func (h *handlerImpl) pageView(c *gin.Context) (*services.PageView, bool) {
	viewID := c.Param("view")
	view, err := h.views.Get(viewID)
	if err != nil {
		h.logger.Debug().
			Err(err).
			Str("view_id", viewID).
			Msg("page view lookup failed")
		abort(c, newServiceError(err))
		return nil, false
	}
	return view, true
}

func (h *handlerImpl) newViewResponse(c *gin.Context, view *services.PageView) viewResponse {
	return viewResponse{
		ViewID:        view.ID,
		Task:          newTaskViewResponse(&view.Task),
		Comments:      newCommentListResponse(view.Thread.Comments(identityFromContext(c))),
		Notifications: newNotificationListResponse(view.Thread.Notifications()),
	}
}
