package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/tasks-plus/internal/docstore"
	"github.com/adanyl0v/tasks-plus/internal/services"
)

var (
	errInvalidRequestBody      = errors.New("invalid request body")
	errMandatoryCookieNotFound = errors.New("mandatory cookie not found")
	errNoActiveSession         = errors.New("no active session")
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newAPIError(code int, message string) apiError {
	return apiError{
		Code:    code,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

func newStatusTextError(status int) apiError {
	return newAPIError(status, http.StatusText(status))
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, message)
}

func newUnauthorizedError(message string) apiError {
	return newAPIError(http.StatusUnauthorized, message)
}

func newForbiddenError(message string) apiError {
	return newAPIError(http.StatusForbidden, message)
}

func newNotFoundError(message string) apiError {
	return newAPIError(http.StatusNotFound, message)
}

func newConflictError(message string) apiError {
	return newAPIError(http.StatusConflict, message)
}

func newBadGatewayError(message string) apiError {
	return newAPIError(http.StatusBadGateway, message)
}

// newServiceError maps a domain error onto the response it deserves.
func newServiceError(err error) apiError {
	var (
		validation *services.ValidationError
		remote     *services.RemoteError
	)
	switch {
	case errors.As(err, &validation):
		return newBadRequestError(validation.Error())
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrCommentNotFound),
		errors.Is(err, services.ErrViewNotFound),
		errors.Is(err, docstore.ErrMalformedDocument):
		return newNotFoundError(err.Error())
	case errors.Is(err, services.ErrTaskNotOwned),
		errors.Is(err, services.ErrNotCommentAuthor):
		return newForbiddenError(err.Error())
	case errors.Is(err, services.ErrTaskNotPublic):
		return newConflictError(err.Error())
	case errors.As(err, &remote):
		return newBadGatewayError("document store unavailable")
	default:
		return newStatusTextError(http.StatusInternalServerError)
	}
}
