package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/tasks-plus/internal/services"
)

type Handler interface {
	HandleLogin(c *gin.Context)
	HandleRefresh(c *gin.Context)
	HandleRegister(c *gin.Context)
	HandleLogout(c *gin.Context)
	HandleAuthMiddleware(c *gin.Context)
	HandleSessionMiddleware(c *gin.Context)

	HandleHealth(c *gin.Context)
	HandleLanding(c *gin.Context)
	HandleDashboard(c *gin.Context)
	HandleTaskPage(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)
	HandleShareTask(c *gin.Context)
	HandleTaskStream(c *gin.Context)

	HandleGetView(c *gin.Context)
	HandleCreateComment(c *gin.Context)
	HandleDeleteComment(c *gin.Context)
}

type handlerImpl struct {
	logger   zerolog.Logger
	auth     services.AuthService
	sessions services.SessionService
	tasks    services.TaskService
	guard    services.AccessGuard
	views    *services.ViewRegistry
	stats    services.StatsService
	baseURL  string
}

func New(
	logger zerolog.Logger,
	authService services.AuthService,
	sessionService services.SessionService,
	taskService services.TaskService,
	accessGuard services.AccessGuard,
	viewRegistry *services.ViewRegistry,
	statsService services.StatsService,
	baseURL string,
) Handler {
	return &handlerImpl{
		logger:   logger,
		auth:     authService,
		sessions: sessionService,
		tasks:    taskService,
		guard:    accessGuard,
		views:    viewRegistry,
		stats:    statsService,
		baseURL:  baseURL,
	}
}
