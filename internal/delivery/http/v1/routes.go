package v1

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the pages at the root and the API under /api/v1.
func RegisterRoutes(router gin.IRouter, h Handler) {
	router.GET("/healthz", h.HandleHealth)
	router.GET("/", h.HandleLanding)
	router.GET("/dashboard", h.HandleSessionMiddleware, h.HandleDashboard)
	router.GET("/task/:id", h.HandleSessionMiddleware, h.HandleTaskPage)

	api := router.Group("/api/v1")

	authRouter := api.Group("/auth")
	authRouter.POST("/login", h.HandleLogin)
	authRouter.POST("/refresh", h.HandleRefresh)
	authRouter.POST("/register", h.HandleRegister)
	authRouter.POST("/logout", h.HandleAuthMiddleware, h.HandleLogout)

	tasksRouter := api.Group("/tasks", h.HandleAuthMiddleware)
	tasksRouter.GET("/stream", h.HandleTaskStream)
	tasksRouter.POST("", h.HandleCreateTask)
	tasksRouter.DELETE("/:id", h.HandleDeleteTask)
	tasksRouter.GET("/:id/share", h.HandleShareTask)

	viewsRouter := api.Group("/views/:view", h.HandleSessionMiddleware)
	viewsRouter.GET("", h.HandleGetView)
	viewsRouter.POST("/comments", h.HandleCreateComment)
	viewsRouter.DELETE("/comments/:comment", h.HandleDeleteComment)
}
