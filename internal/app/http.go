package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/adanyl0v/tasks-plus/internal/config"
	"github.com/adanyl0v/tasks-plus/internal/delivery/http/v1"
	"github.com/adanyl0v/tasks-plus/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	views := services.NewViewRegistry(
		componentLogger("views"),
		services.NewCommentService(componentLogger("comments"), globalDocStore),
		cfg.App.ViewTTL,
	)
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go views.Run(janitorCtx)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	v1.RegisterRoutes(router, newHandler(views))

	// Open task streams only end when their request context does.
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	server := &http.Server{
		Addr:        net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler:     newCORS(httpCfg).Handler(router),
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	server.RegisterOnShutdown(cancelRequests)

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	stopJanitor()
	closed := views.CloseAll()
	globalLogger.Info().
		Int("count", closed).
		Msg("closed page views")
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func newHandler(views *services.ViewRegistry) v1.Handler {
	cfg := config.Global()
	jwtCfg := cfg.JWT

	tasks := services.NewTaskService(componentLogger("tasks"), globalDocStore)
	return v1.New(
		componentLogger("http"),
		services.NewAuthService(
			componentLogger("auth"),
			globalPostgresPool,
			jwtCfg.Issuer,
			[]byte(jwtCfg.SigningKey),
			jwtCfg.AccessTokenTTL,
			jwtCfg.RefreshTokenTTL,
		),
		services.NewSessionService(componentLogger("sessions"), globalPostgresPool),
		tasks,
		services.NewAccessGuard(componentLogger("guard"), tasks),
		views,
		services.NewStatsService(componentLogger("stats"), globalDocStore, cfg.App.LandingRevalidateInterval),
		cfg.App.BaseURL,
	)
}

func newCORS(cfg config.HTTPConfig) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
}
