package cmd

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"waitroom/config"
	"waitroom/internal/handlers"
	"waitroom/internal/services"
	"waitroom/monitoring"
	"waitroom/security"
	"waitroom/utils"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	} else {
		slog.Warn("pubnub keys not configured, push notifications disabled")
	}

	store := services.NewSessionStore(services.NewRedisPersister(redisClient))
	configStore := services.NewConfigStore(app, cfg)
	notifier := services.NewNotifier(pn)
	monitor := monitoring.NewMonitor()
	queueService := services.NewQueueService(store, configStore, notifier, monitor, cfg)

	queueHandler := handlers.NewQueueHandler(queueService)
	adminHandler := handlers.NewAdminHandler(queueService, cfg.AdminKeyHash)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.JoinRateLimit, cfg.JoinRateWindow)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		if err := store.Restore(context.Background()); err != nil {
			slog.Error("failed to restore queue state", "error", err)
		}
		queueService.Start()

		// Participant endpoints
		se.Router.POST("/api/waitroom/join", queueHandler.Join).
			BindFunc(rateLimiter.JoinRateLimit())
		se.Router.POST("/api/waitroom/heartbeat", queueHandler.Heartbeat)
		se.Router.GET("/api/waitroom/status", queueHandler.Status)
		se.Router.POST("/api/waitroom/leave", queueHandler.Leave)
		se.Router.POST("/api/waitroom/complete", queueHandler.Complete)

		// Operator endpoints
		admin := se.Router.Group("/api/admin/waitroom")
		admin.BindFunc(adminHandler.RequireAdminKey())
		admin.GET("/dashboard", adminHandler.Dashboard)
		admin.POST("/evict", adminHandler.Evict)
		admin.POST("/readmit", adminHandler.Readmit)

		if cfg.EnableMetrics {
			se.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		slog.Info("server routes registered")

		return se.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		queueService.Shutdown()
		return e.Next()
	})

	return app.Start()
}
